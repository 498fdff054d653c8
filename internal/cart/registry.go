package cart

import (
	"context"
	"sync"
	"time"
)

const defaultIdleTimeout = 30 * time.Minute

type RegistryOption func(*Registry)

// WithIdleTimeout sets how long an unused cart is kept before Sweep evicts it.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

// WithEvictHook runs fn after a user's cart is dropped or evicted.
func WithEvictHook(fn func(userID string)) RegistryOption {
	return func(r *Registry) { r.onEvict = fn }
}

// Registry holds one Manager per signed-in user.
type Registry struct {
	mu       sync.Mutex
	managers map[string]*entry
	factory  func(userID string) *Manager
	idle     time.Duration
	onEvict  func(userID string)
	now      func() time.Time
}

type entry struct {
	manager  *Manager
	lastUsed time.Time
}

func NewRegistry(factory func(userID string) *Manager, opts ...RegistryOption) *Registry {
	r := &Registry{
		managers: make(map[string]*entry),
		factory:  factory,
		idle:     defaultIdleTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Activate returns the user's cart, creating an empty one on first use.
func (r *Registry) Activate(userID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[userID]
	if !ok {
		e = &entry{manager: r.factory(userID)}
		r.managers[userID] = e
	}
	e.lastUsed = r.now()
	return e.manager
}

func (r *Registry) Get(userID string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.managers[userID]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.manager, true
}

// Drop empties and forgets the user's cart.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	e, ok := r.managers[userID]
	delete(r.managers, userID)
	r.mu.Unlock()
	if ok {
		_ = e.manager.Clear()
	}
	if r.onEvict != nil {
		r.onEvict(userID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Sweep evicts carts idle for longer than the idle timeout until ctx is done.
func (r *Registry) Sweep(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.evictIdle(now)
		}
	}
}

// evictIdle drops carts unused since now minus the idle timeout. Carts in the middle of a
// purchase are kept.
func (r *Registry) evictIdle(now time.Time) []string {
	r.mu.Lock()
	var evicted []*entry
	var users []string
	for userID, e := range r.managers {
		if now.Sub(e.lastUsed) <= r.idle || e.manager.purchasing() {
			continue
		}
		delete(r.managers, userID)
		evicted = append(evicted, e)
		users = append(users, userID)
	}
	r.mu.Unlock()

	for i, e := range evicted {
		_ = e.manager.Clear()
		if r.onEvict != nil {
			r.onEvict(users[i])
		}
	}
	return users
}
