package recordstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

type breakerOrderStore struct {
	*breakerStore
	orders OrderWriter
}

// WithBreaker wraps s in a circuit breaker. Client errors (constraint, not found, invalid)
// count as successes. The result implements OrderWriter when s does.
func WithBreaker(s Store, cfg BreakerSettings, log *zap.Logger) Store {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("record store breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	b := &breakerStore{next: s, cb: cb}
	if ow, ok := s.(OrderWriter); ok {
		return &breakerOrderStore{breakerStore: b, orders: ow}
	}
	return b
}

func (b *breakerStore) Select(ctx context.Context, q Query) ([]Record, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Select(ctx, q)
	})
	if err != nil {
		return nil, breakerError("select", q.Table, err)
	}
	return v.([]Record), nil
}

func (b *breakerStore) Create(ctx context.Context, table string, rec Record) (Record, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Create(ctx, table, rec)
	})
	if err != nil {
		return nil, breakerError("create", table, err)
	}
	return v.(Record), nil
}

func (b *breakerStore) CreateMany(ctx context.Context, table string, recs []Record) ([]Record, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.CreateMany(ctx, table, recs)
	})
	if err != nil {
		return nil, breakerError("create", table, err)
	}
	return v.([]Record), nil
}

func (b *breakerStore) Update(ctx context.Context, table, keyField string, rec Record) (Record, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.next.Update(ctx, table, keyField, rec)
	})
	if err != nil {
		return nil, breakerError("update", table, err)
	}
	return v.(Record), nil
}

func (b *breakerStore) Delete(ctx context.Context, table, keyField string, keyValue any) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Delete(ctx, table, keyField, keyValue)
	})
	if err != nil {
		return breakerError("delete", table, err)
	}
	return nil
}

func (b *breakerStore) Close() error {
	return b.next.Close()
}

func (b *breakerOrderStore) CreateOrder(ctx context.Context, header Record, lines []Record) (Record, []Record, error) {
	type result struct {
		order Record
		lines []Record
	}
	v, err := b.cb.Execute(func() (any, error) {
		order, created, err := b.orders.CreateOrder(ctx, header, lines)
		return result{order, created}, err
	})
	if err != nil {
		return nil, nil, breakerError("create order", TableOrders, err)
	}
	r := v.(result)
	return r.order, r.lines, nil
}

func breakerError(op, table string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newError(op, table, ErrUnexpected, err)
	}
	return err
}
