package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"github.com/shopspring/decimal"
)

type MockStore struct {
	mu         sync.Mutex
	nextID     int64
	Orders     []recordstore.Record
	Lines      []recordstore.Record
	Deleted    []any
	CreateErr  error
	LinesErr   error
	DeleteErr  error
	BeforeSave func()
}

func (m *MockStore) Create(_ context.Context, table string, rec recordstore.Record) (recordstore.Record, error) {
	if m.BeforeSave != nil {
		m.BeforeSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if table != recordstore.TableOrders {
		return nil, errors.New("unexpected table " + table)
	}
	m.nextID++
	out := rec.Clone()
	out["order_id"] = m.nextID
	m.Orders = append(m.Orders, out)
	return out, nil
}

func (m *MockStore) CreateMany(_ context.Context, table string, recs []recordstore.Record) ([]recordstore.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LinesErr != nil {
		return nil, m.LinesErr
	}
	if table != recordstore.TableOrderDetails {
		return nil, errors.New("unexpected table " + table)
	}
	out := make([]recordstore.Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
		m.Lines = append(m.Lines, out[i])
	}
	return out, nil
}

func (m *MockStore) Delete(_ context.Context, _, _ string, keyValue any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deleted = append(m.Deleted, keyValue)
	kept := m.Orders[:0]
	for _, o := range m.Orders {
		if o["order_id"] != keyValue {
			kept = append(kept, o)
		}
	}
	m.Orders = kept
	return nil
}

// mockOrderStore commits header and lines together.
type mockOrderStore struct {
	MockStore
	OrderErr error
	Atomic   int
}

func (m *mockOrderStore) CreateOrder(ctx context.Context, header recordstore.Record, lines []recordstore.Record) (recordstore.Record, []recordstore.Record, error) {
	m.mu.Lock()
	m.Atomic++
	err := m.OrderErr
	m.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	order, err := m.Create(ctx, recordstore.TableOrders, header)
	if err != nil {
		return nil, nil, err
	}
	for _, l := range lines {
		l["order_id"] = order["order_id"]
	}
	created, err := m.CreateMany(ctx, recordstore.TableOrderDetails, lines)
	return order, created, err
}

type MockCatalog struct {
	Products map[int64]domain.Product
}

func (c *MockCatalog) FetchProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := c.Products[id]
	if !ok {
		return nil, errors.New("product not found")
	}
	return &p, nil
}

type MockSessions struct {
	Session *domain.Session
	Err     error
}

func (s *MockSessions) CurrentSession(context.Context) (*domain.Session, error) {
	return s.Session, s.Err
}

type recordingSurface struct {
	mu            sync.Mutex
	Renders       []View
	Highlights    []int64
	Confirmations []string
	Closed        int
}

func (s *recordingSurface) Render(v View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Renders = append(s.Renders, v)
}

func (s *recordingSurface) Highlight(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Highlights = append(s.Highlights, id)
}

func (s *recordingSurface) ShowConfirmation(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Confirmations = append(s.Confirmations, msg)
}

func (s *recordingSurface) CloseConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
}

func (s *recordingSurface) last() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Renders[len(s.Renders)-1]
}

type MockHistory struct {
	Refreshed  int
	Cleared    int
	RefreshErr error
}

func (h *MockHistory) RefreshOrders(context.Context, *domain.Session) error {
	h.Refreshed++
	return h.RefreshErr
}

func (h *MockHistory) ClearOrderDetails(context.Context, *domain.Session) error {
	h.Cleared++
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	Placed   int
	Failures []string
	Mutated  []string
}

func (r *countingRecorder) OrderPlaced() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Placed++
}

func (r *countingRecorder) PurchaseFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, reason)
}

func (r *countingRecorder) CartMutated(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Mutated = append(r.Mutated, kind)
}

func product(id int64, name, price string) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
}
