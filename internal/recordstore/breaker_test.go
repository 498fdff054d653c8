package recordstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockStore struct {
	mu        sync.Mutex
	Err       error
	Calls     int
	Records   []Record
	CreateErr error
}

func (m *MockStore) Select(context.Context, Query) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Records, m.Err
}

func (m *MockStore) Create(_ context.Context, _ string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return rec, m.CreateErr
}

func (m *MockStore) CreateMany(_ context.Context, _ string, recs []Record) ([]Record, error) {
	return recs, m.CreateErr
}

func (m *MockStore) Update(_ context.Context, _, _ string, rec Record) (Record, error) {
	return rec, m.Err
}

func (m *MockStore) Delete(context.Context, string, string, any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	return m.Err
}

func (m *MockStore) Close() error { return nil }

type mockOrderStore struct {
	MockStore
}

func (m *mockOrderStore) CreateOrder(_ context.Context, header Record, lines []Record) (Record, []Record, error) {
	return header, lines, nil
}

func breakerSettings() BreakerSettings {
	return BreakerSettings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute}
}

func TestBreaker_OpensAfterBackendFailures(t *testing.T) {
	inner := &MockStore{Err: newError("select", TableVendors, ErrUnexpected, errors.New("down"))}
	s := WithBreaker(inner, breakerSettings(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Select(ctx, Query{Table: TableVendors})
		require.ErrorIs(t, err, ErrUnexpected)
	}

	_, err := s.Select(ctx, Query{Table: TableVendors})
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, 2, inner.Calls, "open breaker must not call the backend")
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	inner := &MockStore{Err: newError("delete", TableVendors, ErrConstraint, nil)}
	s := WithBreaker(inner, breakerSettings(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := s.Delete(ctx, TableVendors, "vendor_id", 1)
		require.ErrorIs(t, err, ErrConstraint)
	}
	assert.Equal(t, 5, inner.Calls)
}

func TestBreaker_PreservesOrderWriter(t *testing.T) {
	plain := WithBreaker(&MockStore{}, breakerSettings(), zap.NewNop())
	_, ok := plain.(OrderWriter)
	assert.False(t, ok)

	wrapped := WithBreaker(&mockOrderStore{}, breakerSettings(), zap.NewNop())
	ow, ok := wrapped.(OrderWriter)
	require.True(t, ok)

	order, lines, err := ow.CreateOrder(context.Background(), Record{"user_id": "u"}, []Record{{"quantity": 1}})
	require.NoError(t, err)
	assert.Equal(t, "u", order.String("user_id"))
	assert.Len(t, lines, 1)
}
