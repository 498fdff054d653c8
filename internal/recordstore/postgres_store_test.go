package recordstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupPostgres(t *testing.T) *SQLStore {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := NewPostgresStore(&Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "storefront",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, RunPostgresMigrations(store.DB()))

	t.Cleanup(func() {
		store.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return store
}

func TestPostgres_OrderLifecycle(t *testing.T) {
	s := setupPostgres(t)
	f := seed(t, s)
	ctx := context.Background()

	order, lines, err := s.CreateOrder(ctx,
		Record{"user_id": "user-1", "customer_id": f.customerID},
		[]Record{
			{"product_id": f.productA, "quantity": 2, "cost": "10.00"},
			{"product_id": f.productB, "quantity": 1, "cost": "10.00"},
		})
	require.NoError(t, err)
	require.Len(t, lines, 2)

	summaries, err := s.Select(ctx, Query{Table: ViewOrders, FilterField: "customer_id", FilterValue: f.customerID})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, order.Int64("order_id"), summaries[0].Int64("order_id"))
	assert.Equal(t, "20", summaries[0].Decimal("total_cost").String())

	err = s.Delete(ctx, TableProducts, "product_id", f.productA)
	assert.ErrorIs(t, err, ErrConstraint)

	events, err := s.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, s.MarkEventAsProcessed(ctx, events[0].ID))
}

func TestPostgres_CreateOrderRollsBack(t *testing.T) {
	s := setupPostgres(t)
	f := seed(t, s)
	ctx := context.Background()

	_, _, err := s.CreateOrder(ctx,
		Record{"user_id": "user-1", "customer_id": f.customerID},
		[]Record{{"product_id": 999, "quantity": 1, "cost": "1.00"}})
	assert.ErrorIs(t, err, ErrConstraint)

	orders, err := s.Select(ctx, Query{Table: TableOrders})
	require.NoError(t, err)
	assert.Empty(t, orders)
}
