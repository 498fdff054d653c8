package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.uber.org/zap"
)

func setupMongo(t *testing.T) *MongoStore {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := ConnectMongo(ctx, uri, "storefront", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.CreateIndexes(ctx))

	t.Cleanup(func() {
		store.Close()
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})
	return store
}

func TestMongo_CreateAssignsSequentialKeys(t *testing.T) {
	s := setupMongo(t)
	f := seed(t, s)

	assert.Equal(t, int64(1), f.vendorID)
	assert.Equal(t, int64(1), f.productA)
	assert.Equal(t, int64(2), f.productB)
}

func TestMongo_IsNotAnOrderWriter(t *testing.T) {
	var s Store = &MongoStore{}
	_, ok := s.(OrderWriter)
	assert.False(t, ok)
}

func TestMongo_ReferentialChecks(t *testing.T) {
	s := setupMongo(t)
	f := seed(t, s)
	ctx := context.Background()

	err := s.Delete(ctx, TableVendors, "vendor_id", f.vendorID)
	assert.ErrorIs(t, err, ErrConstraint)

	_, err = s.Create(ctx, TableProducts, Record{"vendor_id": 999, "product_name": "Ghost", "price": "1", "in_stock": 1})
	assert.ErrorIs(t, err, ErrConstraint)

	require.NoError(t, s.Delete(ctx, TableCustomers, "customer_id", f.customerID))
	assert.ErrorIs(t, s.Delete(ctx, TableCustomers, "customer_id", f.customerID), ErrNotFound)
}

func TestMongo_UpdateAndViews(t *testing.T) {
	s := setupMongo(t)
	f := seed(t, s)
	ctx := context.Background()

	updated, err := s.Update(ctx, TableProducts, "product_id", Record{"product_id": f.productA, "price": "6.50"})
	require.NoError(t, err)
	assert.Equal(t, "6.5", updated.Decimal("price").String())

	order, err := s.Create(ctx, TableOrders, Record{"user_id": "user-1", "customer_id": f.customerID})
	require.NoError(t, err)
	_, err = s.CreateMany(ctx, TableOrderDetails, []Record{
		{"order_id": order["order_id"], "product_id": f.productA, "quantity": 2, "cost": "13.00"},
		{"order_id": order["order_id"], "product_id": f.productB, "quantity": 1, "cost": "10.00"},
	})
	require.NoError(t, err)

	summaries, err := s.Select(ctx, Query{Table: ViewOrders, FilterField: "customer_id", FilterValue: f.customerID})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "23", summaries[0].Decimal("total_cost").String())

	details, err := s.Select(ctx, Query{Table: ViewOrderDetails, OrderBy: "order_details_id", FilterField: "order_id", FilterValue: order["order_id"]})
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "Resistor", details[0].String("product_name"))

	byProduct, err := s.Select(ctx, Query{Table: ViewRevenueByProduct, OrderBy: "product_id"})
	require.NoError(t, err)
	require.Len(t, byProduct, 2)
	assert.Equal(t, "13", byProduct[0].Decimal("total_cost").String())

	byMonth, err := s.Select(ctx, Query{Table: ViewRevenueByMonth})
	require.NoError(t, err)
	require.Len(t, byMonth, 1)
	assert.Equal(t, "23", byMonth[0].Decimal("total_cost").String())
}

func TestMongo_CreateManyUndoesPartialWrites(t *testing.T) {
	s := setupMongo(t)
	f := seed(t, s)
	ctx := context.Background()

	order, err := s.Create(ctx, TableOrders, Record{"user_id": "user-1", "customer_id": f.customerID})
	require.NoError(t, err)

	_, err = s.CreateMany(ctx, TableOrderDetails, []Record{
		{"order_id": order["order_id"], "product_id": f.productA, "quantity": 1, "cost": "5.00"},
		{"order_id": order["order_id"], "product_id": 999, "quantity": 1, "cost": "5.00"},
	})
	assert.ErrorIs(t, err, ErrConstraint)

	rows, err := s.Select(ctx, Query{Table: TableOrderDetails})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
