package recordstore

import (
	"context"
	"io"
)

// Query selects rows of one table or view. OrderBy and FilterField are optional.
type Query struct {
	Table       string
	OrderBy     string
	FilterField string
	FilterValue any
}

type Store interface {
	Select(ctx context.Context, q Query) ([]Record, error)
	Create(ctx context.Context, table string, rec Record) (Record, error)
	CreateMany(ctx context.Context, table string, recs []Record) ([]Record, error)
	Update(ctx context.Context, table, keyField string, rec Record) (Record, error)
	// Delete returns nil on success.
	Delete(ctx context.Context, table, keyField string, keyValue any) error
	io.Closer
}

// OrderWriter is implemented by stores that can persist an order header and its lines in one transaction.
// The header's generated order_id is copied into every line before it is written.
type OrderWriter interface {
	CreateOrder(ctx context.Context, header Record, lines []Record) (Record, []Record, error)
}

const (
	TableVendors      = "vendors"
	TableProducts     = "products"
	TableCustomers    = "customers"
	TableOrders       = "orders"
	TableOrderDetails = "order_details"

	ViewOrders           = "vw_orders"
	ViewOrderDetails     = "vw_order_details"
	ViewRevenueByMonth   = "vw_revenue_by_month"
	ViewRevenueByProduct = "vw_revenue_by_product"
)
