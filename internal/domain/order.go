package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is the persisted header of a purchase. ID and OrderDate are assigned by the record store.
type Order struct {
	ID         int64     `json:"order_id"`
	UserID     string    `json:"user_id"`
	CustomerID int64     `json:"customer_id"`
	OrderDate  time.Time `json:"order_date"`
}

type OrderLine struct {
	ID        int64           `json:"order_details_id"`
	OrderID   int64           `json:"order_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
}

// OrderSummary is a row of the order history view.
type OrderSummary struct {
	OrderID    int64           `json:"order_id"`
	CustomerID int64           `json:"customer_id"`
	OrderDate  time.Time       `json:"order_date"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}

// OrderDetail is a row of the order detail history view.
type OrderDetail struct {
	OrderDetailsID int64           `json:"order_details_id"`
	OrderID        int64           `json:"order_id"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	Cost           decimal.Decimal `json:"cost"`
}
