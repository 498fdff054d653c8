package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID       int64           `json:"product_id"`
	VendorID int64           `json:"vendor_id"`
	Name     string          `json:"product_name"`
	Price    decimal.Decimal `json:"price"`
	InStock  int             `json:"in_stock"`
	ImageURL string          `json:"image_url,omitempty"`
}
