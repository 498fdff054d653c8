package domain

import "github.com/shopspring/decimal"

// CartLine is one product in a cart. LineCost always equals UnitPrice * Quantity.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineCost    decimal.Decimal `json:"line_cost"`
}

func NewCartLine(p Product) *CartLine {
	l := &CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    1,
	}
	l.Recalculate()
	return l
}

func (l *CartLine) Recalculate() {
	l.LineCost = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
