// Package surface keeps the last rendered state of a cart so it can be served to clients.
package surface

import (
	"sync"

	"github.com/rtbecker76/universal-electronics2/internal/cart"
	"github.com/rtbecker76/universal-electronics2/internal/grid"
	"github.com/shopspring/decimal"
)

// State is what a client sees of its cart.
type State struct {
	Lines           []grid.Row      `json:"lines"`
	Total           decimal.Decimal `json:"total"`
	PurchaseEnabled bool            `json:"purchase_enabled"`
	Highlighted     int64           `json:"highlighted,omitempty"`
	Confirmation    string          `json:"confirmation,omitempty"`
}

// Snapshot implements cart.Surface over a grid of cart lines keyed by product_id.
// mu covers the grid together with the totals so Current never mixes two renders.
type Snapshot struct {
	mu           sync.RWMutex
	lines        *grid.Grid
	total        decimal.Decimal
	enabled      bool
	confirmation string
}

var _ cart.Surface = (*Snapshot)(nil)

func NewSnapshot() *Snapshot {
	return &Snapshot{lines: grid.New("product_id")}
}

// Render replaces the line grid, keeping the highlighted line when it still exists.
func (s *Snapshot) Render(v cart.View) {
	rows := make([]grid.Row, len(v.Lines))
	for i, l := range v.Lines {
		rows[i] = grid.Row{
			"product_id":   l.ProductID,
			"product_name": l.ProductName,
			"unit_price":   l.UnitPrice,
			"quantity":     l.Quantity,
			"line_cost":    l.LineCost,
		}
	}
	s.mu.Lock()
	s.lines.SetRows(rows)
	s.total = v.Total
	s.enabled = v.PurchaseEnabled
	s.mu.Unlock()
}

func (s *Snapshot) Highlight(productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines.Select(productID)
}

func (s *Snapshot) ShowConfirmation(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmation = message
}

func (s *Snapshot) CloseConfirmation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmation = ""
}

func (s *Snapshot) Lines() grid.TabularView {
	return s.lines
}

func (s *Snapshot) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{Lines: s.lines.Rows()}
	if row, ok := s.lines.Selected(); ok {
		st.Highlighted, _ = row["product_id"].(int64)
	}
	st.Total = s.total
	st.PurchaseEnabled = s.enabled
	st.Confirmation = s.confirmation
	return st
}
