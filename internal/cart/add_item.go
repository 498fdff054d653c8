package cart

import (
	"context"
	"fmt"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
)

// AddItem puts one unit of p in the cart. A product already in the cart gets its quantity
// raised and keeps the unit price it was first added with.
func (m *Manager) AddItem(p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrPurchaseInProgress
	}

	kind := "merge"
	if i := m.find(p.ID); i >= 0 {
		l := m.lines[i]
		l.Quantity++
		l.Recalculate()
	} else {
		kind = "add"
		m.lines = append(m.lines, domain.NewCartLine(p))
	}

	m.recompute()
	m.surface.Render(m.view())
	m.surface.Highlight(p.ID)
	m.recorder.CartMutated(kind)
	return nil
}

// AddProduct looks the product up in the catalog and adds it. Lookup failures leave the cart unchanged.
func (m *Manager) AddProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	p, err := m.catalog.FetchProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("add product %d: %w", productID, err)
	}
	if err := m.AddItem(*p); err != nil {
		return nil, err
	}
	return p, nil
}
