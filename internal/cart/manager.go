// Package cart implements the order-composition workflow: an in-memory cart of product lines,
// its running total and the commit of an order with its lines.
package cart

import (
	"sync"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// View is a read-only copy of the cart state.
type View struct {
	Lines           []domain.CartLine `json:"lines"`
	Total           decimal.Decimal   `json:"total"`
	PurchaseEnabled bool              `json:"purchase_enabled"`
}

type Deps struct {
	Store    Store
	Catalog  Catalog
	Sessions SessionProvider
	Surface  Surface
	History  History
	Recorder Recorder
	Log      *zap.Logger
}

// Manager owns one cart. It is safe for concurrent use; FinalizePurchase runs as a critical
// section during which every other mutation fails with ErrPurchaseInProgress.
type Manager struct {
	mu              sync.Mutex
	lines           []*domain.CartLine
	total           decimal.Decimal
	purchaseEnabled bool
	busy            bool

	store    Store
	catalog  Catalog
	sessions SessionProvider
	surface  Surface
	history  History
	recorder Recorder
	log      *zap.Logger
}

func NewManager(d Deps) *Manager {
	m := &Manager{
		store:    d.Store,
		catalog:  d.Catalog,
		sessions: d.Sessions,
		surface:  d.Surface,
		history:  d.History,
		recorder: d.Recorder,
		log:      d.Log,
	}
	if m.surface == nil {
		m.surface = nopSurface{}
	}
	if m.recorder == nil {
		m.recorder = nopRecorder{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

func (m *Manager) Surface() Surface {
	return m.surface
}

func (m *Manager) State() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view()
}

func (m *Manager) purchasing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.busy
}

// Clear empties the cart and closes any open confirmation.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return ErrPurchaseInProgress
	}
	m.lines = nil
	m.recompute()
	m.surface.Render(m.view())
	m.surface.CloseConfirmation()
	return nil
}

func (m *Manager) view() View {
	lines := make([]domain.CartLine, len(m.lines))
	for i, l := range m.lines {
		lines[i] = *l
	}
	return View{Lines: lines, Total: m.total, PurchaseEnabled: m.purchaseEnabled}
}

func (m *Manager) find(productID int64) int {
	for i, l := range m.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}
