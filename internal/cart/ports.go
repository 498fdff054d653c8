package cart

import (
	"context"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
)

// Store is the part of the record store the cart writes orders through. When the
// implementation is also a recordstore.OrderWriter, orders are committed atomically.
type Store interface {
	Create(ctx context.Context, table string, rec recordstore.Record) (recordstore.Record, error)
	CreateMany(ctx context.Context, table string, recs []recordstore.Record) ([]recordstore.Record, error)
	Delete(ctx context.Context, table, keyField string, keyValue any) error
}

type Catalog interface {
	FetchProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type SessionProvider interface {
	CurrentSession(ctx context.Context) (*domain.Session, error)
}

// Surface receives every state change of a cart. Calls happen while the cart is locked,
// so implementations must not call back into the Manager.
type Surface interface {
	Render(v View)
	Highlight(productID int64)
	ShowConfirmation(message string)
	CloseConfirmation()
}

// History is refreshed after an order is committed.
type History interface {
	RefreshOrders(ctx context.Context, s *domain.Session) error
	ClearOrderDetails(ctx context.Context, s *domain.Session) error
}

type Recorder interface {
	OrderPlaced()
	PurchaseFailed(reason string)
	CartMutated(kind string)
}

type nopSurface struct{}

func (nopSurface) Render(View)             {}
func (nopSurface) Highlight(int64)         {}
func (nopSurface) ShowConfirmation(string) {}
func (nopSurface) CloseConfirmation()      {}

type nopRecorder struct{}

func (nopRecorder) OrderPlaced()          {}
func (nopRecorder) PurchaseFailed(string) {}
func (nopRecorder) CartMutated(string)    {}
