package cart

import (
	"errors"
	"fmt"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
)

var (
	ErrLineNotFound       = errors.New("cart line not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNoSession          = domain.ErrNoSession
	ErrPurchaseInProgress = errors.New("purchase in progress")
	ErrOrphanOrder        = errors.New("order header written without its lines")
)

// OrphanOrderError reports an order header that could not be removed after its lines failed.
type OrphanOrderError struct {
	OrderID int64
	Err     error
}

func (e *OrphanOrderError) Error() string {
	return fmt.Sprintf("order %d: %v: %v", e.OrderID, ErrOrphanOrder, e.Err)
}

func (e *OrphanOrderError) Unwrap() []error {
	return []error{ErrOrphanOrder, e.Err}
}
