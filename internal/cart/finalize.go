package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"go.uber.org/zap"
)

const compensationTimeout = 5 * time.Second

// FinalizePurchase commits the cart as an order for the current session. On success the
// cart is emptied and the order history is refreshed. On failure the cart is left as it was.
func (m *Manager) FinalizePurchase(ctx context.Context) (*domain.Order, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, ErrPurchaseInProgress
	}
	m.recompute()
	if !m.purchaseEnabled {
		m.mu.Unlock()
		return nil, ErrEmptyCart
	}
	m.busy = true
	lines := m.view().Lines
	m.surface.Render(m.view())
	m.mu.Unlock()

	order, session, err := m.commit(ctx, lines)

	m.mu.Lock()
	m.busy = false
	if err != nil {
		m.recompute()
		m.surface.Render(m.view())
		m.mu.Unlock()
		m.recorder.PurchaseFailed(failureReason(err))
		return nil, err
	}
	m.lines = nil
	m.recompute()
	m.surface.Render(m.view())
	m.surface.CloseConfirmation()
	m.mu.Unlock()

	m.recorder.OrderPlaced()
	m.log.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int("lines", len(lines)))

	if m.history != nil {
		if err := m.history.RefreshOrders(ctx, session); err != nil {
			m.log.Warn("refresh order history failed", zap.Error(err))
		}
		if err := m.history.ClearOrderDetails(ctx, session); err != nil {
			m.log.Warn("clear order details failed", zap.Error(err))
		}
	}
	return order, nil
}

func (m *Manager) commit(ctx context.Context, lines []domain.CartLine) (*domain.Order, *domain.Session, error) {
	session, err := m.sessions.CurrentSession(ctx)
	if errors.Is(err, ErrNoSession) || (err == nil && session == nil) {
		return nil, nil, ErrNoSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve session: %w", err)
	}

	header := recordstore.Record{"user_id": session.UserID, "customer_id": session.CustomerID}
	details := make([]recordstore.Record, len(lines))
	for i, l := range lines {
		details[i] = recordstore.Record{
			"product_id": l.ProductID,
			"quantity":   l.Quantity,
			"cost":       l.LineCost,
		}
	}

	if ow, ok := m.store.(recordstore.OrderWriter); ok {
		created, _, err := ow.CreateOrder(ctx, header, details)
		if err != nil {
			return nil, nil, fmt.Errorf("create order: %w", err)
		}
		return orderFromRecord(created), session, nil
	}

	created, err := m.store.Create(ctx, recordstore.TableOrders, header)
	if err != nil {
		return nil, nil, fmt.Errorf("create order header: %w", err)
	}
	orderID := created.Int64("order_id")
	for _, d := range details {
		d["order_id"] = orderID
	}

	if _, err := m.store.CreateMany(ctx, recordstore.TableOrderDetails, details); err != nil {
		return nil, nil, m.compensate(ctx, orderID, err)
	}
	return orderFromRecord(created), session, nil
}

// compensate removes an order header whose lines could not be written.
func (m *Manager) compensate(ctx context.Context, orderID int64, cause error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := m.store.Delete(ctx, recordstore.TableOrders, "order_id", orderID); err != nil {
		m.log.Error("orphan order header needs reconciliation",
			zap.Int64("order_id", orderID), zap.NamedError("cause", cause), zap.Error(err))
		return &OrphanOrderError{OrderID: orderID, Err: cause}
	}
	m.log.Warn("order lines failed, header removed", zap.Int64("order_id", orderID), zap.Error(cause))
	return fmt.Errorf("create order lines: %w", cause)
}

func orderFromRecord(r recordstore.Record) *domain.Order {
	return &domain.Order{
		ID:         r.Int64("order_id"),
		UserID:     r.String("user_id"),
		CustomerID: r.Int64("customer_id"),
		OrderDate:  r.Time("order_date"),
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, ErrOrphanOrder):
		return "orphan_order"
	case errors.Is(err, recordstore.ErrConstraint):
		return "constraint"
	case errors.Is(err, recordstore.ErrInvalid):
		return "invalid"
	}
	return "unexpected"
}
