// Package history serves a customer's past orders and the details of the order they selected.
package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/cache"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/grid"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrNoCustomer    = errors.New("session has no customer")
)

type Service struct {
	store recordstore.Store
	cache cache.Cache
	sfg   singleflight.Group
	log   *zap.Logger

	mu         sync.Mutex
	selections map[string]*selection
}

// selection is the order a user is looking at and its lines.
type selection struct {
	orderID int64
	details *grid.Grid
}

func New(store recordstore.Store, c cache.Cache, log *zap.Logger) *Service {
	return &Service{store: store, cache: c, log: log, selections: make(map[string]*selection)}
}

// ListOrders returns the customer's orders with their totals, oldest first.
func (s *Service) ListOrders(ctx context.Context, session *domain.Session) ([]domain.OrderSummary, error) {
	if session.CustomerID == 0 {
		return nil, ErrNoCustomer
	}
	key := ordersKey(session.CustomerID)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		var orders []domain.OrderSummary
		if err := s.cache.Get(ctx, key, &orders); err == nil {
			return orders, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		rows, err := s.store.Select(ctx, recordstore.Query{
			Table:       recordstore.ViewOrders,
			OrderBy:     "order_id",
			FilterField: "customer_id",
			FilterValue: session.CustomerID,
		})
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		orders = make([]domain.OrderSummary, 0, len(rows))
		for _, r := range rows {
			orders = append(orders, domain.OrderSummary{
				OrderID:    r.Int64("order_id"),
				CustomerID: r.Int64("customer_id"),
				OrderDate:  r.Time("order_date"),
				TotalCost:  r.Decimal("total_cost"),
			})
		}
		s.set(ctx, key, orders)
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.OrderSummary), nil
}

// SelectOrder loads the lines of one of the customer's orders and remembers it as selected.
func (s *Service) SelectOrder(ctx context.Context, session *domain.Session, orderID int64) ([]domain.OrderDetail, error) {
	orders, err := s.ListOrders(ctx, session)
	if err != nil {
		return nil, err
	}
	owned := false
	for _, o := range orders {
		if o.OrderID == orderID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, ErrOrderNotFound
	}

	details, err := s.details(ctx, orderID)
	if err != nil {
		return nil, err
	}

	g := grid.New("order_details_id")
	rows := make([]grid.Row, len(details))
	for i, d := range details {
		rows[i] = detailRow(d)
	}
	g.SetRows(rows)

	s.mu.Lock()
	s.selections[session.UserID] = &selection{orderID: orderID, details: g}
	s.mu.Unlock()
	return details, nil
}

// SelectedDetails returns the order last selected by the user.
func (s *Service) SelectedDetails(session *domain.Session) (int64, []domain.OrderDetail, bool) {
	s.mu.Lock()
	sel, ok := s.selections[session.UserID]
	s.mu.Unlock()
	if !ok {
		return 0, nil, false
	}

	rows := sel.details.Rows()
	details := make([]domain.OrderDetail, len(rows))
	for i, r := range rows {
		details[i] = detailFromRow(r)
	}
	return sel.orderID, details, true
}

// RefreshOrders drops the cached order list so the next read sees new orders.
func (s *Service) RefreshOrders(ctx context.Context, session *domain.Session) error {
	return s.InvalidateCustomer(ctx, session.CustomerID)
}

func (s *Service) InvalidateCustomer(ctx context.Context, customerID int64) error {
	if err := s.cache.Delete(ctx, ordersKey(customerID)); err != nil {
		return fmt.Errorf("invalidate orders of customer %d: %w", customerID, err)
	}
	return nil
}

func (s *Service) ClearOrderDetails(_ context.Context, session *domain.Session) error {
	s.Forget(session.UserID)
	return nil
}

// Forget drops the user's selected order.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel, ok := s.selections[userID]; ok {
		sel.details.Clear()
		delete(s.selections, userID)
	}
}

func (s *Service) details(ctx context.Context, orderID int64) ([]domain.OrderDetail, error) {
	key := detailsKey(orderID)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		var details []domain.OrderDetail
		if err := s.cache.Get(ctx, key, &details); err == nil {
			return details, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("key", key), zap.Error(err))
		}

		rows, err := s.store.Select(ctx, recordstore.Query{
			Table:       recordstore.ViewOrderDetails,
			OrderBy:     "order_details_id",
			FilterField: "order_id",
			FilterValue: orderID,
		})
		if err != nil {
			return nil, fmt.Errorf("order %d details: %w", orderID, err)
		}
		details = make([]domain.OrderDetail, 0, len(rows))
		for _, r := range rows {
			details = append(details, domain.OrderDetail{
				OrderDetailsID: r.Int64("order_details_id"),
				OrderID:        r.Int64("order_id"),
				ProductID:      r.Int64("product_id"),
				ProductName:    r.String("product_name"),
				Quantity:       int(r.Int64("quantity")),
				Cost:           r.Decimal("cost"),
			})
		}
		// committed orders never change, so details stay cached until they expire
		s.set(ctx, key, details)
		return details, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.OrderDetail), nil
}

func (s *Service) set(ctx context.Context, key string, value any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, key, value); err != nil {
		s.log.Warn("cache set error", zap.String("key", key), zap.Error(err))
	}
}

func detailRow(d domain.OrderDetail) grid.Row {
	return grid.Row{
		"order_details_id": d.OrderDetailsID,
		"order_id":         d.OrderID,
		"product_id":       d.ProductID,
		"product_name":     d.ProductName,
		"quantity":         d.Quantity,
		"cost":             d.Cost,
	}
}

func detailFromRow(r grid.Row) domain.OrderDetail {
	d := domain.OrderDetail{}
	d.OrderDetailsID, _ = r["order_details_id"].(int64)
	d.OrderID, _ = r["order_id"].(int64)
	d.ProductID, _ = r["product_id"].(int64)
	d.ProductName, _ = r["product_name"].(string)
	d.Quantity, _ = r["quantity"].(int)
	d.Cost, _ = r["cost"].(decimal.Decimal)
	return d
}

func ordersKey(customerID int64) string {
	return "history:orders:" + strconv.FormatInt(customerID, 10)
}

func detailsKey(orderID int64) string {
	return "history:details:" + strconv.FormatInt(orderID, 10)
}
