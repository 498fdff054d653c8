package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"github.com/rtbecker76/universal-electronics2/internal/session"
	"go.uber.org/zap"
)

type OrderHistory interface {
	ListOrders(ctx context.Context, s *domain.Session) ([]domain.OrderSummary, error)
	SelectOrder(ctx context.Context, s *domain.Session, orderID int64) ([]domain.OrderDetail, error)
}

type OrdersHandler struct {
	history OrderHistory
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(history OrderHistory, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	return &OrdersHandler{history: history, timeout: timeout, log: log}
}

type OrderDetailsResponseDTO struct {
	OrderID int64                `json:"order_id"`
	Lines   []domain.OrderDetail `json:"lines"`
}

func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	orders, err := h.history.ListOrders(ctx, s)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderSummary{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) GetOrderDetails(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a positive integer")
		return
	}

	lines, err := h.history.SelectOrder(ctx, s, orderID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderDetailsResponseDTO{OrderID: orderID, Lines: lines})
}
