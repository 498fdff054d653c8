package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rtbecker76/universal-electronics2/internal/cart"
	"github.com/rtbecker76/universal-electronics2/internal/session"
	"github.com/rtbecker76/universal-electronics2/internal/surface"
	"go.uber.org/zap"
)

type CartHandler struct {
	carts   *cart.Registry
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts *cart.Registry, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, log: log}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type ConfirmResponseDTO struct {
	Message string `json:"message"`
}

type PurchaseResponseDTO struct {
	OrderID   int64     `json:"order_id"`
	OrderDate time.Time `json:"order_date"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, h.state(m))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	if _, err := m.AddProduct(ctx, req.ProductID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.state(m))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if err := m.RemoveItem(productID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(m))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	if err := m.Clear(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(m))
}

func (h *CartHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	msg, err := m.ConfirmPurchase()
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ConfirmResponseDTO{Message: msg})
}

func (h *CartHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	m.CancelPurchase()
	respondJSON(w, http.StatusOK, h.state(m))
}

func (h *CartHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	order, err := m.FinalizePurchase(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, PurchaseResponseDTO{OrderID: order.ID, OrderDate: order.OrderDate})
}

func (h *CartHandler) manager(w http.ResponseWriter, r *http.Request) (*cart.Manager, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return nil, false
	}
	return h.carts.Activate(s.UserID), true
}

func (h *CartHandler) state(m *cart.Manager) any {
	if snap, ok := m.Surface().(*surface.Snapshot); ok {
		return snap.Current()
	}
	return m.State()
}
