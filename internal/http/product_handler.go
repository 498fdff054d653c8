package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rtbecker76/universal-electronics2/internal/domain"
	"go.uber.org/zap"
)

type ProductLister interface {
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}

type ProductHandler struct {
	catalog ProductLister
	timeout time.Duration
	log     *zap.Logger
}

func NewProductHandler(catalog ProductLister, timeout time.Duration, log *zap.Logger) *ProductHandler {
	return &ProductHandler{catalog: catalog, timeout: timeout, log: log}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.ListProducts(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}
