package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rtbecker76/universal-electronics2/internal/charts"
	"github.com/rtbecker76/universal-electronics2/internal/recordstore"
	"go.uber.org/zap"
)

type RecordAdmin interface {
	List(ctx context.Context, table, filterField string, filterValue any) ([]recordstore.Record, error)
	Submit(ctx context.Context, table string, values map[string]any) (recordstore.Record, error)
	Delete(ctx context.Context, table string, key int64) error
}

type ChartSource interface {
	InStock(ctx context.Context) (*charts.Series, error)
	RevenueByMonth(ctx context.Context, year int) (*charts.Series, error)
	RevenueByProduct(ctx context.Context) (*charts.Series, error)
}

type AdminHandler struct {
	admin   RecordAdmin
	charts  ChartSource
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewAdminHandler(admin RecordAdmin, charts ChartSource, timeout time.Duration, log *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, charts: charts, timeout: timeout, log: log, now: time.Now}
}

// List accepts one optional filter as ?field=value, e.g. /admin/products?vendor_id=3.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var field string
	var value any
	for k, v := range r.URL.Query() {
		if len(v) == 0 {
			continue
		}
		field = k
		if n, err := strconv.ParseInt(v[0], 10, 64); err == nil {
			value = n
		} else {
			value = v[0]
		}
		break
	}

	rows, err := h.admin.List(ctx, chi.URLParam(r, "table"), field, value)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if rows == nil {
		rows = []recordstore.Record{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func (h *AdminHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	saved, err := h.admin.Submit(ctx, chi.URLParam(r, "table"), values)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || key <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return
	}
	if err := h.admin.Delete(ctx, chi.URLParam(r, "table"), key); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Chart serves in-stock, revenue-by-month (?year=, default current year) and revenue-by-product.
func (h *AdminHandler) Chart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		series *charts.Series
		err    error
	)
	switch chi.URLParam(r, "chart") {
	case "in-stock":
		series, err = h.charts.InStock(ctx)
	case "revenue-by-month":
		year := h.now().Year()
		if q := r.URL.Query().Get("year"); q != "" {
			y, perr := strconv.Atoi(q)
			if perr != nil || y < 1 {
				respondError(w, http.StatusBadRequest, "invalid_year", "year must be a positive integer")
				return
			}
			year = y
		}
		series, err = h.charts.RevenueByMonth(ctx, year)
	case "revenue-by-product":
		series, err = h.charts.RevenueByProduct(ctx)
	default:
		respondError(w, http.StatusNotFound, "unknown_chart", "unknown chart")
		return
	}
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, series)
}
