package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/items/{id}", "GET", "418")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.OrdersPlaced.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "storefront_orders_placed_total 1"))
}

func TestRecorderMethods(t *testing.T) {
	m := New()
	m.OrderPlaced()
	m.PurchaseFailed("no_session")
	m.PurchaseFailed("no_session")
	m.CartMutated("add")
	m.CacheLookup("catalog", true)
	m.CacheLookup("catalog", false)
	m.EventPublished()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OrdersPlaced))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.PurchaseFailures.WithLabelValues("no_session")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CartMutations.WithLabelValues("add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookups.WithLabelValues("catalog", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EventsPublished))
}
