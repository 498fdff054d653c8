package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rtbecker76/universal-electronics2/internal/metrics"
	"github.com/rtbecker76/universal-electronics2/internal/session"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
	Session  *SessionHandler
}

type RouterConfig struct {
	Tokens             *session.TokenManager
	Revoker            session.Revoker
	Metrics            *metrics.Metrics
	Limiter            *RateLimiter
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	Log                *zap.Logger
}

func NewRouter(h Handlers, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}
		r.Use(session.Middleware(cfg.Tokens, cfg.Revoker, cfg.Log))

		r.Post("/session/signout", h.Session.SignOut)

		r.Group(func(r chi.Router) {
			r.Use(session.RequireCustomer)
			r.Get("/products", h.Products.ListProducts)
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
				r.Post("/confirm", h.Cart.Confirm)
				r.Post("/cancel", h.Cart.Cancel)
				r.Post("/purchase", h.Cart.Purchase)
			})
			r.Get("/orders", h.Orders.ListOrders)
			r.Get("/orders/{order_id}/details", h.Orders.GetOrderDetails)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(session.RequireAdmin)
			r.Get("/charts/{chart}", h.Admin.Chart)
			r.Get("/{table}", h.Admin.List)
			r.Post("/{table}", h.Admin.Submit)
			r.Delete("/{table}/{id}", h.Admin.Delete)
		})
	})

	return r
}
