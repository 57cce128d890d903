package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/auth"
	"github.com/fjod/go_cart/checkout-payment/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Handler        *CheckoutHandler
	Verifier       auth.Verifier
	Metrics        *metrics.CheckoutMetrics
	RequestTimeout time.Duration
	// Health reports readiness of backing stores; nil means always healthy.
	Health func(r *http.Request) error
}

func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req); err != nil {
				respondError(w, http.StatusServiceUnavailable, "unhealthy", err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Verifier))
		r.Post("/checkout/payment", cfg.Handler.CollectPayment)
		r.Post("/checkout/order", cfg.Handler.PlaceOrder)
		r.Get("/cart/summary", cfg.Handler.CartSummary)
	})

	return r
}
