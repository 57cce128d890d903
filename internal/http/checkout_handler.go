package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/service"
)

type CheckoutHandler struct {
	svc     service.CheckoutService
	timeout time.Duration
	logger  *slog.Logger
}

func NewCheckoutHandler(svc service.CheckoutService, timeout time.Duration, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{
		svc:     svc,
		timeout: timeout,
		logger:  logger,
	}
}

type PaymentSessionResponseDTO struct {
	ClientSecret   string `json:"client_secret"`
	PublishableKey string `json:"publishable_key"`
}

type PlaceOrderResponseDTO struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// POST /api/v1/checkout/payment
func (h *CheckoutHandler) CollectPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.svc.CollectPayment(ctx, identityFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, PaymentSessionResponseDTO{
		ClientSecret:   view.ClientSecret,
		PublishableKey: view.PublishableKey,
	})
}

// POST /api/v1/checkout/order
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.svc.PlaceOrder(ctx, identityFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, PlaceOrderResponseDTO{
		Status:    result.Status,
		MessageID: result.MessageID,
	})
}

// GET /api/v1/cart/summary
func (h *CheckoutHandler) CartSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.svc.CartSummary(ctx, identityFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, r, h.logger, err)
		return
	}
	if summary.Items == nil {
		summary.Items = []domain.CartLineItem{}
	}

	respondJSON(w, http.StatusOK, summary)
}
