package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/go_cart/checkout-payment/internal/auth"
	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/repository"
	"github.com/fjod/go_cart/checkout-payment/internal/service"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondServiceError maps checkout errors onto HTTP statuses. Internal
// causes are logged and never echoed to the client.
func respondServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "invalid cart",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	var (
		status  int
		code    string
		message string
	)
	switch {
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, auth.ErrUnauthorized):
		status, code, message = http.StatusForbidden, "unauthorized", "unauthorized"
	case errors.Is(err, service.ErrNoPendingPayment):
		status, code, message = http.StatusConflict, "no_pending_payment", "no pending payment, collect payment first"
	case errors.Is(err, service.ErrPaymentNotSucceeded):
		status, code, message = http.StatusServiceUnavailable, "payment_not_succeeded", "payment has not succeeded yet"
	case errors.Is(err, service.ErrCheckoutInProgress):
		status, code, message = http.StatusConflict, "checkout_in_progress", "another checkout is in progress"
	case errors.Is(err, service.ErrSessionConflict):
		status, code, message = http.StatusConflict, "session_conflict", "payment session changed, retry the request"
	case errors.Is(err, repository.ErrUserNotFound):
		status, code, message = http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, service.ErrPublish):
		status, code, message = http.StatusInternalServerError, "publish_failed", "order recorded but not yet published"
	case errors.Is(err, service.ErrGateway), errors.Is(err, service.ErrLookup):
		status, code, message = http.StatusInternalServerError, "gateway_error", "payment provider error"
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "request timed out"
	default:
		status, code, message = http.StatusInternalServerError, "internal_error", "internal server error"
	}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "checkout request failed",
			"path", r.URL.Path, "request_id", getRequestID(r.Context()), "error", err)
	}
	respondError(w, status, code, message)
}
