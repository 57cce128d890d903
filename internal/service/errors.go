package service

import (
	"errors"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/gateway"
	"github.com/fjod/go_cart/checkout-payment/internal/repository"
)

var (
	ErrUnauthorized        = errors.New("caller identity is missing")
	ErrCheckoutInProgress  = errors.New("another checkout for this user is in progress")
	ErrNoPendingPayment    = errors.New("no pending payment for this user")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	ErrPublish             = errors.New("failed to publish order event")

	ErrSessionConflict = repository.ErrSessionConflict
	ErrGateway         = gateway.ErrGateway
	ErrLookup          = gateway.ErrLookup
)

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrCheckoutInProgress), errors.Is(err, ErrSessionConflict):
		return "conflict"
	case errors.Is(err, ErrNoPendingPayment):
		return "no_pending_payment"
	case errors.Is(err, ErrPaymentNotSucceeded):
		return "not_succeeded"
	case errors.Is(err, ErrPublish):
		return "publish_error"
	case errors.Is(err, ErrGateway), errors.Is(err, ErrLookup):
		return "gateway_error"
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "validation"
	}
	return "error"
}
