package gateway

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrGateway  = errors.New("payment gateway error")
	ErrLookup   = errors.New("gateway customer lookup failed")
	ErrNotFound = errors.New("payment reference not found")
)

// PaymentIntent is one payment attempt at the processor. Amount is in minor units.
type PaymentIntent struct {
	ReferenceID  string
	ClientSecret string
	CustomerID   string
	Status       domain.PaymentStatus
	Amount       int64
	Currency     string
}

// PaymentGateway is the port the checkout orchestrator depends on.
type PaymentGateway interface {
	CreateOrReuseCustomer(ctx context.Context, existingID, email string) (string, error)
	CreatePaymentIntent(ctx context.Context, customerID string, amount decimal.Decimal, currency string) (*PaymentIntent, error)
	RetrievePaymentStatus(ctx context.Context, referenceID string) (*PaymentIntent, error)
}

// MinorUnits truncates amount*100 toward negative infinity, e.g. 26.399 -> 2639.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Floor().IntPart()
}
