package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/pkg/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type StripeConfig struct {
	SecretKey string
	// BackendURL overrides https://api.stripe.com, used against fakes.
	BackendURL string
}

type StripeGateway struct {
	api     *client.API
	breaker *circuitbreaker.Breaker
}

func NewStripeGateway(cfg StripeConfig, breaker *circuitbreaker.Breaker) *StripeGateway {
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Settings{
			Name:         "stripe",
			IsSuccessful: IsResourceMissing,
		})
	}
	return &StripeGateway{
		api:     client.New(cfg.SecretKey, backends),
		breaker: breaker,
	}
}

func (g *StripeGateway) CreateOrReuseCustomer(ctx context.Context, existingID, email string) (string, error) {
	if existingID != "" {
		customer, err := circuitbreaker.Execute(g.breaker, func() (*stripe.Customer, error) {
			return g.api.Customers.Get(existingID, &stripe.CustomerParams{Params: stripe.Params{Context: ctx}})
		})
		if err != nil {
			if IsResourceMissing(err) {
				return "", fmt.Errorf("%w: customer %s: %v", ErrLookup, existingID, err)
			}
			return "", fmt.Errorf("%w: retrieve customer: %v", ErrGateway, err)
		}
		if customer.Deleted {
			return "", fmt.Errorf("%w: customer %s is deleted", ErrLookup, existingID)
		}
		return customer.ID, nil
	}

	customer, err := circuitbreaker.Execute(g.breaker, func() (*stripe.Customer, error) {
		return g.api.Customers.New(&stripe.CustomerParams{
			Params: stripe.Params{Context: ctx},
			Email:  stripe.String(email),
		})
	})
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %v", ErrGateway, err)
	}
	return customer.ID, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount decimal.Decimal, currency string) (*PaymentIntent, error) {
	pi, err := circuitbreaker.Execute(g.breaker, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.New(&stripe.PaymentIntentParams{
			Params:             stripe.Params{Context: ctx},
			Customer:           stripe.String(customerID),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
			Amount:             stripe.Int64(MinorUnits(amount)),
			Currency:           stripe.String(currency),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create payment intent: %v", ErrGateway, err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) RetrievePaymentStatus(ctx context.Context, referenceID string) (*PaymentIntent, error) {
	pi, err := circuitbreaker.Execute(g.breaker, func() (*stripe.PaymentIntent, error) {
		return g.api.PaymentIntents.Get(referenceID, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	})
	if err != nil {
		if IsResourceMissing(err) {
			return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, referenceID, err)
		}
		return nil, fmt.Errorf("%w: retrieve payment intent: %v", ErrGateway, err)
	}
	return toPaymentIntent(pi), nil
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ReferenceID:  pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       domain.PaymentStatus(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}

// IsResourceMissing reports whether Stripe answered that the object does not exist.
func IsResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound
	}
	return false
}
