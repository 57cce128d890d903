package gateway

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcStatus(t *testing.T) {
	assert.Equal(t, domain.PaymentStatusSucceeded, calcStatus(0))
	assert.Equal(t, domain.PaymentStatusSucceeded, calcStatus(94))
	assert.Equal(t, domain.PaymentStatusProcessing, calcStatus(95))
	assert.Equal(t, domain.PaymentStatusCanceled, calcStatus(100))
}

func TestSandboxGateway_Lifecycle(t *testing.T) {
	g := NewSandboxGateway(FixedStatus(domain.PaymentStatusSucceeded))
	ctx := context.Background()

	customer, err := g.CreateOrReuseCustomer(ctx, "", "buyer@example.com")
	require.NoError(t, err)

	again, err := g.CreateOrReuseCustomer(ctx, customer, "buyer@example.com")
	require.NoError(t, err)
	assert.Equal(t, customer, again)

	intent, err := g.CreatePaymentIntent(ctx, customer, decimal.RequireFromString("26.39"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(2639), intent.Amount)
	assert.Equal(t, domain.PaymentStatusRequiresPaymentMethod, intent.Status)

	got, err := g.RetrievePaymentStatus(ctx, intent.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSucceeded, got.Status)
}

func TestSandboxGateway_StatusIsStable(t *testing.T) {
	calls := 0
	g := NewSandboxGateway(statusFunc(func(string) domain.PaymentStatus {
		calls++
		if calls == 1 {
			return domain.PaymentStatusCanceled
		}
		return domain.PaymentStatusSucceeded
	}))
	ctx := context.Background()
	customer, err := g.CreateOrReuseCustomer(ctx, "", "a@example.com")
	require.NoError(t, err)
	intent, err := g.CreatePaymentIntent(ctx, customer, decimal.NewFromInt(1), "usd")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := g.RetrievePaymentStatus(ctx, intent.ReferenceID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCanceled, got.Status)
	}
	assert.Equal(t, 1, calls)
}

func TestSandboxGateway_Errors(t *testing.T) {
	g := NewSandboxGateway(nil)
	ctx := context.Background()

	_, err := g.CreatePaymentIntent(ctx, "cus_unknown", decimal.NewFromInt(1), "usd")
	assert.ErrorIs(t, err, ErrGateway)

	_, err = g.RetrievePaymentStatus(ctx, "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSandboxGateway_ReplacesUnknownStoredCustomer(t *testing.T) {
	g := NewSandboxGateway(nil)
	ctx := context.Background()

	// an id persisted by an earlier process
	id, err := g.CreateOrReuseCustomer(ctx, "cus_sandbox_41", "a@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "cus_sandbox_41", id)

	again, err := g.CreateOrReuseCustomer(ctx, id, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, again)

	_, err = g.CreatePaymentIntent(ctx, id, decimal.NewFromInt(5), "usd")
	assert.NoError(t, err)
}

type statusFunc func(string) domain.PaymentStatus

func (f statusFunc) Status(ref string) domain.PaymentStatus { return f(ref) }
