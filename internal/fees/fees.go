package fees

import (
	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	platformRate      = decimal.RequireFromString("0.015")
	processorRate     = decimal.RequireFromString("0.029")
	processorFixedFee = decimal.RequireFromString("0.29")
)

// PlatformFee is 1.5% of amount.
func PlatformFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(platformRate)
}

// ProcessorFee is 2.9% of amount plus a fixed 0.29 per transaction.
func ProcessorFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(processorRate).Add(processorFixedFee)
}

func Subtotal(items []domain.CartLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Compute validates the cart and derives the amount the buyer has to pay.
func Compute(items []domain.CartLineItem) (domain.CheckoutTotal, error) {
	if err := domain.ValidateLineItems(items); err != nil {
		return domain.CheckoutTotal{}, err
	}
	subtotal := Subtotal(items)
	platform := PlatformFee(subtotal)
	processor := ProcessorFee(subtotal)
	return domain.CheckoutTotal{
		Subtotal:     subtotal,
		PlatformFee:  platform,
		ProcessorFee: processor,
		AmountDue:    subtotal.Add(platform).Add(processor),
	}, nil
}
