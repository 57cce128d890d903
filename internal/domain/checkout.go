package domain

import "github.com/shopspring/decimal"

// Identity is the verified caller of a checkout operation.
type Identity struct {
	UserID int64
	Email  string
	Phone  string
}

// UserProfile holds the user fields checkout needs. GatewayCustomerID is empty
// until the first payment session is created.
type UserProfile struct {
	UserID            int64
	Email             string
	Phone             string
	GatewayCustomerID string
}

// CheckoutTotal is recomputed from the cart on every call and never stored on its own.
type CheckoutTotal struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	ProcessorFee decimal.Decimal `json:"processor_fee"`
	AmountDue    decimal.Decimal `json:"amount_due"`
}

type CartSummary struct {
	Items []CartLineItem `json:"items"`
	Total CheckoutTotal  `json:"total"`
}

// PaymentSessionView is what the client needs to confirm the payment with the processor.
type PaymentSessionView struct {
	ClientSecret   string
	PublishableKey string
}

type PlaceOrderResult struct {
	Status    string
	MessageID string
}

const PlaceOrderSuccess = "success"
