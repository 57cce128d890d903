package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AttributeActionType  = "actionType"
	ActionTypePlaceOrder = "place_order"
)

// TransactionSnapshot is the processor's view of the captured payment.
type TransactionSnapshot struct {
	PaymentReferenceID string          `json:"payment_reference_id"`
	GatewayCustomerID  string          `json:"gateway_customer_id"`
	Status             PaymentStatus   `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// OrderEvent is published once per captured payment for fulfillment consumers.
type OrderEvent struct {
	OrderID     string              `json:"order_id"`
	Transaction TransactionSnapshot `json:"transaction"`
	UserID      int64               `json:"user_id"`
	Items       []CartLineItem      `json:"items"`
	PlacedAt    time.Time           `json:"placed_at"`
}

// Order is the durable marker that a payment reference has been turned into an order.
type Order struct {
	ID                 uuid.UUID
	SessionID          uuid.UUID
	PaymentReferenceID string
	UserID             int64
	AmountDue          decimal.Decimal
	Currency           string
	Payload            json.RawMessage
	MessageID          string
	PublishedAt        *time.Time
	CreatedAt          time.Time
}

func (o *Order) Published() bool {
	return o.MessageID != ""
}
