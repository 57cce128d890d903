package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentSession is one payment-intent attempt of a user. Version is bumped on
// every status change and guards concurrent writers.
type PaymentSession struct {
	ID                 uuid.UUID
	UserID             int64
	GatewayCustomerID  string
	PaymentReferenceID string
	AmountDue          decimal.Decimal
	Currency           string
	Status             SessionStatus
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
