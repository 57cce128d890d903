package events

import (
	"strconv"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
)

// OrderMessage wraps a recorded order for the bus. The order id is the message
// id, so a republished order carries the same id as the first attempt.
func OrderMessage(order *domain.Order) Message {
	return Message{
		ID:      order.ID.String(),
		Key:     strconv.FormatInt(order.UserID, 10),
		Payload: order.Payload,
		Attributes: map[string]string{
			domain.AttributeActionType: domain.ActionTypePlaceOrder,
		},
	}
}
