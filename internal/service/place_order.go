package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/fjod/go_cart/checkout-payment/internal/gateway"
	"github.com/fjod/go_cart/checkout-payment/internal/lock"
	r "github.com/fjod/go_cart/checkout-payment/internal/repository"
	"github.com/google/uuid"
)

// PlaceOrder turns the user's latest payment session into an order event once
// the processor reports the payment as succeeded. A session that already
// produced an order returns the same message id.
func (s *CheckoutServiceImpl) PlaceOrder(ctx context.Context, identity *domain.Identity) (result *domain.PlaceOrderResult, err error) {
	defer func() { s.metrics.Outcome("place_order", outcome(err)) }()

	if identity == nil || identity.UserID <= 0 {
		return nil, ErrUnauthorized
	}

	// The shared execution must outlive any single caller; each caller only
	// stops waiting on its own context.
	ch := s.inflight.DoChan(strconv.FormatInt(identity.UserID, 10), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OrderTimeout)
		defer cancel()
		return s.placeOrder(runCtx, identity.UserID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			s.logger.DebugContext(ctx, "place order call shared with a concurrent request", "user_id", identity.UserID)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.PlaceOrderResult), nil
	}
}

func (s *CheckoutServiceImpl) placeOrder(ctx context.Context, userID int64) (*domain.PlaceOrderResult, error) {
	log := s.logger.With("user_id", userID)

	// held so CollectPayment cannot supersede a session between the status
	// check and RecordOrder
	unlock, err := s.locker.Acquire(ctx, lock.CheckoutKey(userID))
	if errors.Is(err, lock.ErrLockHeld) {
		return nil, ErrCheckoutInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("acquire checkout lock: %w", err)
	}
	defer func() {
		if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
			log.WarnContext(ctx, "failed to release checkout lock", "error", uerr)
		}
	}()

	session, err := s.repo.GetCurrentSession(ctx, userID)
	if errors.Is(err, r.ErrSessionNotFound) {
		return nil, ErrNoPendingPayment
	}
	if err != nil {
		return nil, fmt.Errorf("load current session: %w", err)
	}
	log = log.With("session_id", session.ID, "payment_reference_id", session.PaymentReferenceID)

	switch session.Status {
	case domain.SessionStatusPaid:
		return s.resumeOrder(ctx, log, session.PaymentReferenceID)
	case domain.SessionStatusFailed:
		return nil, fmt.Errorf("%w: session %s failed", ErrPaymentNotSucceeded, session.ID)
	}

	intent, err := s.gateway.RetrievePaymentStatus(ctx, session.PaymentReferenceID)
	s.metrics.GatewayCall("retrieve_payment_status", err)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrNoPendingPayment, err)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve payment status: %w", err)
	}

	if !intent.Status.Succeeded() {
		if intent.Status == domain.PaymentStatusCanceled {
			if uerr := s.repo.UpdateSessionStatus(ctx, session, domain.SessionStatusFailed); uerr != nil {
				log.WarnContext(ctx, "failed to mark session failed", "error", uerr)
			}
		}
		log.InfoContext(ctx, "payment not succeeded", "payment_status", intent.Status.String())
		return nil, fmt.Errorf("%w: status %s", ErrPaymentNotSucceeded, intent.Status)
	}

	// the cart is read again here; it is what the user sees at order time
	items, err := s.repo.FindLineItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	order, err := s.newOrder(session, intent, items)
	if err != nil {
		return nil, err
	}

	if err := s.repo.RecordOrder(ctx, session, order); err != nil {
		if errors.Is(err, r.ErrDuplicateOrder) || errors.Is(err, r.ErrVersionConflict) {
			// another instance recorded this payment first
			return s.resumeOrder(ctx, log, session.PaymentReferenceID)
		}
		return nil, fmt.Errorf("record order: %w", err)
	}
	log.InfoContext(ctx, "order recorded", "order_id", order.ID)

	return s.publishOrder(ctx, log, order)
}

func (s *CheckoutServiceImpl) newOrder(session *domain.PaymentSession, intent *gateway.PaymentIntent, items []domain.CartLineItem) (*domain.Order, error) {
	orderID := uuid.New()
	event := domain.OrderEvent{
		OrderID: orderID.String(),
		Transaction: domain.TransactionSnapshot{
			PaymentReferenceID: session.PaymentReferenceID,
			GatewayCustomerID:  session.GatewayCustomerID,
			Status:             intent.Status,
			Amount:             session.AmountDue,
			Currency:           session.Currency,
		},
		UserID:   session.UserID,
		Items:    items,
		PlacedAt: s.now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return &domain.Order{
		ID:                 orderID,
		SessionID:          session.ID,
		PaymentReferenceID: session.PaymentReferenceID,
		UserID:             session.UserID,
		AmountDue:          session.AmountDue,
		Currency:           session.Currency,
		Payload:            payload,
	}, nil
}

func (s *CheckoutServiceImpl) resumeOrder(ctx context.Context, log *slog.Logger, referenceID string) (*domain.PlaceOrderResult, error) {
	order, err := s.repo.GetOrderByPaymentReference(ctx, referenceID)
	if errors.Is(err, r.ErrOrderNotFound) {
		return nil, fmt.Errorf("%w: no order for payment %s", ErrSessionConflict, referenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("load recorded order: %w", err)
	}
	if order.Published() {
		log.InfoContext(ctx, "order already placed", "order_id", order.ID, "message_id", order.MessageID)
		return &domain.PlaceOrderResult{Status: domain.PlaceOrderSuccess, MessageID: order.MessageID}, nil
	}
	return s.publishOrder(ctx, log, order)
}

func (s *CheckoutServiceImpl) publishOrder(ctx context.Context, log *slog.Logger, order *domain.Order) (*domain.PlaceOrderResult, error) {
	messageID, err := s.publisher.Publish(ctx, events.OrderMessage(order))
	s.metrics.Published("place_order", err)
	if err != nil {
		log.ErrorContext(ctx, "failed to publish order event", "order_id", order.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	if err := s.repo.MarkOrderPublished(ctx, order.ID, messageID); err != nil {
		// the outbox poller publishes it again under the same id
		log.WarnContext(ctx, "failed to mark order published", "order_id", order.ID, "error", err)
	}
	log.InfoContext(ctx, "order placed", "order_id", order.ID, "message_id", messageID)

	return &domain.PlaceOrderResult{Status: domain.PlaceOrderSuccess, MessageID: messageID}, nil
}
