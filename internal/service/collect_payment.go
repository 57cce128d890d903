package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/fees"
	"github.com/fjod/go_cart/checkout-payment/internal/lock"
	r "github.com/fjod/go_cart/checkout-payment/internal/repository"
	"github.com/google/uuid"
)

// CollectPayment prices the current cart and opens a payment session for it.
// Calling it again supersedes the previous pending session, so PlaceOrder
// always checks the latest amount.
func (s *CheckoutServiceImpl) CollectPayment(ctx context.Context, identity *domain.Identity) (view *domain.PaymentSessionView, err error) {
	defer func() { s.metrics.Outcome("collect_payment", outcome(err)) }()

	if identity == nil || identity.UserID <= 0 {
		return nil, ErrUnauthorized
	}
	log := s.logger.With("user_id", identity.UserID)

	unlock, err := s.locker.Acquire(ctx, lock.CheckoutKey(identity.UserID))
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

	profile, err := s.repo.GetUserProfile(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user profile: %w", err)
	}

	items, err := s.repo.FindLineItems(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	total, err := fees.Compute(items)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.GetCurrentSession(ctx, identity.UserID)
	if err != nil && !errors.Is(err, r.ErrSessionNotFound) {
		return nil, fmt.Errorf("load current session: %w", err)
	}

	email := profile.Email
	if email == "" {
		email = identity.Email
	}
	customerID, err := s.gateway.CreateOrReuseCustomer(ctx, profile.GatewayCustomerID, email)
	s.metrics.GatewayCall("create_or_reuse_customer", err)
	if err != nil {
		return nil, fmt.Errorf("resolve gateway customer: %w", err)
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, customerID, total.AmountDue, s.cfg.Currency)
	s.metrics.GatewayCall("create_payment_intent", err)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	session := &domain.PaymentSession{
		ID:                 uuid.New(),
		UserID:             identity.UserID,
		GatewayCustomerID:  customerID,
		PaymentReferenceID: intent.ReferenceID,
		AmountDue:          total.AmountDue,
		Currency:           s.cfg.Currency,
		Status:             domain.SessionStatusPending,
		Version:            1,
	}
	if err := s.repo.CreatePaymentSession(ctx, session, current); err != nil {
		return nil, fmt.Errorf("store payment session: %w", err)
	}

	log.InfoContext(ctx, "payment session created",
		"session_id", session.ID,
		"payment_reference_id", session.PaymentReferenceID,
		"amount_due", session.AmountDue.String(),
	)

	return &domain.PaymentSessionView{
		ClientSecret:   intent.ClientSecret,
		PublishableKey: s.cfg.PublishableKey,
	}, nil
}

// CartSummary returns the cart with the same totals CollectPayment would charge.
func (s *CheckoutServiceImpl) CartSummary(ctx context.Context, identity *domain.Identity) (*domain.CartSummary, error) {
	if identity == nil || identity.UserID <= 0 {
		return nil, ErrUnauthorized
	}
	items, err := s.repo.FindLineItems(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	total, err := fees.Compute(items)
	if err != nil {
		return nil, err
	}
	return &domain.CartSummary{Items: items, Total: total}, nil
}
