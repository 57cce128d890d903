package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/fjod/go_cart/checkout-payment/internal/gateway"
	"github.com/fjod/go_cart/checkout-payment/internal/lock"
	"github.com/fjod/go_cart/checkout-payment/internal/metrics"
	r "github.com/fjod/go_cart/checkout-payment/internal/repository"
	"golang.org/x/sync/singleflight"
)

type CheckoutService interface {
	CollectPayment(ctx context.Context, identity *domain.Identity) (*domain.PaymentSessionView, error)
	PlaceOrder(ctx context.Context, identity *domain.Identity) (*domain.PlaceOrderResult, error)
	CartSummary(ctx context.Context, identity *domain.Identity) (*domain.CartSummary, error)
}

// Store is the persistence the orchestrator needs.
type Store interface {
	r.UserRepository
	r.CartRepository
	r.SessionRepository
	r.OrderRepository
}

type Config struct {
	PublishableKey string
	Currency       string
	// OrderTimeout bounds one PlaceOrder execution shared by concurrent callers.
	OrderTimeout time.Duration
}

type CheckoutServiceImpl struct {
	repo      Store
	gateway   gateway.PaymentGateway
	publisher events.Publisher
	locker    lock.Locker
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.CheckoutMetrics

	inflight singleflight.Group
	now      func() time.Time
}

func NewCheckoutService(
	repo Store,
	gw gateway.PaymentGateway,
	publisher events.Publisher,
	locker lock.Locker,
	cfg Config,
	logger *slog.Logger,
	m *metrics.CheckoutMetrics,
) *CheckoutServiceImpl {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutServiceImpl{
		repo:      repo,
		gateway:   gw,
		publisher: publisher,
		locker:    locker,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}
