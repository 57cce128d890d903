package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/fjod/go_cart/checkout-payment/internal/metrics"
	"github.com/google/uuid"
)

// OrderOutbox is the part of the repository the poller reads and marks.
type OrderOutbox interface {
	GetUnpublishedOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error)
	MarkOrderPublished(ctx context.Context, orderID uuid.UUID, messageID string) error
}

// OutboxPoller republishes orders that were recorded but whose event never
// reached the bus. Orders younger than grace are left to the request that
// created them.
type OutboxPoller struct {
	tick      time.Duration
	grace     time.Duration
	batchSize int
	repo      OrderOutbox
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.CheckoutMetrics
}

func NewOutboxPoller(repo OrderOutbox, publisher events.Publisher, logger *slog.Logger, m *metrics.CheckoutMetrics) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		tick:      5 * time.Second,
		grace:     30 * time.Second,
		batchSize: 100,
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "outbox_poller"),
		metrics:   m,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedOrders(ctx context.Context) int {
	orders, err := p.repo.GetUnpublishedOrders(ctx, p.grace, p.batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch unpublished orders", "error", err)
		return 0
	}

	published := 0
	for _, order := range orders {
		messageID, err := p.publisher.Publish(ctx, events.OrderMessage(order))
		p.metrics.Published("outbox", err)
		if err != nil {
			p.logger.ErrorContext(ctx, "failed to publish order", "order_id", order.ID, "error", err)
			continue
		}

		if err := p.repo.MarkOrderPublished(ctx, order.ID, messageID); err != nil {
			p.logger.ErrorContext(ctx, "failed to mark order published", "order_id", order.ID, "error", err)
			continue
		}
		published++
		p.logger.InfoContext(ctx, "order republished", "order_id", order.ID, "message_id", messageID)
	}
	return published
}
