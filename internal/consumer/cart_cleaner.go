package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/fjod/go_cart/checkout-payment/internal/events"
	"github.com/segmentio/kafka-go"
)

const GroupID = "checkout-cart-cleaner"

// CartStore is the part of the repository the cleaner needs.
type CartStore interface {
	ClearCart(ctx context.Context, userID int64) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CartCleaner empties a user's cart once their order event is on the bus.
// Offsets are committed after the cart is cleared, so a crash replays the
// event, and clearing an empty cart is harmless.
type CartCleaner struct {
	repo    CartStore
	reader  messageReader
	logger  *slog.Logger
	backoff time.Duration
}

func NewCartCleaner(repo CartStore, logger *slog.Logger, topic string, brokers ...string) *CartCleaner {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newCartCleaner(repo, reader, logger)
}

func newCartCleaner(repo CartStore, reader messageReader, logger *slog.Logger) *CartCleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &CartCleaner{
		repo:    repo,
		reader:  reader,
		logger:  logger.With("component", "cart_cleaner"),
		backoff: time.Second,
	}
}

func (c *CartCleaner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.handleNext(ctx); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "cart cleaner failed", "error", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *CartCleaner) Close() error {
	return c.reader.Close()
}

var errSkip = errors.New("not an order event")

func (c *CartCleaner) handleNext(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	userID, err := orderUser(m)
	switch {
	case errors.Is(err, errSkip):
	case err != nil:
		// a malformed event would block the partition forever
		c.logger.WarnContext(ctx, "dropping malformed order event",
			"message_id", events.HeaderValue(m, events.HeaderMessageID), "error", err)
	default:
		if err := c.repo.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart of user %d: %w", userID, err)
		}
		c.logger.InfoContext(ctx, "cart cleared after order",
			"user_id", userID, "message_id", events.HeaderValue(m, events.HeaderMessageID))
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func orderUser(m kafka.Message) (int64, error) {
	if events.HeaderValue(m, domain.AttributeActionType) != domain.ActionTypePlaceOrder {
		return 0, errSkip
	}
	var event struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return 0, fmt.Errorf("parse order event: %w", err)
	}
	if event.UserID <= 0 {
		return 0, errors.New("order event has no user_id")
	}
	return event.UserID, nil
}
