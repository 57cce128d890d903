package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
	"github.com/google/uuid"
)

const (
	insertOrderQuery = `INSERT INTO orders
	(id, session_id, payment_reference_id, user_id, amount_due, currency, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	RETURNING created_at`

	orderColumns = `id, session_id, payment_reference_id, user_id, amount_due, currency, payload,
	COALESCE(message_id, ''), published_at, created_at`

	getOrderByReferenceQuery = `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference_id = $1`

	markOrderPublishedQuery = `UPDATE orders SET message_id = $2, published_at = NOW()
	WHERE id = $1 AND message_id IS NULL`

	getUnpublishedOrdersQuery = `SELECT ` + orderColumns + ` FROM orders
	WHERE message_id IS NULL AND created_at < NOW() - make_interval(secs => $1)
	ORDER BY created_at
	LIMIT $2`
)

// RecordOrder marks session PAID and inserts order in one transaction. The
// unique payment reference makes a second order for the same payment fail with
// ErrDuplicateOrder.
func (r *Repository) RecordOrder(ctx context.Context, session *domain.PaymentSession, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	paid := *session
	if err := updateSessionStatus(ctx, tx, &paid, domain.SessionStatusPaid); err != nil {
		return err
	}

	err = tx.QueryRowContext(ctx, insertOrderQuery,
		order.ID,
		order.SessionID,
		order.PaymentReferenceID,
		order.UserID,
		order.AmountDue,
		order.Currency,
		[]byte(order.Payload),
	).Scan(&order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	*session = paid
	return nil
}

func (r *Repository) GetOrderByPaymentReference(ctx context.Context, referenceID string) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, getOrderByReferenceQuery, referenceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by payment reference: %w", err)
	}
	return order, nil
}

// MarkOrderPublished is a no-op for an order that already has a message id.
func (r *Repository) MarkOrderPublished(ctx context.Context, orderID uuid.UUID, messageID string) error {
	if _, err := r.db.ExecContext(ctx, markOrderPublishedQuery, orderID, messageID); err != nil {
		return fmt.Errorf("mark order published: %w", err)
	}
	return nil
}

func (r *Repository) GetUnpublishedOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, getUnpublishedOrdersQuery, olderThan.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*domain.Order, error) {
	var (
		order       domain.Order
		payload     []byte
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&order.ID,
		&order.SessionID,
		&order.PaymentReferenceID,
		&order.UserID,
		&order.AmountDue,
		&order.Currency,
		&payload,
		&order.MessageID,
		&publishedAt,
		&order.CreatedAt,
	); err != nil {
		return nil, err
	}
	order.Payload = payload
	if publishedAt.Valid {
		t := publishedAt.Time
		order.PublishedAt = &t
	}
	return &order, nil
}
