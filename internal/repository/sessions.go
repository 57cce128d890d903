package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
)

const (
	updateGatewayCustomerQuery = `UPDATE users SET gateway_customer_id = $2 WHERE user_id = $1`

	supersedeSessionQuery = `UPDATE payment_sessions
	SET status = 'SUPERSEDED', version = version + 1, updated_at = NOW()
	WHERE id = $1 AND version = $2 AND status = 'PENDING'`

	insertSessionQuery = `INSERT INTO payment_sessions
	(id, user_id, gateway_customer_id, payment_reference_id, amount_due, currency, status, version, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	RETURNING created_at, updated_at`

	getCurrentSessionQuery = `SELECT id, user_id, gateway_customer_id, payment_reference_id, amount_due, currency,
	status, version, created_at, updated_at
	FROM payment_sessions
	WHERE user_id = $1 AND status <> 'SUPERSEDED'
	ORDER BY created_at DESC
	LIMIT 1`

	updateSessionStatusQuery = `UPDATE payment_sessions
	SET status = $3, version = version + 1, updated_at = NOW()
	WHERE id = $1 AND version = $2
	RETURNING updated_at`
)

// CreatePaymentSession stores the user's gateway customer id and a new PENDING
// session in one transaction. supersedes is the session the caller saw as current
// (nil if none); if it is still PENDING it must be unchanged, otherwise another
// checkout won and ErrSessionConflict is returned.
func (r *Repository) CreatePaymentSession(ctx context.Context, session *domain.PaymentSession, supersedes *domain.PaymentSession) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer rollback(tx)

	// the users row lock serializes concurrent checkouts of one user
	res, err := tx.ExecContext(ctx, updateGatewayCustomerQuery, session.UserID, session.GatewayCustomerID)
	if err != nil {
		return fmt.Errorf("update gateway customer: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update gateway customer: %w", err)
	} else if n == 0 {
		return ErrUserNotFound
	}

	if supersedes != nil && supersedes.Status == domain.SessionStatusPending {
		res, err := tx.ExecContext(ctx, supersedeSessionQuery, supersedes.ID, supersedes.Version)
		if err != nil {
			return fmt.Errorf("supersede session: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("supersede session: %w", err)
		} else if n == 0 {
			return ErrSessionConflict
		}
	}

	err = tx.QueryRowContext(ctx, insertSessionQuery,
		session.ID,
		session.UserID,
		session.GatewayCustomerID,
		session.PaymentReferenceID,
		session.AmountDue,
		session.Currency,
		session.Status,
		session.Version,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSessionConflict
		}
		return fmt.Errorf("insert payment session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit payment session: %w", err)
	}
	return nil
}

func (r *Repository) GetCurrentSession(ctx context.Context, userID int64) (*domain.PaymentSession, error) {
	var s domain.PaymentSession
	err := r.db.QueryRowContext(ctx, getCurrentSessionQuery, userID).Scan(
		&s.ID,
		&s.UserID,
		&s.GatewayCustomerID,
		&s.PaymentReferenceID,
		&s.AmountDue,
		&s.Currency,
		&s.Status,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query current session: %w", err)
	}
	return &s, nil
}

// UpdateSessionStatus moves session to status if its version is unchanged and
// updates session in place.
func (r *Repository) UpdateSessionStatus(ctx context.Context, session *domain.PaymentSession, status domain.SessionStatus) error {
	return updateSessionStatus(ctx, r.db, session, status)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func updateSessionStatus(ctx context.Context, q queryRower, session *domain.PaymentSession, status domain.SessionStatus) error {
	if !domain.CanTransitionTo(session.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrVersionConflict, session.Status, status)
	}
	var updatedAt time.Time
	err := q.QueryRowContext(ctx, updateSessionStatusQuery, session.ID, session.Version, status).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	session.Status = status
	session.Version++
	session.UpdatedAt = updatedAt
	return nil
}
