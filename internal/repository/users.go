package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
)

const getUserProfileQuery = `SELECT user_id, email, phone, COALESCE(gateway_customer_id, '')
	FROM users WHERE user_id = $1`

func (r *Repository) GetUserProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	var p domain.UserProfile
	err := r.db.QueryRowContext(ctx, getUserProfileQuery, userID).Scan(
		&p.UserID,
		&p.Email,
		&p.Phone,
		&p.GatewayCustomerID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user profile: %w", err)
	}
	return &p, nil
}
