package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/checkout-payment/internal/domain"
)

const findLineItemsQuery = `SELECT ci.item_id, ci.product_id, ci.name, ci.image_url, ci.price, ci.item_qty
	FROM shopping_carts sc
	INNER JOIN cart_items ci ON sc.cart_id = ci.cart_id
	WHERE sc.user_id = $1
	ORDER BY ci.item_id`

const clearCartQuery = `DELETE FROM cart_items
	WHERE cart_id IN (SELECT cart_id FROM shopping_carts WHERE user_id = $1)`

// FindLineItems returns the user's current cart rows; a missing cart is an empty slice.
func (r *Repository) FindLineItems(ctx context.Context, userID int64) ([]domain.CartLineItem, error) {
	rows, err := r.db.QueryContext(ctx, findLineItemsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartLineItem, 0)
	for rows.Next() {
		var item domain.CartLineItem
		if err := rows.Scan(
			&item.ItemID,
			&item.ProductID,
			&item.Name,
			&item.ImageURL,
			&item.UnitPrice,
			&item.Quantity,
		); err != nil {
			return nil, fmt.Errorf("scan cart item row: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

func (r *Repository) ClearCart(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, clearCartQuery, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
