package domain

import "github.com/shopspring/decimal"

// CartLineItem is one product row of a user's shopping cart, read-only during checkout.
type CartLineItem struct {
	ItemID    int64           `json:"item_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is unit price times quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ValidateLineItems rejects rows that would produce a negative amount.
func ValidateLineItems(items []CartLineItem) error {
	var fields []FieldError
	for i, item := range items {
		if item.Quantity < 0 {
			fields = append(fields, FieldError{
				Field:   fieldPath("items", i, "quantity"),
				Message: "quantity must be >= 0",
			})
		}
		if item.UnitPrice.IsNegative() {
			fields = append(fields, FieldError{
				Field:   fieldPath("items", i, "unit_price"),
				Message: "unit_price must be >= 0",
			})
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
