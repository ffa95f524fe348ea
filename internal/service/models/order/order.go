package order

import (
	"time"
	"unicode/utf8"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/shopspring/decimal"
)

// MaxCustomerNameLength is the longest display name accepted, in runes.
const MaxCustomerNameLength = 80

// Order represents a customer order in the system.
type Order struct {
	ID           int64                 `json:"id"`
	Items        []orderitem.OrderItem `json:"items"`
	Total        decimal.Decimal       `json:"total"`
	Status       status.Status         `json:"status"`
	Mode         mode.Mode             `json:"mode"`
	CustomerName string                `json:"customerName"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// ProductIDs returns the product references in item order.
func (o *Order) ProductIDs() []int64 {
	ids := make([]int64, len(o.Items))
	for i, item := range o.Items {
		ids[i] = item.ProductID
	}

	return ids
}

// ValidateNew checks the invariants of an order that is about to be created.
func (o *Order) ValidateNew() error {
	if len(o.Items) == 0 {
		return apperr.Validation("items", "must not be empty")
	}
	if o.Total.IsNegative() {
		return apperr.Validation("total", "must not be negative")
	}
	for _, item := range o.Items {
		if item.Price.IsNegative() {
			return apperr.Validation("items", "price must not be negative")
		}
	}
	if _, err := mode.ParseMode(o.Mode.String()); err != nil {
		return err
	}
	if utf8.RuneCountInString(o.CustomerName) > MaxCustomerNameLength {
		return apperr.Validation("customerName", "is too long")
	}

	return nil
}

// SumPrices returns the sum of the item prices.
func SumPrices(items []orderitem.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price)
	}

	return total
}
