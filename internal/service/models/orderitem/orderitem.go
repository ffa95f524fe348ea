package orderitem

import (
	"github.com/shopspring/decimal"
)

// OrderItem represents a product reference within an order.
// Price is captured when the order is created and never recomputed.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	Position  int             `json:"position"`
	ProductID int64           `json:"productId"`
	Price     decimal.Decimal `json:"price"`
}
