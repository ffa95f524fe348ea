package statuslog

import (
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
)

// Entry records one accepted status change of an order.
// From is empty for the entry written when the order is created.
type Entry struct {
	ID        int64         `json:"id"`
	OrderID   int64         `json:"orderId"`
	From      status.Status `json:"from,omitempty"`
	To        status.Status `json:"to"`
	ChangedAt time.Time     `json:"changedAt"`
}
