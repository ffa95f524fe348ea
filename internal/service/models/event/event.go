// Package event defines the envelopes broadcast to subscribers and relayed to brokers.
package event

import (
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
)

// Type is the kind of an order lifecycle event.
type Type string

const (
	Created       Type = "created"
	StatusChanged Type = "statusChanged"
)

// Event is the envelope delivered to every hub subscriber.
type Event struct {
	Type        Type       `json:"type"`
	Order       order.View `json:"order"`
	ClientToken string     `json:"clientToken,omitempty"`
}

// Record is the compact form of an event written to the outbox for external consumers.
type Record struct {
	Type       Type          `json:"type"`
	OrderID    int64         `json:"orderId"`
	Status     status.Status `json:"status"`
	OccurredAt time.Time     `json:"occurredAt"`
}
