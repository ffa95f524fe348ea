// Package outbox models order events queued for the external broker relay.
package outbox

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
)

// DefaultMaxAttempts bounds how many times the relay tries to publish a message.
const DefaultMaxAttempts = 10

// ContentType of every payload.
const ContentType = "application/json"

// Route says where relayed events go: the exchange (or Kafka topic header) and
// the routing key prefix, e.g. "cafe.order".
type Route struct {
	Exchange         string
	RoutingKeyPrefix string
	MaxAttempts      int
}

// Message is one order event waiting to be relayed. It is written in the same
// transaction as the order change it describes.
type Message struct {
	ID            int64
	OrderID       int64
	EventType     event.Type
	Exchange      string
	RoutingKey    string
	Payload       []byte
	Attempts      int
	MaxAttempts   int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// NewMessage encodes rec for route. The routing key is the prefix plus the event type,
// e.g. "cafe.order.statusChanged".
func NewMessage(route Route, rec event.Record, now time.Time) (Message, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal order event: %w", err)
	}

	maxAttempts := route.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return Message{
		OrderID:       rec.OrderID,
		EventType:     rec.Type,
		Exchange:      route.Exchange,
		RoutingKey:    route.RoutingKeyPrefix + "." + string(rec.Type),
		Payload:       payload,
		MaxAttempts:   maxAttempts,
		CreatedAt:     now,
		NextAttemptAt: now,
	}, nil
}

// PartitionKey keeps all events of one order in publish order on partitioned brokers.
func (m Message) PartitionKey() string {
	return strconv.FormatInt(m.OrderID, 10)
}

// Exhausted reports whether the message has used up its attempts.
func (m Message) Exhausted() bool {
	return m.Attempts >= m.MaxAttempts
}
