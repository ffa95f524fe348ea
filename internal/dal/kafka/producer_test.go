package kafka_test

import (
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/dal/kafka"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
)

func TestMessage(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := kafka.Message(outbox.Message{
		OrderID:    12,
		EventType:  "created",
		RoutingKey: "cafe.order.created",
		Payload:    []byte(`{"orderId":12}`),
		CreatedAt:  created,
	})

	if string(msg.Key) != "12" {
		t.Errorf("Key = %q, want order id", msg.Key)
	}
	if string(msg.Value) != `{"orderId":12}` {
		t.Errorf("Value = %q", msg.Value)
	}
	if !msg.Time.Equal(created) {
		t.Errorf("Time = %v, want %v", msg.Time, created)
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["content-type"] != "application/json" || headers["event-type"] != "created" || headers["routing-key"] != "cafe.order.created" {
		t.Errorf("Headers = %v", headers)
	}
}
