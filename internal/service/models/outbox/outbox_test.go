package outbox_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
)

func TestNewMessage(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := event.Record{Type: event.StatusChanged, OrderID: 5, Status: status.Ready, OccurredAt: now}

	msg, err := outbox.NewMessage(outbox.Route{Exchange: "cafe.events", RoutingKeyPrefix: "cafe.order"}, rec, now)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	if msg.RoutingKey != "cafe.order.statusChanged" || msg.Exchange != "cafe.events" {
		t.Errorf("route = %q/%q", msg.Exchange, msg.RoutingKey)
	}
	if msg.OrderID != 5 || msg.EventType != event.StatusChanged || msg.PartitionKey() != "5" {
		t.Errorf("unexpected identity %+v", msg)
	}
	if msg.MaxAttempts != outbox.DefaultMaxAttempts || !msg.NextAttemptAt.Equal(now) {
		t.Errorf("MaxAttempts = %d, NextAttemptAt = %v", msg.MaxAttempts, msg.NextAttemptAt)
	}

	var decoded event.Record
	if err := json.Unmarshal(msg.Payload, &decoded); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if decoded.Status != status.Ready || decoded.OrderID != 5 {
		t.Errorf("payload = %+v", decoded)
	}
}

func TestMessage_Exhausted(t *testing.T) {
	if (outbox.Message{Attempts: 2, MaxAttempts: 3}).Exhausted() {
		t.Error("2 of 3 attempts must not be exhausted")
	}
	if !(outbox.Message{Attempts: 3, MaxAttempts: 3}).Exhausted() {
		t.Error("3 of 3 attempts must be exhausted")
	}
}
