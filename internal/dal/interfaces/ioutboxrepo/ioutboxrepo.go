package ioutboxrepo

import (
	"context"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
)

// IOutboxRepository queues order events for the relay.
type IOutboxRepository interface {
	Enqueue(ctx context.Context, msg outbox.Message) error
	// Due returns up to limit messages whose next attempt is at or before now
	// and which still have attempts left, oldest first.
	Due(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error)
	// Ack drops a published message.
	Ack(ctx context.Context, id int64) error
	// Nack records a failed attempt and schedules the next one.
	Nack(ctx context.Context, id int64, cause string, nextAttemptAt time.Time) error
}
