// Package outbox relays queued order events to the configured broker.
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/spf13/viper"
)

// publisher delivers one order event to the broker.
type publisher interface {
	Publish(ctx context.Context, msg outbox.Message) error
}

// Config controls polling and retry timing.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// RetryBase is the delay after the first failed attempt. It doubles with every further failure.
	RetryBase time.Duration
}

// ConfigFromViper reads the outbox.* keys, falling back to 5s polls, batches of 100 and a 30s retry base.
func ConfigFromViper() Config {
	cfg := Config{
		PollInterval: time.Duration(viper.GetInt("outbox.poll_interval_seconds")) * time.Second,
		BatchSize:    viper.GetInt("outbox.batch_size"),
		RetryBase:    time.Duration(viper.GetInt("outbox.retry_interval_seconds")) * time.Second,
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 30 * time.Second
	}

	return cfg
}

// Worker polls the outbox and publishes due order events in id order.
type Worker struct {
	repo      ioutboxrepo.IOutboxRepository
	publisher publisher
	cfg       Config
	now       func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWorker creates a new outbox worker.
func NewWorker(repo ioutboxrepo.IOutboxRepository, publisher publisher, cfg Config) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	slog.Info("Outbox worker started", "poll_interval", w.cfg.PollInterval, "batch_size", w.cfg.BatchSize)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Outbox worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Outbox worker stopped")

			return
		case <-ticker.C:
			w.relayDue(ctx)
		}
	}
}

// Stop stops the worker. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// backoff returns the delay after the given failed attempt: base, 2*base, 4*base and so on.
func (w *Worker) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return w.cfg.RetryBase << (attempt - 1)
}

func (w *Worker) relayDue(ctx context.Context) {
	messages, err := w.repo.Due(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		slog.Error("Failed to load due order events", "error", err)

		return
	}

	if len(messages) == 0 {
		return
	}

	slog.Debug("Relaying order events", "count", len(messages))

	for _, msg := range messages {
		log := slog.With("outbox_id", msg.ID, "order_id", msg.OrderID, "event", msg.EventType)

		if err := w.publisher.Publish(ctx, msg); err != nil {
			msg.Attempts++
			next := w.now().Add(w.backoff(msg.Attempts))

			if msg.Exhausted() {
				log.Error("Order event exhausted its attempts, giving up", "attempts", msg.Attempts, "error", err)
			} else {
				log.Warn("Failed to publish order event, will retry", "attempt", msg.Attempts, "next_attempt_at", next, "error", err)
			}

			if err := w.repo.Nack(ctx, msg.ID, err.Error(), next); err != nil {
				log.Error("Failed to record failed attempt", "error", err)
			}

			continue
		}

		if err := w.repo.Ack(ctx, msg.ID); err != nil {
			log.Error("Failed to ack published order event", "error", err)
		}
	}
}
