package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/spf13/viper"
)

type nack struct {
	cause string
	next  time.Time
}

type fakeRepo struct {
	due    []outbox.Message
	dueAt  time.Time
	acked  []int64
	nacked map[int64]nack
}

func (f *fakeRepo) Enqueue(context.Context, outbox.Message) error { return nil }

func (f *fakeRepo) Due(_ context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	f.dueAt = now
	if len(f.due) > limit {
		return f.due[:limit], nil
	}

	return f.due, nil
}

func (f *fakeRepo) Ack(_ context.Context, id int64) error {
	f.acked = append(f.acked, id)

	return nil
}

func (f *fakeRepo) Nack(_ context.Context, id int64, cause string, next time.Time) error {
	f.nacked[id] = nack{cause: cause, next: next}

	return nil
}

type fakePublisher struct {
	failFor   map[int64]bool
	published []int64
}

func (f *fakePublisher) Publish(_ context.Context, msg outbox.Message) error {
	if f.failFor[msg.ID] {
		return errors.New("channel closed")
	}
	f.published = append(f.published, msg.ID)

	return nil
}

func TestWorker_RelayDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		due: []outbox.Message{
			{ID: 1, OrderID: 7, EventType: "created", MaxAttempts: 10},
			{ID: 2, OrderID: 7, EventType: "statusChanged", Attempts: 2, MaxAttempts: 10},
			{ID: 3, OrderID: 8, EventType: "created", MaxAttempts: 10},
		},
		nacked: make(map[int64]nack),
	}
	pub := &fakePublisher{failFor: map[int64]bool{2: true}}

	w := NewWorker(repo, pub, Config{PollInterval: time.Hour, BatchSize: 10, RetryBase: 30 * time.Second})
	w.now = func() time.Time { return now }

	w.relayDue(context.Background())

	if !repo.dueAt.Equal(now) {
		t.Errorf("Due queried at %v, want %v", repo.dueAt, now)
	}
	if len(pub.published) != 2 || pub.published[0] != 1 || pub.published[1] != 3 {
		t.Errorf("published = %v, want [1 3]", pub.published)
	}
	if len(repo.acked) != 2 || repo.acked[0] != 1 || repo.acked[1] != 3 {
		t.Errorf("acked = %v, want [1 3]", repo.acked)
	}

	n, ok := repo.nacked[2]
	if !ok {
		t.Fatal("failed event was not rescheduled")
	}
	if n.cause != "channel closed" {
		t.Errorf("cause = %q", n.cause)
	}
	// third attempt failed: 4 * 30s
	if want := now.Add(2 * time.Minute); !n.next.Equal(want) {
		t.Errorf("next attempt = %v, want %v", n.next, want)
	}
}

func TestWorker_Backoff(t *testing.T) {
	w := NewWorker(&fakeRepo{}, &fakePublisher{}, Config{RetryBase: time.Second})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{5, 16 * time.Second},
	}

	for _, tt := range tests {
		if got := w.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWorker_StopEndsStart(t *testing.T) {
	w := NewWorker(&fakeRepo{nacked: make(map[int64]nack)}, &fakePublisher{}, Config{PollInterval: time.Hour})

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestConfigFromViper(t *testing.T) {
	t.Cleanup(viper.Reset)

	cfg := ConfigFromViper()
	if cfg.PollInterval != 5*time.Second || cfg.BatchSize != 100 || cfg.RetryBase != 30*time.Second {
		t.Errorf("defaults = %+v", cfg)
	}

	viper.Set("outbox.poll_interval_seconds", 1)
	viper.Set("outbox.batch_size", 5)
	viper.Set("outbox.retry_interval_seconds", 2)

	cfg = ConfigFromViper()
	if cfg.PollInterval != time.Second || cfg.BatchSize != 5 || cfg.RetryBase != 2*time.Second {
		t.Errorf("overrides = %+v", cfg)
	}
}
