package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// brokenSink simulates a connection that was closed by the peer.
type brokenSink struct {
	closed atomic.Int32
}

func (s *brokenSink) Deliver(context.Context, []byte) error {
	return errors.New("connection reset by peer")
}

func (s *brokenSink) Close() error {
	s.closed.Add(1)
	return nil
}

// stuckSink never accepts a payload.
type stuckSink struct{}

func (stuckSink) Deliver(ctx context.Context, _ []byte) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stuckSink) Close() error { return nil }

func createTestHub(t *testing.T, reg prometheus.Registerer) *notify.Hub {
	t.Helper()

	h := notify.New(notify.Config{
		DeliveryTimeout: 100 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer:      reg,
	})
	t.Cleanup(func() { _ = h.Close() })

	return h
}

func statusChanged(id int64, st status.Status) event.Event {
	return event.Event{
		Type:  event.StatusChanged,
		Order: order.View{ID: id, Status: st},
	}
}

func receive(t *testing.T, sink *notify.ChannelSink) event.Event {
	t.Helper()

	select {
	case payload := <-sink.Events():
		var evt event.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for event")
		return event.Event{}
	}
}

func assertNoEvent(t *testing.T, sink *notify.ChannelSink) {
	t.Helper()

	select {
	case payload := <-sink.Events():
		t.Fatalf("Unexpected event: %s", payload)
	default:
	}
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	h := createTestHub(t, nil)

	sink := notify.NewChannelSink(4)
	if _, err := h.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := h.Broadcast(context.Background(), statusChanged(5, status.Ready)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	evt := receive(t, sink)
	if evt.Type != event.StatusChanged || evt.Order.ID != 5 || evt.Order.Status != status.Ready {
		t.Errorf("Received %+v, want statusChanged for order 5 with status ready", evt)
	}
	assertNoEvent(t, sink)
}

func TestHub_SubscribeRejectsNilSink(t *testing.T) {
	h := createTestHub(t, nil)

	sub, err := h.Subscribe(nil)
	if !errors.Is(err, notify.ErrNilSink) {
		t.Fatalf("Subscribe(nil) error = %v, want ErrNilSink", err)
	}
	if sub != nil {
		t.Errorf("Subscribe(nil) returned a subscription")
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}

	sink := notify.NewChannelSink(1)
	if _, err := h.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := h.Broadcast(context.Background(), statusChanged(1, status.Preparing)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	receive(t, sink)
}

func TestHub_NoReplayForLateSubscribers(t *testing.T) {
	h := createTestHub(t, nil)

	early := notify.NewChannelSink(4)
	h.Subscribe(early)

	h.Broadcast(context.Background(), statusChanged(5, status.Ready))

	late := notify.NewChannelSink(4)
	h.Subscribe(late)

	receive(t, early)
	assertNoEvent(t, late)
}

func TestHub_BrokenSubscriberIsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := createTestHub(t, reg)

	first := notify.NewChannelSink(4)
	second := notify.NewChannelSink(4)
	broken := &brokenSink{}

	h.Subscribe(first)
	brokenSub, _ := h.Subscribe(broken)
	h.Subscribe(second)

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}

	if err := h.Broadcast(context.Background(), statusChanged(1, status.Preparing)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	receive(t, first)
	receive(t, second)

	if h.Len() != 2 {
		t.Errorf("Len() = %d after broadcast, want 2", h.Len())
	}
	if broken.closed.Load() != 1 {
		t.Errorf("broken sink closed %d times, want 1", broken.closed.Load())
	}

	// Removing an already dropped subscriber is a no-op.
	h.Unsubscribe(brokenSub)
	if broken.closed.Load() != 1 {
		t.Errorf("broken sink closed %d times after Unsubscribe(), want 1", broken.closed.Load())
	}

	expected := `
# HELP cafe_hub_subscribers Number of connected subscribers.
# TYPE cafe_hub_subscribers gauge
cafe_hub_subscribers 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "cafe_hub_subscribers"); err != nil {
		t.Errorf("Unexpected subscribers metric: %v", err)
	}
}

func TestHub_SlowSubscriberDoesNotDelayOthers(t *testing.T) {
	h := createTestHub(t, nil)

	fast := notify.NewChannelSink(4)
	h.Subscribe(stuckSink{})
	h.Subscribe(fast)

	start := time.Now()
	h.Broadcast(context.Background(), statusChanged(2, status.Ready))

	select {
	case <-fast.Events():
	default:
		t.Fatal("Fast subscriber did not receive the event")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Broadcast() took %v, the per-subscriber timeout must bound it", elapsed)
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, the stuck subscriber must be dropped", h.Len())
	}
}

func TestHub_CancelledCallerDoesNotDropSubscribers(t *testing.T) {
	h := createTestHub(t, nil)

	sink := notify.NewChannelSink(1)
	h.Subscribe(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.Broadcast(ctx, statusChanged(3, status.Ready)); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	receive(t, sink)
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	h := createTestHub(t, nil)

	sink := notify.NewChannelSink(1)
	sub, _ := h.Subscribe(sink)

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	select {
	case <-sink.Done():
	default:
		t.Error("Sink was not closed by Unsubscribe()")
	}
}

func TestHub_Close(t *testing.T) {
	h := createTestHub(t, nil)

	sink := notify.NewChannelSink(1)
	h.Subscribe(sink)

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case <-sink.Done():
	default:
		t.Error("Close() did not close subscriber sinks")
	}

	if _, err := h.Subscribe(notify.NewChannelSink(1)); !errors.Is(err, notify.ErrHubClosed) {
		t.Errorf("Subscribe() error = %v, want ErrHubClosed", err)
	}
	if err := h.Broadcast(context.Background(), statusChanged(1, status.Ready)); !errors.Is(err, notify.ErrHubClosed) {
		t.Errorf("Broadcast() error = %v, want ErrHubClosed", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}

func TestHub_ConcurrentSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := createTestHub(t, nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			sub, err := h.Subscribe(notify.NewChannelSink(64))
			if err == nil {
				h.Unsubscribe(sub)
			}
		}()
		go func() {
			defer wg.Done()
			h.Subscribe(&brokenSink{})
		}()
		go func() {
			defer wg.Done()
			h.Broadcast(context.Background(), statusChanged(int64(i), status.Ready))
		}()
	}
	wg.Wait()

	// A final broadcast removes whatever broken sinks joined after the last one.
	h.Broadcast(context.Background(), statusChanged(99, status.Ready))
	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
}
