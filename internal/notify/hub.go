// Package notify fans order events out to every connected subscriber.
//
// Delivery is best effort and at most once per connection: a subscriber that
// fails or times out is dropped, never retried. Subscribers only see events
// broadcast after they joined. Clients that reconnect resynchronise by
// re-fetching current state.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrHubClosed is returned by Subscribe and Broadcast after Close.
var ErrHubClosed = errors.New("notification hub is closed")

// ErrNilSink is returned by Subscribe when no sink is given.
var ErrNilSink = errors.New("notification hub: nil sink")

// Subscription is a registered subscriber.
type Subscription struct {
	id       string
	sink     Sink
	joinedAt time.Time
	once     sync.Once
}

// ID returns the random identifier used in logs.
func (s *Subscription) ID() string {
	return s.id
}

// JoinedAt returns when the subscriber was registered.
func (s *Subscription) JoinedAt() time.Time {
	return s.joinedAt
}

func (s *Subscription) closeSink() error {
	var err error
	s.once.Do(func() {
		err = s.sink.Close()
	})

	return err
}

// Hub owns the set of live subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	deliveryTimeout time.Duration
	maxParallel     int

	logger  *slog.Logger
	metrics *metrics
}

// New creates a Hub. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Hub {
	hubConfig := DefaultConfig()
	hubConfig.Merge(&cfg)

	return &Hub{
		subs:            make(map[string]*Subscription),
		deliveryTimeout: hubConfig.DeliveryTimeout,
		maxParallel:     hubConfig.MaxParallel,
		logger:          hubConfig.Logger,
		metrics:         newMetrics(hubConfig.Registerer),
	}
}

// Subscribe registers sink. It receives every event broadcast from now on.
func (h *Hub) Subscribe(sink Sink) (*Subscription, error) {
	if sink == nil {
		return nil, ErrNilSink
	}

	sub := &Subscription{
		id:       uuid.NewString(),
		sink:     sink,
		joinedAt: time.Now(),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.metrics.subscribers.Set(float64(count))
	h.logger.Debug("Subscriber joined", "subscriber_id", sub.id, "subscribers", count)

	return sub, nil
}

// Unsubscribe removes sub and closes its sink. Calling it again is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, exists := h.subs[sub.id]
	delete(h.subs, sub.id)
	count := len(h.subs)
	h.mu.Unlock()

	if err := sub.closeSink(); err != nil {
		h.logger.Warn("Failed to close subscriber", "subscriber_id", sub.id, "error", err)
	}

	if exists {
		h.metrics.subscribers.Set(float64(count))
		h.logger.Debug("Subscriber left", "subscriber_id", sub.id, "subscribers", count)
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Broadcast delivers evt to every registered subscriber and returns once all
// deliveries were attempted. Failed subscribers are unsubscribed.
// Only ErrHubClosed and encoding errors are returned.
func (h *Hub) Broadcast(ctx context.Context, evt event.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	h.metrics.broadcasts.WithLabelValues(string(evt.Type)).Inc()

	// Deliveries must outlive the caller, e.g. an HTTP request that already got its response.
	deliveryCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(h.maxParallel)

	var (
		mu      sync.Mutex
		dropped int
	)
	for _, sub := range subs {
		g.Go(func() error {
			if err := h.deliver(deliveryCtx, sub, payload); err != nil {
				h.logger.Warn("Dropping subscriber after failed delivery",
					"subscriber_id", sub.id,
					"event_type", evt.Type,
					"order_id", evt.Order.ID,
					"error", err,
				)
				h.Unsubscribe(sub)
				h.metrics.deliveries.WithLabelValues(resultDropped).Inc()

				mu.Lock()
				dropped++
				mu.Unlock()

				return nil
			}
			h.metrics.deliveries.WithLabelValues(resultOK).Inc()

			return nil
		})
	}
	_ = g.Wait()

	h.logger.Debug("Event broadcast",
		"event_type", evt.Type,
		"order_id", evt.Order.ID,
		"recipients", len(subs),
		"dropped", dropped,
	)

	return nil
}

func (h *Hub) deliver(ctx context.Context, sub *Subscription, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.deliveryTimeout)
	defer cancel()

	return sub.sink.Deliver(ctx, payload)
}

// Close unregisters every subscriber and rejects further use of the hub.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.closeSink(); err != nil {
			errs = append(errs, err)
		}
	}
	h.metrics.subscribers.Set(0)
	h.logger.Info("Notification hub closed", "subscribers", len(subs))

	return errors.Join(errs...)
}
