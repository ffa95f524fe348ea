// Package memory is a non-durable OrderStore used in tests and demo mode.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
)

const lockStripes = 64

// Store keeps orders in process memory.
type Store struct {
	// mu guards the maps only; it is never held across a state machine decision.
	mu         sync.RWMutex
	orders     map[int64]order.Order
	history    map[int64][]statuslog.Entry
	nextID     int64
	nextItemID int64

	// stripes serialise updates of the same order id.
	stripes [lockStripes]sync.Mutex

	now func() time.Time
}

// option is a function that configures the Store.
type option func(*Store)

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...option) *Store {
	s := &Store{
		orders:  make(map[int64]order.Order),
		history: make(map[int64][]statuslog.Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) stripe(id int64) *sync.Mutex {
	return &s.stripes[uint64(id)%lockStripes]
}

// CreateOrder implements iorderstore.OrderStore.
func (s *Store) CreateOrder(_ context.Context, draft order.Order) (order.Order, error) {
	if err := draft.ValidateNew(); err != nil {
		return order.Order{}, err
	}

	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	o := draft
	o.ID = s.nextID
	o.Status = status.Initial
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Items = make([]orderitem.OrderItem, len(draft.Items))
	for i, item := range draft.Items {
		s.nextItemID++
		item.ID = s.nextItemID
		item.OrderID = o.ID
		item.Position = i
		o.Items[i] = item
	}

	s.orders[o.ID] = o
	s.history[o.ID] = []statuslog.Entry{{
		ID:        1,
		OrderID:   o.ID,
		To:        o.Status,
		ChangedAt: now,
	}}

	return clone(o), nil
}

// GetOrder implements iorderstore.OrderStore.
func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, apperr.ErrNotFound
	}

	return clone(o), nil
}

// ListOrders implements iorderstore.OrderStore.
func (s *Store) ListOrders(_ context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	s.mu.RLock()
	result := make([]order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Matches(&o) {
			result = append(result, clone(o))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b order.Order) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})

	return filter.Page(result), nil
}

// UpdateStatus implements iorderstore.OrderStore.
func (s *Store) UpdateStatus(_ context.Context, id int64, next status.Status) (order.Order, bool, error) {
	lock := s.stripe(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.orders[id]
	s.mu.RUnlock()
	if !ok {
		return order.Order{}, false, apperr.ErrNotFound
	}

	to, changed, err := status.Transition(current.Status, next)
	if err != nil {
		return order.Order{}, false, err
	}
	if !changed {
		return clone(current), false, nil
	}

	now := s.now().UTC()
	updated := current
	updated.Status = to
	updated.UpdatedAt = now

	s.mu.Lock()
	s.orders[id] = updated
	entries := s.history[id]
	s.history[id] = append(entries, statuslog.Entry{
		ID:        int64(len(entries) + 1),
		OrderID:   id,
		From:      current.Status,
		To:        to,
		ChangedAt: now,
	})
	s.mu.Unlock()

	return clone(updated), true, nil
}

// History implements iorderstore.OrderStore.
func (s *Store) History(_ context.Context, id int64) ([]statuslog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.history[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}

	return slices.Clone(entries), nil
}

// Close implements iorderstore.OrderStore.
func (s *Store) Close() error {
	return nil
}

func clone(o order.Order) order.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
