// Package pebble is a durable single-node OrderStore on an embedded pebble database.
//
// Layout:
//
//	order/<id:020d>              JSON order record
//	history/<id:020d>/<rev:06d>  JSON status log entry
//
// The id sequence is recovered on open from the highest order key.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
)

const lockStripes = 64

var (
	orderLower = []byte("order/")
	orderUpper = []byte("order/~")
)

type orderRecord struct {
	Order    order.Order `json:"order"`
	Revision int         `json:"revision"`
}

// Store keeps orders in a pebble database.
type Store struct {
	db *pebble.DB

	// seqMu guards id assignment only. Commits happen outside it.
	seqMu sync.Mutex
	seq   int64

	stripes [lockStripes]sync.Mutex

	now    func() time.Time
	commit func(*pebble.Batch) error
}

// Open opens or creates the database in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}

	s := &Store{
		db:  db,
		now: time.Now,
		commit: func(b *pebble.Batch) error {
			return b.Commit(pebble.Sync)
		},
	}

	seq, err := s.loadSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.seq = seq

	return s, nil
}

// MustOpen opens the store and panics on failure.
func MustOpen(dir string) *Store {
	s, err := Open(dir)
	if err != nil {
		panic(err)
	}

	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) loadSeq() (int64, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: orderLower, UpperBound: orderUpper})
	if err != nil {
		return 0, apperr.Storage("open order iterator", err)
	}
	defer iter.Close()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return 0, apperr.Storage("read last order", err)
		}

		return 0, nil
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(string(iter.Key()), string(orderLower)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid order key %q: %w", iter.Key(), err)
	}

	return id, nil
}

// nextID reserves an id. A reserved id whose commit fails is never reused in this process.
func (s *Store) nextID() int64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	s.seq++

	return s.seq
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

	id := s.nextID()

	o := draft
	o.ID = id
	o.Status = status.Initial
	o.CreatedAt = now
	o.UpdatedAt = now
	o.Items = make([]orderitem.OrderItem, 0, len(draft.Items))
	for i, item := range draft.Items {
		item.ID = int64(i + 1)
		item.OrderID = id
		item.Position = i
		o.Items = append(o.Items, item)
	}

	rec := orderRecord{Order: o, Revision: 1}
	entry := statuslog.Entry{ID: 1, OrderID: id, To: o.Status, ChangedAt: now}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := setJSON(batch, orderKey(id), rec); err != nil {
		return order.Order{}, err
	}
	if err := setJSON(batch, historyKey(id, 1), entry); err != nil {
		return order.Order{}, err
	}
	if err := s.commit(batch); err != nil {
		return order.Order{}, apperr.Storage("commit order", err)
	}

	return o, nil
}

// GetOrder implements iorderstore.OrderStore.
func (s *Store) GetOrder(_ context.Context, id int64) (order.Order, error) {
	rec, err := s.get(id)
	if err != nil {
		return order.Order{}, err
	}

	return rec.Order, nil
}

func (s *Store) get(id int64) (orderRecord, error) {
	val, closer, err := s.db.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return orderRecord{}, apperr.ErrNotFound
	}
	if err != nil {
		return orderRecord{}, apperr.Storage("read order", err)
	}
	defer closer.Close()

	var rec orderRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return orderRecord{}, fmt.Errorf("failed to decode order %d: %w", id, err)
	}

	return rec, nil
}

// ListOrders implements iorderstore.OrderStore.
func (s *Store) ListOrders(_ context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: orderLower,
		UpperBound: orderUpper,
	})
	if err != nil {
		return nil, apperr.Storage("open order iterator", err)
	}
	defer iter.Close()

	result := make([]order.Order, 0)
	for iter.Last(); iter.Valid(); iter.Prev() {
		var rec orderRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode order at %s: %w", iter.Key(), err)
		}
		if filter.Matches(&rec.Order) {
			result = append(result, rec.Order)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, apperr.Storage("iterate orders", err)
	}

	return filter.Page(result), nil
}

// UpdateStatus implements iorderstore.OrderStore.
func (s *Store) UpdateStatus(_ context.Context, id int64, next status.Status) (order.Order, bool, error) {
	lock := s.stripe(id)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.get(id)
	if err != nil {
		return order.Order{}, false, err
	}

	to, changed, err := status.Transition(rec.Order.Status, next)
	if err != nil {
		return order.Order{}, false, err
	}
	if !changed {
		return rec.Order, false, nil
	}

	now := s.now().UTC()
	from := rec.Order.Status
	rec.Order.Status = to
	rec.Order.UpdatedAt = now
	rec.Revision++

	entry := statuslog.Entry{
		ID:        int64(rec.Revision),
		OrderID:   id,
		From:      from,
		To:        to,
		ChangedAt: now,
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := setJSON(batch, orderKey(id), rec); err != nil {
		return order.Order{}, false, err
	}
	if err := setJSON(batch, historyKey(id, rec.Revision), entry); err != nil {
		return order.Order{}, false, err
	}
	if err := s.commit(batch); err != nil {
		return order.Order{}, false, apperr.Storage("commit status change", err)
	}

	return rec.Order, true, nil
}

// History implements iorderstore.OrderStore.
func (s *Store) History(_ context.Context, id int64) ([]statuslog.Entry, error) {
	prefix := fmt.Sprintf("history/%020d/", id)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: []byte(prefix + "~"),
	})
	if err != nil {
		return nil, apperr.Storage("open history iterator", err)
	}
	defer iter.Close()

	var entries []statuslog.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		var e statuslog.Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("failed to decode history entry at %s: %w", iter.Key(), err)
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, apperr.Storage("iterate history", err)
	}
	if len(entries) == 0 {
		return nil, apperr.ErrNotFound
	}

	return entries, nil
}

func setJSON(batch *pebble.Batch, key []byte, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := batch.Set(key, val, nil); err != nil {
		return apperr.Storage("stage write", err)
	}

	return nil
}

func orderKey(id int64) []byte {
	return []byte(fmt.Sprintf("order/%020d", id))
}

func historyKey(id int64, rev int) []byte {
	return []byte(fmt.Sprintf("history/%020d/%06d", id, rev))
}
