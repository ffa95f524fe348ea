// Package postgres is the OrderStore on PostgreSQL. Every write runs in one transaction
// together with its status log entry and, when enabled, its outbox message.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/dal/uow"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
)

// Store implements iorderstore.OrderStore.
type Store struct {
	client *postgres.Client
	route  *outbox.Route
	now    func() time.Time
}

// option is a function that configures the Store.
type option func(*Store)

// WithOutbox makes every create and transition also enqueue an outbox message on route.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutbox(route outbox.Route) option {
	return func(s *Store) {
		s.route = &route
	}
}

// NewStore creates a new Store.
func NewStore(client *postgres.Client, opts ...option) *Store {
	s := &Store{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateOrder implements iorderstore.OrderStore.
func (s *Store) CreateOrder(ctx context.Context, draft order.Order) (order.Order, error) {
	if err := draft.ValidateNew(); err != nil {
		return order.Order{}, err
	}

	now := s.now().UTC()
	draft.Status = status.Initial
	draft.CreatedAt = now
	draft.UpdatedAt = now

	u := uow.New(s.client)
	if err := u.Begin(ctx); err != nil {
		return order.Order{}, apperr.Storage("begin order creation", err)
	}
	defer s.rollback(ctx, u)

	created, err := u.OrderRepository().Insert(ctx, draft)
	if err != nil {
		return order.Order{}, apperr.Storage("insert order", err)
	}

	items := make([]orderitem.OrderItem, len(draft.Items))
	for i, item := range draft.Items {
		item.OrderID = created.ID
		item.Position = i
		items[i] = item
	}
	created.Items, err = u.OrderItemRepository().BulkInsert(ctx, items)
	if err != nil {
		return order.Order{}, apperr.Storage("insert order items", err)
	}
	sortItems(created.Items)

	entry := statuslog.Entry{OrderID: created.ID, To: created.Status, ChangedAt: now}
	if err := u.StatusLogRepository().Insert(ctx, entry); err != nil {
		return order.Order{}, apperr.Storage("insert status log entry", err)
	}

	if err := s.enqueue(ctx, u, event.Created, created, now); err != nil {
		return order.Order{}, err
	}

	if err := u.Commit(ctx); err != nil {
		return order.Order{}, apperr.Storage("commit order creation", err)
	}

	return created, nil
}

// GetOrder implements iorderstore.OrderStore.
func (s *Store) GetOrder(ctx context.Context, id int64) (order.Order, error) {
	u := uow.New(s.client)

	o, err := u.OrderRepository().Get(ctx, id, false)
	if err != nil {
		return order.Order{}, storageErr("get order", err)
	}

	o.Items, err = u.OrderItemRepository().QueryByOrderIDs(ctx, []int64{id})
	if err != nil {
		return order.Order{}, apperr.Storage("get order items", err)
	}

	return o, nil
}

// ListOrders implements iorderstore.OrderStore.
func (s *Store) ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error) {
	u := uow.New(s.client)

	orders, err := u.OrderRepository().Query(ctx, &filter)
	if err != nil {
		return nil, apperr.Storage("list orders", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	items, err := u.OrderItemRepository().QueryByOrderIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Storage("list order items", err)
	}

	byOrder := make(map[int64][]orderitem.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
	}

	return orders, nil
}

// UpdateStatus implements iorderstore.OrderStore.
func (s *Store) UpdateStatus(ctx context.Context, id int64, next status.Status) (order.Order, bool, error) {
	u := uow.New(s.client)
	if err := u.Begin(ctx); err != nil {
		return order.Order{}, false, apperr.Storage("begin status change", err)
	}
	defer s.rollback(ctx, u)

	current, err := u.OrderRepository().Get(ctx, id, true)
	if err != nil {
		return order.Order{}, false, storageErr("lock order", err)
	}

	to, changed, err := status.Transition(current.Status, next)
	if err != nil {
		return order.Order{}, false, err
	}

	updated := current
	if changed {
		now := s.now().UTC()

		updated, err = u.OrderRepository().UpdateStatus(ctx, id, to, now)
		if err != nil {
			return order.Order{}, false, storageErr("update order status", err)
		}

		entry := statuslog.Entry{OrderID: id, From: current.Status, To: to, ChangedAt: now}
		if err := u.StatusLogRepository().Insert(ctx, entry); err != nil {
			return order.Order{}, false, apperr.Storage("insert status log entry", err)
		}

		if err := s.enqueue(ctx, u, event.StatusChanged, updated, now); err != nil {
			return order.Order{}, false, err
		}
	}

	updated.Items, err = u.OrderItemRepository().QueryByOrderIDs(ctx, []int64{id})
	if err != nil {
		return order.Order{}, false, apperr.Storage("get order items", err)
	}

	if err := u.Commit(ctx); err != nil {
		return order.Order{}, false, apperr.Storage("commit status change", err)
	}

	return updated, changed, nil
}

// History implements iorderstore.OrderStore.
func (s *Store) History(ctx context.Context, id int64) ([]statuslog.Entry, error) {
	u := uow.New(s.client)

	entries, err := u.StatusLogRepository().QueryByOrderID(ctx, id)
	if err != nil {
		return nil, apperr.Storage("get status history", err)
	}
	if len(entries) == 0 {
		return nil, apperr.ErrNotFound
	}

	return entries, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.client.Close()

	return nil
}

func (s *Store) enqueue(ctx context.Context, u *uow.UnitOfWork, typ event.Type, o order.Order, now time.Time) error {
	if s.route == nil {
		return nil
	}

	msg, err := outbox.NewMessage(*s.route, event.Record{
		Type:       typ,
		OrderID:    o.ID,
		Status:     o.Status,
		OccurredAt: now,
	}, now)
	if err != nil {
		return err
	}

	if err := u.OutboxRepository().Enqueue(ctx, msg); err != nil {
		return apperr.Storage("enqueue order event", err)
	}

	return nil
}

func (s *Store) rollback(ctx context.Context, u *uow.UnitOfWork) {
	if err := u.Rollback(context.WithoutCancel(ctx)); err != nil {
		slog.Error("Failed to rollback transaction", "error", err)
	}
}

func storageErr(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	return apperr.Storage(op, err)
}

func sortItems(items []orderitem.OrderItem) {
	slices.SortFunc(items, func(a, b orderitem.OrderItem) int {
		return a.Position - b.Position
	})
}
