// Package storetest is a conformance suite shared by the OrderStore implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderstore"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/shopspring/decimal"
)

// Factory creates an empty store for one subtest.
type Factory func(t *testing.T) iorderstore.OrderStore

// Draft returns a valid order draft with the given product prices.
func Draft(prices ...string) order.Order {
	items := make([]orderitem.OrderItem, len(prices))
	for i, p := range prices {
		items[i] = orderitem.OrderItem{ProductID: int64(i + 1), Price: decimal.RequireFromString(p)}
	}

	return order.Order{
		Items:        items,
		Total:        order.SumPrices(items),
		Mode:         mode.Takeout,
		CustomerName: "Ana",
	}
}

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAssignsIdentity", func(t *testing.T) { testCreate(t, newStore(t)) })
	t.Run("CreateRejectsEmptyItems", func(t *testing.T) { testCreateRejectsEmpty(t, newStore(t)) })
	t.Run("GetUnknown", func(t *testing.T) { testGetUnknown(t, newStore(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, newStore(t)) })
	t.Run("UpdateStatusForwardOnly", func(t *testing.T) { testUpdateStatus(t, newStore(t)) })
	t.Run("UpdateStatusUnknown", func(t *testing.T) { testUpdateUnknown(t, newStore(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, newStore(t)) })
	t.Run("ConcurrentDistinctOrders", func(t *testing.T) { testConcurrent(t, newStore(t)) })
}

func testCreate(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	first, err := s.CreateOrder(ctx, Draft("25.0", "35.0"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	second, err := s.CreateOrder(ctx, Draft("10"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if first.ID <= 0 || second.ID <= first.ID {
		t.Errorf("ids = %d, %d; want positive and increasing", first.ID, second.ID)
	}
	if first.Status != status.Pending {
		t.Errorf("Status = %q, want pending", first.Status)
	}
	if !first.Total.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Total = %s, want 60", first.Total)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}

	got, err := s.GetOrder(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if len(got.Items) != 2 || got.Items[0].ProductID != 1 || got.Items[1].ProductID != 2 {
		t.Errorf("Items = %+v, want products 1 and 2 in order", got.Items)
	}
	if got.CustomerName != "Ana" || got.Mode != mode.Takeout {
		t.Errorf("GetOrder() = %+v, customer and mode not preserved", got)
	}
}

func testCreateRejectsEmpty(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	draft := Draft()
	if _, err := s.CreateOrder(ctx, draft); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("CreateOrder() error = %v, want ErrValidation", err)
	}

	orders, err := s.ListOrders(ctx, order.QueryOrdersModel{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("ListOrders() returned %d orders, nothing must be persisted", len(orders))
	}
}

func testGetUnknown(t *testing.T, s iorderstore.OrderStore) {
	if _, err := s.GetOrder(context.Background(), 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetOrder() error = %v, want ErrNotFound", err)
	}
}

func testListNewestFirst(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	var ids []int64
	for range 4 {
		o, err := s.CreateOrder(ctx, Draft("1"))
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		ids = append(ids, o.ID)
	}
	if _, _, err := s.UpdateStatus(ctx, ids[1], status.Ready); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	orders, err := s.ListOrders(ctx, order.QueryOrdersModel{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != 4 {
		t.Fatalf("ListOrders() returned %d orders, want 4", len(orders))
	}
	for i := 1; i < len(orders); i++ {
		if orders[i-1].ID <= orders[i].ID {
			t.Errorf("ListOrders() not sorted newest first: %d before %d", orders[i-1].ID, orders[i].ID)
		}
	}
	if len(orders[0].Items) != 1 {
		t.Errorf("ListOrders() items not loaded: %+v", orders[0])
	}

	active, err := s.ListOrders(ctx, order.QueryOrdersModel{
		Statuses: []status.Status{status.Pending, status.Preparing},
		Limit:    2,
	})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(active) != 2 || active[0].ID != ids[3] || active[1].ID != ids[2] {
		t.Errorf("ListOrders(active, limit 2) = %v, want ids %d, %d", idsOf(active), ids[3], ids[2])
	}
}

func testUpdateStatus(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	o, err := s.CreateOrder(ctx, Draft("3"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	updated, changed, err := s.UpdateStatus(ctx, o.ID, status.Preparing)
	if err != nil || !changed || updated.Status != status.Preparing {
		t.Fatalf("UpdateStatus(preparing) = %q, %v, %v; want preparing, true, nil", updated.Status, changed, err)
	}
	if !updated.Total.Equal(o.Total) {
		t.Errorf("Total changed from %s to %s", o.Total, updated.Total)
	}

	_, changed, err = s.UpdateStatus(ctx, o.ID, status.Preparing)
	if err != nil || changed {
		t.Errorf("UpdateStatus(same) = %v, %v; want false, nil", changed, err)
	}

	_, _, err = s.UpdateStatus(ctx, o.ID, status.Pending)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("UpdateStatus(backward) error = %v, want ErrInvalidTransition", err)
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != status.Preparing {
		t.Errorf("Status = %q after rejected transition, want preparing", got.Status)
	}
}

func testUpdateUnknown(t *testing.T, s iorderstore.OrderStore) {
	if _, _, err := s.UpdateStatus(context.Background(), 999, status.Ready); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrNotFound", err)
	}
}

func testHistory(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	o, err := s.CreateOrder(ctx, Draft("3"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	s.UpdateStatus(ctx, o.ID, status.Preparing)
	s.UpdateStatus(ctx, o.ID, status.Preparing)
	s.UpdateStatus(ctx, o.ID, status.Pending)
	s.UpdateStatus(ctx, o.ID, status.Ready)

	entries, err := s.History(ctx, o.ID)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	want := []status.Status{status.Pending, status.Preparing, status.Ready}
	if len(entries) != len(want) {
		t.Fatalf("History() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.To != want[i] {
			t.Errorf("entries[%d].To = %q, want %q", i, e.To, want[i])
		}
	}
	if entries[0].From != "" || entries[2].From != status.Preparing {
		t.Errorf("History() from fields = %q, %q", entries[0].From, entries[2].From)
	}
}

func testConcurrent(t *testing.T, s iorderstore.OrderStore) {
	ctx := context.Background()

	const n = 16
	ids := make([]int64, n)
	for i := range ids {
		o, err := s.CreateOrder(ctx, Draft("2"))
		if err != nil {
			t.Fatalf("CreateOrder() error = %v", err)
		}
		ids[i] = o.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n*3)
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, st := range []status.Status{status.Preparing, status.Ready, status.Confirmed} {
				if _, _, err := s.UpdateStatus(ctx, id, st); err != nil {
					errs <- fmt.Errorf("order %d to %s: %w", id, st, err)
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	orders, err := s.ListOrders(ctx, order.QueryOrdersModel{Statuses: []status.Status{status.Confirmed}})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(orders) != n {
		t.Errorf("ListOrders(confirmed) returned %d orders, want %d", len(orders), n)
	}
}

func idsOf(orders []order.Order) []int64 {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}

	return ids
}
