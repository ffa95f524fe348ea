package ordersvc_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/correlation"
	"github.com/corray333/backend-labs/cafe/internal/dal/catalog"
	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderstore"
	"github.com/corray333/backend-labs/cafe/internal/dal/orderstore/memory"
	"github.com/corray333/backend-labs/cafe/internal/notify"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/services/ordersvc"
	"github.com/shopspring/decimal"
)

var menu = []product.Product{
	{ID: 1, Name: "Americano", Price: decimal.RequireFromString("25.00"), Available: true},
	{ID: 2, Name: "Cappuccino", Price: decimal.RequireFromString("35.00"), Available: true},
	{ID: 3, Name: "Blueberry Muffin", Price: decimal.RequireFromString("30.00"), Available: false},
}

// failingStore rejects every write as if the database were down.
type failingStore struct {
	iorderstore.OrderStore
}

func (failingStore) CreateOrder(context.Context, order.Order) (order.Order, error) {
	return order.Order{}, apperr.Storage("insert order", errors.New("connection refused"))
}

func (failingStore) UpdateStatus(context.Context, int64, status.Status) (order.Order, bool, error) {
	return order.Order{}, false, apperr.Storage("update order status", errors.New("connection refused"))
}

type testEnv struct {
	svc      *ordersvc.OrderService
	hub      *notify.Hub
	registry *correlation.Registry
}

func newTestEnv(t *testing.T, store iorderstore.OrderStore) *testEnv {
	t.Helper()

	hub := notify.New(notify.Config{
		DeliveryTimeout: 200 * time.Millisecond,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	registry := correlation.NewRegistry()
	t.Cleanup(func() {
		_ = hub.Close()
		registry.Close()
	})

	svc := ordersvc.MustNewOrderService(
		ordersvc.WithOrderStore(store),
		ordersvc.WithCatalog(catalog.New(menu)),
		ordersvc.WithHub(hub),
		ordersvc.WithTokenRegistry(registry),
	)

	return &testEnv{svc: svc, hub: hub, registry: registry}
}

func (e *testEnv) subscribe(t *testing.T) *notify.ChannelSink {
	t.Helper()

	sink := notify.NewChannelSink(16)
	if _, err := e.hub.Subscribe(sink); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	return sink
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
	case <-time.After(50 * time.Millisecond):
	}
}

func submit(t *testing.T, svc *ordersvc.OrderService, items ...int64) order.View {
	t.Helper()

	view, err := svc.SubmitOrder(context.Background(), ordersvc.SubmitOrderModel{Items: items, Mode: "takeout"})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}

	return view
}

func TestSubmitOrder_PricesItemsAndAnnounces(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	sink := env.subscribe(t)

	view, err := env.svc.SubmitOrder(context.Background(), ordersvc.SubmitOrderModel{
		Items:        []int64{1, 2},
		Mode:         "dine-in",
		CustomerName: "Ana",
		ClientToken:  "tab-7",
	})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}

	if !view.Total.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Total = %s, want 60", view.Total)
	}
	if view.Status != status.Pending {
		t.Errorf("Status = %q, want pending", view.Status)
	}
	if view.ClientToken != "tab-7" {
		t.Errorf("ClientToken = %q, want tab-7", view.ClientToken)
	}
	if len(view.Items) != 2 || view.Items[0].Name != "Americano" || view.Items[1].Name != "Cappuccino" {
		t.Errorf("Items = %+v", view.Items)
	}

	evt := receive(t, sink)
	if evt.Type != event.Created || evt.Order.ID != view.ID || evt.ClientToken != "tab-7" {
		t.Errorf("event = %+v, want created for order %d with token", evt, view.ID)
	}
	assertNoEvent(t, sink)
}

func TestSubmitOrder_TrimsCustomerName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "padded", in: "   Ana   ", want: "Ana"},
		{name: "only spaces", in: " \t ", want: ""},
		{name: "80 runes after trimming", in: "  " + strings.Repeat("é", 80) + "  ", want: strings.Repeat("é", 80)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			env := newTestEnv(t, store)
			sink := env.subscribe(t)

			view, err := env.svc.SubmitOrder(context.Background(), ordersvc.SubmitOrderModel{
				Items:        []int64{1},
				Mode:         "takeout",
				CustomerName: tt.in,
			})
			if err != nil {
				t.Fatalf("SubmitOrder() error = %v", err)
			}
			if view.CustomerName != tt.want {
				t.Errorf("view customerName = %q, want %q", view.CustomerName, tt.want)
			}

			stored, err := store.GetOrder(context.Background(), view.ID)
			if err != nil {
				t.Fatalf("GetOrder() error = %v", err)
			}
			if stored.CustomerName != tt.want {
				t.Errorf("stored customerName = %q, want %q", stored.CustomerName, tt.want)
			}

			if evt := receive(t, sink); evt.Order.CustomerName != tt.want {
				t.Errorf("event customerName = %q, want %q", evt.Order.CustomerName, tt.want)
			}
		})
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		model ordersvc.SubmitOrderModel
	}{
		{name: "empty items", model: ordersvc.SubmitOrderModel{Mode: "takeout"}},
		{name: "unknown product", model: ordersvc.SubmitOrderModel{Items: []int64{1, 99}, Mode: "takeout"}},
		{name: "unavailable product", model: ordersvc.SubmitOrderModel{Items: []int64{3}, Mode: "takeout"}},
		{name: "unknown mode", model: ordersvc.SubmitOrderModel{Items: []int64{1}, Mode: "drive-through"}},
		{
			name:  "customer name too long",
			model: ordersvc.SubmitOrderModel{Items: []int64{1}, Mode: "takeout", CustomerName: strings.Repeat("é", 81)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			env := newTestEnv(t, store)
			sink := env.subscribe(t)

			_, err := env.svc.SubmitOrder(context.Background(), tt.model)
			var vErr *apperr.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("SubmitOrder() error = %v, want ValidationError", err)
			}

			orders, err := store.ListOrders(context.Background(), order.QueryOrdersModel{})
			if err != nil {
				t.Fatalf("ListOrders() error = %v", err)
			}
			if len(orders) != 0 {
				t.Errorf("%d orders persisted, want none", len(orders))
			}
			assertNoEvent(t, sink)
		})
	}
}

func TestTransitionOrder_NotifiesSubscriberOnce(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	for range 5 {
		submit(t, env.svc, 1)
	}

	sink := env.subscribe(t)

	view, err := env.svc.TransitionOrder(context.Background(), 5, status.Ready)
	if err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}
	if view.Status != status.Ready {
		t.Errorf("Status = %q, want ready", view.Status)
	}

	evt := receive(t, sink)
	if evt.Type != event.StatusChanged || evt.Order.ID != 5 || evt.Order.Status != status.Ready {
		t.Errorf("event = %+v, want statusChanged for order 5 ready", evt)
	}
	assertNoEvent(t, sink)
}

func TestTransitionOrder_LateSubscriberGetsNoReplay(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	o := submit(t, env.svc, 2)

	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Preparing); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}

	late := env.subscribe(t)
	assertNoEvent(t, late)

	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Ready); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}
	if evt := receive(t, late); evt.Order.Status != status.Ready {
		t.Errorf("event status = %q, want ready", evt.Order.Status)
	}
}

func TestTransitionOrder_RejectionsDoNotBroadcast(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	o := submit(t, env.svc, 1)
	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Ready); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}

	sink := env.subscribe(t)

	if _, err := env.svc.TransitionOrder(context.Background(), 999, status.Ready); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("TransitionOrder(999) error = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Pending); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("TransitionOrder(backward) error = %v, want ErrInvalidTransition", err)
	}
	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Status("burnt")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("TransitionOrder(unknown) error = %v, want ErrValidation", err)
	}

	view, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Ready)
	if err != nil {
		t.Fatalf("TransitionOrder(same) error = %v", err)
	}
	if view.Status != status.Ready {
		t.Errorf("Status = %q, want ready", view.Status)
	}

	assertNoEvent(t, sink)

	got, err := env.svc.GetOrder(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Status != status.Ready {
		t.Errorf("stored status = %q, want ready", got.Status)
	}
}

func TestTransitionOrder_EchoesTokenUntilConfirmed(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())

	o, err := env.svc.SubmitOrder(context.Background(), ordersvc.SubmitOrderModel{
		Items:       []int64{1},
		Mode:        "takeout",
		ClientToken: "kiosk-1",
	})
	if err != nil {
		t.Fatalf("SubmitOrder() error = %v", err)
	}

	sink := env.subscribe(t)

	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Ready); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}
	if evt := receive(t, sink); evt.ClientToken != "kiosk-1" {
		t.Errorf("ready event token = %q, want kiosk-1", evt.ClientToken)
	}

	if _, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Confirmed); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}
	receive(t, sink)

	if _, ok := env.registry.Token(o.ID); ok {
		t.Error("token must be forgotten once the order is confirmed")
	}
}

func TestStorageFailurePreventsBroadcast(t *testing.T) {
	env := newTestEnv(t, failingStore{OrderStore: memory.NewStore()})
	sink := env.subscribe(t)

	_, err := env.svc.SubmitOrder(context.Background(), ordersvc.SubmitOrderModel{Items: []int64{1}, Mode: "takeout"})
	if !errors.Is(err, apperr.ErrStorage) {
		t.Errorf("SubmitOrder() error = %v, want ErrStorage", err)
	}
	if _, err := env.svc.TransitionOrder(context.Background(), 1, status.Ready); !errors.Is(err, apperr.ErrStorage) {
		t.Errorf("TransitionOrder() error = %v, want ErrStorage", err)
	}

	assertNoEvent(t, sink)
}

func TestClosedHubDoesNotFailCommittedChange(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	o := submit(t, env.svc, 1)

	if err := env.hub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	view, err := env.svc.TransitionOrder(context.Background(), o.ID, status.Preparing)
	if err != nil {
		t.Fatalf("TransitionOrder() error = %v, want nil after commit", err)
	}
	if view.Status != status.Preparing {
		t.Errorf("Status = %q, want preparing", view.Status)
	}
}

func TestListOrdersAndHistory(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())
	first := submit(t, env.svc, 1)
	second := submit(t, env.svc, 2, 2)
	if _, err := env.svc.TransitionOrder(context.Background(), first.ID, status.Preparing); err != nil {
		t.Fatalf("TransitionOrder() error = %v", err)
	}

	all, err := env.svc.ListOrders(context.Background(), order.QueryOrdersModel{})
	if err != nil {
		t.Fatalf("ListOrders() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("ListOrders() = %+v, want newest first", all)
	}
	if all[0].Items[1].Name != "Cappuccino" {
		t.Errorf("item name = %q, want Cappuccino", all[0].Items[1].Name)
	}

	queue, err := env.svc.ListOrders(context.Background(), order.QueryOrdersModel{
		Statuses: []status.Status{status.Preparing},
	})
	if err != nil {
		t.Fatalf("ListOrders(preparing) error = %v", err)
	}
	if len(queue) != 1 || queue[0].ID != first.ID {
		t.Errorf("ListOrders(preparing) = %+v", queue)
	}

	if _, err := env.svc.ListOrders(context.Background(), order.QueryOrdersModel{Limit: -1}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ListOrders(limit=-1) error = %v, want ErrValidation", err)
	}

	history, err := env.svc.OrderHistory(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("OrderHistory() error = %v", err)
	}
	if len(history) != 2 || history[1].To != status.Preparing {
		t.Errorf("OrderHistory() = %+v", history)
	}

	if _, err := env.svc.OrderHistory(context.Background(), 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("OrderHistory(999) error = %v, want ErrNotFound", err)
	}
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, memory.NewStore())

	products := env.svc.ListProducts(context.Background())
	if len(products) != len(menu) || products[0].Name != "Americano" {
		t.Errorf("ListProducts() = %+v", products)
	}
}
