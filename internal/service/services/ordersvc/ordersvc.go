package ordersvc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderstore"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type catalog interface {
	Product(id int64) (product.Product, bool)
	Name(id int64) string
	List() []product.Product
}

type hub interface {
	Broadcast(ctx context.Context, evt event.Event) error
}

type tokenRegistry interface {
	Remember(orderID int64, token string)
	Token(orderID int64) (string, bool)
	Forget(orderID int64)
}

// OrderService is a service for managing orders.
type OrderService struct {
	store    iorderstore.OrderStore
	catalog  catalog
	hub      hub
	registry tokenRegistry
	tracer   trace.Tracer
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService. It panics when a collaborator is missing.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		tracer: otel.Tracer("service"),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.store == nil:
		panic("ordersvc: order store is required")
	case s.catalog == nil:
		panic("ordersvc: catalog is required")
	case s.hub == nil:
		panic("ordersvc: hub is required")
	case s.registry == nil:
		panic("ordersvc: token registry is required")
	}

	return s
}

// WithOrderStore sets the order store for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOrderStore(store iorderstore.OrderStore) option {
	return func(s *OrderService) {
		s.store = store
	}
}

// WithCatalog sets the product catalog for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCatalog(c catalog) option {
	return func(s *OrderService) {
		s.catalog = c
	}
}

// WithHub sets the notification hub for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithHub(h hub) option {
	return func(s *OrderService) {
		s.hub = h
	}
}

// WithTokenRegistry sets the client token registry for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithTokenRegistry(r tokenRegistry) option {
	return func(s *OrderService) {
		s.registry = r
	}
}

// SubmitOrderModel is the input of SubmitOrder.
type SubmitOrderModel struct {
	// Items are product ids; repeating an id orders it several times.
	Items        []int64
	Mode         string
	CustomerName string
	// ClientToken is echoed back on the created event so the submitting client can recognise it.
	ClientToken string
}

// SubmitOrder prices the items, persists a pending order and announces it to subscribers.
func (s *OrderService) SubmitOrder(ctx context.Context, model SubmitOrderModel) (order.View, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.SubmitOrder",
		trace.WithAttributes(attribute.Int("order.items", len(model.Items))))
	defer span.End()

	draft, err := s.draft(model)
	if err != nil {
		return order.View{}, fail(span, err)
	}

	created, err := s.store.CreateOrder(ctx, draft)
	if err != nil {
		return order.View{}, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("order.id", created.ID))

	if model.ClientToken != "" {
		s.registry.Remember(created.ID, model.ClientToken)
	}

	view := order.NewView(created, s.catalog.Name)
	view.ClientToken = model.ClientToken

	s.broadcast(ctx, event.Event{Type: event.Created, Order: view, ClientToken: model.ClientToken})

	return view, nil
}

func (s *OrderService) draft(model SubmitOrderModel) (order.Order, error) {
	if len(model.Items) == 0 {
		return order.Order{}, apperr.Validation("items", "must not be empty")
	}

	m, err := mode.ParseMode(model.Mode)
	if err != nil {
		return order.Order{}, err
	}

	items := make([]orderitem.OrderItem, len(model.Items))
	for i, id := range model.Items {
		p, ok := s.catalog.Product(id)
		if !ok {
			return order.Order{}, apperr.Validation("items", fmt.Sprintf("unknown product %d", id))
		}
		if !p.Available {
			return order.Order{}, apperr.Validation("items", fmt.Sprintf("product %d is not available", id))
		}
		items[i] = orderitem.OrderItem{ProductID: p.ID, Price: p.Price}
	}

	draft := order.Order{
		Items:        items,
		Total:        order.SumPrices(items),
		Mode:         m,
		CustomerName: strings.TrimSpace(model.CustomerName),
	}
	if err := draft.ValidateNew(); err != nil {
		return order.Order{}, err
	}

	return draft, nil
}

// TransitionOrder moves an order forward. Subscribers hear about it only when the status changed.
func (s *OrderService) TransitionOrder(ctx context.Context, id int64, next status.Status) (order.View, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.TransitionOrder",
		trace.WithAttributes(attribute.Int64("order.id", id), attribute.String("order.status", next.String())))
	defer span.End()

	if !next.Valid() {
		return order.View{}, fail(span, apperr.Validation("status", fmt.Sprintf("unknown value %q", next)))
	}

	updated, changed, err := s.store.UpdateStatus(ctx, id, next)
	if err != nil {
		return order.View{}, fail(span, err)
	}

	token, _ := s.registry.Token(id)
	view := order.NewView(updated, s.catalog.Name)
	view.ClientToken = token

	if changed {
		s.broadcast(ctx, event.Event{Type: event.StatusChanged, Order: view, ClientToken: token})
	}
	if updated.Status.IsTerminal() {
		s.registry.Forget(id)
	}

	return view, nil
}

// GetOrder returns one order.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (order.View, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return order.View{}, fail(span, err)
	}

	return order.NewView(o, s.catalog.Name), nil
}

// ListOrders returns orders newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.View, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.ListOrders")
	defer span.End()

	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fail(span, apperr.Validation("limit", "limit and offset must not be negative"))
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fail(span, apperr.Validation("status", fmt.Sprintf("unknown value %q", st)))
		}
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))

	views := make([]order.View, len(orders))
	for i, o := range orders {
		views[i] = order.NewView(o, s.catalog.Name)
	}

	return views, nil
}

// OrderHistory returns the accepted status changes of an order, oldest first.
func (s *OrderService) OrderHistory(ctx context.Context, id int64) ([]statuslog.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.OrderHistory", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	entries, err := s.store.History(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}

	return entries, nil
}

// ListProducts returns the catalog.
func (s *OrderService) ListProducts(context.Context) []product.Product {
	return s.catalog.List()
}

// broadcast runs after the change is committed. A hub failure cannot undo it,
// so it is logged and clients catch up by re-fetching.
func (s *OrderService) broadcast(ctx context.Context, evt event.Event) {
	if err := s.hub.Broadcast(ctx, evt); err != nil {
		slog.WarnContext(ctx, "Failed to broadcast order event",
			"type", evt.Type,
			"order_id", evt.Order.ID,
			"error", err,
		)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
