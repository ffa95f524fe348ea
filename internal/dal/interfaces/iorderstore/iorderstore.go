package iorderstore

import (
	"context"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
)

// OrderStore is the durable record of orders and their current status.
//
// Every method returns only after its write is committed. Operations on
// distinct order ids never wait on each other.
type OrderStore interface {
	// CreateOrder assigns an id, sets the initial status and the creation time.
	CreateOrder(ctx context.Context, draft order.Order) (order.Order, error)
	GetOrder(ctx context.Context, id int64) (order.Order, error)
	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.Order, error)
	// UpdateStatus applies the state machine and persists the result if it was accepted.
	// The returned flag is false when the order already had the requested status.
	UpdateStatus(ctx context.Context, id int64, next status.Status) (order.Order, bool, error)
	History(ctx context.Context, id int64) ([]statuslog.Entry, error)
	Close() error
}
