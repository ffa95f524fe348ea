package istatuslogrepo

import (
	"context"

	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
)

// IStatusLogRepository is an interface for the order status history repository.
type IStatusLogRepository interface {
	Insert(ctx context.Context, entry statuslog.Entry) error
	QueryByOrderID(ctx context.Context, orderID int64) ([]statuslog.Entry, error)
}
