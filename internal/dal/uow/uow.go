package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/istatuslogrepo"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	orderrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/outbox/postgres"
	statuslogrepo "github.com/corray333/backend-labs/cafe/internal/dal/repositories/statuslog/postgres"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork groups the repositories of one transaction. It is not safe for concurrent use;
// create one per operation.
type UnitOfWork struct {
	client        *postgres.Client
	tx            pgx.Tx
	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	statusLogRepo istatuslogrepo.IStatusLogRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

// New creates a unit of work whose repositories run on the pool until Begin is called.
func New(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{client: client}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.GenericConn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.statusLogRepo = statuslogrepo.NewPostgresStatusLogRepository(conn)
	u.outboxRepo = outboxrepo.NewPostgresOutboxRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *UnitOfWork) StatusLogRepository() istatuslogrepo.IStatusLogRepository {
	return u.statusLogRepo
}

func (u *UnitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

// Begin starts a transaction and rebinds every repository to it.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.client.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback aborts the transaction. It is a no-op after a successful Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}
