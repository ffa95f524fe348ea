package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var orderColumns = []string{
	"id",
	"status",
	"mode",
	"customer_name",
	"total::text",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model.
type OrderDal struct {
	Id           int64     `db:"id"`
	Status       string    `db:"status"`
	Mode         string    `db:"mode"`
	CustomerName string    `db:"customer_name"`
	Total        string    `db:"total"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model. Items are populated separately.
func (o *OrderDal) ToModel() (order.Order, error) {
	st, err := status.Parse(o.Status)
	if err != nil {
		return order.Order{}, err
	}
	m, err := mode.ParseMode(o.Mode)
	if err != nil {
		return order.Order{}, err
	}
	total, err := decimal.NewFromString(o.Total)
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to parse order total: %w", err)
	}

	return order.Order{
		ID:           o.Id,
		Status:       st,
		Mode:         m,
		CustomerName: o.CustomerName,
		Total:        total,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}, nil
}

// OrderDalFromModel converts service layer Order model to OrderDal.
func OrderDalFromModel(o *order.Order) *OrderDal {
	return &OrderDal{
		Id:           o.ID,
		Status:       o.Status.String(),
		Mode:         o.Mode.String(),
		CustomerName: o.CustomerName,
		Total:        o.Total.String(),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func (o *OrderDal) scanTargets() []any {
	return []any{&o.Id, &o.Status, &o.Mode, &o.CustomerName, &o.Total, &o.CreatedAt, &o.UpdatedAt}
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert inserts the order row and returns it with the generated id.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	dal := OrderDalFromModel(&o)

	sql, args, err := r.sb.
		Insert("orders").
		Columns("status", "mode", "customer_name", "total", "created_at", "updated_at").
		Values(dal.Status, dal.Mode, dal.CustomerName, sq.Expr("?::numeric", dal.Total), dal.CreatedAt, dal.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&o.ID); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// Get returns a single order. With forUpdate the row stays locked until the transaction ends.
func (r *PostgresOrderRepository) Get(ctx context.Context, id int64, forUpdate bool) (order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, apperr.ErrNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	return dal.ToModel()
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("id DESC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = st.String()
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := make([]order.Order, 0)
	for rows.Next() {
		var dal OrderDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// UpdateStatus writes the new status and returns the updated row.
func (r *PostgresOrderRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	next status.Status,
	at time.Time,
) (order.Order, error) {
	sql, args, err := r.sb.
		Update("orders").
		Set("status", next.String()).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING id, status, mode, customer_name, total::text, created_at, updated_at").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build update query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return order.Order{}, apperr.ErrNotFound
	}
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}

	return dal.ToModel()
}
