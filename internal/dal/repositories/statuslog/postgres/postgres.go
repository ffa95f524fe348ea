package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresStatusLogRepository stores the accepted status changes of orders.
type PostgresStatusLogRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresStatusLogRepository creates a new Postgres status log repository.
func NewPostgresStatusLogRepository(conn postgres.GenericConn) *PostgresStatusLogRepository {
	return &PostgresStatusLogRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert appends an entry to the log.
func (r *PostgresStatusLogRepository) Insert(ctx context.Context, entry statuslog.Entry) error {
	from := pgtype.Text{String: entry.From.String(), Valid: entry.From != ""}

	sql, args, err := r.sb.
		Insert("order_status_log").
		Columns("order_id", "from_status", "to_status", "changed_at").
		Values(entry.OrderID, from, entry.To.String(), entry.ChangedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert status log entry: %w", err)
	}

	return nil
}

// QueryByOrderID returns the entries of one order, oldest first.
func (r *PostgresStatusLogRepository) QueryByOrderID(ctx context.Context, orderID int64) ([]statuslog.Entry, error) {
	sql, args, err := r.sb.
		Select("id", "order_id", "from_status", "to_status", "changed_at").
		From("order_status_log").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status log: %w", err)
	}
	defer rows.Close()

	var entries []statuslog.Entry
	for rows.Next() {
		var (
			e         statuslog.Entry
			from      pgtype.Text
			to        string
			changedAt time.Time
		)
		if err := rows.Scan(&e.ID, &e.OrderID, &from, &to, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status log entry: %w", err)
		}
		e.From = status.Status(from.String)
		e.To = status.Status(to)
		e.ChangedAt = changedAt
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}
