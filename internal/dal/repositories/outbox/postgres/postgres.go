package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/service/models/event"
	"github.com/corray333/backend-labs/cafe/internal/service/models/outbox"
)

const outboxTable = "order_event_outbox"

// OutboxDal is the row shape of order_event_outbox.
type OutboxDal struct {
	ID            int64
	OrderID       int64
	EventType     string
	Exchange      string
	RoutingKey    string
	Payload       []byte
	Attempts      int
	MaxAttempts   int
	LastError     string
	CreatedAt     time.Time
	NextAttemptAt time.Time
}

// ToModel converts the row to an outbox message.
func (d *OutboxDal) ToModel() outbox.Message {
	return outbox.Message{
		ID:            d.ID,
		OrderID:       d.OrderID,
		EventType:     event.Type(d.EventType),
		Exchange:      d.Exchange,
		RoutingKey:    d.RoutingKey,
		Payload:       d.Payload,
		Attempts:      d.Attempts,
		MaxAttempts:   d.MaxAttempts,
		LastError:     d.LastError,
		CreatedAt:     d.CreatedAt,
		NextAttemptAt: d.NextAttemptAt,
	}
}

// PostgresOutboxRepository stores outbox messages next to the orders they describe.
type PostgresOutboxRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOutboxRepository creates a repository on a pool or a transaction.
func NewPostgresOutboxRepository(conn postgres.GenericConn) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresOutboxRepository) Enqueue(ctx context.Context, msg outbox.Message) error {
	query, args, err := r.sb.Insert(outboxTable).
		Columns("order_id", "event_type", "exchange", "routing_key", "payload", "max_attempts", "created_at", "next_attempt_at").
		Values(
			msg.OrderID,
			string(msg.EventType),
			msg.Exchange,
			msg.RoutingKey,
			msg.Payload,
			msg.MaxAttempts,
			msg.CreatedAt,
			msg.NextAttemptAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build enqueue query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to enqueue order event: %w", err)
	}

	return nil
}

func (r *PostgresOutboxRepository) Due(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	query, args, err := r.sb.Select(
		"id", "order_id", "event_type", "exchange", "routing_key", "payload",
		"attempts", "max_attempts", "last_error", "created_at", "next_attempt_at",
	).
		From(outboxTable).
		Where(sq.LtOrEq{"next_attempt_at": now}).
		Where("attempts < max_attempts").
		OrderBy("id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query due order events: %w", err)
	}
	defer rows.Close()

	messages := make([]outbox.Message, 0, limit)
	for rows.Next() {
		var d OutboxDal
		if err := rows.Scan(
			&d.ID, &d.OrderID, &d.EventType, &d.Exchange, &d.RoutingKey, &d.Payload,
			&d.Attempts, &d.MaxAttempts, &d.LastError, &d.CreatedAt, &d.NextAttemptAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		messages = append(messages, d.ToModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order events: %w", err)
	}

	return messages, nil
}

func (r *PostgresOutboxRepository) Ack(ctx context.Context, id int64) error {
	query, args, err := r.sb.Delete(outboxTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build ack query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to ack order event %d: %w", id, err)
	}

	return nil
}

func (r *PostgresOutboxRepository) Nack(ctx context.Context, id int64, cause string, nextAttemptAt time.Time) error {
	query, args, err := r.sb.Update(outboxTable).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", cause).
		Set("next_attempt_at", nextAttemptAt).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build nack query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to nack order event %d: %w", id, err)
	}

	return nil
}
