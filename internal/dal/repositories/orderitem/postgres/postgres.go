package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/cafe/internal/dal/postgres"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/shopspring/decimal"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id        int64  `db:"id"`
	OrderId   int64  `db:"order_id"`
	Position  int    `db:"position"`
	ProductId int64  `db:"product_id"`
	Price     string `db:"price"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() (orderitem.OrderItem, error) {
	price, err := decimal.NewFromString(oi.Price)
	if err != nil {
		return orderitem.OrderItem{}, fmt.Errorf("failed to parse item price: %w", err)
	}

	return orderitem.OrderItem{
		ID:        oi.Id,
		OrderID:   oi.OrderId,
		Position:  oi.Position,
		ProductID: oi.ProductId,
		Price:     price,
	}, nil
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.GenericConn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts multiple order items and returns them with IDs, in input order.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	sql := `
		INSERT INTO order_items (order_id, position, product_id, price)
		SELECT order_id, position, product_id, price::numeric
		FROM unnest($1::bigint[], $2::int[], $3::bigint[], $4::text[])
		AS t(order_id, position, product_id, price)
		ORDER BY position
		RETURNING id, order_id, position, product_id, price::text
	`

	orderIds := make([]int64, len(orderItems))
	positions := make([]int32, len(orderItems))
	productIds := make([]int64, len(orderItems))
	prices := make([]string, len(orderItems))

	for i, oi := range orderItems {
		orderIds[i] = oi.OrderID
		positions[i] = int32(oi.Position)
		productIds[i] = oi.ProductID
		prices[i] = oi.Price.String()
	}

	rows, err := r.conn.Query(ctx, sql, orderIds, positions, productIds, prices)
	if err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// QueryByOrderIDs returns the items of the given orders ordered by order id and position.
func (r *PostgresOrderItemRepository) QueryByOrderIDs(
	ctx context.Context,
	orderIDs []int64,
) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	sql, args, err := r.sb.
		Select("id", "order_id", "position", "product_id", "price::text").
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("order_id", "position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanItems(rows rowScanner) ([]orderitem.OrderItem, error) {
	result := make([]orderitem.OrderItem, 0)
	for rows.Next() {
		var dal OrderItemDal
		if err := rows.Scan(&dal.Id, &dal.OrderId, &dal.Position, &dal.ProductId, &dal.Price); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item, err := dal.ToModel()
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
