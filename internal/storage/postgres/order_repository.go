package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn: conn{pool: pool}}
}

// Create inserts the order and its line items. Orders are never updated.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	const orderStmt = `
INSERT INTO orders (id, user_id, total, status, created_at)
VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.exec(ctx, orderStmt, order.ID, order.UserID, order.Total, order.Status, order.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("create order: duplicate id %s: %w", order.ID, err)
		}
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5)`

	for i, li := range order.Items {
		if _, err := r.exec(ctx, itemStmt, order.ID, i, li.ProductID, li.Quantity, li.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("create order item %d: %w", i, err)
		}
	}
	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (domain.Order, error) {
	if !validUUID(id) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	const query = `SELECT id, user_id, total, status, created_at FROM orders WHERE id = $1`

	var o domain.Order
	err := r.queryRow(ctx, query, id).Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	items, err := r.listItems(ctx, []string{o.ID})
	if err != nil {
		return domain.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if !validUUID(userID) {
		return nil, nil
	}
	const query = `
SELECT id, user_id, total, status, created_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC, id ASC`

	rows, err := r.query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	var ids []string
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	if len(orders) == 0 {
		return nil, nil
	}

	items, err := r.listItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderLineItem, error) {
	const query = `
SELECT order_id, product_id, quantity, unit_price
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position`

	rows, err := r.query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.OrderLineItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var li domain.OrderLineItem
		if err := rows.Scan(&orderID, &li.ProductID, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[orderID] = append(out[orderID], li)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate order items: %w", rows.Err())
	}
	return out, nil
}
