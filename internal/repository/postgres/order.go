package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/pkg/database"
	apperrors "github.com/utafrali/farmmarket/pkg/errors"
	"github.com/utafrali/farmmarket/pkg/pagination"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateOrder inserts the order row. Items are written by InsertItems.
func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) (err error) {
	query := `
		INSERT INTO orders (id, user_id, status, subtotal_amount, delivery_address, contact_phone, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.UserID,
		o.Status,
		o.SubtotalAmount,
		o.DeliveryAddress,
		o.ContactPhone,
		o.Notes,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// InsertItems inserts all items in one transaction; either every item is
// stored or none is.
func (r *OrderRepository) InsertItems(ctx context.Context, items []domain.OrderItem) (err error) {
	query := `
		INSERT INTO order_items (id, order_id, product_id, farmer_id, name, unit, price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	ctx, end := database.TraceQuery(ctx, "InsertOrderItems", query)
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, item := range items {
		_, err = tx.Exec(ctx, query,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.FarmerID,
			item.Name,
			item.Unit,
			item.Price,
			item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", item.ProductID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes an order. Its items go with it through ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM orders WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteOrder", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

// GetByID retrieves an order with its items in a single query.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := `
		SELECT
			o.id, o.user_id, o.status, o.subtotal_amount, o.delivery_address,
			o.contact_phone, o.notes, o.created_at, o.updated_at,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'product_id', oi.product_id,
						'farmer_id', oi.farmer_id,
						'name', oi.name,
						'unit', oi.unit,
						'price', oi.price,
						'quantity', oi.quantity
					) ORDER BY oi.created_at, oi.id
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id`

	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
	defer func() { end(err) }()

	var (
		o         domain.Order
		itemsJSON []byte
	)
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.SubtotalAmount,
		&o.DeliveryAddress,
		&o.ContactPhone,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 && string(itemsJSON) != "null" {
		if err = json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return &o, nil
}

// ListByUser returns a page of the user's orders, newest first, with items.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page pagination.Params) (_ []domain.Order, _ int, err error) {
	query := `
		SELECT id, user_id, status, subtotal_amount, delivery_address, contact_phone, notes, created_at, updated_at,
			   count(*) OVER() AS total_count
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListOrdersByUser", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, userID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		var o domain.Order
		if err = rows.Scan(
			&o.ID,
			&o.UserID,
			&o.Status,
			&o.SubtotalAmount,
			&o.DeliveryAddress,
			&o.ContactPhone,
			&o.Notes,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) > 0 {
		if err = r.attachItems(ctx, orders); err != nil {
			return nil, 0, err
		}
	}
	return orders, totalCount, nil
}

// attachItems batch-loads the items of orders in one query.
func (r *OrderRepository) attachItems(ctx context.Context, orders []domain.Order) error {
	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}

	query := `
		SELECT id, order_id, product_id, farmer_id, name, unit, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("batch load order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderItem, len(orders))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.FarmerID,
			&item.Name,
			&item.Unit,
			&item.Price,
			&item.Quantity,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order item rows: %w", err)
	}

	for i := range orders {
		if items, ok := byOrder[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}
	return nil
}

// UpdateStatus changes the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id, status string) (err error) {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	defer func() { end(err) }()

	ct, err := r.pool.Exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
