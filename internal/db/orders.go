package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"
)

type orderDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewOrderDB(dbConn *sql.DB) OrderDB {
	return &orderDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const orderColumns = "o.id, o.field_id, o.user_id, o.quantity, o.total_coins, o.status, o.note, o.created_at, o.updated_at"

func scanOrder(row interface{ Scan(...any) error }) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.FieldID, &o.UserID, &o.Quantity, &o.TotalCoins, &o.Status, &o.Note, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (d *orderDBImplementation) CreateOrder(ctx context.Context, tx *sql.Tx, o *models.Order) error {
	err := tx.QueryRowContext(ctx, `
INSERT INTO orders (field_id, user_id, quantity, total_coins, status, note)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		o.FieldID, o.UserID, o.Quantity, o.TotalCoins, o.Status, o.Note,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create order")
	}
	return nil
}

func (d *orderDBImplementation) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	o, err := scanOrder(d.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = $1", id))
	if err != nil {
		return models.Order{}, wrapErr(err, "get order %d", id)
	}
	return o, nil
}

func (d *orderDBImplementation) GetOrderForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders o WHERE o.id = $1 FOR UPDATE", id))
	if err != nil {
		return models.Order{}, wrapErr(err, "get order %d for update", id)
	}
	return o, nil
}

func (d *orderDBImplementation) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	page := normalizePage(f.Page)
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case f.SellerID != nil:
		rows, err = d.db.QueryContext(ctx, `
SELECT `+orderColumns+`
FROM orders o
JOIN fields fl ON fl.id = o.field_id
JOIN farms fa ON fa.id = fl.farm_id
WHERE fa.owner_id = $1
ORDER BY o.id DESC LIMIT $2 OFFSET $3`, *f.SellerID, page.Limit, page.Offset)
	case f.BuyerID != nil:
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+orderColumns+" FROM orders o WHERE o.user_id = $1 ORDER BY o.id DESC LIMIT $2 OFFSET $3",
			*f.BuyerID, page.Limit, page.Offset)
	default:
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+orderColumns+" FROM orders o ORDER BY o.id DESC LIMIT $1 OFFSET $2", page.Limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (d *orderDBImplementation) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = now() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order %d status: %w", id, err)
	}
	return checkAffected(res, "update order %d status", id)
}
