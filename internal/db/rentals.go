package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"farm-market/internal/models"
)

type rentalDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewRentalDB(dbConn *sql.DB) RentalDB {
	return &rentalDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const rentalColumns = "r.id, r.field_id, r.user_id, r.start_date, r.end_date, r.total_coins, r.status, r.created_at"

func scanRental(row interface{ Scan(...any) error }) (models.Rental, error) {
	var r models.Rental
	err := row.Scan(&r.ID, &r.FieldID, &r.UserID, &r.StartDate, &r.EndDate, &r.TotalCoins, &r.Status, &r.CreatedAt)
	return r, err
}

func (d *rentalDBImplementation) CreateRental(ctx context.Context, tx *sql.Tx, r *models.Rental) error {
	err := tx.QueryRowContext(ctx, `
INSERT INTO rentals (field_id, user_id, start_date, end_date, total_coins, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		r.FieldID, r.UserID, r.StartDate, r.EndDate, r.TotalCoins, r.Status,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return wrapErr(err, "create rental")
	}
	return nil
}

func (d *rentalDBImplementation) GetRental(ctx context.Context, id int64) (models.Rental, error) {
	r, err := scanRental(d.db.QueryRowContext(ctx, "SELECT "+rentalColumns+" FROM rentals r WHERE r.id = $1", id))
	if err != nil {
		return models.Rental{}, wrapErr(err, "get rental %d", id)
	}
	return r, nil
}

func (d *rentalDBImplementation) GetRentalForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Rental, error) {
	r, err := scanRental(tx.QueryRowContext(ctx, "SELECT "+rentalColumns+" FROM rentals r WHERE r.id = $1 FOR UPDATE", id))
	if err != nil {
		return models.Rental{}, wrapErr(err, "get rental %d for update", id)
	}
	return r, nil
}

// HasOverlappingRental must run after the field row is locked, otherwise two
// concurrent bookings can both see a free calendar.
func (d *rentalDBImplementation) HasOverlappingRental(ctx context.Context, tx *sql.Tx, fieldID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
SELECT EXISTS (
    SELECT 1 FROM rentals
    WHERE field_id = $1 AND status = 'active' AND start_date <= $3 AND end_date >= $2
)`, fieldID, start, end).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rental overlap: %w", err)
	}
	return exists, nil
}

func (d *rentalDBImplementation) ListRentals(ctx context.Context, f RentalFilter) ([]models.Rental, error) {
	page := normalizePage(f.Page)
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case f.OwnerID != nil:
		rows, err = d.db.QueryContext(ctx, `
SELECT `+rentalColumns+`
FROM rentals r
JOIN fields fl ON fl.id = r.field_id
JOIN farms fa ON fa.id = fl.farm_id
WHERE fa.owner_id = $1
ORDER BY r.id DESC LIMIT $2 OFFSET $3`, *f.OwnerID, page.Limit, page.Offset)
	case f.UserID != nil:
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+rentalColumns+" FROM rentals r WHERE r.user_id = $1 ORDER BY r.id DESC LIMIT $2 OFFSET $3",
			*f.UserID, page.Limit, page.Offset)
	default:
		rows, err = d.db.QueryContext(ctx,
			"SELECT "+rentalColumns+" FROM rentals r ORDER BY r.id DESC LIMIT $1 OFFSET $2", page.Limit, page.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	defer rows.Close()

	out := []models.Rental{}
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *rentalDBImplementation) UpdateRentalStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	res, err := tx.ExecContext(ctx, "UPDATE rentals SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update rental %d status: %w", id, err)
	}
	return checkAffected(res, "update rental %d status", id)
}
