package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farm-market/internal/models"
)

type redemptionDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewRedemptionDB(dbConn *sql.DB) RedemptionDB {
	return &redemptionDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const redemptionColumns = "id, user_id, payout_method_id, coins, currency, fiat_amount, status, transfer_id, admin_note, processed_by, created_at, updated_at"

func scanRedemption(row interface{ Scan(...any) error }) (models.Redemption, error) {
	var (
		r           models.Redemption
		processedBy sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.UserID, &r.PayoutMethodID, &r.Coins, &r.Currency, &r.FiatAmount, &r.Status,
		&r.TransferID, &r.AdminNote, &processedBy, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return models.Redemption{}, err
	}
	if processedBy.Valid {
		id := processedBy.Int64
		r.ProcessedBy = &id
	}
	return r, nil
}

func (d *redemptionDBImplementation) CreateRedemption(ctx context.Context, tx *sql.Tx, r *models.Redemption) error {
	err := tx.QueryRowContext(ctx, `
INSERT INTO redemptions (user_id, payout_method_id, coins, currency, fiat_amount, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`,
		r.UserID, r.PayoutMethodID, r.Coins, r.Currency, r.FiatAmount, r.Status,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return wrapErr(err, "create redemption for user %d", r.UserID)
	}
	return nil
}

func (d *redemptionDBImplementation) GetRedemption(ctx context.Context, id int64) (models.Redemption, error) {
	r, err := scanRedemption(d.db.QueryRowContext(ctx, "SELECT "+redemptionColumns+" FROM redemptions WHERE id = $1", id))
	if err != nil {
		return models.Redemption{}, wrapErr(err, "get redemption %d", id)
	}
	return r, nil
}

func (d *redemptionDBImplementation) GetRedemptionForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Redemption, error) {
	r, err := scanRedemption(tx.QueryRowContext(ctx,
		"SELECT "+redemptionColumns+" FROM redemptions WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return models.Redemption{}, wrapErr(err, "get redemption %d for update", id)
	}
	return r, nil
}

func (d *redemptionDBImplementation) ListRedemptions(ctx context.Context, f RedemptionFilter) ([]models.Redemption, error) {
	page := normalizePage(f.Page)
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + redemptionColumns + " FROM redemptions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, page.Limit, page.Offset)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	out := []models.Redemption{}
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan redemption: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *redemptionDBImplementation) UpdateRedemption(ctx context.Context, tx *sql.Tx, r *models.Redemption) error {
	var processedBy sql.NullInt64
	if r.ProcessedBy != nil {
		processedBy = sql.NullInt64{Int64: *r.ProcessedBy, Valid: true}
	}
	err := tx.QueryRowContext(ctx, `
UPDATE redemptions
SET status = $1, transfer_id = $2, admin_note = $3, processed_by = $4, updated_at = now()
WHERE id = $5
RETURNING updated_at`,
		r.Status, r.TransferID, r.AdminNote, processedBy, r.ID,
	).Scan(&r.UpdatedAt)
	if err != nil {
		return wrapErr(err, "update redemption %d", r.ID)
	}
	return nil
}
