package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"
)

type payoutDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewPayoutDB(dbConn *sql.DB) PayoutDB {
	return &payoutDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const payoutColumns = "id, user_id, kind, account_ref, label, is_default, created_at"

func scanPayoutMethod(row interface{ Scan(...any) error }) (models.PayoutMethod, error) {
	var m models.PayoutMethod
	err := row.Scan(&m.ID, &m.UserID, &m.Kind, &m.AccountRef, &m.Label, &m.IsDefault, &m.CreatedAt)
	return m, err
}

func (p *payoutDBImplementation) CreatePayoutMethod(ctx context.Context, tx *sql.Tx, m *models.PayoutMethod) error {
	err := tx.QueryRowContext(ctx, `
INSERT INTO payout_methods (user_id, kind, account_ref, label, is_default)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		m.UserID, m.Kind, m.AccountRef, m.Label, m.IsDefault,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return wrapErr(err, "create payout method for user %d", m.UserID)
	}
	return nil
}

func (p *payoutDBImplementation) ClearDefaultPayoutMethod(ctx context.Context, tx *sql.Tx, userID int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE payout_methods SET is_default = FALSE WHERE user_id = $1 AND is_default AND deleted_at IS NULL", userID)
	if err != nil {
		return fmt.Errorf("failed to clear default payout method: %w", err)
	}
	return nil
}

func (p *payoutDBImplementation) SetDefaultPayoutMethod(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE payout_methods SET is_default = TRUE WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return fmt.Errorf("failed to set default payout method: %w", err)
	}
	return checkAffected(res, "set default payout method %d", id)
}

func (p *payoutDBImplementation) GetPayoutMethod(ctx context.Context, id int64) (models.PayoutMethod, error) {
	m, err := scanPayoutMethod(p.db.QueryRowContext(ctx, "SELECT "+payoutColumns+" FROM payout_methods WHERE id = $1 AND deleted_at IS NULL", id))
	if err != nil {
		return models.PayoutMethod{}, wrapErr(err, "get payout method %d", id)
	}
	return m, nil
}

func (p *payoutDBImplementation) ListPayoutMethods(ctx context.Context, userID int64) ([]models.PayoutMethod, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT "+payoutColumns+" FROM payout_methods WHERE user_id = $1 AND deleted_at IS NULL ORDER BY is_default DESC, id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payout methods: %w", err)
	}
	defer rows.Close()

	out := []models.PayoutMethod{}
	for rows.Next() {
		m, err := scanPayoutMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeletePayoutMethod retires a method. The row stays for the redemptions that
// reference it but is hidden from every other query.
func (p *payoutDBImplementation) DeletePayoutMethod(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx,
		"UPDATE payout_methods SET deleted_at = now(), is_default = FALSE WHERE id = $1 AND deleted_at IS NULL", id)
	if err != nil {
		return wrapErr(err, "delete payout method %d", id)
	}
	return checkAffected(res, "delete payout method %d", id)
}

func (p *payoutDBImplementation) CountPendingRedemptions(ctx context.Context, payoutMethodID int64) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx,
		"SELECT count(*) FROM redemptions WHERE payout_method_id = $1 AND status = 'pending'", payoutMethodID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending redemptions: %w", err)
	}
	return n, nil
}
