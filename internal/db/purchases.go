package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"
)

type purchaseDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewPurchaseDB(dbConn *sql.DB) PurchaseDB {
	return &purchaseDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

const purchaseColumns = "id, user_id, package_id, coins, amount, currency, provider_session_id, status, created_at, completed_at"

func scanPurchase(row interface{ Scan(...any) error }) (models.CoinPurchase, error) {
	var (
		p         models.CoinPurchase
		sessionID sql.NullString
		completed sql.NullTime
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &p.Coins, &p.Amount, &p.Currency, &sessionID,
		&p.Status, &p.CreatedAt, &completed)
	if err != nil {
		return models.CoinPurchase{}, err
	}
	p.ProviderSessionID = sessionID.String
	if completed.Valid {
		t := completed.Time
		p.CompletedAt = &t
	}
	return p, nil
}

func (c *purchaseDBImplementation) CreatePurchase(ctx context.Context, p *models.CoinPurchase) error {
	err := c.db.QueryRowContext(ctx, `
INSERT INTO coin_purchases (user_id, package_id, coins, amount, currency, status)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		p.UserID, p.PackageID, p.Coins, p.Amount, p.Currency, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert coin purchase: %w", err)
	}
	return nil
}

func (c *purchaseDBImplementation) SetPurchaseSession(ctx context.Context, id int64, sessionID string) error {
	res, err := c.db.ExecContext(ctx, "UPDATE coin_purchases SET provider_session_id = $1 WHERE id = $2", sessionID, id)
	if err != nil {
		return wrapErr(err, "set session for purchase %d", id)
	}
	return checkAffected(res, "set session for purchase %d", id)
}

func (c *purchaseDBImplementation) MarkPurchaseFailed(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, "UPDATE coin_purchases SET status = 'failed' WHERE id = $1 AND status = 'pending'", id)
	if err != nil {
		return fmt.Errorf("failed to mark purchase %d failed: %w", id, err)
	}
	return nil
}

func (c *purchaseDBImplementation) GetPurchaseBySessionForUpdate(ctx context.Context, tx *sql.Tx, sessionID string) (models.CoinPurchase, error) {
	p, err := scanPurchase(tx.QueryRowContext(ctx,
		"SELECT "+purchaseColumns+" FROM coin_purchases WHERE provider_session_id = $1 FOR UPDATE", sessionID))
	if err != nil {
		return models.CoinPurchase{}, wrapErr(err, "get purchase by session %q", sessionID)
	}
	return p, nil
}

func (c *purchaseDBImplementation) CompletePurchase(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE coin_purchases SET status = 'completed', completed_at = now() WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to complete purchase %d: %w", id, err)
	}
	return checkAffected(res, "complete purchase %d", id)
}

func (c *purchaseDBImplementation) FailPendingPurchase(ctx context.Context, tx *sql.Tx, sessionID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE coin_purchases SET status = 'failed' WHERE provider_session_id = $1 AND status = 'pending'", sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to fail purchase for session %q: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (c *purchaseDBImplementation) ListPurchases(ctx context.Context, userID int64, page Page) ([]models.CoinPurchase, error) {
	page = normalizePage(page)
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+purchaseColumns+" FROM coin_purchases WHERE user_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3",
		userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	out := []models.CoinPurchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordEvent stores a provider event id. It reports false when the event was
// already seen.
func (c *purchaseDBImplementation) RecordEvent(ctx context.Context, tx *sql.Tx, eventID, eventType string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO payment_events (event_id, type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING", eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record payment event %q: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}
