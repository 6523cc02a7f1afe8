package db

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/models"

	"github.com/lib/pq"
)

type ledgerDBImplementation struct {
	txStarter
	db *sql.DB
}

func NewLedgerDB(dbConn *sql.DB) LedgerDB {
	return &ledgerDBImplementation{txStarter: txStarter{db: dbConn}, db: dbConn}
}

func (c *ledgerDBImplementation) GetBalanceForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (models.Balance, error) {
	b := models.Balance{UserID: userID}
	err := tx.QueryRowContext(ctx, "SELECT coins, locked_coins FROM users WHERE id = $1 FOR UPDATE", userID).
		Scan(&b.Coins, &b.LockedCoins)
	if err != nil {
		return models.Balance{}, wrapErr(err, "get coins for user %d", userID)
	}
	return b, nil
}

// LockUsers takes row locks on several users in id order, so two transactions
// touching the same pair of wallets cannot deadlock.
func (c *ledgerDBImplementation) LockUsers(ctx context.Context, tx *sql.Tx, userIDs []int64) error {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE", pq.Array(userIDs))
	if err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}
	defer rows.Close()

	found := 0
	for rows.Next() {
		found++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock users: %w", err)
	}
	if found != len(uniqueIDs(userIDs)) {
		return fmt.Errorf("lock users %v: %w", userIDs, ErrNotFound)
	}
	return nil
}

func (c *ledgerDBImplementation) SetBalance(ctx context.Context, tx *sql.Tx, b models.Balance) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET coins = $1, locked_coins = $2 WHERE id = $3",
		b.Coins, b.LockedCoins, b.UserID)
	if err != nil {
		return fmt.Errorf("failed to update coins: %w", err)
	}
	return checkAffected(res, "update coins for user %d", b.UserID)
}

func (c *ledgerDBImplementation) InsertTransaction(ctx context.Context, tx *sql.Tx, t *models.CoinTransaction) error {
	err := tx.QueryRowContext(ctx, `
INSERT INTO coin_transactions (user_id, type, amount, locked_delta, balance_after, locked_after, reference, description)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`,
		t.UserID, t.Type, t.Amount, t.LockedDelta, t.BalanceAfter, t.LockedAfter, t.Reference, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (c *ledgerDBImplementation) GetBalance(ctx context.Context, userID int64) (models.Balance, error) {
	b := models.Balance{UserID: userID}
	err := c.db.QueryRowContext(ctx, "SELECT coins, locked_coins FROM users WHERE id = $1", userID).
		Scan(&b.Coins, &b.LockedCoins)
	if err != nil {
		return models.Balance{}, wrapErr(err, "get user coins %d", userID)
	}
	return b, nil
}

func (c *ledgerDBImplementation) ListTransactions(ctx context.Context, userID int64, page Page) ([]models.CoinTransaction, error) {
	page = normalizePage(page)
	rows, err := c.db.QueryContext(ctx, `
SELECT id, user_id, type, amount, locked_delta, balance_after, locked_after, reference, description, created_at
FROM coin_transactions
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	trans := []models.CoinTransaction{}
	for rows.Next() {
		var t models.CoinTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.LockedDelta, &t.BalanceAfter,
			&t.LockedAfter, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		trans = append(trans, t)
	}
	return trans, rows.Err()
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
