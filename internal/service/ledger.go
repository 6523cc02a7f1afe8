package service

import (
	"context"
	"database/sql"
	"fmt"

	"farm-market/internal/db"
	"farm-market/internal/metrics"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

// Entry describes the ledger row written alongside a balance change.
type Entry struct {
	Type        string
	Reference   string
	Description string
}

// Ledger mutates wallets inside a transaction owned by the caller. Every call
// locks the user row, validates the result and appends a coin_transactions row.
type Ledger interface {
	Lock(ctx context.Context, tx *sql.Tx, userIDs ...int64) error
	Credit(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error)
	Debit(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error)
	Reserve(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error)
	Release(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error)
	ConsumeReserved(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error)
}

type coinLedger struct {
	dbProv db.LedgerDB
	log    pkg.Logger
}

func NewLedger(dbProv db.LedgerDB, log pkg.Logger) Ledger {
	return &coinLedger{dbProv: dbProv, log: log}
}

// Lock takes the row locks of several wallets up front in a stable order.
func (l *coinLedger) Lock(ctx context.Context, tx *sql.Tx, userIDs ...int64) error {
	if err := l.dbProv.LockUsers(ctx, tx, userIDs); err != nil {
		return fromDB(err)
	}
	return nil
}

func (l *coinLedger) Credit(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error) {
	return l.apply(ctx, tx, userID, amount, 0, amount, e)
}

func (l *coinLedger) Debit(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error) {
	return l.apply(ctx, tx, userID, -amount, 0, amount, e)
}

func (l *coinLedger) Reserve(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error) {
	return l.apply(ctx, tx, userID, 0, amount, amount, e)
}

func (l *coinLedger) Release(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error) {
	return l.apply(ctx, tx, userID, 0, -amount, amount, e)
}

func (l *coinLedger) ConsumeReserved(ctx context.Context, tx *sql.Tx, userID, amount int64, e Entry) (models.Balance, error) {
	return l.apply(ctx, tx, userID, -amount, -amount, amount, e)
}

func (l *coinLedger) apply(ctx context.Context, tx *sql.Tx, userID, delta, lockedDelta, amount int64, e Entry) (models.Balance, error) {
	if amount <= 0 {
		return models.Balance{}, invalidInput("amount must be positive, got %d", amount)
	}

	b, err := l.dbProv.GetBalanceForUpdate(ctx, tx, userID)
	if err != nil {
		l.log.Error("failed to get user coins for update", zap.Int64("userID", userID), zap.Error(err))
		return models.Balance{}, fromDB(err)
	}

	next := b
	next.Coins += delta
	next.LockedCoins += lockedDelta
	if next.LockedCoins < 0 {
		l.log.Error("locked coins underflow",
			zap.Int64("userID", userID), zap.Int64("locked", b.LockedCoins), zap.Int64("delta", lockedDelta))
		return models.Balance{}, fmt.Errorf("locked coins underflow for user %d", userID)
	}
	if next.Coins < 0 || next.LockedCoins > next.Coins {
		return models.Balance{}, ErrNotEnoughCoins
	}

	if err := l.dbProv.SetBalance(ctx, tx, next); err != nil {
		l.log.Error("failed to update user coins", zap.Int64("userID", userID), zap.Error(err))
		return models.Balance{}, fromDB(err)
	}

	entry := &models.CoinTransaction{
		UserID:       userID,
		Type:         e.Type,
		Amount:       delta,
		LockedDelta:  lockedDelta,
		BalanceAfter: next.Coins,
		LockedAfter:  next.LockedCoins,
		Reference:    e.Reference,
		Description:  e.Description,
	}
	if err := l.dbProv.InsertTransaction(ctx, tx, entry); err != nil {
		l.log.Error("failed to insert transaction", zap.Int64("userID", userID), zap.String("type", e.Type), zap.Error(err))
		return models.Balance{}, err
	}
	metrics.CoinsMoved(e.Type, amount)
	return next, nil
}
