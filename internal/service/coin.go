package service

import (
	"context"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type AdjustInput struct {
	UserID int64
	Amount int64
	Reason string
}

type CoinService interface {
	GetBalance(ctx context.Context, userID int64) (models.Balance, error)
	ListTransactions(ctx context.Context, userID int64, page db.Page) ([]models.CoinTransaction, error)
	ListPackages(ctx context.Context) ([]models.CoinPackage, error)
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	Adjust(ctx context.Context, actor Actor, in AdjustInput) (models.Balance, error)
}

type coinService struct {
	ledgerDB db.LedgerDB
	catalog  db.CatalogDB
	ledger   Ledger
	log      pkg.Logger
}

func NewCoinService(ledgerDB db.LedgerDB, catalog db.CatalogDB, ledger Ledger, log pkg.Logger) CoinService {
	return &coinService{ledgerDB: ledgerDB, catalog: catalog, ledger: ledger, log: log}
}

func (s *coinService) GetBalance(ctx context.Context, userID int64) (models.Balance, error) {
	b, err := s.ledgerDB.GetBalance(ctx, userID)
	if err != nil {
		s.log.Error("failed to get user coins", zap.Int64("userID", userID), zap.Error(err))
		return models.Balance{}, fromDB(err)
	}
	return b, nil
}

func (s *coinService) ListTransactions(ctx context.Context, userID int64, page db.Page) ([]models.CoinTransaction, error) {
	txs, err := s.ledgerDB.ListTransactions(ctx, userID, page)
	if err != nil {
		s.log.Error("failed to get transactions", zap.Int64("userID", userID), zap.Error(err))
		return nil, err
	}
	return txs, nil
}

func (s *coinService) ListPackages(ctx context.Context) ([]models.CoinPackage, error) {
	return s.catalog.ListPackages(ctx)
}

func (s *coinService) ListCurrencies(ctx context.Context) ([]models.Currency, error) {
	return s.catalog.ListCurrencies(ctx)
}

// Adjust credits a positive amount or debits a negative one. A debit may not
// dip into locked coins.
func (s *coinService) Adjust(ctx context.Context, actor Actor, in AdjustInput) (models.Balance, error) {
	if !actor.IsAdmin() {
		return models.Balance{}, ErrForbidden
	}
	if in.Amount == 0 {
		return models.Balance{}, invalidInput("amount must not be zero")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return models.Balance{}, invalidInput("reason is required")
	}

	tx, err := s.ledgerDB.BeginTx(ctx)
	if err != nil {
		return models.Balance{}, err
	}
	defer rollback(tx, s.log)

	e := Entry{Type: models.TxAdjust, Reference: "admin:" + formatID(actor.UserID), Description: reason}
	var b models.Balance
	if in.Amount > 0 {
		b, err = s.ledger.Credit(ctx, tx, in.UserID, in.Amount, e)
	} else {
		b, err = s.ledger.Debit(ctx, tx, in.UserID, -in.Amount, e)
	}
	if err != nil {
		return models.Balance{}, err
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit balance adjustment", zap.Int64("userID", in.UserID), zap.Error(err))
		return models.Balance{}, err
	}
	s.log.Info("Balance adjusted",
		zap.Int64("userID", in.UserID),
		zap.Int64("amount", in.Amount),
		zap.Int64("by", actor.UserID))
	return b, nil
}
