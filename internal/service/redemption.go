package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/metrics"
	"farm-market/internal/models"
	"farm-market/internal/payment"
	"farm-market/pkg"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type RedemptionInput struct {
	Coins          int64
	Currency       string
	PayoutMethodID int64
}

type RedemptionService interface {
	Request(ctx context.Context, actor Actor, in RedemptionInput) (models.Redemption, error)
	Get(ctx context.Context, actor Actor, id int64) (models.Redemption, error)
	List(ctx context.Context, actor Actor, status string, page db.Page) ([]models.Redemption, error)
	Cancel(ctx context.Context, actor Actor, id int64) (models.Redemption, error)
	Approve(ctx context.Context, actor Actor, id int64) (models.Redemption, error)
	Reject(ctx context.Context, actor Actor, id int64, note string) (models.Redemption, error)
}

type redemptionService struct {
	redemptions db.RedemptionDB
	payouts     db.PayoutDB
	catalog     db.CatalogDB
	ledger      Ledger
	provider    payment.Provider
	log         pkg.Logger
	minCoins    int64
}

func NewRedemptionService(redemptions db.RedemptionDB, payouts db.PayoutDB, catalog db.CatalogDB, ledger Ledger,
	provider payment.Provider, log pkg.Logger, minCoins int64) RedemptionService {
	return &redemptionService{
		redemptions: redemptions,
		payouts:     payouts,
		catalog:     catalog,
		ledger:      ledger,
		provider:    provider,
		log:         log,
		minCoins:    minCoins,
	}
}

func redemptionRef(id int64) string {
	return fmt.Sprintf("redemption:%d", id)
}

// fiatFor converts coins at the currency rate, rounding down to cents.
func fiatFor(coins int64, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(coins).Mul(rate).RoundFloor(2)
}

func (s *redemptionService) Request(ctx context.Context, actor Actor, in RedemptionInput) (models.Redemption, error) {
	if in.Coins < s.minCoins {
		return models.Redemption{}, invalidInput("at least %d coins must be redeemed", s.minCoins)
	}
	cur, err := s.catalog.GetCurrency(ctx, in.Currency)
	if err != nil {
		return models.Redemption{}, invalidInput("unsupported currency %q", in.Currency)
	}
	if !cur.Active {
		return models.Redemption{}, invalidInput("currency %q is not active", cur.Code)
	}
	method, err := s.payouts.GetPayoutMethod(ctx, in.PayoutMethodID)
	if err != nil || method.UserID != actor.UserID {
		return models.Redemption{}, invalidInput("unknown payout method %d", in.PayoutMethodID)
	}
	if method.Kind != models.PayoutStripeAccount {
		return models.Redemption{}, invalidInput("payout method %d cannot receive transfers", method.ID)
	}
	fiat := fiatFor(in.Coins, cur.CoinRate)
	if payment.MinorUnits(fiat, cur.Code) <= 0 {
		return models.Redemption{}, invalidInput("redemption is worth less than the smallest %s unit", cur.Code)
	}

	tx, err := s.redemptions.BeginTx(ctx)
	if err != nil {
		return models.Redemption{}, err
	}
	defer rollback(tx, s.log)

	r := models.Redemption{
		UserID:         actor.UserID,
		PayoutMethodID: method.ID,
		Coins:          in.Coins,
		Currency:       cur.Code,
		FiatAmount:     fiat,
		Status:         models.RedemptionPending,
	}
	if err := s.redemptions.CreateRedemption(ctx, tx, &r); err != nil {
		s.log.Error("failed to create redemption", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Redemption{}, fromDB(err)
	}
	if _, err := s.ledger.Reserve(ctx, tx, actor.UserID, in.Coins, Entry{
		Type:        models.TxRedeemLock,
		Reference:   redemptionRef(r.ID),
		Description: fmt.Sprintf("redeem %d coins for %s %s", in.Coins, fiat.StringFixed(2), strings.ToUpper(cur.Code)),
	}); err != nil {
		return models.Redemption{}, err
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit redemption", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Redemption{}, err
	}
	s.log.Info("Redemption requested",
		zap.Int64("redemptionID", r.ID),
		zap.Int64("userID", actor.UserID),
		zap.Int64("coins", r.Coins),
		zap.String("fiat", fiat.String()))
	return r, nil
}

func (s *redemptionService) Get(ctx context.Context, actor Actor, id int64) (models.Redemption, error) {
	r, err := s.redemptions.GetRedemption(ctx, id)
	if err != nil {
		return models.Redemption{}, fromDB(err)
	}
	if r.UserID != actor.UserID && !actor.IsAdmin() {
		return models.Redemption{}, ErrForbidden
	}
	return r, nil
}

func (s *redemptionService) List(ctx context.Context, actor Actor, status string, page db.Page) ([]models.Redemption, error) {
	f := db.RedemptionFilter{Status: status, Page: page}
	if !actor.IsAdmin() {
		f.UserID = &actor.UserID
	}
	out, err := s.redemptions.ListRedemptions(ctx, f)
	if err != nil {
		s.log.Error("failed to list redemptions", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// release returns the reserved coins of a pending redemption and moves it to
// the given terminal status.
func (s *redemptionService) release(ctx context.Context, tx *sql.Tx, r *models.Redemption, status, desc string) error {
	if _, err := s.ledger.Release(ctx, tx, r.UserID, r.Coins, Entry{
		Type:        models.TxRedeemUnlock,
		Reference:   redemptionRef(r.ID),
		Description: desc,
	}); err != nil {
		return err
	}
	r.Status = status
	return fromDB(s.redemptions.UpdateRedemption(ctx, tx, r))
}

func (s *redemptionService) Cancel(ctx context.Context, actor Actor, id int64) (models.Redemption, error) {
	tx, err := s.redemptions.BeginTx(ctx)
	if err != nil {
		return models.Redemption{}, err
	}
	defer rollback(tx, s.log)

	r, err := s.redemptions.GetRedemptionForUpdate(ctx, tx, id)
	if err != nil {
		return models.Redemption{}, fromDB(err)
	}
	if r.UserID != actor.UserID {
		return models.Redemption{}, ErrForbidden
	}
	if r.Status != models.RedemptionPending {
		return models.Redemption{}, fmt.Errorf("%w: redemption is %s", ErrInvalidTransition, r.Status)
	}
	if err := s.release(ctx, tx, &r, models.RedemptionCancelled, "redemption cancelled"); err != nil {
		return models.Redemption{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Redemption{}, err
	}
	s.log.Info("Redemption cancelled", zap.Int64("redemptionID", r.ID), zap.Int64("userID", r.UserID))
	return r, nil
}

func (s *redemptionService) Reject(ctx context.Context, actor Actor, id int64, note string) (models.Redemption, error) {
	if !actor.IsAdmin() {
		return models.Redemption{}, ErrForbidden
	}
	tx, err := s.redemptions.BeginTx(ctx)
	if err != nil {
		return models.Redemption{}, err
	}
	defer rollback(tx, s.log)

	r, err := s.redemptions.GetRedemptionForUpdate(ctx, tx, id)
	if err != nil {
		return models.Redemption{}, fromDB(err)
	}
	if r.Status != models.RedemptionPending {
		return models.Redemption{}, fmt.Errorf("%w: redemption is %s", ErrInvalidTransition, r.Status)
	}
	r.AdminNote = strings.TrimSpace(note)
	r.ProcessedBy = &actor.UserID
	if err := s.release(ctx, tx, &r, models.RedemptionRejected, "redemption rejected"); err != nil {
		return models.Redemption{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Redemption{}, err
	}
	s.log.Info("Redemption rejected", zap.Int64("redemptionID", r.ID), zap.Int64("by", actor.UserID))
	return r, nil
}

// Approve pays a pending redemption out through the provider. The redemption
// row stays locked for the duration of the transfer call, and the transfer is
// keyed by redemption id so a retried approval cannot pay twice.
func (s *redemptionService) Approve(ctx context.Context, actor Actor, id int64) (models.Redemption, error) {
	if !actor.IsAdmin() {
		return models.Redemption{}, ErrForbidden
	}
	tx, err := s.redemptions.BeginTx(ctx)
	if err != nil {
		return models.Redemption{}, err
	}
	defer rollback(tx, s.log)

	r, err := s.redemptions.GetRedemptionForUpdate(ctx, tx, id)
	if err != nil {
		return models.Redemption{}, fromDB(err)
	}
	if r.Status == models.RedemptionPaid {
		return r, nil
	}
	if r.Status != models.RedemptionPending {
		return models.Redemption{}, fmt.Errorf("%w: redemption is %s", ErrInvalidTransition, r.Status)
	}
	method, err := s.payouts.GetPayoutMethod(ctx, r.PayoutMethodID)
	if err != nil {
		return models.Redemption{}, fromDB(err)
	}

	transfer, tErr := s.provider.CreateTransfer(ctx, payment.TransferRequest{
		Amount:         r.FiatAmount,
		Currency:       r.Currency,
		Destination:    method.AccountRef,
		IdempotencyKey: fmt.Sprintf("redemption-%d", r.ID),
		Metadata: map[string]string{
			"redemption_id": formatID(r.ID),
			"user_id":       formatID(r.UserID),
		},
	})
	metrics.ProviderCall("transfer", tErr)
	r.ProcessedBy = &actor.UserID

	if tErr != nil {
		s.log.Error("payout transfer failed", zap.Int64("redemptionID", r.ID), zap.Error(tErr))
		r.AdminNote = tErr.Error()
		if err := s.release(ctx, tx, &r, models.RedemptionFailed, "payout failed"); err != nil {
			return models.Redemption{}, err
		}
		if err := tx.Commit(); err != nil {
			s.log.Error("failed to commit failed redemption", zap.Int64("redemptionID", r.ID), zap.Error(err))
			return models.Redemption{}, err
		}
		return r, fmt.Errorf("%w: %v", ErrPaymentProvider, tErr)
	}

	if _, err := s.ledger.ConsumeReserved(ctx, tx, r.UserID, r.Coins, Entry{
		Type:        models.TxRedeem,
		Reference:   redemptionRef(r.ID),
		Description: "paid out as transfer " + transfer.ID,
	}); err != nil {
		return models.Redemption{}, err
	}
	r.Status = models.RedemptionPaid
	r.TransferID = transfer.ID
	if err := s.redemptions.UpdateRedemption(ctx, tx, &r); err != nil {
		return models.Redemption{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit paid redemption",
			zap.Int64("redemptionID", r.ID), zap.String("transferID", transfer.ID), zap.Error(err))
		return models.Redemption{}, err
	}
	s.log.Info("Redemption paid",
		zap.Int64("redemptionID", r.ID),
		zap.Int64("userID", r.UserID),
		zap.String("transferID", transfer.ID),
		zap.Int64("by", actor.UserID))
	return r, nil
}
