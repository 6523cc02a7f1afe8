package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

var connectAccountRe = regexp.MustCompile(`^acct_[A-Za-z0-9]{6,}$`)

type PayoutMethodInput struct {
	AccountRef string
	Label      string
	IsDefault  bool
}

type PayoutService interface {
	AddMethod(ctx context.Context, actor Actor, in PayoutMethodInput) (models.PayoutMethod, error)
	ListMethods(ctx context.Context, actor Actor) ([]models.PayoutMethod, error)
	DeleteMethod(ctx context.Context, actor Actor, id int64) error
	SetDefault(ctx context.Context, actor Actor, id int64) (models.PayoutMethod, error)
}

type payoutService struct {
	payouts db.PayoutDB
	log     pkg.Logger
}

func NewPayoutService(payouts db.PayoutDB, log pkg.Logger) PayoutService {
	return &payoutService{payouts: payouts, log: log}
}

func (s *payoutService) AddMethod(ctx context.Context, actor Actor, in PayoutMethodInput) (models.PayoutMethod, error) {
	ref := strings.TrimSpace(in.AccountRef)
	if !connectAccountRe.MatchString(ref) {
		return models.PayoutMethod{}, invalidInput("account_ref must be a connected account id (acct_...)")
	}
	existing, err := s.payouts.ListPayoutMethods(ctx, actor.UserID)
	if err != nil {
		return models.PayoutMethod{}, err
	}

	tx, err := s.payouts.BeginTx(ctx)
	if err != nil {
		return models.PayoutMethod{}, err
	}
	defer rollback(tx, s.log)

	m := models.PayoutMethod{
		UserID:     actor.UserID,
		Kind:       models.PayoutStripeAccount,
		AccountRef: ref,
		Label:      strings.TrimSpace(in.Label),
		IsDefault:  in.IsDefault || len(existing) == 0,
	}
	if m.IsDefault {
		if err := s.payouts.ClearDefaultPayoutMethod(ctx, tx, actor.UserID); err != nil {
			return models.PayoutMethod{}, err
		}
	}
	if err := s.payouts.CreatePayoutMethod(ctx, tx, &m); err != nil {
		s.log.Warn("failed to create payout method", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.PayoutMethod{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		return models.PayoutMethod{}, err
	}
	s.log.Info("Payout method added", zap.Int64("userID", actor.UserID), zap.Int64("methodID", m.ID))
	return m, nil
}

func (s *payoutService) ListMethods(ctx context.Context, actor Actor) ([]models.PayoutMethod, error) {
	return s.payouts.ListPayoutMethods(ctx, actor.UserID)
}

func (s *payoutService) owned(ctx context.Context, actor Actor, id int64) (models.PayoutMethod, error) {
	m, err := s.payouts.GetPayoutMethod(ctx, id)
	if err != nil {
		return models.PayoutMethod{}, fromDB(err)
	}
	if m.UserID != actor.UserID {
		return models.PayoutMethod{}, ErrNotFound
	}
	return m, nil
}

func (s *payoutService) DeleteMethod(ctx context.Context, actor Actor, id int64) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	n, err := s.payouts.CountPendingRedemptions(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: payout method has %d pending redemptions", ErrConflict, n)
	}
	if err := s.payouts.DeletePayoutMethod(ctx, id); err != nil {
		return fromDB(err)
	}
	s.log.Info("Payout method deleted", zap.Int64("userID", actor.UserID), zap.Int64("methodID", id))
	return nil
}

func (s *payoutService) SetDefault(ctx context.Context, actor Actor, id int64) (models.PayoutMethod, error) {
	m, err := s.owned(ctx, actor, id)
	if err != nil {
		return models.PayoutMethod{}, err
	}
	tx, err := s.payouts.BeginTx(ctx)
	if err != nil {
		return models.PayoutMethod{}, err
	}
	defer rollback(tx, s.log)

	if err := s.payouts.ClearDefaultPayoutMethod(ctx, tx, actor.UserID); err != nil {
		return models.PayoutMethod{}, err
	}
	if err := s.payouts.SetDefaultPayoutMethod(ctx, tx, id); err != nil {
		return models.PayoutMethod{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		return models.PayoutMethod{}, err
	}
	m.IsDefault = true
	return m, nil
}
