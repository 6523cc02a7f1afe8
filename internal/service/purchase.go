package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"farm-market/internal/db"
	"farm-market/internal/metrics"
	"farm-market/internal/models"
	"farm-market/internal/payment"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type CheckoutResult struct {
	PurchaseID  int64  `json:"purchase_id"`
	CheckoutURL string `json:"checkout_url"`
}

type PurchaseService interface {
	Checkout(ctx context.Context, actor Actor, packageID int64) (CheckoutResult, error)
	ListPurchases(ctx context.Context, actor Actor, page db.Page) ([]models.CoinPurchase, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type purchaseService struct {
	purchases  db.PurchaseDB
	catalog    db.CatalogDB
	ledger     Ledger
	provider   payment.Provider
	log        pkg.Logger
	successURL string
	cancelURL  string
}

func NewPurchaseService(purchases db.PurchaseDB, catalog db.CatalogDB, ledger Ledger, provider payment.Provider,
	log pkg.Logger, successURL, cancelURL string) PurchaseService {
	return &purchaseService{
		purchases:  purchases,
		catalog:    catalog,
		ledger:     ledger,
		provider:   provider,
		log:        log,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func purchaseRef(id int64) string {
	return fmt.Sprintf("purchase:%d", id)
}

func (s *purchaseService) Checkout(ctx context.Context, actor Actor, packageID int64) (CheckoutResult, error) {
	pkgRow, err := s.catalog.GetPackage(ctx, packageID)
	if err != nil {
		return CheckoutResult{}, fromDB(err)
	}
	if !pkgRow.Active {
		return CheckoutResult{}, fmt.Errorf("%w: coin package %d is not on sale", ErrNotFound, packageID)
	}

	p := models.CoinPurchase{
		UserID:    actor.UserID,
		PackageID: pkgRow.ID,
		Coins:     pkgRow.Coins,
		Amount:    pkgRow.Price,
		Currency:  pkgRow.Currency,
		Status:    models.PurchasePending,
	}
	if err := s.purchases.CreatePurchase(ctx, &p); err != nil {
		s.log.Error("failed to create purchase", zap.Int64("userID", actor.UserID), zap.Error(err))
		return CheckoutResult{}, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		PurchaseID:  p.ID,
		UserID:      actor.UserID,
		ProductName: fmt.Sprintf("%s (%d coins)", pkgRow.Name, pkgRow.Coins),
		Amount:      pkgRow.Price,
		Currency:    pkgRow.Currency,
		SuccessURL:  s.successURL,
		CancelURL:   s.cancelURL,
	})
	metrics.ProviderCall("checkout", err)
	if err != nil {
		if mErr := s.purchases.MarkPurchaseFailed(ctx, p.ID); mErr != nil {
			s.log.Error("failed to mark purchase failed", zap.Int64("purchaseID", p.ID), zap.Error(mErr))
		}
		return CheckoutResult{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}
	if err := s.purchases.SetPurchaseSession(ctx, p.ID, session.ID); err != nil {
		s.log.Error("failed to store checkout session", zap.Int64("purchaseID", p.ID), zap.Error(err))
		return CheckoutResult{}, err
	}

	s.log.Info("Checkout started",
		zap.Int64("purchaseID", p.ID),
		zap.Int64("userID", actor.UserID),
		zap.String("session", session.ID))
	return CheckoutResult{PurchaseID: p.ID, CheckoutURL: session.URL}, nil
}

func (s *purchaseService) ListPurchases(ctx context.Context, actor Actor, page db.Page) ([]models.CoinPurchase, error) {
	out, err := s.purchases.ListPurchases(ctx, actor.UserID, page)
	if err != nil {
		s.log.Error("failed to list purchases", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

// HandleWebhook applies one provider event. The event id is recorded in the
// same transaction as its effects, so a replay or a concurrent duplicate
// delivery changes nothing.
func (s *purchaseService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn("rejected webhook", zap.Error(err))
		metrics.WebhookEvent("unknown", "invalid")
		if errors.Is(err, payment.ErrInvalidSignature) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return err
	}

	tx, err := s.purchases.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer rollback(tx, s.log)

	fresh, err := s.purchases.RecordEvent(ctx, tx, evt.ID, evt.Type)
	if err != nil {
		s.log.Error("failed to record payment event", zap.String("eventID", evt.ID), zap.Error(err))
		return err
	}
	if !fresh {
		s.log.Info("Duplicate webhook event ignored", zap.String("eventID", evt.ID), zap.String("type", evt.Type))
		metrics.WebhookEvent(evt.Type, "duplicate")
		return nil
	}

	outcome := "ignored"
	switch evt.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSucceeded:
		if evt.PaymentStatus != "paid" {
			break
		}
		credited, err := s.completePurchase(ctx, tx, evt.SessionID)
		if err != nil {
			return err
		}
		if credited {
			outcome = "credited"
		}
	case payment.EventCheckoutExpired, payment.EventCheckoutAsyncPaymentFailed:
		failed, err := s.purchases.FailPendingPurchase(ctx, tx, evt.SessionID)
		if err != nil {
			return err
		}
		if failed {
			outcome = "failed"
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit webhook", zap.String("eventID", evt.ID), zap.Error(err))
		return err
	}
	metrics.WebhookEvent(evt.Type, outcome)
	s.log.Info("Webhook processed",
		zap.String("eventID", evt.ID),
		zap.String("type", evt.Type),
		zap.String("outcome", outcome))
	return nil
}

func (s *purchaseService) completePurchase(ctx context.Context, tx *sql.Tx, sessionID string) (bool, error) {
	p, err := s.purchases.GetPurchaseBySessionForUpdate(ctx, tx, sessionID)
	if err != nil {
		s.log.Warn("webhook for unknown checkout session", zap.String("session", sessionID), zap.Error(err))
		return false, fromDB(err)
	}
	if p.Status == models.PurchaseCompleted {
		return false, nil
	}
	if _, err := s.ledger.Credit(ctx, tx, p.UserID, p.Coins, Entry{
		Type:        models.TxPurchase,
		Reference:   purchaseRef(p.ID),
		Description: fmt.Sprintf("bought %d coins", p.Coins),
	}); err != nil {
		return false, err
	}
	if err := s.purchases.CompletePurchase(ctx, tx, p.ID); err != nil {
		return false, fromDB(err)
	}
	s.log.Info("Purchase completed",
		zap.Int64("purchaseID", p.ID),
		zap.Int64("userID", p.UserID),
		zap.Int64("coins", p.Coins))
	return true, nil
}
