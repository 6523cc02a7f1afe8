package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"farm-market/pkg"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
	log           pkg.Logger
}

func NewStripeProvider(secretKey, webhookSecret string, log pkg.Logger) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret, log: log}
}

var _ Provider = (*StripeProvider)(nil)

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(req.PurchaseID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount, currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.ProductName),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata("purchase_id", strconv.FormatInt(req.PurchaseID, 10))
	params.AddMetadata("user_id", strconv.FormatInt(req.UserID, 10))
	params.SetIdempotencyKey(fmt.Sprintf("purchase-%d", req.PurchaseID))

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		p.log.Error("stripe checkout session failed", zap.Int64("purchaseID", req.PurchaseID), zap.Error(err))
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (p *StripeProvider) CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(MinorUnits(req.Amount, currency)),
		Currency:    stripe.String(currency),
		Destination: stripe.String(req.Destination),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	t, err := p.api.Transfers.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			p.log.Error("stripe transfer failed",
				zap.String("destination", req.Destination),
				zap.String("code", string(stripeErr.Code)),
				zap.String("requestID", stripeErr.RequestID),
				zap.Error(err))
		}
		return Transfer{}, fmt.Errorf("stripe: create transfer: %w", err)
	}
	return Transfer{ID: t.ID}, nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return eventFromStripe(evt)
}

func eventFromStripe(evt stripe.Event) (Event, error) {
	out := Event{ID: evt.ID, Type: string(evt.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") || evt.Data == nil {
		return out, nil
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
		return Event{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	out.SessionID = s.ID
	out.PaymentStatus = string(s.PaymentStatus)
	out.Metadata = s.Metadata
	return out, nil
}
