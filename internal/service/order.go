package service

import (
	"context"
	"fmt"
	"math"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type OrderInput struct {
	FieldID  int64
	Quantity int64
	Note     string
}

type OrderListOptions struct {
	AsSeller bool
	db.Page
}

type OrderService interface {
	CreateOrder(ctx context.Context, actor Actor, in OrderInput) (models.Order, error)
	GetOrder(ctx context.Context, actor Actor, id int64) (models.Order, error)
	ListOrders(ctx context.Context, actor Actor, opts OrderListOptions) ([]models.Order, error)
	UpdateStatus(ctx context.Context, actor Actor, id int64, status string) (models.Order, error)
}

type party int

const (
	partyBuyer party = 1 << iota
	partySeller
	partyAdmin
)

type orderTransition struct {
	allowed party
	// refund returns total_coins to the buyer, earn credits them to the seller.
	refund bool
	earn   bool
}

var orderTransitions = map[string]map[string]orderTransition{
	models.OrderPending: {
		models.OrderAccepted:  {allowed: partySeller},
		models.OrderRejected:  {allowed: partySeller, refund: true},
		models.OrderCancelled: {allowed: partyBuyer, refund: true},
	},
	models.OrderAccepted: {
		models.OrderCompleted: {allowed: partySeller, earn: true},
		models.OrderCancelled: {allowed: partySeller | partyAdmin, refund: true},
	},
}

type orderService struct {
	orders db.OrderDB
	fields db.FieldDB
	ledger Ledger
	log    pkg.Logger
}

func NewOrderService(orders db.OrderDB, fields db.FieldDB, ledger Ledger, log pkg.Logger) OrderService {
	return &orderService{orders: orders, fields: fields, ledger: ledger, log: log}
}

func orderRef(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func (s *orderService) CreateOrder(ctx context.Context, actor Actor, in OrderInput) (models.Order, error) {
	if in.Quantity <= 0 {
		return models.Order{}, invalidInput("quantity must be positive")
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return models.Order{}, err
	}
	defer rollback(tx, s.log)

	field, err := s.fields.GetFieldForUpdate(ctx, tx, in.FieldID)
	if err != nil {
		return models.Order{}, fromDB(err)
	}
	if !field.Available {
		return models.Order{}, fmt.Errorf("%w: field %d is not available", ErrConflict, field.ID)
	}
	if field.PriceCoins > 0 && in.Quantity > math.MaxInt64/field.PriceCoins {
		return models.Order{}, invalidInput("quantity too large")
	}

	o := models.Order{
		FieldID:    field.ID,
		UserID:     actor.UserID,
		Quantity:   in.Quantity,
		TotalCoins: field.PriceCoins * in.Quantity,
		Status:     models.OrderPending,
		Note:       in.Note,
	}
	if err := s.orders.CreateOrder(ctx, tx, &o); err != nil {
		s.log.Error("failed to create order", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Order{}, fromDB(err)
	}
	if o.TotalCoins > 0 {
		_, err := s.ledger.Debit(ctx, tx, actor.UserID, o.TotalCoins, Entry{
			Type:        models.TxSpend,
			Reference:   orderRef(o.ID),
			Description: fmt.Sprintf("order of %d x %s", o.Quantity, field.Name),
		})
		if err != nil {
			return models.Order{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit order", zap.Int64("userID", actor.UserID), zap.Error(err))
		return models.Order{}, err
	}
	s.log.Info("Order created",
		zap.Int64("orderID", o.ID),
		zap.Int64("userID", actor.UserID),
		zap.Int64("total", o.TotalCoins))
	return o, nil
}

// partyOf reports the roles the actor plays on the order.
func (s *orderService) partyOf(actor Actor, o models.Order, sellerID int64) party {
	var p party
	if o.UserID == actor.UserID {
		p |= partyBuyer
	}
	if sellerID == actor.UserID {
		p |= partySeller
	}
	if actor.IsAdmin() {
		p |= partyAdmin
	}
	return p
}

func (s *orderService) GetOrder(ctx context.Context, actor Actor, id int64) (models.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, fromDB(err)
	}
	sellerID, err := s.fields.GetFieldOwner(ctx, o.FieldID)
	if err != nil {
		return models.Order{}, fromDB(err)
	}
	if s.partyOf(actor, o, sellerID) == 0 {
		return models.Order{}, ErrForbidden
	}
	return o, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor, opts OrderListOptions) ([]models.Order, error) {
	f := db.OrderFilter{Page: opts.Page}
	switch {
	case opts.AsSeller:
		f.SellerID = &actor.UserID
	case !actor.IsAdmin():
		f.BuyerID = &actor.UserID
	}
	orders, err := s.orders.ListOrders(ctx, f)
	if err != nil {
		s.log.Error("failed to list orders", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return orders, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, actor Actor, id int64, status string) (models.Order, error) {
	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		return models.Order{}, err
	}
	defer rollback(tx, s.log)

	o, err := s.orders.GetOrderForUpdate(ctx, tx, id)
	if err != nil {
		return models.Order{}, fromDB(err)
	}
	sellerID, err := s.fields.GetFieldOwner(ctx, o.FieldID)
	if err != nil {
		return models.Order{}, fromDB(err)
	}
	who := s.partyOf(actor, o, sellerID)
	if who == 0 {
		return models.Order{}, ErrForbidden
	}

	t, ok := orderTransitions[o.Status][status]
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, status)
	}
	if t.allowed&who == 0 {
		return models.Order{}, ErrForbidden
	}

	if o.TotalCoins > 0 {
		switch {
		case t.refund:
			_, err = s.ledger.Credit(ctx, tx, o.UserID, o.TotalCoins, Entry{
				Type: models.TxRefund, Reference: orderRef(o.ID), Description: "order " + status,
			})
		case t.earn:
			_, err = s.ledger.Credit(ctx, tx, sellerID, o.TotalCoins, Entry{
				Type: models.TxEarn, Reference: orderRef(o.ID), Description: "order completed",
			})
		}
		if err != nil {
			return models.Order{}, err
		}
	}

	if err := s.orders.UpdateOrderStatus(ctx, tx, o.ID, status); err != nil {
		s.log.Error("failed to update order status", zap.Int64("orderID", o.ID), zap.Error(err))
		return models.Order{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit order status", zap.Int64("orderID", o.ID), zap.Error(err))
		return models.Order{}, err
	}
	s.log.Info("Order status changed",
		zap.Int64("orderID", o.ID),
		zap.String("from", o.Status),
		zap.String("to", status),
		zap.Int64("by", actor.UserID))
	o.Status = status
	return o, nil
}
