package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type RentalInput struct {
	FieldID   int64
	StartDate time.Time
	EndDate   time.Time
}

type RentalListOptions struct {
	AsOwner bool
	db.Page
}

type RentalService interface {
	CreateRental(ctx context.Context, actor Actor, in RentalInput) (models.Rental, error)
	GetRental(ctx context.Context, actor Actor, id int64) (models.Rental, error)
	ListRentals(ctx context.Context, actor Actor, opts RentalListOptions) ([]models.Rental, error)
	CancelRental(ctx context.Context, actor Actor, id int64) (models.Rental, error)
	CompleteRental(ctx context.Context, actor Actor, id int64) (models.Rental, error)
}

type rentalService struct {
	rentals db.RentalDB
	fields  db.FieldDB
	ledger  Ledger
	log     pkg.Logger
	now     func() time.Time
}

func NewRentalService(rentals db.RentalDB, fields db.FieldDB, ledger Ledger, log pkg.Logger) RentalService {
	return &rentalService{rentals: rentals, fields: fields, ledger: ledger, log: log, now: time.Now}
}

func rentalRef(id int64) string {
	return fmt.Sprintf("rental:%d", id)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// rentalDays counts calendar days with both ends included.
func rentalDays(start, end time.Time) int64 {
	return int64(end.Sub(start)/(24*time.Hour)) + 1
}

func (s *rentalService) CreateRental(ctx context.Context, actor Actor, in RentalInput) (models.Rental, error) {
	start, end := truncateDay(in.StartDate), truncateDay(in.EndDate)
	if end.Before(start) {
		return models.Rental{}, invalidInput("end_date must not be before start_date")
	}
	if start.Before(truncateDay(s.now())) {
		return models.Rental{}, invalidInput("start_date must not be in the past")
	}

	ownerID, err := s.fields.GetFieldOwner(ctx, in.FieldID)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if ownerID == actor.UserID {
		return models.Rental{}, invalidInput("cannot rent your own field")
	}

	tx, err := s.rentals.BeginTx(ctx)
	if err != nil {
		return models.Rental{}, err
	}
	defer rollback(tx, s.log)

	field, err := s.fields.GetFieldForUpdate(ctx, tx, in.FieldID)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if !field.Available {
		return models.Rental{}, fmt.Errorf("%w: field %d is not available", ErrConflict, field.ID)
	}
	overlap, err := s.rentals.HasOverlappingRental(ctx, tx, field.ID, start, end)
	if err != nil {
		s.log.Error("failed to check rental overlap", zap.Int64("fieldID", field.ID), zap.Error(err))
		return models.Rental{}, err
	}
	if overlap {
		return models.Rental{}, fmt.Errorf("%w: field %d is already rented for these dates", ErrConflict, field.ID)
	}

	days := rentalDays(start, end)
	if field.RentCoinsPerDay > 0 && days > math.MaxInt64/field.RentCoinsPerDay {
		return models.Rental{}, invalidInput("rental period too long")
	}
	r := models.Rental{
		FieldID:    field.ID,
		UserID:     actor.UserID,
		StartDate:  start,
		EndDate:    end,
		TotalCoins: days * field.RentCoinsPerDay,
		Status:     models.RentalActive,
	}
	if err := s.rentals.CreateRental(ctx, tx, &r); err != nil {
		s.log.Error("failed to create rental", zap.Int64("fieldID", field.ID), zap.Error(err))
		return models.Rental{}, fromDB(err)
	}

	if r.TotalCoins > 0 {
		if err := s.ledger.Lock(ctx, tx, actor.UserID, ownerID); err != nil {
			return models.Rental{}, err
		}
		desc := fmt.Sprintf("rental of %s for %d days", field.Name, days)
		if _, err := s.ledger.Debit(ctx, tx, actor.UserID, r.TotalCoins, Entry{
			Type: models.TxSpend, Reference: rentalRef(r.ID), Description: desc,
		}); err != nil {
			return models.Rental{}, err
		}
		if _, err := s.ledger.Credit(ctx, tx, ownerID, r.TotalCoins, Entry{
			Type: models.TxEarn, Reference: rentalRef(r.ID), Description: desc,
		}); err != nil {
			return models.Rental{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit rental", zap.Int64("fieldID", field.ID), zap.Error(err))
		return models.Rental{}, err
	}
	s.log.Info("Rental created",
		zap.Int64("rentalID", r.ID),
		zap.Int64("fieldID", field.ID),
		zap.Int64("userID", actor.UserID),
		zap.Int64("total", r.TotalCoins))
	return r, nil
}

func (s *rentalService) GetRental(ctx context.Context, actor Actor, id int64) (models.Rental, error) {
	r, err := s.rentals.GetRental(ctx, id)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if r.UserID == actor.UserID || actor.IsAdmin() {
		return r, nil
	}
	ownerID, err := s.fields.GetFieldOwner(ctx, r.FieldID)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if ownerID != actor.UserID {
		return models.Rental{}, ErrForbidden
	}
	return r, nil
}

func (s *rentalService) ListRentals(ctx context.Context, actor Actor, opts RentalListOptions) ([]models.Rental, error) {
	f := db.RentalFilter{Page: opts.Page}
	switch {
	case opts.AsOwner:
		f.OwnerID = &actor.UserID
	case !actor.IsAdmin():
		f.UserID = &actor.UserID
	}
	rentals, err := s.rentals.ListRentals(ctx, f)
	if err != nil {
		s.log.Error("failed to list rentals", zap.Int64("userID", actor.UserID), zap.Error(err))
		return nil, err
	}
	return rentals, nil
}

func (s *rentalService) CancelRental(ctx context.Context, actor Actor, id int64) (models.Rental, error) {
	tx, err := s.rentals.BeginTx(ctx)
	if err != nil {
		return models.Rental{}, err
	}
	defer rollback(tx, s.log)

	r, err := s.rentals.GetRentalForUpdate(ctx, tx, id)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if r.UserID != actor.UserID {
		return models.Rental{}, ErrForbidden
	}
	if r.Status != models.RentalActive {
		return models.Rental{}, fmt.Errorf("%w: rental is %s", ErrInvalidTransition, r.Status)
	}
	if !truncateDay(s.now()).Before(truncateDay(r.StartDate)) {
		return models.Rental{}, fmt.Errorf("%w: rental has already started", ErrInvalidTransition)
	}

	if r.TotalCoins > 0 {
		ownerID, err := s.fields.GetFieldOwner(ctx, r.FieldID)
		if err != nil {
			return models.Rental{}, fromDB(err)
		}
		if err := s.ledger.Lock(ctx, tx, r.UserID, ownerID); err != nil {
			return models.Rental{}, err
		}
		_, err = s.ledger.Debit(ctx, tx, ownerID, r.TotalCoins, Entry{
			Type: models.TxRefund, Reference: rentalRef(r.ID), Description: "rental cancelled by renter",
		})
		if errors.Is(err, ErrNotEnoughCoins) {
			s.log.Warn("owner cannot cover rental refund", zap.Int64("rentalID", r.ID), zap.Int64("ownerID", ownerID))
			return models.Rental{}, fmt.Errorf("%w: owner balance cannot cover the refund", ErrConflict)
		}
		if err != nil {
			return models.Rental{}, err
		}
		if _, err := s.ledger.Credit(ctx, tx, r.UserID, r.TotalCoins, Entry{
			Type: models.TxRefund, Reference: rentalRef(r.ID), Description: "rental cancelled",
		}); err != nil {
			return models.Rental{}, err
		}
	}

	if err := s.rentals.UpdateRentalStatus(ctx, tx, r.ID, models.RentalCancelled); err != nil {
		return models.Rental{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit rental cancel", zap.Int64("rentalID", r.ID), zap.Error(err))
		return models.Rental{}, err
	}
	s.log.Info("Rental cancelled", zap.Int64("rentalID", r.ID), zap.Int64("refund", r.TotalCoins))
	r.Status = models.RentalCancelled
	return r, nil
}

func (s *rentalService) CompleteRental(ctx context.Context, actor Actor, id int64) (models.Rental, error) {
	tx, err := s.rentals.BeginTx(ctx)
	if err != nil {
		return models.Rental{}, err
	}
	defer rollback(tx, s.log)

	r, err := s.rentals.GetRentalForUpdate(ctx, tx, id)
	if err != nil {
		return models.Rental{}, fromDB(err)
	}
	if !actor.IsAdmin() {
		ownerID, err := s.fields.GetFieldOwner(ctx, r.FieldID)
		if err != nil {
			return models.Rental{}, fromDB(err)
		}
		if ownerID != actor.UserID {
			return models.Rental{}, ErrForbidden
		}
	}
	if r.Status != models.RentalActive {
		return models.Rental{}, fmt.Errorf("%w: rental is %s", ErrInvalidTransition, r.Status)
	}
	if err := s.rentals.UpdateRentalStatus(ctx, tx, r.ID, models.RentalCompleted); err != nil {
		return models.Rental{}, fromDB(err)
	}
	if err := tx.Commit(); err != nil {
		s.log.Error("failed to commit rental completion", zap.Int64("rentalID", r.ID), zap.Error(err))
		return models.Rental{}, err
	}
	s.log.Info("Rental completed", zap.Int64("rentalID", r.ID), zap.Int64("by", actor.UserID))
	r.Status = models.RentalCompleted
	return r, nil
}
