package service

import (
	"context"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type FieldInput struct {
	Name            string
	AreaAcres       decimal.Decimal
	Crop            string
	PriceCoins      int64
	RentCoinsPerDay int64
	Available       bool
}

type FieldService interface {
	CreateField(ctx context.Context, actor Actor, farmID int64, in FieldInput) (models.Field, error)
	GetField(ctx context.Context, id int64) (models.Field, error)
	ListFields(ctx context.Context, farmID int64) ([]models.Field, error)
	UpdateField(ctx context.Context, actor Actor, id int64, in FieldInput) (models.Field, error)
	DeleteField(ctx context.Context, actor Actor, id int64) error
}

type fieldService struct {
	farms  db.FarmDB
	fields db.FieldDB
	log    pkg.Logger
}

func NewFieldService(farms db.FarmDB, fields db.FieldDB, log pkg.Logger) FieldService {
	return &fieldService{farms: farms, fields: fields, log: log}
}

func (in FieldInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("field name is required")
	}
	if !in.AreaAcres.IsPositive() {
		return invalidInput("area_acres must be positive")
	}
	if in.PriceCoins < 0 || in.RentCoinsPerDay < 0 {
		return invalidInput("prices must not be negative")
	}
	return nil
}

func (s *fieldService) checkFarmOwner(ctx context.Context, actor Actor, farmID int64) error {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return fromDB(err)
	}
	if farm.OwnerID != actor.UserID && !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *fieldService) CreateField(ctx context.Context, actor Actor, farmID int64, in FieldInput) (models.Field, error) {
	if err := in.validate(); err != nil {
		return models.Field{}, err
	}
	if err := s.checkFarmOwner(ctx, actor, farmID); err != nil {
		return models.Field{}, err
	}
	f := models.Field{
		FarmID:          farmID,
		Name:            strings.TrimSpace(in.Name),
		AreaAcres:       in.AreaAcres,
		Crop:            strings.TrimSpace(in.Crop),
		PriceCoins:      in.PriceCoins,
		RentCoinsPerDay: in.RentCoinsPerDay,
		Available:       in.Available,
	}
	if err := s.fields.CreateField(ctx, &f); err != nil {
		s.log.Error("failed to create field", zap.Int64("farmID", farmID), zap.Error(err))
		return models.Field{}, fromDB(err)
	}
	s.log.Info("Field created", zap.Int64("fieldID", f.ID), zap.Int64("farmID", farmID))
	return f, nil
}

func (s *fieldService) GetField(ctx context.Context, id int64) (models.Field, error) {
	f, err := s.fields.GetField(ctx, id)
	if err != nil {
		return models.Field{}, fromDB(err)
	}
	return f, nil
}

func (s *fieldService) ListFields(ctx context.Context, farmID int64) ([]models.Field, error) {
	if _, err := s.farms.GetFarm(ctx, farmID); err != nil {
		return nil, fromDB(err)
	}
	fields, err := s.fields.ListFields(ctx, farmID)
	if err != nil {
		s.log.Error("failed to list fields", zap.Int64("farmID", farmID), zap.Error(err))
		return nil, err
	}
	return fields, nil
}

func (s *fieldService) UpdateField(ctx context.Context, actor Actor, id int64, in FieldInput) (models.Field, error) {
	if err := in.validate(); err != nil {
		return models.Field{}, err
	}
	f, err := s.fields.GetField(ctx, id)
	if err != nil {
		return models.Field{}, fromDB(err)
	}
	if err := s.checkFarmOwner(ctx, actor, f.FarmID); err != nil {
		return models.Field{}, err
	}
	f.Name = strings.TrimSpace(in.Name)
	f.AreaAcres = in.AreaAcres
	f.Crop = strings.TrimSpace(in.Crop)
	f.PriceCoins = in.PriceCoins
	f.RentCoinsPerDay = in.RentCoinsPerDay
	f.Available = in.Available
	if err := s.fields.UpdateField(ctx, &f); err != nil {
		s.log.Error("failed to update field", zap.Int64("fieldID", id), zap.Error(err))
		return models.Field{}, fromDB(err)
	}
	return f, nil
}

func (s *fieldService) DeleteField(ctx context.Context, actor Actor, id int64) error {
	f, err := s.fields.GetField(ctx, id)
	if err != nil {
		return fromDB(err)
	}
	if err := s.checkFarmOwner(ctx, actor, f.FarmID); err != nil {
		return err
	}
	if err := s.fields.DeleteField(ctx, id); err != nil {
		s.log.Warn("failed to delete field", zap.Int64("fieldID", id), zap.Error(err))
		return fromDB(err)
	}
	return nil
}
