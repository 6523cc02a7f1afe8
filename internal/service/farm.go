package service

import (
	"context"
	"strings"

	"farm-market/internal/db"
	"farm-market/internal/models"
	"farm-market/pkg"

	"go.uber.org/zap"
)

type FarmInput struct {
	Name        string
	Location    string
	Description string
}

type FarmService interface {
	CreateFarm(ctx context.Context, actor Actor, in FarmInput) (models.Farm, error)
	GetFarm(ctx context.Context, id int64) (models.Farm, error)
	ListFarms(ctx context.Context, f db.FarmFilter) ([]models.Farm, error)
	UpdateFarm(ctx context.Context, actor Actor, id int64, in FarmInput) (models.Farm, error)
	DeleteFarm(ctx context.Context, actor Actor, id int64) error
}

type farmService struct {
	farms db.FarmDB
	log   pkg.Logger
}

func NewFarmService(farms db.FarmDB, log pkg.Logger) FarmService {
	return &farmService{farms: farms, log: log}
}

func (in FarmInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidInput("farm name is required")
	}
	return nil
}

func (s *farmService) CreateFarm(ctx context.Context, actor Actor, in FarmInput) (models.Farm, error) {
	if actor.Role != models.RoleFarmer && !actor.IsAdmin() {
		return models.Farm{}, ErrForbidden
	}
	if err := in.validate(); err != nil {
		return models.Farm{}, err
	}
	f := models.Farm{
		OwnerID:     actor.UserID,
		Name:        strings.TrimSpace(in.Name),
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
	}
	if err := s.farms.CreateFarm(ctx, &f); err != nil {
		s.log.Error("failed to create farm", zap.Int64("ownerID", actor.UserID), zap.Error(err))
		return models.Farm{}, fromDB(err)
	}
	s.log.Info("Farm created", zap.Int64("farmID", f.ID), zap.Int64("ownerID", f.OwnerID))
	return f, nil
}

func (s *farmService) GetFarm(ctx context.Context, id int64) (models.Farm, error) {
	f, err := s.farms.GetFarm(ctx, id)
	if err != nil {
		return models.Farm{}, fromDB(err)
	}
	return f, nil
}

func (s *farmService) ListFarms(ctx context.Context, f db.FarmFilter) ([]models.Farm, error) {
	farms, err := s.farms.ListFarms(ctx, f)
	if err != nil {
		s.log.Error("failed to list farms", zap.Error(err))
		return nil, err
	}
	return farms, nil
}

// ownedFarm loads a farm and checks the actor may modify it.
func (s *farmService) ownedFarm(ctx context.Context, actor Actor, id int64) (models.Farm, error) {
	f, err := s.farms.GetFarm(ctx, id)
	if err != nil {
		return models.Farm{}, fromDB(err)
	}
	if f.OwnerID != actor.UserID && !actor.IsAdmin() {
		return models.Farm{}, ErrForbidden
	}
	return f, nil
}

func (s *farmService) UpdateFarm(ctx context.Context, actor Actor, id int64, in FarmInput) (models.Farm, error) {
	if err := in.validate(); err != nil {
		return models.Farm{}, err
	}
	f, err := s.ownedFarm(ctx, actor, id)
	if err != nil {
		return models.Farm{}, err
	}
	f.Name = strings.TrimSpace(in.Name)
	f.Location = strings.TrimSpace(in.Location)
	f.Description = in.Description
	if err := s.farms.UpdateFarm(ctx, &f); err != nil {
		s.log.Error("failed to update farm", zap.Int64("farmID", id), zap.Error(err))
		return models.Farm{}, fromDB(err)
	}
	return f, nil
}

func (s *farmService) DeleteFarm(ctx context.Context, actor Actor, id int64) error {
	if _, err := s.ownedFarm(ctx, actor, id); err != nil {
		return err
	}
	if err := s.farms.DeleteFarm(ctx, id); err != nil {
		s.log.Warn("failed to delete farm", zap.Int64("farmID", id), zap.Error(err))
		return fromDB(err)
	}
	s.log.Info("Farm deleted", zap.Int64("farmID", id), zap.Int64("by", actor.UserID))
	return nil
}
