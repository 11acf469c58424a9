package service

import (
	"context"
	"fmt"

	"bicho/models"
)

type tableService struct {
	uowFactory UnitOfWorkFactory
}

// NewTableService creates a new service for read-only draw table queries
func NewTableService(uowFactory UnitOfWorkFactory) TableService {
	return &tableService{
		uowFactory: uowFactory,
	}
}

// TableInfo returns the row count and last update of a house
func (s *tableService) TableInfo(ctx context.Context, house string) (*models.TableInfo, error) {
	var info *models.TableInfo
	err := s.read(ctx, house, func(uow UnitOfWork) error {
		var err error
		info, err = uow.DrawRepository().Info(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	return info, nil
}

// DistinctHours returns the hour labels stored for a house
func (s *tableService) DistinctHours(ctx context.Context, house string) ([]string, error) {
	var hours []string
	err := s.read(ctx, house, func(uow UnitOfWork) error {
		var err error
		hours, err = uow.DrawRepository().DistinctHours(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list hours: %w", err)
	}
	return hours, nil
}

// DistinctPlaces returns the places stored for a house
func (s *tableService) DistinctPlaces(ctx context.Context, house string) ([]int, error) {
	var places []int
	err := s.read(ctx, house, func(uow UnitOfWork) error {
		var err error
		places, err = uow.DrawRepository().DistinctPlaces(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list places: %w", err)
	}
	return places, nil
}

// Export streams every draw of a house to fn
func (s *tableService) Export(ctx context.Context, house string, fn func(*models.DrawRecord) error) error {
	return s.read(ctx, house, func(uow UnitOfWork) error {
		return uow.DrawRepository().Export(ctx, fn)
	})
}

// RegisteredHouses lists every house that has storage tables
func (s *tableService) RegisteredHouses(ctx context.Context) ([]*models.HouseRegistration, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	houses, err := uow.HouseRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list houses: %w", err)
	}
	return houses, nil
}

func (s *tableService) read(ctx context.Context, house string, fn func(UnitOfWork) error) error {
	uow, err := s.uowFactory.CreateForHouse(house)
	if err != nil {
		return fmt.Errorf("failed to resolve house tables: %w", err)
	}
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return fn(uow)
}
