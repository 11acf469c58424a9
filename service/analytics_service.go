package service

import (
	"context"
	"fmt"

	"bicho/models"
)

type analyticsService struct {
	uowFactory UnitOfWorkFactory
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(uowFactory UnitOfWorkFactory) AnalyticsService {
	return &analyticsService{
		uowFactory: uowFactory,
	}
}

// LossSequence reports, for every stored group in enumeration order, how many
// draws at its hour and place happened after its newest match
func (s *analyticsService) LossSequence(ctx context.Context, house string) ([]*models.LossSequence, error) {
	uow, err := s.uowFactory.CreateForHouse(house)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve house tables: %w", err)
	}
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // Read-only

	groups, err := uow.GroupRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	drawRepo := uow.DrawRepository()
	results := make([]*models.LossSequence, 0, len(groups))
	for _, group := range groups {
		result := &models.LossSequence{
			Hour:         group.Hour,
			Place:        group.Place,
			Group:        group.StoredText(),
			LossSequence: models.NeverObserved,
		}

		lastMatch, err := drawRepo.LastMatchDate(ctx, group.Hour, group.Place, group.Numbers)
		if err != nil {
			return nil, fmt.Errorf("failed to find last match for %s/%d: %w", group.Hour, group.Place, err)
		}

		if lastMatch != nil {
			count, err := drawRepo.CountSince(ctx, group.Hour, group.Place, *lastMatch)
			if err != nil {
				return nil, fmt.Errorf("failed to count draws for %s/%d: %w", group.Hour, group.Place, err)
			}
			result.LossSequence = count
			result.Observed = true
		}

		results = append(results, result)
	}

	return results, nil
}
