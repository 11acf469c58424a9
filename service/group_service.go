package service

import (
	"context"
	"fmt"

	"bicho/models"

	log "github.com/sirupsen/logrus"
)

type groupService struct {
	uowFactory UnitOfWorkFactory
}

// NewGroupService creates a new group service
func NewGroupService(uowFactory UnitOfWorkFactory) GroupService {
	return &groupService{
		uowFactory: uowFactory,
	}
}

// ListGroups returns every group of a house ordered by id
func (s *groupService) ListGroups(ctx context.Context, house string) ([]*models.Group, error) {
	uow, err := s.begin(ctx, house)
	if err != nil {
		return nil, err
	}
	defer uow.Rollback()

	groups, err := uow.GroupRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	return groups, nil
}

// AddGroup registers a new group for an hour and place
func (s *groupService) AddGroup(ctx context.Context, house string, group *models.Group) error {
	if err := group.Validate(); err != nil {
		return err
	}
	group.ID = nil

	uow, err := s.begin(ctx, house)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.GroupRepository().Create(ctx, group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"house":   house,
		"groupID": *group.ID,
		"hour":    group.Hour,
		"place":   group.Place,
	}).Info("Group added")

	return nil
}

// EditGroup overwrites an existing group
func (s *groupService) EditGroup(ctx context.Context, house string, group *models.Group) error {
	if group.ID == nil {
		return &models.ValidationError{Field: "id", Message: "group id is required"}
	}
	if err := group.Validate(); err != nil {
		return err
	}

	uow, err := s.begin(ctx, house)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.GroupRepository().Update(ctx, group); err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"house":   house,
		"groupID": *group.ID,
	}).Info("Group updated")

	return nil
}

// DeleteGroup removes a group by id
func (s *groupService) DeleteGroup(ctx context.Context, house string, id int64) error {
	uow, err := s.begin(ctx, house)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.GroupRepository().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"house":   house,
		"groupID": id,
	}).Info("Group deleted")

	return nil
}

func (s *groupService) begin(ctx context.Context, house string) (UnitOfWork, error) {
	uow, err := s.uowFactory.CreateForHouse(house)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve house tables: %w", err)
	}
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return uow, nil
}
