package service

import (
	"context"
	"errors"
	"testing"

	"bicho/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newGroupMocks(house string) (*MockUnitOfWorkFactory, *MockUnitOfWork, *MockGroupRepository) {
	factory := new(MockUnitOfWorkFactory)
	uow := new(MockUnitOfWork)
	groupRepo := new(MockGroupRepository)
	uow.SetRepositories(nil, groupRepo, nil, nil)
	factory.On("CreateForHouse", house).Return(uow, nil)
	return factory, uow, groupRepo
}

func TestGroupService_AddGroup(t *testing.T) {
	ctx := context.Background()
	factory, uow, groupRepo := newGroupMocks("Federal")
	service := NewGroupService(factory)

	uow.On("Begin", ctx).Return(nil)
	uow.On("Commit").Return(nil)
	uow.On("Rollback").Return(nil)
	groupRepo.On("Create", ctx, mock.MatchedBy(func(g *models.Group) bool {
		return g.Hour == "10h" && g.Place == 1 && assert.ObjectsAreEqual([]int{5, 23}, g.Numbers)
	})).Run(func(args mock.Arguments) {
		id := int64(7)
		args.Get(1).(*models.Group).ID = &id
	}).Return(nil)

	group := &models.Group{Hour: " 10h ", Place: 1, Numbers: []int{5, 23, 5}}
	err := service.AddGroup(ctx, "Federal", group)

	require.NoError(t, err)
	assert.Equal(t, int64(7), *group.ID)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	groupRepo.AssertExpectations(t)
}

func TestGroupService_AddGroup_ValidationSkipsStorage(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	service := NewGroupService(factory)

	cases := []*models.Group{
		{Hour: "", Place: 1, Numbers: []int{1}},
		{Hour: "10h", Place: 0, Numbers: []int{1}},
		{Hour: "10h", Place: 1},
		{Hour: "10h", Place: 1, Numbers: []int{100}},
	}
	for _, group := range cases {
		err := service.AddGroup(ctx, "Federal", group)
		var validationErr *models.ValidationError
		assert.True(t, errors.As(err, &validationErr), "group %+v", group)
	}

	factory.AssertNotCalled(t, "CreateForHouse", mock.Anything)
}

func TestGroupService_AddGroup_Duplicate(t *testing.T) {
	ctx := context.Background()
	factory, uow, groupRepo := newGroupMocks("Federal")
	service := NewGroupService(factory)

	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	groupRepo.On("Create", ctx, mock.Anything).
		Return(&models.DuplicateGroupError{House: "Federal", Hour: "10h", Place: 1})

	err := service.AddGroup(ctx, "Federal", &models.Group{Hour: "10h", Place: 1, Numbers: []int{1}})

	var dupErr *models.DuplicateGroupError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, 1, dupErr.Place)
	uow.AssertNotCalled(t, "Commit")
}

func TestGroupService_EditGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an id", func(t *testing.T) {
		factory := new(MockUnitOfWorkFactory)
		service := NewGroupService(factory)

		err := service.EditGroup(ctx, "Federal", &models.Group{Hour: "10h", Place: 1, Numbers: []int{1}})

		var validationErr *models.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "id", validationErr.Field)
		factory.AssertNotCalled(t, "CreateForHouse", mock.Anything)
	})

	t.Run("updates", func(t *testing.T) {
		factory, uow, groupRepo := newGroupMocks("Federal")
		service := NewGroupService(factory)

		id := int64(3)
		group := &models.Group{ID: &id, Hour: "14h", Place: 2, Numbers: []int{9}}
		uow.On("Begin", ctx).Return(nil)
		uow.On("Commit").Return(nil)
		uow.On("Rollback").Return(nil)
		groupRepo.On("Update", ctx, group).Return(nil)

		require.NoError(t, service.EditGroup(ctx, "Federal", group))
		groupRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("unknown id", func(t *testing.T) {
		factory, uow, groupRepo := newGroupMocks("Federal")
		service := NewGroupService(factory)

		id := int64(99)
		uow.On("Begin", ctx).Return(nil)
		uow.On("Rollback").Return(nil)
		groupRepo.On("Update", ctx, mock.Anything).Return(&models.NotFoundError{House: "Federal", ID: id})

		err := service.EditGroup(ctx, "Federal", &models.Group{ID: &id, Hour: "14h", Place: 2, Numbers: []int{9}})

		var notFound *models.NotFoundError
		assert.True(t, errors.As(err, &notFound))
		uow.AssertNotCalled(t, "Commit")
	})
}

func TestGroupService_DeleteGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes", func(t *testing.T) {
		factory, uow, groupRepo := newGroupMocks("Federal")
		service := NewGroupService(factory)

		uow.On("Begin", ctx).Return(nil)
		uow.On("Commit").Return(nil)
		uow.On("Rollback").Return(nil)
		groupRepo.On("Delete", ctx, int64(4)).Return(nil)

		require.NoError(t, service.DeleteGroup(ctx, "Federal", 4))
		uow.AssertExpectations(t)
	})

	t.Run("missing row", func(t *testing.T) {
		factory, uow, groupRepo := newGroupMocks("Federal")
		service := NewGroupService(factory)

		uow.On("Begin", ctx).Return(nil)
		uow.On("Rollback").Return(nil)
		groupRepo.On("Delete", ctx, int64(4)).Return(&models.NotFoundError{House: "Federal", ID: 4})

		err := service.DeleteGroup(ctx, "Federal", 4)

		var notFound *models.NotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, int64(4), notFound.ID)
		uow.AssertNotCalled(t, "Commit")
	})
}

func TestGroupService_ListGroups_BeginFailure(t *testing.T) {
	ctx := context.Background()
	factory, uow, _ := newGroupMocks("Federal")
	service := NewGroupService(factory)

	uow.On("Begin", ctx).Return(&models.StorageError{Op: "acquire connection", Err: context.DeadlineExceeded})

	_, err := service.ListGroups(ctx, "Federal")

	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	uow.AssertNotCalled(t, "Rollback")
}
