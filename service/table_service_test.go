package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"bicho/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTableMocks(t *testing.T, ctx context.Context) (TableService, *MockDrawRepository) {
	t.Helper()
	factory := new(MockUnitOfWorkFactory)
	uow := new(MockUnitOfWork)
	drawRepo := new(MockDrawRepository)
	uow.SetRepositories(drawRepo, nil, nil, nil)

	factory.On("CreateForHouse", "Federal").Return(uow, nil)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)

	t.Cleanup(func() {
		uow.AssertExpectations(t)
		uow.AssertNotCalled(t, "Commit")
	})
	return NewTableService(factory), drawRepo
}

func TestTableService_TableInfo(t *testing.T) {
	ctx := context.Background()
	service, drawRepo := newTableMocks(t, ctx)

	updated := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	drawRepo.On("Info", ctx).Return(&models.TableInfo{TotalRows: 12, LastUpdate: &updated}, nil)

	info, err := service.TableInfo(ctx, "Federal")

	require.NoError(t, err)
	assert.Equal(t, int64(12), info.TotalRows)
	assert.Equal(t, updated.Unix(), *info.LastUpdateUnix())
}

func TestTableService_Distinct(t *testing.T) {
	ctx := context.Background()
	service, drawRepo := newTableMocks(t, ctx)

	drawRepo.On("DistinctHours", ctx).Return([]string{"10h", "14h"}, nil)
	drawRepo.On("DistinctPlaces", ctx).Return([]int{1, 2, 5}, nil)

	hours, err := service.DistinctHours(ctx, "Federal")
	require.NoError(t, err)
	assert.Equal(t, []string{"10h", "14h"}, hours)

	places, err := service.DistinctPlaces(ctx, "Federal")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 5}, places)
}

func TestTableService_Export(t *testing.T) {
	ctx := context.Background()
	service, drawRepo := newTableMocks(t, ctx)

	stop := errors.New("stop")
	drawRepo.On("Export", ctx, mock.Anything).Run(func(args mock.Arguments) {
		fn := args.Get(1).(func(*models.DrawRecord) error)
		_ = fn(&models.DrawRecord{ID: 1, Place: 1})
	}).Return(stop)

	var seen []int64
	err := service.Export(ctx, "Federal", func(r *models.DrawRecord) error {
		seen = append(seen, r.ID)
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int64{1}, seen)
}

func TestTableService_RegisteredHouses(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := new(MockUnitOfWork)
	houseRepo := new(MockHouseRepository)
	uow.SetRepositories(nil, nil, houseRepo, nil)
	service := NewTableService(factory)

	registered := []*models.HouseRegistration{{HouseName: "Federal", DrawTable: "Federal", GroupTable: "group_Federal"}}
	factory.On("Create").Return(uow)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	houseRepo.On("List", ctx).Return(registered, nil)

	houses, err := service.RegisteredHouses(ctx)

	require.NoError(t, err)
	assert.Equal(t, registered, houses)
	factory.AssertNotCalled(t, "CreateForHouse", mock.Anything)
}
