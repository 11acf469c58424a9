package repository

import (
	"context"
	"testing"
	"time"

	"bicho/models"
	"bicho/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestRunRepository_CreateAndList(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB, nil)
	ctx := context.Background()

	uow := beginHouse(t, factory, "Federal")
	repo := uow.IngestRunRepository()

	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	for i, runID := range []string{"run-a", "run-b", "run-c"} {
		run := &models.IngestRun{
			RunID:          runID,
			HouseName:      "Federal",
			RequestedUnits: 1,
			TotalEntries:   10 + i,
			Inserted:       8,
			Invalid:        1,
			Duplicates:     1 + i,
			StartedAt:      base.Add(time.Duration(i) * time.Hour),
			FinishedAt:     base.Add(time.Duration(i)*time.Hour + time.Second),
		}
		require.NoError(t, repo.Create(ctx, run))
	}

	runs, err := repo.ListByHouse(ctx, "Federal", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].RunID)
	assert.Equal(t, "run-b", runs[1].RunID)
	assert.Equal(t, 12, runs[0].TotalEntries)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].StartedAt)

	runs, err = repo.ListByHouse(ctx, "Unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestHouseRepository(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	factory := NewUnitOfWorkFactory(testDB.DB, nil)
	ctx := context.Background()

	for _, house := range []string{"Look Goiás", "Federal"} {
		require.NoError(t, beginHouse(t, factory, house).Commit())
	}

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	houses, err := uow.HouseRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, houses, 2)
	assert.Equal(t, "Federal", houses[0].HouseName)
	assert.Equal(t, "Look_Goias", houses[1].DrawTable)

	reg, err := uow.HouseRepository().GetByName(ctx, "Look Goiás")
	require.NoError(t, err)
	require.NotNil(t, reg)
	assert.Equal(t, "group_Look_Goias", reg.GroupTable)

	reg, err = uow.HouseRepository().GetByName(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, reg)
}
