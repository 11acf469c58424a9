package service

import (
	"context"
	"errors"
	"testing"

	"bicho/events"
	"bicho/models"
	"bicho/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ingestMocks struct {
	factory  *MockUnitOfWorkFactory
	uow      *MockUnitOfWork
	drawRepo *MockDrawRepository
	runRepo  *MockIngestRunRepository
	fetcher  *MockSnapshotFetcher
	sink     *MockEventPublisher
}

func newIngestMocks(house string) *ingestMocks {
	m := &ingestMocks{
		factory:  new(MockUnitOfWorkFactory),
		uow:      new(MockUnitOfWork),
		drawRepo: new(MockDrawRepository),
		runRepo:  new(MockIngestRunRepository),
		fetcher:  new(MockSnapshotFetcher),
		sink:     &MockEventPublisher{},
	}
	m.uow.SetRepositories(m.drawRepo, nil, nil, m.runRepo)
	m.factory.On("CreateForHouse", house).Return(m.uow, nil)
	return m
}

func placeIs(place int) any {
	return mock.MatchedBy(func(r *models.DrawRecord) bool { return r.Place == place })
}

func TestIngestionService_Ingest_CountsAndProgress(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 1)

	day := testutil.Day(2024, 3, 5)
	invalid := testutil.CreateTestRawDraw(0, day, "10h", "1234", "9")
	invalid.Place = testutil.StringPtr("1º")
	snapshot := testutil.CreateTestSnapshot(
		testutil.CreateTestRawDraw(1, day, "10h", "1234", "9"),
		invalid,
		testutil.CreateTestRawDraw(2, day, "10h", "5678", "20"),
		testutil.CreateTestRawDraw(3, day, "10h", "0000", ""),
	)

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.drawRepo.On("Insert", ctx, placeIs(2)).Return(false, nil)
	m.drawRepo.On("Insert", ctx, mock.MatchedBy(func(r *models.DrawRecord) bool {
		return r.Place == 3 && r.Group != nil && *r.Group == 25 && *r.Date == day
	})).Return(true, nil)
	m.drawRepo.On("Insert", ctx, placeIs(1)).Return(true, nil)
	m.runRepo.On("Create", ctx, mock.MatchedBy(func(run *models.IngestRun) bool {
		return run.RunID != "" &&
			run.HouseName == "Federal" &&
			run.RequestedUnits == 1 &&
			run.TotalEntries == 4 &&
			run.Inserted == 2 &&
			run.Invalid == 1 &&
			run.Duplicates == 1 &&
			!run.FinishedAt.Before(run.StartedAt)
	})).Return(nil)

	result, err := service.Ingest(ctx, "Federal", snapshot, 1, m.sink)

	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalEntries)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 2, result.Skipped)
	assert.NotEmpty(t, result.RunID)

	// Four entries against one requested unit: the payload size wins
	assert.Equal(t, []float64{25, 50, 75, maxIntermediatePercent, 100}, m.sink.ProgressPercents())

	published := m.sink.Events()
	completed, ok := published[len(published)-1].(events.IngestCompletedEvent)
	require.True(t, ok, "completion must follow the final progress event")
	assert.Equal(t, *result, completed.Result)

	busEvents := m.uow.Bus().Events()
	require.Len(t, busEvents, 1)
	assert.Equal(t, events.EventTypeIngestCompleted, busEvents[0].Type())

	m.factory.AssertExpectations(t)
	m.uow.AssertExpectations(t)
	m.drawRepo.AssertExpectations(t)
	m.runRepo.AssertExpectations(t)
}

func TestIngestionService_Ingest_ProgressUsesRequestedUnits(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 1)

	day := testutil.Day(2024, 3, 5)
	snapshot := testutil.CreateTestSnapshot(
		testutil.CreateTestRawDraw(1, day, "10h", "1234", "9"),
		testutil.CreateTestRawDraw(2, day, "10h", "1235", "9"),
	)

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.drawRepo.On("Insert", ctx, mock.Anything).Return(true, nil)
	m.runRepo.On("Create", ctx, mock.Anything).Return(nil)

	_, err := service.Ingest(ctx, "Federal", snapshot, 8, m.sink)

	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 25, 100}, m.sink.ProgressPercents())
}

func TestIngestionService_Ingest_ProgressEvery(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 2)

	day := testutil.Day(2024, 3, 5)
	var entries []models.RawDraw
	for place := 1; place <= 8; place++ {
		entries = append(entries, testutil.CreateTestRawDraw(place, day, "10h", "1234", "9"))
	}

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.drawRepo.On("Insert", ctx, mock.Anything).Return(true, nil)
	m.runRepo.On("Create", ctx, mock.Anything).Return(nil)

	_, err := service.Ingest(ctx, "Federal", testutil.CreateTestSnapshot(entries...), 1, m.sink)

	require.NoError(t, err)
	assert.Equal(t, []float64{25, 50, 75, maxIntermediatePercent, 100}, m.sink.ProgressPercents())
}

func TestIngestionService_Ingest_EmptyPayload(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 1)

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.runRepo.On("Create", ctx, mock.Anything).Return(nil)

	result, err := service.Ingest(ctx, "Federal", &models.Snapshot{}, 0, m.sink)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Inserted)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, []float64{100}, m.sink.ProgressPercents())
	m.drawRepo.AssertNotCalled(t, "Insert")
}

func TestIngestionService_Ingest_StorageFailureAborts(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 1)

	day := testutil.Day(2024, 3, 5)
	snapshot := testutil.CreateTestSnapshot(
		testutil.CreateTestRawDraw(1, day, "10h", "1234", "9"),
		testutil.CreateTestRawDraw(2, day, "10h", "1235", "9"),
		testutil.CreateTestRawDraw(3, day, "10h", "1236", "9"),
	)
	storageErr := &models.StorageError{Op: "insert draw", House: "Federal", Err: errors.New("disk I/O error")}

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Rollback").Return(nil)
	m.drawRepo.On("Insert", ctx, placeIs(1)).Return(true, nil)
	m.drawRepo.On("Insert", ctx, placeIs(2)).Return(false, storageErr)

	result, err := service.Ingest(ctx, "Federal", snapshot, 1, m.sink)

	assert.Nil(t, result)
	var target *models.StorageError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "insert draw", target.Op)

	m.uow.AssertNotCalled(t, "Commit")
	m.drawRepo.AssertNumberOfCalls(t, "Insert", 2)
	m.runRepo.AssertNotCalled(t, "Create")
	assert.NotContains(t, m.sink.ProgressPercents(), float64(100))
	for _, event := range m.sink.Events() {
		assert.NotEqual(t, events.EventTypeIngestCompleted, event.Type())
	}
}

func TestIngestionService_Ingest_CommitFailure(t *testing.T) {
	ctx := context.Background()
	m := newIngestMocks("Federal")
	service := NewIngestionService(m.factory, m.fetcher, 1)

	m.uow.On("Begin", ctx).Return(nil)
	m.uow.On("Commit").Return(errors.New("database is locked"))
	m.uow.On("Rollback").Return(nil)
	m.runRepo.On("Create", ctx, mock.Anything).Return(nil)

	_, err := service.Ingest(ctx, "Federal", &models.Snapshot{}, 1, m.sink)

	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.Empty(t, m.sink.Events())
}

func TestIngestionService_Ingest_InvalidHouse(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	service := NewIngestionService(factory, nil, 1)

	factory.On("CreateForHouse", "x; DROP TABLE houses").
		Return(nil, &models.ValidationError{Field: "house", Message: "unsafe"})

	_, err := service.Ingest(ctx, "x; DROP TABLE houses", &models.Snapshot{}, 1, nil)

	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))
}

func TestIngestionService_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing requested", func(t *testing.T) {
		fetcher := new(MockSnapshotFetcher)
		factory := new(MockUnitOfWorkFactory)
		service := NewIngestionService(factory, fetcher, 1)
		sink := &MockEventPublisher{}

		_, err := service.Sync(ctx, "Federal", "PT Rio", 0, sink)

		assert.True(t, errors.Is(err, models.ErrEmptyRequest))
		var ingestionErr *models.IngestionError
		require.True(t, errors.As(err, &ingestionErr))
		assert.Equal(t, "Federal", ingestionErr.House)
		assert.Empty(t, sink.Events())
		fetcher.AssertNotCalled(t, "FetchSnapshot")
		factory.AssertNotCalled(t, "CreateForHouse")
	})

	t.Run("fetches and ingests", func(t *testing.T) {
		m := newIngestMocks("Federal")
		service := NewIngestionService(m.factory, m.fetcher, 1)

		day := testutil.Day(2024, 3, 5)
		snapshot := testutil.CreateTestSnapshot(testutil.CreateTestRawDraw(1, day, "10h", "1234", "9"))

		m.fetcher.On("FetchSnapshot", ctx, "PT Rio", 3).Return(snapshot, nil)
		m.fetcher.On("RequestedEntries", 3).Return(300)
		m.uow.On("Begin", ctx).Return(nil)
		m.uow.On("Commit").Return(nil)
		m.uow.On("Rollback").Return(nil)
		m.drawRepo.On("Insert", ctx, mock.Anything).Return(true, nil)
		m.runRepo.On("Create", ctx, mock.MatchedBy(func(run *models.IngestRun) bool {
			return run.RequestedUnits == 300
		})).Return(nil)

		result, err := service.Sync(ctx, "Federal", "PT Rio", 3, m.sink)

		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)
		// progress is scaled by the entries requested from the provider, not by days
		assert.InDeltaSlice(t, []float64{100.0 / 300, 100}, m.sink.ProgressPercents(), 1e-9)
		m.fetcher.AssertExpectations(t)
	})

	t.Run("fetch failure", func(t *testing.T) {
		fetcher := new(MockSnapshotFetcher)
		factory := new(MockUnitOfWorkFactory)
		service := NewIngestionService(factory, fetcher, 1)

		fetcher.On("FetchSnapshot", ctx, "PT Rio", 1).Return(nil, errors.New("connection refused"))

		_, err := service.Sync(ctx, "Federal", "PT Rio", 1, nil)

		assert.ErrorContains(t, err, "failed to fetch snapshot")
		factory.AssertNotCalled(t, "CreateForHouse")
	})
}

func TestIngestionService_History(t *testing.T) {
	ctx := context.Background()
	factory := new(MockUnitOfWorkFactory)
	uow := new(MockUnitOfWork)
	runRepo := new(MockIngestRunRepository)
	uow.SetRepositories(nil, nil, nil, runRepo)
	service := NewIngestionService(factory, nil, 1)

	runs := []*models.IngestRun{{RunID: "run-b"}, {RunID: "run-a"}}
	factory.On("Create").Return(uow)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback").Return(nil)
	runRepo.On("ListByHouse", ctx, "Federal", 5).Return(runs, nil)

	got, err := service.History(ctx, "Federal", 5)
	require.NoError(t, err)
	assert.Equal(t, runs, got)

	_, err = service.History(ctx, "Federal", 0)
	var validationErr *models.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	factory.AssertNumberOfCalls(t, "Create", 1)
	uow.AssertExpectations(t)
}
