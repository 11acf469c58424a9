package service

import (
	"context"
	"sync"
	"time"

	"bicho/events"
	"bicho/models"

	"github.com/stretchr/testify/mock"
)

// MockDrawRepository is a mock implementation of DrawRepository
type MockDrawRepository struct {
	mock.Mock
}

func (m *MockDrawRepository) Insert(ctx context.Context, record *models.DrawRecord) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockDrawRepository) Info(ctx context.Context) (*models.TableInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TableInfo), args.Error(1)
}

func (m *MockDrawRepository) DistinctHours(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDrawRepository) DistinctPlaces(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockDrawRepository) Export(ctx context.Context, fn func(*models.DrawRecord) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

func (m *MockDrawRepository) LastMatchDate(ctx context.Context, hour string, place int, groups []int) (*time.Time, error) {
	args := m.Called(ctx, hour, place, groups)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*time.Time), args.Error(1)
}

func (m *MockDrawRepository) CountSince(ctx context.Context, hour string, place int, since time.Time) (int, error) {
	args := m.Called(ctx, hour, place, since)
	return args.Int(0), args.Error(1)
}

// MockGroupRepository is a mock implementation of GroupRepository
type MockGroupRepository struct {
	mock.Mock
}

func (m *MockGroupRepository) List(ctx context.Context) ([]*models.Group, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Group), args.Error(1)
}

func (m *MockGroupRepository) Create(ctx context.Context, group *models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockGroupRepository) Update(ctx context.Context, group *models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *MockGroupRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockHouseRepository is a mock implementation of HouseRepository
type MockHouseRepository struct {
	mock.Mock
}

func (m *MockHouseRepository) GetByName(ctx context.Context, name string) (*models.HouseRegistration, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HouseRegistration), args.Error(1)
}

func (m *MockHouseRepository) List(ctx context.Context) ([]*models.HouseRegistration, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HouseRegistration), args.Error(1)
}

// MockIngestRunRepository is a mock implementation of IngestRunRepository
type MockIngestRunRepository struct {
	mock.Mock
}

func (m *MockIngestRunRepository) Create(ctx context.Context, run *models.IngestRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockIngestRunRepository) ListByHouse(ctx context.Context, house string, limit int) ([]*models.IngestRun, error) {
	args := m.Called(ctx, house, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.IngestRun), args.Error(1)
}

// MockHouseFetcher is a mock implementation of HouseFetcher
type MockHouseFetcher struct {
	mock.Mock
}

func (m *MockHouseFetcher) FetchHouses(ctx context.Context) ([]models.House, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.House), args.Error(1)
}

// MockSnapshotFetcher is a mock implementation of SnapshotFetcher
type MockSnapshotFetcher struct {
	mock.Mock
}

func (m *MockSnapshotFetcher) FetchSnapshot(ctx context.Context, lottery string, days int) (*models.Snapshot, error) {
	args := m.Called(ctx, lottery, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

func (m *MockSnapshotFetcher) RequestedEntries(days int) int {
	args := m.Called(days)
	return args.Int(0)
}

// MockEventPublisher records every published event
type MockEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *MockEventPublisher) Publish(_ context.Context, event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

// Events returns a copy of the recorded events in publish order
func (m *MockEventPublisher) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// ProgressPercents returns the percent of every recorded progress event
func (m *MockEventPublisher) ProgressPercents() []float64 {
	var percents []float64
	for _, event := range m.Events() {
		if progress, ok := event.(events.IngestProgressEvent); ok {
			percents = append(percents, progress.Percent)
		}
	}
	return percents
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Transaction calls go
// through mock.Mock; repositories are plain fields set with SetRepositories.
type MockUnitOfWork struct {
	mock.Mock
	tables        models.HouseTables
	drawRepo      DrawRepository
	groupRepo     GroupRepository
	houseRepo     HouseRepository
	ingestRunRepo IngestRunRepository
	eventBus      *MockEventPublisher
}

// SetRepositories configures the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(drawRepo DrawRepository, groupRepo GroupRepository, houseRepo HouseRepository, ingestRunRepo IngestRunRepository) {
	m.drawRepo = drawRepo
	m.groupRepo = groupRepo
	m.houseRepo = houseRepo
	m.ingestRunRepo = ingestRunRepo
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Tables() models.HouseTables {
	return m.tables
}

func (m *MockUnitOfWork) DrawRepository() DrawRepository {
	return m.drawRepo
}

func (m *MockUnitOfWork) GroupRepository() GroupRepository {
	return m.groupRepo
}

func (m *MockUnitOfWork) HouseRepository() HouseRepository {
	return m.houseRepo
}

func (m *MockUnitOfWork) IngestRunRepository() IngestRunRepository {
	return m.ingestRunRepo
}

// EventBus returns a recorder for events published inside the unit of work
func (m *MockUnitOfWork) EventBus() events.Publisher {
	return m.Bus()
}

// Bus returns the recorder behind EventBus
func (m *MockUnitOfWork) Bus() *MockEventPublisher {
	if m.eventBus == nil {
		m.eventBus = &MockEventPublisher{}
	}
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

func (m *MockUnitOfWorkFactory) CreateForHouse(house string) (UnitOfWork, error) {
	args := m.Called(house)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(UnitOfWork), args.Error(1)
}
