package service

import (
	"context"
	"time"

	"bicho/events"
	"bicho/models"
)

// DrawRepository defines the interface for draw table access of one house
type DrawRepository interface {
	// Insert stores a draw, reporting false when (place, date, hour) already exists
	Insert(ctx context.Context, record *models.DrawRecord) (bool, error)

	// Info returns the row count and the newest updated_at
	Info(ctx context.Context) (*models.TableInfo, error)

	// DistinctHours returns the known hour labels, sorted
	DistinctHours(ctx context.Context) ([]string, error)

	// DistinctPlaces returns the known places, ascending
	DistinctPlaces(ctx context.Context) ([]int, error)

	// Export streams every draw in insertion order
	Export(ctx context.Context, fn func(*models.DrawRecord) error) error

	// LastMatchDate returns the newest draw date at hour and place whose group is one of groups
	LastMatchDate(ctx context.Context, hour string, place int, groups []int) (*time.Time, error)

	// CountSince counts draws at hour and place dated strictly after since
	CountSince(ctx context.Context, hour string, place int, since time.Time) (int, error)
}

// GroupRepository defines the interface for group table access of one house
type GroupRepository interface {
	// List returns every group ordered by id
	List(ctx context.Context) ([]*models.Group, error)

	// Create inserts a group and sets its ID
	Create(ctx context.Context, group *models.Group) error

	// Update overwrites the group with the same ID
	Update(ctx context.Context, group *models.Group) error

	// Delete removes the group with the given id
	Delete(ctx context.Context, id int64) error
}

// HouseRepository defines the interface for the house registry
type HouseRepository interface {
	// GetByName returns the registration of a house, or nil when unknown
	GetByName(ctx context.Context, name string) (*models.HouseRegistration, error)

	// List returns every registered house ordered by name
	List(ctx context.Context) ([]*models.HouseRegistration, error)
}

// IngestRunRepository defines the interface for the ingestion audit log
type IngestRunRepository interface {
	// Create records a committed ingestion
	Create(ctx context.Context, run *models.IngestRun) error

	// ListByHouse returns the newest runs of a house first
	ListByHouse(ctx context.Context, house string, limit int) ([]*models.IngestRun, error)
}

// IngestionService defines the interface for loading provider snapshots
type IngestionService interface {
	// Ingest stores every valid entry of snapshot in one transaction, publishing progress to sink
	Ingest(ctx context.Context, house string, snapshot *models.Snapshot, totalUnits int, sink events.Publisher) (*models.IngestResult, error)

	// Sync fetches the last days of a lottery from the provider and ingests them into house
	Sync(ctx context.Context, house, lottery string, days int, sink events.Publisher) (*models.IngestResult, error)

	// History returns the most recent ingestions of a house
	History(ctx context.Context, house string, limit int) ([]*models.IngestRun, error)
}

// GroupService defines the interface for group operations
type GroupService interface {
	ListGroups(ctx context.Context, house string) ([]*models.Group, error)
	AddGroup(ctx context.Context, house string, group *models.Group) error
	EditGroup(ctx context.Context, house string, group *models.Group) error
	DeleteGroup(ctx context.Context, house string, id int64) error
}

// AnalyticsService defines the interface for draw analytics
type AnalyticsService interface {
	// LossSequence returns, per stored group, the draws elapsed since it last matched
	LossSequence(ctx context.Context, house string) ([]*models.LossSequence, error)
}

// TableService defines the interface for read-only draw table queries
type TableService interface {
	TableInfo(ctx context.Context, house string) (*models.TableInfo, error)
	DistinctHours(ctx context.Context, house string) ([]string, error)
	DistinctPlaces(ctx context.Context, house string) ([]int, error)
	Export(ctx context.Context, house string, fn func(*models.DrawRecord) error) error
	RegisteredHouses(ctx context.Context) ([]*models.HouseRegistration, error)
}

// HouseFetcher retrieves the house list from the upstream provider
type HouseFetcher interface {
	FetchHouses(ctx context.Context) ([]models.House, error)
}

// SnapshotFetcher retrieves draw snapshots from the upstream provider
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, lottery string, days int) (*models.Snapshot, error)
	// RequestedEntries is how many draw entries a fetch of days asks the provider for
	RequestedEntries(days int) int
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin acquires a connection, ensures the house tables and starts a transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Tables returns the identifiers the unit of work is scoped to, empty when unscoped
	Tables() models.HouseTables

	// Repository getters
	DrawRepository() DrawRepository
	GroupRepository() GroupRepository
	HouseRepository() HouseRepository
	IngestRunRepository() IngestRunRepository
	EventBus() events.Publisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	// Create creates a new UnitOfWork instance for the house-independent tables
	Create() UnitOfWork

	// CreateForHouse creates a new UnitOfWork instance scoped to a specific house
	CreateForHouse(house string) (UnitOfWork, error)
}
