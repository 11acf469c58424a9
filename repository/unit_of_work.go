package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bicho/database"
	"bicho/events"
	"bicho/models"
	"bicho/service"
)

// unitOfWork implements the UnitOfWork interface. It owns one pooled
// connection from Begin until Commit or Rollback.
type unitOfWork struct {
	db               *database.DB
	conn             *sql.Conn
	tx               *sql.Tx
	ctx              context.Context
	tables           models.HouseTables
	scoped           bool
	transactionalBus *events.TransactionalBus
	drawRepo         service.DrawRepository
	groupRepo        service.GroupRepository
	houseRepo        service.HouseRepository
	ingestRunRepo    service.IngestRunRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus events.Publisher) service.UnitOfWorkFactory {
	if eventBus == nil {
		eventBus = events.NoopPublisher{}
	}
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus events.Publisher
}

// Create creates a unit of work over the house-independent tables only
func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// CreateForHouse creates a unit of work scoped to the tables of a house
func (f *unitOfWorkFactory) CreateForHouse(house string) (service.UnitOfWork, error) {
	tables, err := database.ResolveTables(house)
	if err != nil {
		return nil, err
	}

	return &unitOfWork{
		db:               f.db,
		tables:           tables,
		scoped:           true,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}, nil
}

// Begin acquires a connection, ensures the house tables exist and starts a
// transaction on that same connection
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	conn, err := u.db.Acquire(ctx)
	if err != nil {
		return err
	}

	var layout database.Layout
	if u.scoped {
		layout, err = u.db.Schema().EnsureHouse(ctx, conn, u.tables)
		if err != nil {
			conn.Close()
			return err
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return &models.StorageError{Op: "begin transaction", House: u.tables.House, Err: err}
	}

	u.conn = conn
	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	if u.scoped {
		u.drawRepo = newDrawRepository(tx, u.tables, layout)
		u.groupRepo = newGroupRepository(tx, u.tables)
	}
	u.houseRepo = newHouseRepository(tx)
	u.ingestRunRepo = newIngestRunRepository(tx)

	return nil
}

// Commit commits the transaction and releases the connection
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit()
	u.release()
	if err != nil {
		u.transactionalBus.Discard()
		return &models.StorageError{Op: "commit transaction", House: u.tables.House, Err: err}
	}

	// Flush pending events after successful commit
	u.transactionalBus.Flush(u.ctx)

	return nil
}

// Rollback rolls back the transaction and releases the connection
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback()
	u.release()

	// Discard pending events on rollback
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) release() {
	u.tx = nil
	if u.conn != nil {
		u.conn.Close()
		u.conn = nil
	}
}

// Tables returns the identifiers this unit of work is scoped to
func (u *unitOfWork) Tables() models.HouseTables {
	return u.tables
}

// DrawRepository returns the draw repository for this unit of work
func (u *unitOfWork) DrawRepository() service.DrawRepository {
	if u.drawRepo == nil {
		panic("unit of work not started or not scoped to a house - call Begin() first")
	}
	return u.drawRepo
}

// GroupRepository returns the group repository for this unit of work
func (u *unitOfWork) GroupRepository() service.GroupRepository {
	if u.groupRepo == nil {
		panic("unit of work not started or not scoped to a house - call Begin() first")
	}
	return u.groupRepo
}

// HouseRepository returns the house registry repository for this unit of work
func (u *unitOfWork) HouseRepository() service.HouseRepository {
	if u.houseRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.houseRepo
}

// IngestRunRepository returns the ingest run repository for this unit of work
func (u *unitOfWork) IngestRunRepository() service.IngestRunRepository {
	if u.ingestRunRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ingestRunRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() events.Publisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
