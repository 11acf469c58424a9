package repository

import (
	"context"
	"fmt"
	"time"

	"bicho/models"
)

// IngestRunRepository implements the IngestRunRepository interface
type IngestRunRepository struct {
	q queryable
}

// newIngestRunRepository creates an ingest run repository
func newIngestRunRepository(q queryable) *IngestRunRepository {
	return &IngestRunRepository{q: q}
}

// Create records a committed ingestion
func (r *IngestRunRepository) Create(ctx context.Context, run *models.IngestRun) error {
	query := `
		INSERT INTO ingest_runs (
			run_id, house_name, requested_units, total_entries,
			inserted, invalid, duplicates, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.q.ExecContext(ctx, query,
		run.RunID,
		run.HouseName,
		run.RequestedUnits,
		run.TotalEntries,
		run.Inserted,
		run.Invalid,
		run.Duplicates,
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return &models.StorageError{Op: "record ingest run", House: run.HouseName, Err: err}
	}

	return nil
}

// ListByHouse returns up to limit runs of a house, newest first
func (r *IngestRunRepository) ListByHouse(ctx context.Context, house string, limit int) ([]*models.IngestRun, error) {
	query := `
		SELECT run_id, house_name, requested_units, total_entries,
		       inserted, invalid, duplicates, started_at, finished_at
		FROM ingest_runs
		WHERE house_name = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := r.q.QueryContext(ctx, query, house, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs for %q: %w", house, err)
	}
	defer rows.Close()

	runs := []*models.IngestRun{}
	for rows.Next() {
		var (
			run                 models.IngestRun
			startedAt, finished int64
		)
		if err := rows.Scan(
			&run.RunID,
			&run.HouseName,
			&run.RequestedUnits,
			&run.TotalEntries,
			&run.Inserted,
			&run.Invalid,
			&run.Duplicates,
			&startedAt,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedAt).UTC()
		run.FinishedAt = time.UnixMilli(finished).UTC()
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
