package service

import (
	"context"
	"fmt"
	"time"

	"bicho/events"
	"bicho/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxIntermediatePercent caps progress until the transaction has committed
const maxIntermediatePercent = 99.9

type ingestionService struct {
	uowFactory    UnitOfWorkFactory
	fetcher       SnapshotFetcher
	progressEvery int
	now           func() time.Time
}

// NewIngestionService creates a new ingestion service. progressEvery is the
// number of processed entries between progress notifications.
func NewIngestionService(uowFactory UnitOfWorkFactory, fetcher SnapshotFetcher, progressEvery int) IngestionService {
	if progressEvery < 1 {
		progressEvery = 1
	}
	return &ingestionService{
		uowFactory:    uowFactory,
		fetcher:       fetcher,
		progressEvery: progressEvery,
		now:           time.Now,
	}
}

// Ingest stores every valid entry of snapshot in a single transaction
func (s *ingestionService) Ingest(ctx context.Context, house string, snapshot *models.Snapshot, totalUnits int, sink events.Publisher) (*models.IngestResult, error) {
	if sink == nil {
		sink = events.NoopPublisher{}
	}

	uow, err := s.uowFactory.CreateForHouse(house)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve house tables: %w", err)
	}
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	startedAt := s.now().UTC()
	entries := snapshot.EntryCount()
	result := &models.IngestResult{
		RunID:        uuid.NewString(),
		House:        house,
		TotalEntries: entries,
	}
	progress := newProgressTracker(result.RunID, house, max(totalUnits, entries), s.progressEvery, sink)

	log.WithFields(log.Fields{
		"runID":      result.RunID,
		"house":      house,
		"entries":    entries,
		"totalUnits": totalUnits,
	}).Info("Starting ingestion")

	drawRepo := uow.DrawRepository()
	if snapshot != nil {
		for _, group := range snapshot.DrawGroups {
			for _, raw := range group {
				record, ok := models.NormalizeDraw(raw, startedAt)
				if !ok {
					result.Invalid++
					log.WithFields(log.Fields{
						"runID": result.RunID,
						"house": house,
						"place": raw.Place,
					}).Debug("Skipping draw without a usable place")
				} else {
					inserted, err := drawRepo.Insert(ctx, record)
					if err != nil {
						return nil, fmt.Errorf("failed to insert draw: %w", err)
					}
					if inserted {
						result.Inserted++
					} else {
						result.Duplicates++
					}
				}
				progress.advance(ctx)
			}
		}
	}
	result.Skipped = result.Invalid + result.Duplicates

	run := &models.IngestRun{
		RunID:          result.RunID,
		HouseName:      house,
		RequestedUnits: totalUnits,
		TotalEntries:   entries,
		Inserted:       result.Inserted,
		Invalid:        result.Invalid,
		Duplicates:     result.Duplicates,
		StartedAt:      startedAt,
		FinishedAt:     s.now().UTC(),
	}
	if err := uow.IngestRunRepository().Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record ingest run: %w", err)
	}

	completed := events.IngestCompletedEvent{Result: *result}
	uow.EventBus().Publish(ctx, completed)

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	progress.finish(ctx)
	sink.Publish(ctx, completed)

	log.WithFields(log.Fields{
		"runID":      result.RunID,
		"house":      house,
		"inserted":   result.Inserted,
		"invalid":    result.Invalid,
		"duplicates": result.Duplicates,
	}).Info("Ingestion committed")

	return result, nil
}

// Sync fetches the last days of a lottery and ingests them into house
func (s *ingestionService) Sync(ctx context.Context, house, lottery string, days int, sink events.Publisher) (*models.IngestResult, error) {
	if days <= 0 {
		return nil, &models.IngestionError{House: house, Err: models.ErrEmptyRequest}
	}

	snapshot, err := s.fetcher.FetchSnapshot(ctx, lottery, days)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}

	return s.Ingest(ctx, house, snapshot, s.fetcher.RequestedEntries(days), sink)
}

// History returns the most recent ingestions of a house
func (s *ingestionService) History(ctx context.Context, house string, limit int) ([]*models.IngestRun, error) {
	if limit <= 0 {
		return nil, &models.ValidationError{Field: "limit", Message: "limit must be positive"}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	runs, err := uow.IngestRunRepository().ListByHouse(ctx, house, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingest runs: %w", err)
	}

	return runs, nil
}

// progressTracker turns processed entry counts into bounded percentages
type progressTracker struct {
	runID     string
	house     string
	expected  int
	every     int
	processed int
	sink      events.Publisher
}

func newProgressTracker(runID, house string, expected, every int, sink events.Publisher) *progressTracker {
	return &progressTracker{
		runID:    runID,
		house:    house,
		expected: expected,
		every:    every,
		sink:     sink,
	}
}

func (p *progressTracker) advance(ctx context.Context) {
	p.processed++
	if p.processed%p.every != 0 {
		return
	}

	// expected is never below the entry count, so it is positive here
	percent := float64(p.processed) / float64(p.expected) * 100
	if percent > maxIntermediatePercent {
		percent = maxIntermediatePercent
	}
	p.publish(ctx, percent)
}

func (p *progressTracker) finish(ctx context.Context) {
	p.publish(ctx, 100)
}

func (p *progressTracker) publish(ctx context.Context, percent float64) {
	p.sink.Publish(ctx, events.IngestProgressEvent{
		RunID:     p.runID,
		House:     p.house,
		Processed: p.processed,
		Expected:  p.expected,
		Percent:   percent,
	})
}
