package cmd

import (
	"context"
	"fmt"
	"net/http"

	"bicho/config"
	"bicho/database"
	"bicho/events"
	"bicho/provider"
	"bicho/repository"
	"bicho/service"

	log "github.com/sirupsen/logrus"
)

// App holds the wired services shared by every subcommand
type App struct {
	db *database.DB

	Houses    *service.HouseCache
	Ingestion service.IngestionService
	Groups    service.GroupService
	Analytics service.AnalyticsService
	Tables    service.TableService
}

// NewApp opens the database, applies pending migrations and wires the services
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log.WithField("path", cfg.DatabasePath).Debug("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabasePath,
		database.WithMaxOpenConns(cfg.MaxOpenConns),
		database.WithBusyTimeout(cfg.BusyTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	eventBus := events.NewBus()
	eventBus.Subscribe(events.EventTypeIngestCompleted, func(ctx context.Context, event events.Event) {
		completed := event.(events.IngestCompletedEvent)
		log.WithFields(log.Fields{
			"runID":    completed.Result.RunID,
			"house":    completed.Result.House,
			"inserted": completed.Result.Inserted,
			"skipped":  completed.Result.Skipped,
		}).Debug("Ingestion committed event received")
	})
	eventBus.Subscribe(events.EventTypeHouseCacheRefreshed, func(ctx context.Context, event events.Event) {
		refreshed := event.(events.HouseCacheRefreshedEvent)
		log.WithField("houses", refreshed.Houses).Debug("House cache refreshed event received")
	})

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	client := provider.NewClient(cfg.ProviderBaseURL, &http.Client{Timeout: cfg.HTTPTimeout})

	return &App{
		db:        db,
		Houses:    service.NewHouseCache(client, cfg.HouseCacheTTL, service.WithRefreshPublisher(eventBus)),
		Ingestion: service.NewIngestionService(uowFactory, client, cfg.IngestProgressEvery),
		Groups:    service.NewGroupService(uowFactory),
		Analytics: service.NewAnalyticsService(uowFactory),
		Tables:    service.NewTableService(uowFactory),
	}, nil
}

// Close releases the database pool
func (a *App) Close() error {
	return a.db.Close()
}
