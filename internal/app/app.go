// Package app wires configuration, storage, queues, services and handlers
// into one runnable application.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/curtail/internal/common"
	"github.com/ternarybob/curtail/internal/handlers"
	"github.com/ternarybob/curtail/internal/interfaces"
	"github.com/ternarybob/curtail/internal/models"
	"github.com/ternarybob/curtail/internal/queue"
	"github.com/ternarybob/curtail/internal/services/cache"
	"github.com/ternarybob/curtail/internal/services/events"
	"github.com/ternarybob/curtail/internal/services/geo"
	"github.com/ternarybob/curtail/internal/services/ratelimit"
	"github.com/ternarybob/curtail/internal/services/reachability"
	"github.com/ternarybob/curtail/internal/services/safebrowsing"
	"github.com/ternarybob/curtail/internal/services/scheduler"
	"github.com/ternarybob/curtail/internal/services/shortener"
	"github.com/ternarybob/curtail/internal/services/stats"
	"github.com/ternarybob/curtail/internal/services/validation"
	"github.com/ternarybob/curtail/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// Queues and their polling pools
	WorkQueue      interfaces.Queue
	ResultQueue    interfaces.Queue
	WorkerPool     *queue.WorkerPool
	SinkPool       *queue.WorkerPool

	// Services
	EventService     interfaces.EventService
	CacheService     *cache.Service
	RateLimiter      interfaces.RateLimiter
	Orchestrator     *validation.Orchestrator
	ShortenerService *shortener.Service
	StatsService     *stats.Service
	GeoProcessor     interfaces.GeoProcessor
	Scheduler        *scheduler.Service

	// HTTP handlers
	LinkHandler   *handlers.LinkHandler
	StatsHandler  *handlers.StatsHandler
	StatusHandler *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initQueues(); err != nil {
		return nil, fmt.Errorf("failed to initialize queues: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	return app, nil
}

func (a *App) initStorage() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")
	return nil
}

func (a *App) initQueues() error {
	visibility := common.ParseDuration(a.Config.Queue.VisibilityTimeout, 0)

	workQueue, err := queue.NewBadgerQueue(
		a.StorageManager.DB(),
		a.Config.SafeBrowsing.WorkQueue,
		visibility,
		a.Config.Queue.MaxReceive,
	)
	if err != nil {
		return fmt.Errorf("failed to open work queue: %w", err)
	}
	a.WorkQueue = workQueue

	resultQueue, err := queue.NewBadgerQueue(
		a.StorageManager.DB(),
		a.Config.SafeBrowsing.ResultQueue,
		visibility,
		a.Config.Queue.MaxReceive,
	)
	if err != nil {
		return fmt.Errorf("failed to open result queue: %w", err)
	}
	a.ResultQueue = resultQueue

	return nil
}

func (a *App) initServices() error {
	a.EventService = events.NewService(a.Logger)
	a.CacheService = cache.NewService(a.StorageManager.KV(), a.Logger)
	a.RateLimiter = ratelimit.NewTokenBucket(a.Config.SafeBrowsing.RateLimit)

	prober := reachability.NewProber(a.Config.Reachability, a.Config.Retry, a.CacheService, a.Logger)
	safetyClient := safebrowsing.NewClient(a.Config.SafeBrowsing, a.Logger)

	a.Orchestrator = validation.NewOrchestrator(a.StorageManager.Jobs(), a.WorkQueue, a.Logger)
	a.ShortenerService = shortener.NewService(a.StorageManager.ShortURLs(), a.Logger)
	a.StatsService = stats.NewService(a.StorageManager.KV(), a.Logger)

	worker := validation.NewWorker(
		a.WorkQueue,
		a.ResultQueue,
		prober,
		safetyClient,
		a.RateLimiter,
		a.Config.Retry,
		a.Logger,
	)
	sink := validation.NewSink(a.StorageManager.Jobs(), a.EventService, a.Logger)

	pollInterval := common.ParseDuration(a.Config.Queue.PollInterval, 0)
	a.WorkerPool = queue.NewWorkerPool("validation", a.WorkQueue, worker,
		a.Config.Queue.Concurrency, pollInterval, a.Logger)
	// Single sink worker: status writes stay serialized per queue drain.
	a.SinkPool = queue.NewWorkerPool("results", a.ResultQueue, sink, 1, pollInterval, a.Logger)

	providers := []interfaces.GeoProvider{
		geo.NewIPAPIProvider(a.Config.Geo.Provider, a.Logger),
		geo.NewFallbackProvider(a.Config.Geo.Fallback, a.Logger),
	}
	a.GeoProcessor = geo.NewProcessor(a.Config.Geo, providers, a.CacheService,
		a.StorageManager.Clicks(), a.StatsService, a.Logger)

	a.Scheduler = scheduler.NewService(a.StorageManager.DB(), a.Logger)

	// Event wiring: clicks feed the geo pipeline, Safe verdicts commit
	// short links.
	if err := a.EventService.Subscribe(interfaces.EventClick, a.clickEventHandler()); err != nil {
		return fmt.Errorf("failed to subscribe click handler: %w", err)
	}
	if err := a.EventService.Subscribe(interfaces.EventJobTerminal, a.ShortenerService.TerminalJobHandler()); err != nil {
		return fmt.Errorf("failed to subscribe terminal job handler: %w", err)
	}

	return nil
}

func (a *App) initHandlers() {
	a.LinkHandler = handlers.NewLinkHandler(a.Orchestrator, a.ShortenerService, a.EventService, a.Logger)
	a.StatsHandler = handlers.NewStatsHandler(a.StatsService, a.ShortenerService, a.StorageManager.Clicks(), a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.WorkQueue, a.ResultQueue, a.RateLimiter, a.Config.Environment, a.Logger)
}

// Start launches the background machinery: worker pools, geo pipeline and
// the maintenance scheduler.
func (a *App) Start() error {
	a.GeoProcessor.Start()
	a.WorkerPool.Start()
	a.SinkPool.Start()

	if err := a.Scheduler.Start(a.Config.Maintenance); err != nil {
		return fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}

	a.Logger.Info().
		Str("work_queue", a.Config.SafeBrowsing.WorkQueue).
		Str("result_queue", a.Config.SafeBrowsing.ResultQueue).
		Msg("Application started")
	return nil
}

// clickEventHandler feeds click events into the geo pipeline.
func (a *App) clickEventHandler() interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		click, ok := event.Payload.(models.ClickEvent)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event.Payload)
		}
		a.GeoProcessor.Emit(click)
		return nil
	}
}

// Stop shuts everything down in reverse order of Start.
func (a *App) Stop() {
	a.Scheduler.Stop()
	a.WorkerPool.Stop()
	a.SinkPool.Stop()
	a.GeoProcessor.Stop()

	if err := a.StorageManager.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close failed")
	}

	a.Logger.Info().Msg("Application stopped")
}
