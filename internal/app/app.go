package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/swarmcrew/internal/bus"
	"github.com/ternarybob/swarmcrew/internal/common"
	"github.com/ternarybob/swarmcrew/internal/handlers"
	"github.com/ternarybob/swarmcrew/internal/metrics"
	"github.com/ternarybob/swarmcrew/internal/services/agents"
	"github.com/ternarybob/swarmcrew/internal/services/delivery"
	"github.com/ternarybob/swarmcrew/internal/services/jobs"
	"github.com/ternarybob/swarmcrew/internal/services/llm"
	"github.com/ternarybob/swarmcrew/internal/services/progress"
	"github.com/ternarybob/swarmcrew/internal/services/workers"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Transport
	Bus *bus.Client

	// Services
	ProviderFactory *llm.ProviderFactory
	AgentService    *agents.Service
	WorkerPool      *workers.Pool
	JobService      *jobs.Service

	// HTTP handlers
	JobHandler     *handlers.JobHandler
	StatusHandler  *handlers.StatusHandler
	MetricsHandler http.Handler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	metrics.BuildInfo.WithLabelValues(common.GetVersion(), common.GitCommit).Set(1)

	logger.Info().
		Str("provider", string(app.AgentService.Provider())).
		Bool("nats", app.Bus != nil).
		Bool("callback_default", cfg.Callback.URL != "").
		Int("async_concurrency", cfg.Workers.AsyncConcurrency).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initServices() error {
	// Publishers stay nil interfaces when NATS is not configured
	var progressPublisher progress.Publisher
	var resultPublisher delivery.Publisher
	if a.Config.NATS.URL != "" {
		client, err := bus.Connect(a.Config.NATS.URL, a.Logger)
		if err != nil {
			return err
		}
		a.Bus = client
		progressPublisher = client
		resultPublisher = client
	}

	a.ProviderFactory = llm.NewProviderFactory(a.Config, a.Logger)
	a.AgentService = agents.NewService(a.ProviderFactory, "", a.Logger)

	if err := a.AgentService.CheckCredentials(); err != nil {
		// Not fatal: requests are rejected until a key is configured
		a.Logger.Warn().Err(err).Msg("Agent provider has no API key")
	}

	a.WorkerPool = workers.NewPool(a.Config.Workers.AsyncConcurrency, a.Config.Workers.AsyncQueueSize, a.Logger)

	jobService, err := jobs.NewService(
		a.AgentService,
		a.WorkerPool,
		progress.NewFactory(a.Config.Callback, progressPublisher, a.Config.NATS.SubjectPrefix, a.Logger),
		delivery.NewFactory(a.Config.Callback, resultPublisher, a.Config.NATS.SubjectPrefix, a.Logger),
		a.Config.Crew,
		a.Logger,
	)
	if err != nil {
		return err
	}
	a.JobService = jobService

	return nil
}

func (a *App) initHandlers() {
	a.JobHandler = handlers.NewJobHandler(a.JobService, a.AgentService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Logger)
	if a.Config.Metrics.Enabled {
		a.MetricsHandler = promhttp.Handler()
	}
}

// Shutdown drains deferred jobs so their results are delivered before exit
func (a *App) Shutdown(ctx context.Context) error {
	if a.JobService == nil {
		return nil
	}
	return a.JobService.Shutdown(ctx)
}

// Close releases transport connections and provider clients
func (a *App) Close() error {
	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close provider clients")
		}
	}

	if a.Bus != nil {
		a.Bus.Close()
		a.Logger.Info().Msg("NATS connection drained")
	}

	a.Logger.Debug().
		Int64("background_tasks", common.GetGoroutineCount()).
		Msg("Application closed")

	return nil
}
