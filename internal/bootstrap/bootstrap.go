package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/core"
	"github.com/go-authgate/connectgate/internal/metrics"
	"github.com/go-authgate/connectgate/internal/models"
	"github.com/go-authgate/connectgate/internal/services"
	"github.com/go-authgate/connectgate/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	MetricsCache         core.Cache[map[string]int64]
	StateCache           core.Cache[models.PendingState]
	RateLimitRedisClient *redis.Client

	// Services
	Registry          *auth.Registry
	ConnectionService *services.ConnectionService
	StatusReporter    *services.StatusReporter

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := validateAllConfiguration(cfg); err != nil {
		return err
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 3: Initialize business layer
	if err := app.initializeBusinessLayer(); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 4: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.closeInfrastructure()
		return err
	}

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, caches and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	app.MetricsRecorder = initializeMetrics(app.Config)
	app.MetricsCache = initializeMetricsCache(app.Config)

	app.StateCache, err = initializeStateCache(ctx, app.Config)
	if err != nil {
		return err
	}

	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up the provider registry and services
func (app *Application) initializeBusinessLayer() error {
	registry, err := initializeRegistry(app.Config)
	if err != nil {
		return err
	}
	app.Registry = registry

	app.ConnectionService, app.StatusReporter = initializeServices(
		app.Config,
		app.Registry,
		app.DB,
		app.StateCache,
		app.MetricsRecorder,
	)
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(app.Config, app.ConnectionService, app.StatusReporter)

	router, err := setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)
	if err != nil {
		return err
	}
	app.Router = router
	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// closeInfrastructure releases whatever was opened before a failed start.
func (app *Application) closeInfrastructure() {
	if app.RateLimitRedisClient != nil {
		_ = app.RateLimitRedisClient.Close()
	}
	if app.StateCache != nil {
		_ = app.StateCache.Close()
	}
	if app.MetricsCache != nil {
		_ = app.MetricsCache.Close()
	}
	if app.DB != nil {
		_ = app.DB.Close()
	}
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server, app.Config.ServerShutdownTimeout)
	addStateCleanupJob(m, app.Config, app.StateCache, app.MetricsRecorder)
	addMetricsGaugeUpdateJob(
		m,
		app.Config,
		app.DB,
		app.Registry.IDs(),
		app.MetricsRecorder,
		app.MetricsCache,
	)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCloserShutdownJob(m, "pending state cache", app.StateCache.Close)
	if app.MetricsCache != nil {
		addCloserShutdownJob(m, "metrics cache", app.MetricsCache.Close)
	}
	addCloserShutdownJob(m, "database", app.DB.Close)

	<-m.Done()
}
