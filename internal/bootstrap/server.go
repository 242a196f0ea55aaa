package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/core"
	"github.com/go-authgate/connectgate/internal/metrics"
	"github.com/go-authgate/connectgate/internal/models"

	"github.com/appleboy/graceful"
	"github.com/redis/go-redis/v9"
)

// createHTTPServer creates the HTTP server instance. The write timeout
// leaves room for a callback that waits on a slow provider.
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30*time.Second + 2*cfg.OAuthTimeout,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				os.Exit(1)
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addServerShutdownJob adds HTTP server shutdown handler
func addServerShutdownJob(m *graceful.Manager, srv *http.Server, timeout time.Duration) {
	m.AddShutdownJob(func() error {
		slog.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
			return err
		}

		slog.Info("server exited")
		return nil
	})
}

// addRedisClientShutdownJob adds Redis client shutdown handler
func addRedisClientShutdownJob(m *graceful.Manager, redisClient *redis.Client) {
	if redisClient == nil {
		return
	}
	addCloserShutdownJob(m, "rate limit redis client", redisClient.Close)
}

// addCloserShutdownJob closes a resource on shutdown
func addCloserShutdownJob(m *graceful.Manager, name string, closer func() error) {
	m.AddShutdownJob(func() error {
		if err := closer(); err != nil {
			slog.Error("error closing resource", "resource", name, "error", err)
			return err
		}
		slog.Info("resource closed", "resource", name)
		return nil
	})
}

// sweepable is implemented by caches that expire entries lazily.
type sweepable interface {
	Cleanup() int
}

// addStateCleanupJob sweeps expired pending states from the memory store and
// publishes how many remain. Redis expires keys by itself.
func addStateCleanupJob(
	m *graceful.Manager,
	cfg *config.Config,
	states core.Cache[models.PendingState],
	recorder metrics.Recorder,
) {
	sweeper, ok := states.(sweepable)
	if !ok {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.StateCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				recorder.SetPendingStatesCount(sweeper.Cleanup())
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// addMetricsGaugeUpdateJob adds periodic metrics gauge update job
func addMetricsGaugeUpdateJob(
	m *graceful.Manager,
	cfg *config.Config,
	db core.MetricsStore,
	providers []string,
	recorder metrics.Recorder,
	metricsCache core.Cache[map[string]int64],
) {
	if !cfg.MetricsEnabled || metricsCache == nil {
		return
	}

	m.AddRunningJob(func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
		defer ticker.Stop()

		cacheWrapper := metrics.NewCacheWrapper(db, metricsCache)
		errLog := newErrorLogger()
		update := func() {
			err := metrics.UpdateConnectionGauges(
				ctx,
				recorder,
				cacheWrapper,
				providers,
				cfg.MetricsGaugeUpdateInterval,
			)
			if err != nil {
				errLog.logIfNeeded("count_connections", err)
			}
		}

		// Update immediately on startup
		update()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
	now             func() time.Time
}

// newErrorLogger creates a new error logger with rate limiting
func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
		now:             time.Now,
	}
}

// logIfNeeded logs an error only if rate limit allows and reports whether
// it did.
func (e *errorLogger) logIfNeeded(operation string, err error) bool {
	now := e.now()
	lastTime, exists := e.lastErrorTimes[operation]
	if exists && now.Sub(lastTime) < e.rateLimitWindow {
		return false
	}

	slog.Error("database query failed",
		"operation", operation,
		"error", err,
		"suppressed_for", e.rateLimitWindow,
	)
	e.lastErrorTimes[operation] = now
	return true
}
