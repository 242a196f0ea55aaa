package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-authgate/connectgate/internal/cache"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/core"
	"github.com/go-authgate/connectgate/internal/metrics"
	"github.com/go-authgate/connectgate/internal/models"
)

// initializeMetrics initializes Prometheus metrics
func initializeMetrics(cfg *config.Config) metrics.Recorder {
	recorder := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		slog.Info("Prometheus metrics initialized")
	} else {
		slog.Info("metrics disabled, using noop recorder")
	}
	return recorder
}

// initializeMetricsCache creates the per-instance cache for gauge queries.
// Returns nil when metrics are disabled.
func initializeMetricsCache(cfg *config.Config) core.Cache[map[string]int64] {
	if !cfg.MetricsEnabled {
		return nil
	}
	return cache.NewMemoryCache[map[string]int64]()
}

// initializeStateCache creates the pending-state store. Redis lets any
// instance redeem a state issued by another one.
func initializeStateCache(
	ctx context.Context,
	cfg *config.Config,
) (core.Cache[models.PendingState], error) {
	switch cfg.StateStore {
	case config.StateStoreRedis:
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		c, err := cache.NewRueidisCache[models.PendingState](
			ctx,
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
			"connectgate:",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis state store: %w", err)
		}
		slog.Info("pending state store: redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return c, nil

	default:
		slog.Info("pending state store: memory (single instance only)")
		return cache.NewMemoryCache[models.PendingState](), nil
	}
}
