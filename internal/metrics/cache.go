package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/connectgate/internal/cache"
	"github.com/go-authgate/connectgate/internal/core"
)

const connectionCountsKey = "connections:by_provider"

// CacheWrapper provides a read-through cache for gauge data so frequent
// scrapes do not each hit the database.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[map[string]int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(
	store core.MetricsStore,
	cache core.Cache[map[string]int64],
) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetConnectionCounts returns stored connections per provider, cached for ttl.
func (m *CacheWrapper) GetConnectionCounts(
	ctx context.Context,
	ttl time.Duration,
) (map[string]int64, error) {
	counts, err := m.cache.Get(ctx, connectionCountsKey)
	if err == nil {
		return counts, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}

	counts, err = m.store.CountConnectionsByProvider(ctx)
	if err != nil {
		return nil, err
	}
	// a failed cache write only costs the next caller a query
	_ = m.cache.Set(ctx, connectionCountsKey, counts, ttl)
	return counts, nil
}

// UpdateConnectionGauges refreshes the connection gauge of every provider.
// Providers without records are reset to zero.
func UpdateConnectionGauges(
	ctx context.Context,
	m Recorder,
	w *CacheWrapper,
	providers []string,
	ttl time.Duration,
) error {
	counts, err := w.GetConnectionCounts(ctx, ttl)
	if err != nil {
		m.RecordDatabaseQueryError("count_connections")
		return err
	}
	for _, provider := range providers {
		m.SetConnectionsCount(provider, int(counts[provider]))
	}
	return nil
}
