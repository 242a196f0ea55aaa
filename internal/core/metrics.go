package core

import (
	"context"
	"time"
)

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Connection lifecycle
	RecordConnectInitiated(provider string, success bool)
	RecordOAuthCallback(provider, result string)
	RecordTokenRefresh(provider, result string)
	RecordDisconnect(provider string)
	RecordStatusCheck(provider, state string)

	// Provider calls (exchange, refresh, account)
	RecordProviderCall(provider, operation string, success bool, duration time.Duration)

	// Gauge Setters
	SetPendingStatesCount(count int)
	SetConnectionsCount(provider string, count int)

	RecordDatabaseQueryError(operation string)
}

// MetricsStore is the read side of the token store used for gauges.
type MetricsStore interface {
	CountConnectionsByProvider(ctx context.Context) (map[string]int64, error)
}
