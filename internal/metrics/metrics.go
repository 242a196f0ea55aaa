package metrics

import (
	"sync"
	"time"

	"github.com/go-authgate/connectgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is an alias for core.Recorder so callers can keep using
// metrics.Recorder.
type Recorder = core.Recorder

// Ensure Metrics implements Recorder interface at compile time
var _ Recorder = (*Metrics)(nil)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Connection lifecycle
	ConnectInitiatedTotal *prometheus.CounterVec
	OAuthCallbackTotal    *prometheus.CounterVec
	TokenRefreshTotal     *prometheus.CounterVec
	DisconnectTotal       *prometheus.CounterVec
	StatusCheckTotal      *prometheus.CounterVec

	// Provider calls
	ProviderCallTotal    *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec

	// Gauges
	PendingStates     prometheus.Gauge
	ConnectionsStored *prometheus.GaugeVec

	// HTTP Request Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Database Query Metrics
	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Init initializes metrics based on enabled flag
// If enabled=true, returns Prometheus-based Metrics
// If enabled=false, returns NoopMetrics (zero overhead)
// Uses sync.Once to ensure Prometheus metrics are only registered once
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}

	once.Do(func() {
		defaultMetrics = initMetrics()
	})
	return defaultMetrics
}

// initMetrics creates and registers all Prometheus metrics
func initMetrics() *Metrics {
	return &Metrics{
		ConnectInitiatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_initiated_total",
				Help: "Total number of connect flows started",
			},
			[]string{"provider", "result"}, // success, error
		),
		OAuthCallbackTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_oauth_callback_total",
				Help: "Total number of OAuth callbacks by outcome",
			},
			[]string{"provider", "result"}, // success, state_mismatch, exchange_failed, ...
		),
		TokenRefreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_token_refresh_total",
				Help: "Total number of token refresh attempts",
			},
			[]string{"provider", "result"}, // success, revoked, transient
		),
		DisconnectTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_disconnect_total",
				Help: "Total number of disconnect requests",
			},
			[]string{"provider"},
		),
		StatusCheckTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_status_check_total",
				Help: "Total number of status checks by reported state",
			},
			[]string{"provider", "state"}, // disconnected, valid, expired, needs_reauth
		),
		ProviderCallTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "connect_provider_calls_total",
				Help: "Total number of calls to provider endpoints",
			},
			[]string{"provider", "operation", "result"},
		),
		ProviderCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "connect_provider_call_duration_seconds",
				Help:    "Provider call duration",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"provider", "operation"}, // exchange, refresh, account
		),
		PendingStates: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "connect_pending_states",
				Help: "Current number of issued states waiting for a callback",
			},
		),
		ConnectionsStored: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "connect_connections",
				Help: "Current number of stored connections",
			},
			[]string{"provider"},
		),
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		DatabaseQueryErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_query_errors_total",
				Help: "Total number of database query errors during metric collection",
			},
			[]string{"operation"},
		),
	}
}

func resultLabel(success bool) string {
	if success {
		return resultSuccess
	}
	return resultError
}

// RecordConnectInitiated records the start of a connect flow
func (m *Metrics) RecordConnectInitiated(provider string, success bool) {
	m.ConnectInitiatedTotal.WithLabelValues(provider, resultLabel(success)).Inc()
	if success {
		m.PendingStates.Inc()
	}
}

// RecordOAuthCallback records a callback outcome
func (m *Metrics) RecordOAuthCallback(provider, result string) {
	m.OAuthCallbackTotal.WithLabelValues(provider, result).Inc()
}

// RecordTokenRefresh records a refresh attempt
func (m *Metrics) RecordTokenRefresh(provider, result string) {
	m.TokenRefreshTotal.WithLabelValues(provider, result).Inc()
}

// RecordDisconnect records a disconnect request
func (m *Metrics) RecordDisconnect(provider string) {
	m.DisconnectTotal.WithLabelValues(provider).Inc()
}

// RecordStatusCheck records the state reported by a status check
func (m *Metrics) RecordStatusCheck(provider, state string) {
	m.StatusCheckTotal.WithLabelValues(provider, state).Inc()
}

// RecordProviderCall records one call to a provider endpoint
func (m *Metrics) RecordProviderCall(
	provider, operation string,
	success bool,
	duration time.Duration,
) {
	m.ProviderCallTotal.WithLabelValues(provider, operation, resultLabel(success)).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// SetPendingStatesCount sets the pending state gauge (for periodic updates)
func (m *Metrics) SetPendingStatesCount(count int) {
	m.PendingStates.Set(float64(count))
}

// SetConnectionsCount sets the stored connection gauge of one provider
func (m *Metrics) SetConnectionsCount(provider string, count int) {
	m.ConnectionsStored.WithLabelValues(provider).Set(float64(count))
}

// RecordDatabaseQueryError records a database query error during metric collection
func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
