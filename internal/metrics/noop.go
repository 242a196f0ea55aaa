package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordConnectInitiated(provider string, success bool) {}
func (n *NoopMetrics) RecordOAuthCallback(provider, result string)          {}
func (n *NoopMetrics) RecordTokenRefresh(provider, result string)           {}
func (n *NoopMetrics) RecordDisconnect(provider string)                     {}
func (n *NoopMetrics) RecordStatusCheck(provider, state string)             {}

func (n *NoopMetrics) RecordProviderCall(
	provider, operation string,
	success bool,
	duration time.Duration,
) {
}

func (n *NoopMetrics) SetPendingStatesCount(count int)                {}
func (n *NoopMetrics) SetConnectionsCount(provider string, count int) {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)      {}
