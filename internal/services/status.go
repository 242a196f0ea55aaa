package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-authgate/connectgate/internal/models"
)

// Status is the user-facing summary of one connection.
type Status struct {
	Provider              string     `json:"provider"`
	Connected             bool       `json:"connected"`
	Valid                 bool       `json:"valid"`
	NeedsReauthentication bool       `json:"needsReauthentication"`
	Email                 *string    `json:"email"`
	ExpiresAt             *time.Time `json:"expiresAt"`
}

// State returns a short label for metrics and logs.
func (s *Status) State() string {
	switch {
	case !s.Connected:
		return "disconnected"
	case s.Valid:
		return "valid"
	case s.NeedsReauthentication:
		return "needs_reauth"
	default:
		return "expired"
	}
}

// StatusReporter derives Status values from the connection lifecycle. It
// writes nothing itself; an expired token may be refreshed by the
// underlying validity check.
type StatusReporter struct {
	connections *ConnectionService
}

func NewStatusReporter(connections *ConnectionService) *StatusReporter {
	return &StatusReporter{connections: connections}
}

// Report returns the status of (userID, provider).
func (r *StatusReporter) Report(ctx context.Context, userID, provider string) (*Status, error) {
	validity, err := r.connections.CheckValidity(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	status := newStatus(provider, validity)
	r.connections.metrics.RecordStatusCheck(provider, status.State())
	return status, nil
}

// ReportAll returns the status of every registered provider for userID,
// ordered by provider id. Only expired connections go through the
// validity check.
func (r *StatusReporter) ReportAll(ctx context.Context, userID string) ([]Status, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	svc := r.connections
	conns, err := svc.store.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	byProvider := make(map[string]*models.Connection, len(conns))
	for i := range conns {
		byProvider[conns[i].Provider] = &conns[i]
	}

	ids := svc.registry.IDs()
	out := make([]Status, 0, len(ids))
	for _, id := range ids {
		conn, ok := byProvider[id]
		if ok && conn.IsExpired(svc.now(), svc.leeway) {
			status, err := r.Report(ctx, userID, id)
			if err != nil {
				return nil, err
			}
			out = append(out, *status)
			continue
		}

		validity := &Validity{NeedsReauthentication: true}
		if ok {
			validity = &Validity{Connected: true, Valid: true, Connection: conn}
		}
		status := newStatus(id, validity)
		svc.metrics.RecordStatusCheck(id, status.State())
		out = append(out, *status)
	}
	return out, nil
}

func newStatus(provider string, v *Validity) *Status {
	status := &Status{
		Provider:              provider,
		Connected:             v.Connected,
		Valid:                 v.Valid,
		NeedsReauthentication: v.NeedsReauthentication,
	}
	if v.Connected && v.Connection != nil {
		if v.Connection.Email != "" {
			email := v.Connection.Email
			status.Email = &email
		}
		if v.Connection.CanExpire() {
			expiresAt := v.Connection.ExpiresAt
			status.ExpiresAt = &expiresAt
		}
	}
	return status
}
