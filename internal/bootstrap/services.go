package bootstrap

import (
	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/core"
	"github.com/go-authgate/connectgate/internal/metrics"
	"github.com/go-authgate/connectgate/internal/models"
	"github.com/go-authgate/connectgate/internal/services"
	"github.com/go-authgate/connectgate/internal/store"
)

// initializeServices creates the connection lifecycle services
func initializeServices(
	cfg *config.Config,
	registry *auth.Registry,
	db *store.Store,
	states core.Cache[models.PendingState],
	recorder metrics.Recorder,
) (*services.ConnectionService, *services.StatusReporter) {
	connectionService := services.NewConnectionService(registry, db, states, recorder, cfg)
	statusReporter := services.NewStatusReporter(connectionService)
	return connectionService, statusReporter
}
