package bootstrap

import (
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/handlers"
	"github.com/go-authgate/connectgate/internal/services"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	connection *handlers.ConnectionHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	connectionService *services.ConnectionService,
	statusReporter *services.StatusReporter,
) handlerSet {
	return handlerSet{
		connection: handlers.NewConnectionHandler(
			connectionService,
			statusReporter,
			cfg.BaseURL,
			cfg.ConnectSuccessURL,
		),
	}
}
