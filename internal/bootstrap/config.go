package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/go-authgate/connectgate/internal/config"
)

// validateAllConfiguration validates all configuration settings
func validateAllConfiguration(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.OAuthInsecureSkipVerify && cfg.IsProduction {
		slog.Warn("OAUTH_INSECURE_SKIP_VERIFY is enabled in production")
	}
	return nil
}
