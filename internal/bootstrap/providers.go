package bootstrap

import (
	"log/slog"
	"sort"

	"github.com/go-authgate/connectgate/internal/auth"
	"github.com/go-authgate/connectgate/internal/config"
	"github.com/go-authgate/connectgate/internal/httpclient"
)

var providerConstructors = map[string]func(auth.Credentials) auth.ProviderConfig{
	config.ProviderGmail:   auth.GmailConfig,
	config.ProviderDiscord: auth.DiscordConfig,
	config.ProviderSlack:   auth.SlackConfig,
}

// ProviderConfigs builds the OAuth configuration of every enabled provider
// and returns the ids of the disabled ones. Both lists are sorted by id.
func ProviderConfigs(cfg *config.Config) ([]auth.ProviderConfig, []string) {
	settings := cfg.Providers()
	ids := make([]string, 0, len(settings))
	for id := range settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		enabled  []auth.ProviderConfig
		disabled []string
	)
	for _, id := range ids {
		s := settings[id]
		if !s.Enabled {
			disabled = append(disabled, id)
			continue
		}
		enabled = append(enabled, providerConstructors[id](auth.Credentials{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			RedirectURI:  s.RedirectURL,
			Scopes:       s.Scopes,
		}))
	}
	return enabled, disabled
}

// initializeRegistry builds the provider registry. Misconfigured providers
// are registered and reported, never dropped.
func initializeRegistry(cfg *config.Config) (*auth.Registry, error) {
	client, err := httpclient.NewProviderClient(cfg.OAuthTimeout, cfg.OAuthInsecureSkipVerify)
	if err != nil {
		return nil, err
	}

	configs, disabled := ProviderConfigs(cfg)
	registry := auth.NewRegistry(client, cfg.OAuthTimeout, configs...)
	logProvidersStatus(registry, disabled)
	return registry, nil
}

// logProvidersStatus logs the provider registry at startup
func logProvidersStatus(registry *auth.Registry, disabled []string) {
	for _, info := range registry.List() {
		if info.Configured {
			slog.Info("OAuth provider configured", "provider", info.ID)
			continue
		}
		slog.Warn("OAuth provider misconfigured",
			"provider", info.ID, "kind", "misconfigured_provider", "problem", info.Problem)
	}
	if len(disabled) > 0 {
		slog.Info("OAuth providers disabled", "providers", disabled)
	}
}
