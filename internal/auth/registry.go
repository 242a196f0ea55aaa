package auth

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// ProviderInfo describes a registered provider for listings.
type ProviderInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Problem    string `json:"problem,omitempty"`
}

// Registry maps provider ids to their configuration. It is built once at
// start and read-only afterwards.
type Registry struct {
	configs   map[string]ProviderConfig
	providers map[string]*OAuthProvider
	problems  map[string]error
}

// NewRegistry registers every config. Misconfigured providers stay
// registered so lookups fail with ErrMisconfiguredProvider instead of
// ErrUnknownProvider.
func NewRegistry(
	httpClient *http.Client,
	timeout time.Duration,
	configs ...ProviderConfig,
) *Registry {
	r := &Registry{
		configs:   make(map[string]ProviderConfig, len(configs)),
		providers: make(map[string]*OAuthProvider, len(configs)),
		problems:  make(map[string]error),
	}
	for _, cfg := range configs {
		r.configs[cfg.ID] = cfg
		if err := cfg.Validate(); err != nil {
			r.problems[cfg.ID] = err
			continue
		}
		r.providers[cfg.ID] = NewOAuthProvider(cfg, httpClient, timeout)
	}
	return r
}

// GetConfig returns the configuration of a fully configured provider.
func (r *Registry) GetConfig(id string) (ProviderConfig, error) {
	cfg, ok := r.configs[id]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if err := r.problems[id]; err != nil {
		return ProviderConfig{}, err
	}
	return cfg, nil
}

// Provider returns the OAuth client for a fully configured provider.
func (r *Registry) Provider(id string) (*OAuthProvider, error) {
	if _, err := r.GetConfig(id); err != nil {
		return nil, err
	}
	return r.providers[id], nil
}

// Has reports whether id is registered, configured or not.
func (r *Registry) Has(id string) bool {
	_, ok := r.configs[id]
	return ok
}

// IDs returns the registered provider ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List describes every registered provider.
func (r *Registry) List() []ProviderInfo {
	ids := r.IDs()
	out := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		info := ProviderInfo{
			ID:         id,
			Name:       r.configs[id].DisplayName,
			Configured: r.problems[id] == nil,
		}
		if err := r.problems[id]; err != nil {
			info.Problem = err.Error()
		}
		out = append(out, info)
	}
	return out
}

// Problems returns the validation error of every misconfigured provider.
func (r *Registry) Problems() map[string]error {
	out := make(map[string]error, len(r.problems))
	for id, err := range r.problems {
		out[id] = err
	}
	return out
}
