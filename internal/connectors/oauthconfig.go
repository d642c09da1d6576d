package connectors

import (
	"fmt"
	"sync"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.OAuthConfigRegistry = (*ConfigRegistry)(nil)

// ConfigRegistry resolves OAuth client configuration from settings,
// filling endpoints and scopes from the provider defaults.
type ConfigRegistry struct {
	mu      sync.RWMutex
	configs map[domain.Source]domain.OAuthConfig
}

// NewConfigRegistry builds the registry. Sources without a client id or
// secret stay unconfigured and fail lookups.
func NewConfigRegistry(settings *domain.Settings) *ConfigRegistry {
	r := &ConfigRegistry{configs: make(map[domain.Source]domain.OAuthConfig)}
	for _, src := range domain.AllSources() {
		p := settings.Provider(src)
		d := Defaults(src)

		cfg := domain.OAuthConfig{
			Source:           src,
			ClientID:         p.ClientID,
			ClientSecret:     p.ClientSecret,
			AuthorizationURL: firstNonEmpty(p.AuthURL, d.AuthURL),
			TokenURL:         firstNonEmpty(p.TokenURL, d.TokenURL),
			RedirectURI:      settings.CallbackURL(src),
			Scopes:           d.Scopes,
			UserScopes:       d.UserScopes,
		}
		if len(p.Scopes) > 0 {
			cfg.Scopes = append([]string(nil), p.Scopes...)
		}
		if len(p.UserScopes) > 0 {
			cfg.UserScopes = append([]string(nil), p.UserScopes...)
		}
		r.configs[src] = cfg
	}
	return r
}

// Get returns the configuration for source.
func (r *ConfigRegistry) Get(source domain.Source) (*domain.OAuthConfig, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}

	r.mu.RLock()
	cfg, ok := r.configs[source]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no OAuth configuration for %s", domain.ErrConfiguration, source)
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: %s client id or secret is not set", domain.ErrConfiguration, source)
	}

	out := cfg
	out.Scopes = append([]string(nil), cfg.Scopes...)
	out.UserScopes = append([]string(nil), cfg.UserScopes...)
	return &out, nil
}

// IsConfigured reports whether Get would succeed for source.
func (r *ConfigRegistry) IsConfigured(source domain.Source) bool {
	_, err := r.Get(source)
	return err == nil
}

// Set replaces the configuration of one source.
func (r *ConfigRegistry) Set(cfg domain.OAuthConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Source] = cfg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
