package services

import (
	"strings"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
)

// Ensure SourceRegistry implements the interface.
var _ driving.SourceRegistry = (*SourceRegistry)(nil)

// SourceRegistry provides information about sources, their capabilities
// and whether an OAuth application is configured for them.
type SourceRegistry struct {
	factory  driven.ConnectorFactory
	configs  driven.OAuthConfigRegistry
	settings *domain.Settings
}

// NewSourceRegistry creates a new SourceRegistry.
func NewSourceRegistry(factory driven.ConnectorFactory, configs driven.OAuthConfigRegistry, settings *domain.Settings) *SourceRegistry {
	return &SourceRegistry{factory: factory, configs: configs, settings: settings}
}

// Sources returns all registered sources.
func (r *SourceRegistry) Sources() []driving.SourceInfo {
	sources := r.factory.SupportedSources()
	out := make([]driving.SourceInfo, 0, len(sources))
	for _, src := range sources {
		if info, err := r.Source(src); err == nil {
			out = append(out, *info)
		}
	}
	return out
}

// Source describes one source.
func (r *SourceRegistry) Source(source domain.Source) (*driving.SourceInfo, error) {
	caps, err := r.factory.Capabilities(source)
	if err != nil {
		return nil, err
	}

	info := &driving.SourceInfo{
		Source:       source,
		DisplayName:  source.DisplayName(),
		Capabilities: caps,
		Operations:   strings.Split(caps.String(), ","),
		CallbackURL:  r.settings.CallbackURL(source),
	}
	if caps.SupportsWebhooks() {
		info.WebhookURL = r.settings.WebhookURL(source)
	}
	if cfg, err := r.configs.Get(source); err == nil {
		info.Configured = true
		info.Scopes = cfg.Scopes
	}
	return info, nil
}

