// Package factory wires the built-in provider connectors and webhook
// handlers to their shared dependencies.
package factory

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/connectors/dropbox"
	"github.com/custodia-labs/sweep/internal/connectors/figma"
	"github.com/custodia-labs/sweep/internal/connectors/google"
	"github.com/custodia-labs/sweep/internal/connectors/jira"
	"github.com/custodia-labs/sweep/internal/connectors/linear"
	"github.com/custodia-labs/sweep/internal/connectors/microsoft"
	"github.com/custodia-labs/sweep/internal/connectors/notion"
	"github.com/custodia-labs/sweep/internal/connectors/slack"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

type entry struct {
	caps    domain.Capability
	builder driven.ConnectorBuilder
}

// Factory creates connectors keyed on source.
type Factory struct {
	mu       sync.RWMutex
	builders map[domain.Source]entry
}

// New creates an empty factory.
func New() *Factory {
	return &Factory{builders: make(map[domain.Source]entry)}
}

// NewWithBuiltins creates a factory with every provider registered.
// Dependencies are built once and shared by all connectors of a source.
func NewWithBuiltins(settings *domain.Settings, oauth driven.OAuthConfigRegistry, tokens connectors.TokenRefresher) *Factory {
	f := New()
	f.registerBuiltinConnectors(settings, oauth, tokens)
	return f
}

// Create returns a connector bound to creds. It performs no I/O.
func (f *Factory) Create(source domain.Source, creds domain.ConnectorCredentials) (driven.Connector, error) {
	f.mu.RLock()
	e, ok := f.builders[source]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	return e.builder(creds)
}

// Register adds or replaces the builder for source.
func (f *Factory) Register(source domain.Source, caps domain.Capability, builder driven.ConnectorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[source] = entry{caps: caps, builder: builder}
}

// Capabilities returns the declared capability set for source.
func (f *Factory) Capabilities(source domain.Source) (domain.Capability, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.builders[source]
	if !ok {
		return domain.CapNone, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	return e.caps, nil
}

// SupportedSources returns the registered sources in enum order.
func (f *Factory) SupportedSources() []domain.Source {
	f.mu.RLock()
	defer f.mu.RUnlock()

	order := make(map[domain.Source]int)
	for i, s := range domain.AllSources() {
		order[s] = i
	}
	out := make([]domain.Source, 0, len(f.builders))
	for s := range f.builders {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

func (f *Factory) registerBuiltinConnectors(settings *domain.Settings, oauth driven.OAuthConfigRegistry, tokens connectors.TokenRefresher) {
	client := &http.Client{Timeout: settings.Connectors.HTTPTimeout}
	deps := func(source domain.Source) connectors.Deps {
		p := settings.Provider(source)
		return connectors.Deps{
			OAuth:         oauth,
			Tokens:        tokens,
			HTTPClient:    client,
			Limiter:       limiterFor(settings, source),
			APIBase:       p.APIBase,
			WebhookSecret: p.WebhookSecret,
		}
	}

	f.registerGoogle(deps(domain.SourceGoogle))
	f.registerMicrosoft(deps(domain.SourceMicrosoft))
	f.registerDropbox(deps(domain.SourceDropbox))
	f.registerSlack(deps(domain.SourceSlack))
	f.registerFigma(deps(domain.SourceFigma))
	f.registerLinear(deps(domain.SourceLinear))
	f.registerJira(deps(domain.SourceJira))
	f.registerNotion(deps(domain.SourceNotion))
}

func (f *Factory) registerGoogle(deps connectors.Deps) {
	f.Register(domain.SourceGoogle, google.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return google.New(creds, deps), nil
	})
}

func (f *Factory) registerMicrosoft(deps connectors.Deps) {
	f.Register(domain.SourceMicrosoft, microsoft.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return microsoft.New(creds, deps), nil
	})
}

func (f *Factory) registerDropbox(deps connectors.Deps) {
	f.Register(domain.SourceDropbox, dropbox.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return dropbox.New(creds, deps), nil
	})
}

func (f *Factory) registerSlack(deps connectors.Deps) {
	f.Register(domain.SourceSlack, slack.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return slack.New(creds, deps), nil
	})
}

func (f *Factory) registerFigma(deps connectors.Deps) {
	f.Register(domain.SourceFigma, figma.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return figma.New(creds, deps), nil
	})
}

func (f *Factory) registerLinear(deps connectors.Deps) {
	f.Register(domain.SourceLinear, linear.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return linear.New(creds, deps), nil
	})
}

func (f *Factory) registerJira(deps connectors.Deps) {
	f.Register(domain.SourceJira, jira.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return jira.New(creds, deps), nil
	})
}

func (f *Factory) registerNotion(deps connectors.Deps) {
	f.Register(domain.SourceNotion, notion.Capabilities, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
		return notion.New(creds, deps), nil
	})
}

// limiterFor prefers the configured global rate, falling back to the
// per-source defaults.
func limiterFor(settings *domain.Settings, source domain.Source) *connectors.RateLimiter {
	if settings.Connectors.RateLimit > 0 {
		burst := settings.Connectors.RateBurst
		if burst <= 0 {
			burst = 1
		}
		return connectors.NewRateLimiterWithConfig(connectors.RateLimitConfig{
			RequestsPerSecond: settings.Connectors.RateLimit,
			BurstSize:         burst,
		})
	}
	return connectors.NewRateLimiter(source)
}
