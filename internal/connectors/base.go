package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// TokenRefresher exchanges refresh tokens at a provider token endpoint.
type TokenRefresher interface {
	Refresh(ctx context.Context, cfg *domain.OAuthConfig, refreshToken string) (*domain.OAuthToken, error)
}

// Deps are shared collaborators injected into every connector of a source.
type Deps struct {
	OAuth      driven.OAuthConfigRegistry
	Tokens     TokenRefresher
	HTTPClient *http.Client
	Limiter    *RateLimiter
	// APIBase overrides the provider API root when non-empty.
	APIBase string
	// WebhookSecret is the shared secret providers echo or sign with.
	WebhookSecret string
}

// Base implements every Connector operation as unsupported, except
// RefreshToken for sources declaring CapRefreshToken and the app-level
// webhook no-op for sources declaring CapWebhooks. Provider connectors
// embed it and override what they support.
type Base struct {
	source domain.Source
	caps   domain.Capability
	Creds  domain.ConnectorCredentials
	Deps   Deps
}

// NewBase creates the shared connector core.
func NewBase(source domain.Source, caps domain.Capability, creds domain.ConnectorCredentials, deps Deps) Base {
	if deps.HTTPClient == nil {
		deps.HTTPClient = http.DefaultClient
	}
	return Base{source: source, caps: caps, Creds: creds, Deps: deps}
}

// Source returns the provider.
func (b *Base) Source() domain.Source {
	return b.source
}

// Capabilities returns the declared capability set.
func (b *Base) Capabilities() domain.Capability {
	return b.caps
}

// Unsupported returns the error for an operation this connector lacks.
func (b *Base) Unsupported(op string) error {
	return domain.NewConnectorError(b.source, op, domain.ErrUnsupportedOperation)
}

// RefreshToken runs the standard refresh_token grant.
func (b *Base) RefreshToken(ctx context.Context) (*domain.OAuthToken, error) {
	if !b.caps.SupportsRefresh() {
		return nil, b.Unsupported("refresh token")
	}
	if b.Creds.RefreshToken == "" {
		return nil, domain.NewConnectorError(b.source, "refresh token",
			fmt.Errorf("%w: no refresh token stored", domain.ErrAuth))
	}
	if b.Deps.OAuth == nil || b.Deps.Tokens == nil {
		return nil, domain.NewConnectorError(b.source, "refresh token", domain.ErrNotImplemented)
	}
	cfg, err := b.Deps.OAuth.Get(b.source)
	if err != nil {
		return nil, err
	}
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}
	return b.Deps.Tokens.Refresh(ctx, cfg, b.Creds.RefreshToken)
}

// TestConnection is unsupported unless overridden.
func (b *Base) TestConnection(_ context.Context) (bool, error) {
	return false, b.Unsupported("test connection")
}

// RestoreFile is unsupported unless overridden.
func (b *Base) RestoreFile(_ context.Context, _ domain.RestoreCommand) error {
	return b.Unsupported("restore file")
}

// RegisterWebhook is the app-level no-op for sources declaring webhooks.
func (b *Base) RegisterWebhook(_ context.Context, _ string) (*domain.WebhookRegistration, error) {
	if !b.caps.SupportsWebhooks() {
		return nil, b.Unsupported("register webhook")
	}
	return nil, nil
}

// UnregisterWebhook is the app-level no-op for sources declaring webhooks.
func (b *Base) UnregisterWebhook(_ context.Context, _ *domain.WebhookRegistration) error {
	if !b.caps.SupportsWebhooks() {
		return b.Unsupported("unregister webhook")
	}
	return nil
}

// Wait blocks on the source rate limiter, if any.
func (b *Base) Wait(ctx context.Context) error {
	if b.Deps.Limiter == nil {
		return nil
	}
	return b.Deps.Limiter.Wait(ctx)
}

// APIBase returns the override or fallback.
func (b *Base) APIBase(fallback string) string {
	if b.Deps.APIBase != "" {
		return b.Deps.APIBase
	}
	return fallback
}

// RequireWebhookSecret fails with ErrConfiguration when no secret is configured.
func (b *Base) RequireWebhookSecret() (string, error) {
	if b.Deps.WebhookSecret == "" {
		return "", domain.NewConnectorError(b.source, "register webhook",
			fmt.Errorf("%w: webhook secret is not configured", domain.ErrConfiguration))
	}
	return b.Deps.WebhookSecret, nil
}

// Fail wraps a provider error with this connector's source and op.
func (b *Base) Fail(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewConnectorError(b.source, op, err)
}

// ConnectionResult turns the outcome of a lightweight API call into TestConnection's
// contract: credential failures are (false, nil).
func ConnectionResult(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrAuth):
		return false, nil
	default:
		return false, err
	}
}
