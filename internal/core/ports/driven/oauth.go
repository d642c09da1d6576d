package driven

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// OAuthConfigRegistry looks up the OAuth application for a source.
type OAuthConfigRegistry interface {
	// Get returns the config or domain.ErrConfiguration when the source is
	// unconfigured or its secrets are missing.
	Get(source domain.Source) (*domain.OAuthConfig, error)

	// IsConfigured reports whether Get would succeed.
	IsConfigured(source domain.Source) bool
}

// TokenExchanger turns an authorization code into tokens.
type TokenExchanger interface {
	Exchange(ctx context.Context, cfg *domain.OAuthConfig, code string) (*domain.OAuthToken, error)
}

// PendingAuthStateStore holds single-use OAuth states.
type PendingAuthStateStore interface {
	// Save stores a pending state under st.State.
	Save(ctx context.Context, st *domain.OAuthPendingState) error

	// Consume atomically fetches and deletes a state.
	// Returns domain.ErrInvalidState when the token is unknown, already
	// consumed or older than domain.PendingStateTTL.
	Consume(ctx context.Context, token string) (*domain.OAuthPendingState, error)

	// Sweep deletes expired states and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}
