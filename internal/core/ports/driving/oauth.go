package driving

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// OAuthService runs the authorization handshake.
type OAuthService interface {
	// Authorize mints a state and returns the provider redirect URL.
	// params carries optional provider hints (domain.AuthorizeParams).
	// Returns domain.ErrConfiguration if the source is not configured.
	Authorize(ctx context.Context, source domain.Source, orgID, userID string, params map[string]string) (string, error)

	// Callback verifies the state, exchanges the code and persists the integration.
	Callback(ctx context.Context, source domain.Source, code, state string) (*domain.IntegrationCredential, error)
}
