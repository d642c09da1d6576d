package driven

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// Connector performs uniform operations against one provider account.
// Operations outside Capabilities fail with domain.ErrUnsupportedOperation.
// A Connector never touches persistent storage; callers persist results.
type Connector interface {
	// Source returns the provider this connector talks to.
	Source() domain.Source

	// Capabilities returns the operations this connector supports.
	Capabilities() domain.Capability

	// RefreshToken exchanges the stored refresh token for a new access token.
	// Returns domain.ErrAuth if the refresh token is absent or rejected.
	RefreshToken(ctx context.Context) (*domain.OAuthToken, error)

	// TestConnection makes a minimal read-only call.
	// Invalid credentials yield (false, nil); only transport failures error.
	TestConnection(ctx context.Context) (bool, error)

	// RestoreFile brings an archived or deleted item back.
	// Returns domain.ErrNotFound if the provider purged the item.
	RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error

	// RegisterWebhook creates a time-limited subscription delivering to callbackURL.
	// App-level webhook providers return (nil, nil).
	RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error)

	// UnregisterWebhook cancels a subscription created by RegisterWebhook.
	UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error
}

// MetadataLoader is implemented by connectors that can look up account
// details the token response does not carry. Callers treat it as optional.
type MetadataLoader interface {
	LoadMetadata(ctx context.Context) (domain.Metadata, error)
}
