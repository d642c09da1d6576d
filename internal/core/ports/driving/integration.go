package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// IntegrationService manages connected integrations.
type IntegrationService interface {
	// List returns an organization's integrations.
	List(ctx context.Context, orgID string) ([]domain.IntegrationCredential, error)

	// Get returns an organization's integration for a source.
	Get(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error)

	// Refresh renews the access token and persists the outcome.
	Refresh(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error)

	// TestConnection checks the stored credentials against the provider.
	TestConnection(ctx context.Context, orgID string, source domain.Source) (bool, error)

	// Disconnect unregisters webhooks best-effort and deactivates the integration.
	// Disconnecting an inactive or missing integration is not an error.
	Disconnect(ctx context.Context, orgID string, source domain.Source) error

	// Restore brings an archived item back at its provider.
	Restore(ctx context.Context, orgID, archiveID string) (*domain.ArchivedItem, error)

	// RenewWebhooks re-registers webhooks expiring within the window.
	RenewWebhooks(ctx context.Context, within time.Duration) (int, error)

	// RefreshExpiring refreshes tokens expiring within the window.
	RefreshExpiring(ctx context.Context, within time.Duration) (int, error)
}
