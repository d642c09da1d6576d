package driven

import (
	"context"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// IntegrationStore persists integration records.
// Save upserts on (OrganizationID, Source), so at most one record exists per pair.
type IntegrationStore interface {
	// Save creates or updates an integration.
	Save(ctx context.Context, cred *domain.IntegrationCredential) error

	// Get retrieves an integration by ID.
	Get(ctx context.Context, id string) (*domain.IntegrationCredential, error)

	// GetBySource retrieves an organization's integration for a source,
	// active or not. Returns domain.ErrNotFound if none exists.
	GetBySource(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error)

	// List returns all integrations for an organization.
	List(ctx context.Context, orgID string) ([]domain.IntegrationCredential, error)

	// ListActive returns active integrations across organizations.
	ListActive(ctx context.Context) ([]domain.IntegrationCredential, error)
}

// ArchiveStore persists archived items.
type ArchiveStore interface {
	// Save creates or updates an archived item.
	Save(ctx context.Context, item *domain.ArchivedItem) error

	// Get retrieves an organization's archived item by ID.
	Get(ctx context.Context, orgID, id string) (*domain.ArchivedItem, error)

	// List returns an organization's archived items, newest first.
	List(ctx context.Context, orgID string) ([]domain.ArchivedItem, error)
}
