package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Ensure IntegrationStore implements the interface.
var _ driven.IntegrationStore = (*IntegrationStore)(nil)

type orgSource struct {
	org    string
	source domain.Source
}

// IntegrationStore is an in-memory implementation of driven.IntegrationStore.
// Records are copied on the way in and out so callers never share state.
type IntegrationStore struct {
	mu    sync.RWMutex
	byID  map[string]*domain.IntegrationCredential
	byKey map[orgSource]string
}

// NewIntegrationStore creates a new in-memory integration store.
func NewIntegrationStore() *IntegrationStore {
	return &IntegrationStore{
		byID:  make(map[string]*domain.IntegrationCredential),
		byKey: make(map[orgSource]string),
	}
}

// Save upserts on (OrganizationID, Source).
func (s *IntegrationStore) Save(_ context.Context, cred *domain.IntegrationCredential) error {
	if cred == nil || cred.OrganizationID == "" || !cred.Source.IsValid() {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := orgSource{org: cred.OrganizationID, source: cred.Source}
	if id, ok := s.byKey[key]; ok {
		cred.ID = id
		cred.CreatedAt = s.byID[id].CreatedAt
	}
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = now
	}
	if cred.SyncStatus == "" {
		cred.SyncStatus = domain.SyncStatusIdle
	}

	stored, err := copyIntegration(cred)
	if err != nil {
		return err
	}
	s.byID[cred.ID] = stored
	s.byKey[key] = cred.ID
	return nil
}

// Get retrieves an integration by ID.
func (s *IntegrationStore) Get(_ context.Context, id string) (*domain.IntegrationCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyIntegration(cred)
}

// GetBySource retrieves an organization's integration for a source.
func (s *IntegrationStore) GetBySource(
	_ context.Context, orgID string, source domain.Source,
) (*domain.IntegrationCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[orgSource{org: orgID, source: source}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyIntegration(s.byID[id])
}

// List returns all integrations for an organization, ordered by source.
func (s *IntegrationStore) List(_ context.Context, orgID string) ([]domain.IntegrationCredential, error) {
	return s.filter(func(c *domain.IntegrationCredential) bool { return c.OrganizationID == orgID })
}

// ListActive returns active integrations across organizations.
func (s *IntegrationStore) ListActive(_ context.Context) ([]domain.IntegrationCredential, error) {
	return s.filter(func(c *domain.IntegrationCredential) bool { return c.IsActive })
}

func (s *IntegrationStore) filter(keep func(*domain.IntegrationCredential) bool) ([]domain.IntegrationCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.IntegrationCredential, 0, len(s.byID))
	for _, cred := range s.byID {
		if !keep(cred) {
			continue
		}
		c, err := copyIntegration(cred)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OrganizationID != result[j].OrganizationID {
			return result[i].OrganizationID < result[j].OrganizationID
		}
		return result[i].Source < result[j].Source
	})
	return result, nil
}

// copyIntegration deep-copies a record. Metadata goes through its JSON
// encoding, the same path the SQL stores use.
func copyIntegration(src *domain.IntegrationCredential) (*domain.IntegrationCredential, error) {
	dst := *src
	dst.ExpiresAt = copyTime(src.ExpiresAt)
	dst.LastErrorAt = copyTime(src.LastErrorAt)
	if src.Scopes != nil {
		dst.Scopes = append([]string(nil), src.Scopes...)
	}
	if src.Metadata != nil {
		raw, err := domain.EncodeMetadata(src.Metadata)
		if err != nil {
			return nil, err
		}
		if dst.Metadata, err = domain.DecodeMetadata(src.Source, raw); err != nil {
			return nil, err
		}
	}
	return &dst, nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
