package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Ensure ArchiveStore implements the interface.
var _ driven.ArchiveStore = (*ArchiveStore)(nil)

// ArchiveStore is an in-memory implementation of driven.ArchiveStore.
type ArchiveStore struct {
	mu    sync.RWMutex
	items map[string]domain.ArchivedItem
}

// NewArchiveStore creates a new in-memory archive store.
func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{
		items: make(map[string]domain.ArchivedItem),
	}
}

// Save creates or updates an archived item.
func (s *ArchiveStore) Save(_ context.Context, item *domain.ArchivedItem) error {
	if item == nil || item.OrganizationID == "" || !item.Source.IsValid() {
		return domain.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ArchivedAt.IsZero() {
		item.ArchivedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = copyArchivedItem(*item)
	return nil
}

// Get retrieves an organization's archived item by ID.
func (s *ArchiveStore) Get(_ context.Context, orgID, id string) (*domain.ArchivedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok || item.OrganizationID != orgID {
		return nil, domain.ErrNotFound
	}
	out := copyArchivedItem(item)
	return &out, nil
}

// List returns an organization's archived items, newest first.
func (s *ArchiveStore) List(_ context.Context, orgID string) ([]domain.ArchivedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.ArchivedItem
	for _, item := range s.items {
		if item.OrganizationID == orgID {
			result = append(result, copyArchivedItem(item))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ArchivedAt.Equal(result[j].ArchivedAt) {
			return result[i].ArchivedAt.After(result[j].ArchivedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func copyArchivedItem(item domain.ArchivedItem) domain.ArchivedItem {
	item.OriginalMetadata = maps.Clone(item.OriginalMetadata)
	item.RestoredAt = copyTime(item.RestoredAt)
	return item
}
