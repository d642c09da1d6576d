package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "sweep-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func testIntegration(orgID string, source domain.Source) *domain.IntegrationCredential {
	expires := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	md, _ := domain.NewMetadata(source)
	return &domain.IntegrationCredential{
		OrganizationID: orgID,
		Source:         source,
		AccessToken:    "access-" + orgID,
		RefreshToken:   "refresh-" + orgID,
		ExpiresAt:      &expires,
		Scopes:         []string{"a", "b"},
		Metadata:       md,
		IsActive:       true,
		SyncStatus:     domain.SyncStatusIdle,
		ConnectedBy:    "user-1",
	}
}

// ==================== Store Tests ====================

func TestNewStore_Success(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.FileExists(t, store.Path())
	assert.Equal(t, "sweep.db", filepath.Base(store.Path()))
}

func TestNewStore_ErrorHandling(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0600))

	_, err := NewStore(filepath.Join(file, "data"))
	assert.Error(t, err)
}

func TestNewStore_MigrationsRecorded(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	for _, table := range []string{"integrations", "archived_items", "scheduled_tasks", "task_results"} {
		var name string
		err := store.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.IntegrationStore().Save(context.Background(), testIntegration("org-1", domain.SourceSlack)))
	require.NoError(t, store.Close())

	store, err = NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.IntegrationStore().GetBySource(context.Background(), "org-1", domain.SourceSlack)
	require.NoError(t, err)
	assert.Equal(t, "access-org-1", got.AccessToken)
}

// ==================== IntegrationStore Tests ====================

func TestIntegrationStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	cred := testIntegration("org-1", domain.SourceGoogle)
	cred.Metadata.(*domain.GoogleMetadata).Email = "admin@example.com"
	cred.Metadata.SetWebhook(&domain.WebhookRegistration{
		ID:         "chan-1",
		ResourceID: "res-1",
		Expiration: time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC),
	})

	require.NoError(t, integrations.Save(ctx, cred))
	require.NotEmpty(t, cred.ID)

	got, err := integrations.Get(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, cred.OrganizationID, got.OrganizationID)
	assert.Equal(t, domain.SourceGoogle, got.Source)
	assert.Equal(t, "access-org-1", got.AccessToken)
	assert.Equal(t, "refresh-org-1", got.RefreshToken)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, cred.ExpiresAt.Equal(*got.ExpiresAt))
	assert.Equal(t, []string{"a", "b"}, got.Scopes)
	assert.True(t, got.IsActive)
	assert.Equal(t, "user-1", got.ConnectedBy)

	md, ok := got.Metadata.(*domain.GoogleMetadata)
	require.True(t, ok)
	assert.Equal(t, "admin@example.com", md.Email)
	require.NotNil(t, md.Webhook())
	assert.Equal(t, "chan-1", md.Webhook().ID)
}

func TestIntegrationStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.IntegrationStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.IntegrationStore().GetBySource(context.Background(), "org-1", domain.SourceJira)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntegrationStore_Save_UpsertsOnOrgAndSource(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	first := testIntegration("org-1", domain.SourceLinear)
	require.NoError(t, integrations.Save(ctx, first))

	second := testIntegration("org-1", domain.SourceLinear)
	second.AccessToken = "rotated"
	require.NoError(t, integrations.Save(ctx, second))

	assert.Equal(t, first.ID, second.ID, "conflicting save keeps the stored ID")

	all, err := integrations.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "rotated", all[0].AccessToken)
}

func TestIntegrationStore_Save_InvalidInput(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	assert.ErrorIs(t, integrations.Save(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, integrations.Save(ctx, testIntegration("", domain.SourceSlack)), domain.ErrInvalidInput)
	assert.ErrorIs(t, integrations.Save(ctx, testIntegration("org-1", "TRELLO")), domain.ErrInvalidInput)
}

func TestIntegrationStore_Deactivated(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	cred := testIntegration("org-1", domain.SourceDropbox)
	require.NoError(t, integrations.Save(ctx, cred))

	cred.Deactivate(time.Now())
	require.NoError(t, integrations.Save(ctx, cred))

	got, err := integrations.GetBySource(ctx, "org-1", domain.SourceDropbox)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Empty(t, got.AccessToken)
	assert.Empty(t, got.RefreshToken)
	assert.Nil(t, got.ExpiresAt)
}

func TestIntegrationStore_ListAndListActive(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	require.NoError(t, integrations.Save(ctx, testIntegration("org-1", domain.SourceSlack)))
	require.NoError(t, integrations.Save(ctx, testIntegration("org-1", domain.SourceFigma)))
	inactive := testIntegration("org-2", domain.SourceSlack)
	inactive.IsActive = false
	require.NoError(t, integrations.Save(ctx, inactive))

	org1, err := integrations.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, org1, 2)
	assert.Equal(t, domain.SourceFigma, org1[0].Source)
	assert.Equal(t, domain.SourceSlack, org1[1].Source)

	active, err := integrations.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, c := range active {
		assert.Equal(t, "org-1", c.OrganizationID)
	}
}

func TestIntegrationStore_RecordFailure(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	integrations := store.IntegrationStore()

	cred := testIntegration("org-1", domain.SourceNotion)
	require.NoError(t, integrations.Save(ctx, cred))

	cred.RecordFailure(domain.ErrAuth, time.Now())
	require.NoError(t, integrations.Save(ctx, cred))

	got, err := integrations.Get(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, got.SyncStatus)
	assert.Equal(t, domain.ErrAuth.Error(), got.LastError)
	assert.NotNil(t, got.LastErrorAt)
}

// ==================== ArchiveStore Tests ====================

func TestArchiveStore_SaveAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	archives := store.ArchiveStore()

	item := &domain.ArchivedItem{
		OrganizationID:   "org-1",
		Source:           domain.SourceDropbox,
		ExternalID:       "id:abc",
		Name:             "report.pdf",
		OriginalPath:     "/Reports/report.pdf",
		MimeType:         "application/pdf",
		OriginalMetadata: map[string]string{"path_lower": "/reports/report.pdf"},
		Action:           domain.ArchiveActionDelete,
		ArchivedAt:       time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, archives.Save(ctx, item))
	require.NotEmpty(t, item.ID)

	got, err := archives.Get(ctx, "org-1", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got.Name)
	assert.Equal(t, "/Reports/report.pdf", got.OriginalPath)
	assert.Equal(t, "/reports/report.pdf", got.OriginalMetadata["path_lower"])
	assert.Equal(t, domain.ArchiveActionDelete, got.Action)
	assert.True(t, item.ArchivedAt.Equal(got.ArchivedAt))
	assert.False(t, got.IsRestored())

	restored := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	got.RestoredAt = &restored
	require.NoError(t, archives.Save(ctx, got))

	again, err := archives.Get(ctx, "org-1", item.ID)
	require.NoError(t, err)
	assert.True(t, again.IsRestored())
}

func TestArchiveStore_Get_ScopedToOrganization(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	archives := store.ArchiveStore()

	item := &domain.ArchivedItem{
		OrganizationID: "org-1",
		Source:         domain.SourceGoogle,
		ExternalID:     "file-1",
		Name:           "doc",
		Action:         domain.ArchiveActionTrash,
	}
	require.NoError(t, archives.Save(ctx, item))

	_, err := archives.Get(ctx, "org-2", item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArchiveStore_List_NewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	archives := store.ArchiveStore()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"old", "mid", "new"} {
		require.NoError(t, archives.Save(ctx, &domain.ArchivedItem{
			OrganizationID: "org-1",
			Source:         domain.SourceSlack,
			ExternalID:     "C" + name,
			Name:           name,
			Action:         domain.ArchiveActionArchive,
			ArchivedAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}

	items, err := archives.List(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "new", items[0].Name)
	assert.Equal(t, "old", items[2].Name)
}

// ==================== Helper Function Tests ====================

func TestParseTime_Invalid(t *testing.T) {
	assert.True(t, parseTime("yesterday").IsZero())
	assert.Nil(t, parseTimePtr(sql.NullString{}))
}
