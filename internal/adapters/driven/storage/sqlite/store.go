package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sweep/data/sweep.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sweep", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sweep.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  func() time.Time { return time.Now().UTC() },
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IntegrationStore returns an IntegrationStore backed by this store.
func (s *Store) IntegrationStore() driven.IntegrationStore {
	return &integrationStore{store: s}
}

// ArchiveStore returns an ArchiveStore backed by this store.
func (s *Store) ArchiveStore() driven.ArchiveStore {
	return &archiveStore{store: s}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(script); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ==================== Integration Store ====================

const integrationColumns = `id, organization_id, source, access_token, refresh_token, expires_at,
	scopes, metadata, is_active, sync_status, last_error, last_error_at, connected_by,
	created_at, updated_at`

// integrationStore implements driven.IntegrationStore.
type integrationStore struct {
	store *Store
}

var _ driven.IntegrationStore = (*integrationStore)(nil)

// Save upserts on (organization_id, source). The stored ID and creation
// time win over the caller's on conflict, and are written back to cred.
func (s *integrationStore) Save(ctx context.Context, cred *domain.IntegrationCredential) error {
	if cred == nil || cred.OrganizationID == "" || !cred.Source.IsValid() {
		return domain.ErrInvalidInput
	}

	now := s.store.now()
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

	scopes, err := json.Marshal(nonNilStrings(cred.Scopes))
	if err != nil {
		return fmt.Errorf("marshalling scopes: %w", err)
	}
	metadata, err := domain.EncodeMetadata(cred.Metadata)
	if err != nil {
		return err
	}

	var id, createdAt string
	err = s.store.db.QueryRowContext(ctx, `
		INSERT INTO integrations (`+integrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, source) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scopes = excluded.scopes,
			metadata = excluded.metadata,
			is_active = excluded.is_active,
			sync_status = excluded.sync_status,
			last_error = excluded.last_error,
			last_error_at = excluded.last_error_at,
			connected_by = excluded.connected_by,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, cred.ID, cred.OrganizationID, string(cred.Source),
		nullString(cred.AccessToken), nullString(cred.RefreshToken), formatTimePtr(cred.ExpiresAt),
		string(scopes), string(metadata), boolToInt(cred.IsActive), string(cred.SyncStatus),
		nullString(cred.LastError), formatTimePtr(cred.LastErrorAt), nullString(cred.ConnectedBy),
		formatTime(cred.CreatedAt), formatTime(cred.UpdatedAt),
	).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("saving integration: %w", err)
	}

	cred.ID = id
	cred.CreatedAt = parseTime(createdAt)
	return nil
}

// Get retrieves an integration by ID.
func (s *integrationStore) Get(ctx context.Context, id string) (*domain.IntegrationCredential, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, id)
	return scanIntegration(row)
}

// GetBySource retrieves an organization's integration for a source.
func (s *integrationStore) GetBySource(
	ctx context.Context, orgID string, source domain.Source,
) (*domain.IntegrationCredential, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE organization_id = ? AND source = ?`,
		orgID, string(source))
	return scanIntegration(row)
}

// List returns all integrations for an organization.
func (s *integrationStore) List(ctx context.Context, orgID string) ([]domain.IntegrationCredential, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE organization_id = ? ORDER BY source`, orgID)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	return collectIntegrations(rows)
}

// ListActive returns active integrations across organizations.
func (s *integrationStore) ListActive(ctx context.Context) ([]domain.IntegrationCredential, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE is_active = 1 ORDER BY organization_id, source`)
	if err != nil {
		return nil, fmt.Errorf("querying active integrations: %w", err)
	}
	return collectIntegrations(rows)
}

func collectIntegrations(rows *sql.Rows) ([]domain.IntegrationCredential, error) {
	defer rows.Close()

	var creds []domain.IntegrationCredential //nolint:prealloc // size unknown from query
	for rows.Next() {
		cred, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integrations: %w", err)
	}
	return creds, nil
}

func scanIntegration(row rowScanner) (*domain.IntegrationCredential, error) {
	var cred domain.IntegrationCredential
	var source, syncStatus, scopes, createdAt, updatedAt string
	var accessToken, refreshToken, expiresAt, metadata, lastError, lastErrorAt, connectedBy sql.NullString
	var active int

	err := row.Scan(&cred.ID, &cred.OrganizationID, &source, &accessToken, &refreshToken, &expiresAt,
		&scopes, &metadata, &active, &syncStatus, &lastError, &lastErrorAt, &connectedBy,
		&createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning integration: %w", err)
	}

	cred.Source = domain.Source(source)
	cred.AccessToken = accessToken.String
	cred.RefreshToken = refreshToken.String
	cred.ExpiresAt = parseTimePtr(expiresAt)
	if err := json.Unmarshal([]byte(scopes), &cred.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshalling scopes: %w", err)
	}
	if cred.Metadata, err = domain.DecodeMetadata(cred.Source, []byte(metadata.String)); err != nil {
		return nil, err
	}
	cred.IsActive = active == 1
	cred.SyncStatus = domain.SyncStatus(syncStatus)
	cred.LastError = lastError.String
	cred.LastErrorAt = parseTimePtr(lastErrorAt)
	cred.ConnectedBy = connectedBy.String
	cred.CreatedAt = parseTime(createdAt)
	cred.UpdatedAt = parseTime(updatedAt)

	return &cred, nil
}

// ==================== Archive Store ====================

const archiveColumns = `id, organization_id, source, external_id, name, original_path, parent_id,
	mime_type, original_metadata, action, archived_at, restored_at`

// archiveStore implements driven.ArchiveStore.
type archiveStore struct {
	store *Store
}

var _ driven.ArchiveStore = (*archiveStore)(nil)

// Save creates or updates an archived item.
func (s *archiveStore) Save(ctx context.Context, item *domain.ArchivedItem) error {
	if item == nil || item.OrganizationID == "" || !item.Source.IsValid() {
		return domain.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.ArchivedAt.IsZero() {
		item.ArchivedAt = s.store.now()
	}

	var meta any
	if len(item.OriginalMetadata) > 0 {
		raw, err := json.Marshal(item.OriginalMetadata)
		if err != nil {
			return fmt.Errorf("marshalling original metadata: %w", err)
		}
		meta = string(raw)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO archived_items (`+archiveColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			original_path = excluded.original_path,
			parent_id = excluded.parent_id,
			mime_type = excluded.mime_type,
			original_metadata = excluded.original_metadata,
			action = excluded.action,
			archived_at = excluded.archived_at,
			restored_at = excluded.restored_at
	`, item.ID, item.OrganizationID, string(item.Source), item.ExternalID, item.Name,
		nullString(item.OriginalPath), nullString(item.ParentID), nullString(item.MimeType),
		meta, string(item.Action), formatTime(item.ArchivedAt), formatTimePtr(item.RestoredAt))
	if err != nil {
		return fmt.Errorf("saving archived item: %w", err)
	}
	return nil
}

// Get retrieves an organization's archived item by ID.
func (s *archiveStore) Get(ctx context.Context, orgID, id string) (*domain.ArchivedItem, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+archiveColumns+` FROM archived_items WHERE organization_id = ? AND id = ?`, orgID, id)
	return scanArchivedItem(row)
}

// List returns an organization's archived items, newest first.
func (s *archiveStore) List(ctx context.Context, orgID string) ([]domain.ArchivedItem, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+archiveColumns+` FROM archived_items WHERE organization_id = ? ORDER BY archived_at DESC, id`,
		orgID)
	if err != nil {
		return nil, fmt.Errorf("querying archived items: %w", err)
	}
	defer rows.Close()

	var items []domain.ArchivedItem //nolint:prealloc // size unknown from query
	for rows.Next() {
		item, err := scanArchivedItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archived items: %w", err)
	}
	return items, nil
}

func scanArchivedItem(row rowScanner) (*domain.ArchivedItem, error) {
	var item domain.ArchivedItem
	var source, action, archivedAt string
	var originalPath, parentID, mimeType, meta, restoredAt sql.NullString

	err := row.Scan(&item.ID, &item.OrganizationID, &source, &item.ExternalID, &item.Name,
		&originalPath, &parentID, &mimeType, &meta, &action, &archivedAt, &restoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning archived item: %w", err)
	}

	item.Source = domain.Source(source)
	item.OriginalPath = originalPath.String
	item.ParentID = parentID.String
	item.MimeType = mimeType.String
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &item.OriginalMetadata); err != nil {
			return nil, fmt.Errorf("unmarshalling original metadata: %w", err)
		}
	}
	item.Action = domain.ArchiveAction(action)
	item.ArchivedAt = parseTime(archivedAt)
	item.RestoredAt = parseTimePtr(restoredAt)

	return &item, nil
}

// ==================== Helper Functions ====================

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// formatNullableTime formats a time, or returns nil for the zero time.
func formatNullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatNullableTime(*t)
}

// parseNullableTime returns the zero time for NULL or unparsable values.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTime(s.String)
}

func parseTimePtr(s sql.NullString) *time.Time {
	t := parseNullableTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
