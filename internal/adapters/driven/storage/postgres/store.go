package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Store provides the storage ports on a shared PostgreSQL database.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore connects to dsn and applies pending migrations.
func NewStore(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := Migrate(dsn, logger); err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IntegrationStore returns an IntegrationStore backed by this store.
func (s *Store) IntegrationStore() driven.IntegrationStore {
	return &integrationStore{store: s}
}

// ArchiveStore returns an ArchiveStore backed by this store.
func (s *Store) ArchiveStore() driven.ArchiveStore {
	return &archiveStore{store: s}
}

// migrationLogger adapts zap to migrate.Logger.
type migrationLogger struct {
	logger *zap.SugaredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Infof(format, v...)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// Migrate applies the embedded migrations on a dedicated connection.
func Migrate(dsn string, logger *zap.Logger) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		db.Close()
		return fmt.Errorf("loading migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()
	m.Log = migrationLogger{logger: logger.Sugar()}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, dirty, _ := m.Version()
		logger.Error("migration failed",
			zap.Uint("version", version), zap.Bool("dirty", dirty), zap.Error(err))
		return fmt.Errorf("applying migrations: %w", err)
	}
	logger.Info("database migrations complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ==================== Integration Store ====================

var integrationColumns = []string{
	"id", "organization_id", "source", "access_token", "refresh_token", "expires_at",
	"scopes", "metadata", "is_active", "sync_status", "last_error", "last_error_at",
	"connected_by", "created_at", "updated_at",
}

type integrationRow struct {
	ID             string         `db:"id"`
	OrganizationID string         `db:"organization_id"`
	Source         string         `db:"source"`
	AccessToken    sql.NullString `db:"access_token"`
	RefreshToken   sql.NullString `db:"refresh_token"`
	ExpiresAt      sql.NullTime   `db:"expires_at"`
	Scopes         pq.StringArray `db:"scopes"`
	Metadata       []byte         `db:"metadata"`
	IsActive       bool           `db:"is_active"`
	SyncStatus     string         `db:"sync_status"`
	LastError      sql.NullString `db:"last_error"`
	LastErrorAt    sql.NullTime   `db:"last_error_at"`
	ConnectedBy    sql.NullString `db:"connected_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *integrationRow) toDomain() (*domain.IntegrationCredential, error) {
	cred := &domain.IntegrationCredential{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Source:         domain.Source(r.Source),
		AccessToken:    r.AccessToken.String,
		RefreshToken:   r.RefreshToken.String,
		ExpiresAt:      timePtr(r.ExpiresAt),
		Scopes:         []string(r.Scopes),
		IsActive:       r.IsActive,
		SyncStatus:     domain.SyncStatus(r.SyncStatus),
		LastError:      r.LastError.String,
		LastErrorAt:    timePtr(r.LastErrorAt),
		ConnectedBy:    r.ConnectedBy.String,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	md, err := domain.DecodeMetadata(cred.Source, r.Metadata)
	if err != nil {
		return nil, err
	}
	cred.Metadata = md
	return cred, nil
}

// integrationStore implements driven.IntegrationStore.
type integrationStore struct {
	store *Store
}

var _ driven.IntegrationStore = (*integrationStore)(nil)

// Save upserts on (organization_id, source). The stored ID and creation
// time are written back to cred.
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

	metadata, err := domain.EncodeMetadata(cred.Metadata)
	if err != nil {
		return err
	}
	scopes := cred.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("integrations")
	ib.Cols(integrationColumns...)
	ib.Values(cred.ID, cred.OrganizationID, string(cred.Source),
		nullString(cred.AccessToken), nullString(cred.RefreshToken), nullTime(cred.ExpiresAt),
		pq.StringArray(scopes), string(metadata), cred.IsActive, string(cred.SyncStatus),
		nullString(cred.LastError), nullTime(cred.LastErrorAt), nullString(cred.ConnectedBy),
		cred.CreatedAt, cred.UpdatedAt)
	ib.SQL(`ON CONFLICT (organization_id, source) DO UPDATE SET
		access_token = EXCLUDED.access_token,
		refresh_token = EXCLUDED.refresh_token,
		expires_at = EXCLUDED.expires_at,
		scopes = EXCLUDED.scopes,
		metadata = EXCLUDED.metadata,
		is_active = EXCLUDED.is_active,
		sync_status = EXCLUDED.sync_status,
		last_error = EXCLUDED.last_error,
		last_error_at = EXCLUDED.last_error_at,
		connected_by = EXCLUDED.connected_by,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`)

	query, args := ib.Build()
	var stored struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := s.store.db.GetContext(ctx, &stored, query, args...); err != nil {
		s.store.logger.Error("failed to save integration",
			zap.String("organization_id", cred.OrganizationID),
			zap.String("source", cred.Source.String()),
			zap.Error(err))
		return fmt.Errorf("saving integration: %w", err)
	}

	cred.ID = stored.ID
	cred.CreatedAt = stored.CreatedAt.UTC()
	return nil
}

// Get retrieves an integration by ID.
func (s *integrationStore) Get(ctx context.Context, id string) (*domain.IntegrationCredential, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(integrationColumns...).From("integrations")
	sb.Where(sb.Equal("id", id))
	return s.getOne(ctx, sb)
}

// GetBySource retrieves an organization's integration for a source.
func (s *integrationStore) GetBySource(
	ctx context.Context, orgID string, source domain.Source,
) (*domain.IntegrationCredential, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(integrationColumns...).From("integrations")
	sb.Where(
		sb.Equal("organization_id", orgID),
		sb.Equal("source", string(source)),
	)
	return s.getOne(ctx, sb)
}

// List returns all integrations for an organization.
func (s *integrationStore) List(ctx context.Context, orgID string) ([]domain.IntegrationCredential, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(integrationColumns...).From("integrations")
	sb.Where(sb.Equal("organization_id", orgID))
	sb.OrderBy("source")
	return s.getMany(ctx, sb)
}

// ListActive returns active integrations across organizations.
func (s *integrationStore) ListActive(ctx context.Context) ([]domain.IntegrationCredential, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(integrationColumns...).From("integrations")
	sb.Where(sb.Equal("is_active", true))
	sb.OrderBy("organization_id", "source")
	return s.getMany(ctx, sb)
}

func (s *integrationStore) getOne(ctx context.Context, sb *sqlbuilder.SelectBuilder) (*domain.IntegrationCredential, error) {
	query, args := sb.Build()
	var row integrationRow
	if err := s.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying integration: %w", err)
	}
	return row.toDomain()
}

func (s *integrationStore) getMany(ctx context.Context, sb *sqlbuilder.SelectBuilder) ([]domain.IntegrationCredential, error) {
	query, args := sb.Build()
	var rows []integrationRow
	if err := s.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}

	creds := make([]domain.IntegrationCredential, 0, len(rows))
	for i := range rows {
		cred, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		creds = append(creds, *cred)
	}
	return creds, nil
}

// ==================== Archive Store ====================

var archiveColumns = []string{
	"id", "organization_id", "source", "external_id", "name", "original_path", "parent_id",
	"mime_type", "original_metadata", "action", "archived_at", "restored_at",
}

type archiveRow struct {
	ID               string         `db:"id"`
	OrganizationID   string         `db:"organization_id"`
	Source           string         `db:"source"`
	ExternalID       string         `db:"external_id"`
	Name             string         `db:"name"`
	OriginalPath     sql.NullString `db:"original_path"`
	ParentID         sql.NullString `db:"parent_id"`
	MimeType         sql.NullString `db:"mime_type"`
	OriginalMetadata []byte         `db:"original_metadata"`
	Action           string         `db:"action"`
	ArchivedAt       time.Time      `db:"archived_at"`
	RestoredAt       sql.NullTime   `db:"restored_at"`
}

func (r *archiveRow) toDomain() (*domain.ArchivedItem, error) {
	item := &domain.ArchivedItem{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Source:         domain.Source(r.Source),
		ExternalID:     r.ExternalID,
		Name:           r.Name,
		OriginalPath:   r.OriginalPath.String,
		ParentID:       r.ParentID.String,
		MimeType:       r.MimeType.String,
		Action:         domain.ArchiveAction(r.Action),
		ArchivedAt:     r.ArchivedAt.UTC(),
		RestoredAt:     timePtr(r.RestoredAt),
	}
	if len(r.OriginalMetadata) > 0 {
		if err := json.Unmarshal(r.OriginalMetadata, &item.OriginalMetadata); err != nil {
			return nil, fmt.Errorf("unmarshalling original metadata: %w", err)
		}
	}
	return item, nil
}

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

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("archived_items")
	ib.Cols(archiveColumns...)
	ib.Values(item.ID, item.OrganizationID, string(item.Source), item.ExternalID, item.Name,
		nullString(item.OriginalPath), nullString(item.ParentID), nullString(item.MimeType),
		meta, string(item.Action), item.ArchivedAt, nullTime(item.RestoredAt))
	ib.SQL(`ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		original_path = EXCLUDED.original_path,
		parent_id = EXCLUDED.parent_id,
		mime_type = EXCLUDED.mime_type,
		original_metadata = EXCLUDED.original_metadata,
		action = EXCLUDED.action,
		archived_at = EXCLUDED.archived_at,
		restored_at = EXCLUDED.restored_at`)

	query, args := ib.Build()
	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving archived item: %w", err)
	}
	return nil
}

// Get retrieves an organization's archived item by ID.
func (s *archiveStore) Get(ctx context.Context, orgID, id string) (*domain.ArchivedItem, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(archiveColumns...).From("archived_items")
	sb.Where(
		sb.Equal("organization_id", orgID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var row archiveRow
	if err := s.store.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("querying archived item: %w", err)
	}
	return row.toDomain()
}

// List returns an organization's archived items, newest first.
func (s *archiveStore) List(ctx context.Context, orgID string) ([]domain.ArchivedItem, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(archiveColumns...).From("archived_items")
	sb.Where(sb.Equal("organization_id", orgID))
	sb.OrderBy("archived_at DESC", "id")

	query, args := sb.Build()
	var rows []archiveRow
	if err := s.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying archived items: %w", err)
	}

	items := make([]domain.ArchivedItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// ==================== Helper Functions ====================

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
