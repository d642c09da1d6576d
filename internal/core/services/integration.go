package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
	"github.com/custodia-labs/sweep/internal/metrics"
)

// Ensure IntegrationService implements the interface.
var _ driving.IntegrationService = (*IntegrationService)(nil)

// maxConcurrentRenewals bounds provider calls made by the batch operations.
const maxConcurrentRenewals = 4

// IntegrationService manages connected integrations.
type IntegrationService struct {
	store    driven.IntegrationStore
	archives driven.ArchiveStore
	factory  driven.ConnectorFactory
	locker   driven.RefreshLocker
	settings *domain.Settings
	logger   *zap.Logger
	flight   singleflight.Group
	now      func() time.Time
}

// NewIntegrationService creates the integration service.
func NewIntegrationService(
	store driven.IntegrationStore,
	archives driven.ArchiveStore,
	factory driven.ConnectorFactory,
	locker driven.RefreshLocker,
	settings *domain.Settings,
	logger *zap.Logger,
) *IntegrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationService{
		store:    store,
		archives: archives,
		factory:  factory,
		locker:   locker,
		settings: settings,
		logger:   logger.Named("integrations"),
		now:      time.Now,
	}
}

// List returns an organization's integrations.
func (s *IntegrationService) List(ctx context.Context, orgID string) ([]domain.IntegrationCredential, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", domain.ErrInvalidInput)
	}
	return s.store.List(ctx, orgID)
}

// Get returns an organization's integration for a source.
func (s *IntegrationService) Get(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization id is required", domain.ErrInvalidInput)
	}
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	return s.store.GetBySource(ctx, orgID, source)
}

// Refresh renews the access token. Concurrent calls for the same
// integration share one provider call in this process and are serialised
// across processes by the locker.
func (s *IntegrationService) Refresh(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error) {
	before, err := s.active(ctx, orgID, source)
	if err != nil {
		return nil, err
	}
	caps, err := s.factory.Capabilities(source)
	if err != nil {
		return nil, err
	}
	if !caps.SupportsRefresh() {
		return nil, domain.NewConnectorError(source, "refresh token", domain.ErrUnsupportedOperation)
	}

	v, err, _ := s.flight.Do(lockKey(orgID, source), func() (any, error) {
		return s.refreshLocked(ctx, before)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*domain.IntegrationCredential)
	return &out, nil
}

func (s *IntegrationService) refreshLocked(ctx context.Context, before *domain.IntegrationCredential) (*domain.IntegrationCredential, error) {
	key := lockKey(before.OrganizationID, before.Source)
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("acquiring refresh lock: %w", err)
	}
	defer release()

	cred, err := s.active(ctx, before.OrganizationID, before.Source)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !sameTime(before.ExpiresAt, cred.ExpiresAt) && !cred.ExpiresWithin(now, s.settings.Locks.RefreshSkew) {
		s.logger.Debug("token already refreshed elsewhere", zap.String("key", key))
		return cred, nil
	}

	conn, err := s.factory.Create(cred.Source, cred.Credentials())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	tok, err := conn.RefreshToken(ctx)
	metrics.RecordConnectorOperation(cred.Source.String(), "refresh_token", start, err)
	if err != nil {
		cred.RecordFailure(err, now)
		if saveErr := s.store.Save(ctx, cred); saveErr != nil {
			s.logger.Error("saving refresh failure", zap.String("key", key), zap.Error(saveErr))
		}
		s.logger.Warn("token refresh failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	cred.ApplyToken(tok, now)
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}
	s.logger.Info("token refreshed", zap.String("key", key))
	return cred, nil
}

// TestConnection checks the stored credentials against the provider.
func (s *IntegrationService) TestConnection(ctx context.Context, orgID string, source domain.Source) (bool, error) {
	cred, err := s.active(ctx, orgID, source)
	if err != nil {
		return false, err
	}
	conn, err := s.factory.Create(source, cred.Credentials())
	if err != nil {
		return false, err
	}

	start := time.Now()
	ok, err := conn.TestConnection(ctx)
	metrics.RecordConnectorOperation(source.String(), "test_connection", start, err)
	return ok, err
}

// Disconnect unregisters webhooks best-effort and deactivates the
// integration. Missing and inactive integrations are left alone.
func (s *IntegrationService) Disconnect(ctx context.Context, orgID string, source domain.Source) error {
	cred, err := s.Get(ctx, orgID, source)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !cred.IsActive {
		return nil
	}

	if reg := cred.Webhook(); reg != nil {
		s.unregister(ctx, cred, reg)
		cred.Metadata.SetWebhook(nil)
	}

	cred.Deactivate(s.now())
	if err := s.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("saving disconnected integration: %w", err)
	}
	s.logger.Info("integration disconnected",
		zap.String("source", source.String()),
		zap.String("organization_id", orgID))
	return nil
}

// Restore brings an archived item back at its provider and stamps it.
func (s *IntegrationService) Restore(ctx context.Context, orgID, archiveID string) (*domain.ArchivedItem, error) {
	if orgID == "" || archiveID == "" {
		return nil, fmt.Errorf("%w: organization and archive id are required", domain.ErrInvalidInput)
	}
	item, err := s.archives.Get(ctx, orgID, archiveID)
	if err != nil {
		return nil, err
	}
	if item.IsRestored() {
		return nil, domain.ErrAlreadyRestored
	}

	cred, err := s.active(ctx, orgID, item.Source)
	if err != nil {
		return nil, err
	}
	conn, err := s.factory.Create(item.Source, cred.Credentials())
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = conn.RestoreFile(ctx, item.RestoreCommand())
	metrics.RecordConnectorOperation(item.Source.String(), "restore_file", start, err)
	if err != nil {
		if errors.Is(err, domain.ErrAuth) {
			cred.RecordFailure(err, s.now())
			if saveErr := s.store.Save(ctx, cred); saveErr != nil {
				s.logger.Error("saving restore failure", zap.Error(saveErr))
			}
		}
		return nil, err
	}

	now := s.now()
	item.RestoredAt = &now
	if err := s.archives.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("saving restored item: %w", err)
	}
	s.logger.Info("item restored",
		zap.String("source", item.Source.String()),
		zap.String("archive_id", item.ID))
	return item, nil
}

// RenewWebhooks re-registers webhooks expiring within the window and
// reports how many were renewed.
func (s *IntegrationService) RenewWebhooks(ctx context.Context, within time.Duration) (int, error) {
	creds, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	return s.forEach(ctx, creds, func(cred domain.IntegrationCredential) bool {
		reg := cred.Webhook()
		return reg != nil && reg.ExpiresWithin(now, within)
	}, s.renewWebhook)
}

func (s *IntegrationService) renewWebhook(ctx context.Context, cred domain.IntegrationCredential) error {
	if cred.ExpiresWithin(s.now(), s.settings.Locks.RefreshSkew) && cred.RefreshToken != "" {
		refreshed, err := s.Refresh(ctx, cred.OrganizationID, cred.Source)
		if err != nil && !errors.Is(err, domain.ErrUnsupportedOperation) {
			return err
		}
		if refreshed != nil {
			cred = *refreshed
		}
	}

	old := cred.Webhook()
	s.unregister(ctx, &cred, old)

	conn, err := s.factory.Create(cred.Source, cred.Credentials())
	if err != nil {
		return err
	}
	start := time.Now()
	reg, err := conn.RegisterWebhook(ctx, s.settings.WebhookURL(cred.Source))
	metrics.RecordConnectorOperation(cred.Source.String(), "register_webhook", start, err)
	if err != nil {
		return err
	}

	cred.Metadata.SetWebhook(reg)
	cred.UpdatedAt = s.now()
	if err := s.store.Save(ctx, &cred); err != nil {
		return fmt.Errorf("saving webhook registration: %w", err)
	}
	return nil
}

// RefreshExpiring refreshes tokens expiring within the window and reports
// how many were refreshed.
func (s *IntegrationService) RefreshExpiring(ctx context.Context, within time.Duration) (int, error) {
	creds, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	return s.forEach(ctx, creds, func(cred domain.IntegrationCredential) bool {
		caps, err := s.factory.Capabilities(cred.Source)
		return err == nil && caps.SupportsRefresh() &&
			cred.RefreshToken != "" && cred.ExpiresWithin(now, within)
	}, func(ctx context.Context, cred domain.IntegrationCredential) error {
		_, err := s.Refresh(ctx, cred.OrganizationID, cred.Source)
		return err
	})
}

// forEach runs fn for the selected integrations with bounded concurrency.
// Failures are logged and joined; the count covers successes only.
func (s *IntegrationService) forEach(
	ctx context.Context,
	creds []domain.IntegrationCredential,
	selected func(domain.IntegrationCredential) bool,
	fn func(context.Context, domain.IntegrationCredential) error,
) (int, error) {
	var (
		done int64
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRenewals)
	for _, cred := range creds {
		if !selected(cred) {
			continue
		}
		g.Go(func() error {
			if err := fn(gctx, cred); err != nil {
				s.logger.Warn("integration task failed",
					zap.String("key", lockKey(cred.OrganizationID, cred.Source)),
					zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", lockKey(cred.OrganizationID, cred.Source), err))
				mu.Unlock()
				return nil
			}
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	_ = g.Wait()

	return int(done), errors.Join(errs...)
}

// unregister cancels reg at the provider. Failure is logged only.
func (s *IntegrationService) unregister(ctx context.Context, cred *domain.IntegrationCredential, reg *domain.WebhookRegistration) {
	if reg == nil {
		return
	}
	conn, err := s.factory.Create(cred.Source, cred.Credentials())
	if err == nil {
		start := time.Now()
		err = conn.UnregisterWebhook(ctx, reg)
		metrics.RecordConnectorOperation(cred.Source.String(), "unregister_webhook", start, err)
	}
	if err != nil {
		s.logger.Warn("webhook unregistration failed",
			zap.String("source", cred.Source.String()),
			zap.String("organization_id", cred.OrganizationID),
			zap.String("webhook_id", reg.ID),
			zap.Error(err))
	}
}

// active loads an integration that is connected.
func (s *IntegrationService) active(ctx context.Context, orgID string, source domain.Source) (*domain.IntegrationCredential, error) {
	cred, err := s.Get(ctx, orgID, source)
	if err != nil {
		return nil, err
	}
	if !cred.IsActive {
		return nil, fmt.Errorf("%w: %s integration is disconnected", domain.ErrNotFound, source)
	}
	return cred, nil
}

func lockKey(orgID string, source domain.Source) string {
	return orgID + "/" + source.Slug()
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
