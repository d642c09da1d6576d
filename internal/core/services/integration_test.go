package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/adapters/driven/lock"
	"github.com/custodia-labs/sweep/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

type integrationFixture struct {
	svc      *IntegrationService
	store    *memory.IntegrationStore
	archives *memory.ArchiveStore
	conns    map[domain.Source]*fakeConnector
}

func newIntegrationFixture(t *testing.T, conns ...*fakeConnector) *integrationFixture {
	t.Helper()
	fx := &integrationFixture{
		store:    memory.NewIntegrationStore(),
		archives: memory.NewArchiveStore(),
		conns:    make(map[domain.Source]*fakeConnector),
	}
	for _, c := range conns {
		fx.conns[c.source] = c
	}
	fx.svc = NewIntegrationService(fx.store, fx.archives, newFakeFactory(conns...), lock.NewLocalLocker(), testSettings(), nil)
	return fx
}

func (fx *integrationFixture) seed(t *testing.T, cred *domain.IntegrationCredential) *domain.IntegrationCredential {
	t.Helper()
	require.NoError(t, fx.store.Save(context.Background(), cred))
	return cred
}

func activeCred(org string, source domain.Source, expiresIn time.Duration) *domain.IntegrationCredential {
	expires := time.Now().Add(expiresIn)
	md, _ := domain.NewMetadata(source)
	return &domain.IntegrationCredential{
		OrganizationID: org,
		Source:         source,
		AccessToken:    "access-old",
		RefreshToken:   "refresh-old",
		ExpiresAt:      &expires,
		Metadata:       md,
		IsActive:       true,
		SyncStatus:     domain.SyncStatusIdle,
	}
}

func TestIntegrationService_List_RequiresOrg(t *testing.T) {
	fx := newIntegrationFixture(t)

	_, err := fx.svc.List(context.Background(), "")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIntegrationService_Get_UnknownSource(t *testing.T) {
	fx := newIntegrationFixture(t)

	_, err := fx.svc.Get(context.Background(), "org-1", domain.Source("ZOOM"))

	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
}

func TestIntegrationService_Refresh_Success(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()

	cred := activeCred("org-1", domain.SourceGoogle, -time.Minute)
	cred.LastError = "old failure"
	cred.SyncStatus = domain.SyncStatusError
	fx.seed(t, cred)

	refreshed, err := fx.svc.Refresh(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", refreshed.AccessToken)

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", stored.AccessToken)
	assert.Equal(t, "refresh-old", stored.RefreshToken, "kept when provider does not rotate")
	assert.Empty(t, stored.LastError)
	assert.Equal(t, domain.SyncStatusIdle, stored.SyncStatus)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.After(time.Now()))
	assert.WithinDuration(t, time.Now().Add(time.Hour), *stored.ExpiresAt, time.Minute)
}

func TestIntegrationService_Refresh_FailureIsRecorded(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	conn.refreshErr = domain.NewConnectorError(domain.SourceGoogle, "refresh token", domain.ErrAuth)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()
	fx.seed(t, activeCred("org-1", domain.SourceGoogle, -time.Minute))

	_, err := fx.svc.Refresh(ctx, "org-1", domain.SourceGoogle)
	require.ErrorIs(t, err, domain.ErrAuth)

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, stored.SyncStatus)
	assert.Contains(t, stored.LastError, "authentication failed")
	assert.NotNil(t, stored.LastErrorAt)
	assert.Equal(t, "access-old", stored.AccessToken)
}

func TestIntegrationService_Refresh_Unsupported(t *testing.T) {
	conn := newFakeConnector(domain.SourceNotion, domain.CapTestConnection|domain.CapRestoreFile)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()
	fx.seed(t, activeCred("org-1", domain.SourceNotion, time.Hour))

	_, err := fx.svc.Refresh(ctx, "org-1", domain.SourceNotion)

	assert.ErrorIs(t, err, domain.ErrUnsupportedOperation)
	assert.Zero(t, conn.refreshCalls.Load())
	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceNotion)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusIdle, stored.SyncStatus)
}

func TestIntegrationService_Refresh_Disconnected(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	fx := newIntegrationFixture(t, conn)
	cred := activeCred("org-1", domain.SourceGoogle, time.Hour)
	cred.IsActive = false
	fx.seed(t, cred)

	_, err := fx.svc.Refresh(context.Background(), "org-1", domain.SourceGoogle)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntegrationService_Refresh_SingleFlight(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	conn.refreshDelay = 200 * time.Millisecond
	fx := newIntegrationFixture(t, conn)
	fx.seed(t, activeCred("org-1", domain.SourceGoogle, -time.Minute))

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = fx.svc.Refresh(context.Background(), "org-1", domain.SourceGoogle)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), conn.refreshCalls.Load())
}

func TestIntegrationService_Refresh_SkipsWhenRefreshedElsewhere(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()

	before := activeCred("org-1", domain.SourceGoogle, -time.Minute)
	fresh := activeCred("org-1", domain.SourceGoogle, time.Hour)
	fresh.AccessToken = "from-other-instance"
	fx.seed(t, fresh)

	got, err := fx.svc.refreshLocked(ctx, before)

	require.NoError(t, err)
	assert.Equal(t, "from-other-instance", got.AccessToken)
	assert.Zero(t, conn.refreshCalls.Load())
}

func TestIntegrationService_TestConnection(t *testing.T) {
	conn := newFakeConnector(domain.SourceSlack, allCaps)
	conn.testOK = false
	fx := newIntegrationFixture(t, conn)
	fx.seed(t, activeCred("org-1", domain.SourceSlack, time.Hour))

	ok, err := fx.svc.TestConnection(context.Background(), "org-1", domain.SourceSlack)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIntegrationService_Disconnect(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()

	cred := activeCred("org-1", domain.SourceGoogle, time.Hour)
	cred.Metadata.SetWebhook(&domain.WebhookRegistration{ID: "channel-1", ResourceID: "res-1"})
	fx.seed(t, cred)

	require.NoError(t, fx.svc.Disconnect(ctx, "org-1", domain.SourceGoogle))

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Empty(t, stored.AccessToken)
	assert.Empty(t, stored.RefreshToken)
	assert.Nil(t, stored.Webhook())
	assert.Equal(t, []string{"channel-1"}, conn.unregisteredIDs())

	// Idempotent.
	require.NoError(t, fx.svc.Disconnect(ctx, "org-1", domain.SourceGoogle))
	stored, err = fx.store.GetBySource(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Len(t, conn.unregisteredIDs(), 1)
}

func TestIntegrationService_Disconnect_Missing(t *testing.T) {
	fx := newIntegrationFixture(t)

	assert.NoError(t, fx.svc.Disconnect(context.Background(), "org-1", domain.SourceGoogle))
}

func TestIntegrationService_Disconnect_UnregisterFailureIsNotFatal(t *testing.T) {
	conn := newFakeConnector(domain.SourceMicrosoft, allCaps)
	conn.unregErr = errProvider
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()

	cred := activeCred("org-1", domain.SourceMicrosoft, time.Hour)
	cred.Metadata.SetWebhook(&domain.WebhookRegistration{ID: "sub-1"})
	fx.seed(t, cred)

	require.NoError(t, fx.svc.Disconnect(ctx, "org-1", domain.SourceMicrosoft))

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceMicrosoft)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func seedArchive(t *testing.T, fx *integrationFixture, id string, source domain.Source) *domain.ArchivedItem {
	t.Helper()
	item := &domain.ArchivedItem{
		ID:             id,
		OrganizationID: "org-1",
		Source:         source,
		ExternalID:     "ext-" + id,
		Name:           "Quarterly report",
		Action:         domain.ArchiveActionTrash,
		ArchivedAt:     time.Now().Add(-time.Hour),
	}
	require.NoError(t, fx.archives.Save(context.Background(), item))
	return item
}

func TestIntegrationService_Restore(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()
	fx.seed(t, activeCred("org-1", domain.SourceGoogle, time.Hour))
	seedArchive(t, fx, "arch-1", domain.SourceGoogle)

	item, err := fx.svc.Restore(ctx, "org-1", "arch-1")
	require.NoError(t, err)
	assert.True(t, item.IsRestored())
	require.Len(t, conn.restored, 1)
	assert.Equal(t, "ext-arch-1", conn.restored[0].ExternalID)
	assert.Equal(t, domain.ArchiveActionTrash, conn.restored[0].Action)

	stored, err := fx.archives.Get(ctx, "org-1", "arch-1")
	require.NoError(t, err)
	assert.True(t, stored.IsRestored())

	_, err = fx.svc.Restore(ctx, "org-1", "arch-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyRestored)
}

func TestIntegrationService_Restore_Purged(t *testing.T) {
	conn := newFakeConnector(domain.SourceDropbox, allCaps)
	conn.restoreErr = domain.NewConnectorError(domain.SourceDropbox, "restore file", domain.ErrNotFound)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()
	fx.seed(t, activeCred("org-1", domain.SourceDropbox, time.Hour))
	seedArchive(t, fx, "arch-2", domain.SourceDropbox)

	_, err := fx.svc.Restore(ctx, "org-1", "arch-2")
	require.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := fx.archives.Get(ctx, "org-1", "arch-2")
	require.NoError(t, err)
	assert.False(t, stored.IsRestored())
}

func TestIntegrationService_Restore_NoIntegration(t *testing.T) {
	fx := newIntegrationFixture(t, newFakeConnector(domain.SourceSlack, allCaps))
	seedArchive(t, fx, "arch-3", domain.SourceSlack)

	_, err := fx.svc.Restore(context.Background(), "org-1", "arch-3")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIntegrationService_Restore_AuthFailureRecorded(t *testing.T) {
	conn := newFakeConnector(domain.SourceLinear, allCaps)
	conn.restoreErr = domain.NewConnectorError(domain.SourceLinear, "restore file", domain.ErrAuth)
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()
	fx.seed(t, activeCred("org-1", domain.SourceLinear, time.Hour))
	seedArchive(t, fx, "arch-4", domain.SourceLinear)

	_, err := fx.svc.Restore(ctx, "org-1", "arch-4")
	require.ErrorIs(t, err, domain.ErrAuth)

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceLinear)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, stored.SyncStatus)
}

func TestIntegrationService_RenewWebhooks(t *testing.T) {
	conn := newFakeConnector(domain.SourceGoogle, allCaps)
	newExpiry := time.Now().Add(7 * 24 * time.Hour)
	conn.registerReg = &domain.WebhookRegistration{ID: "channel-new", Expiration: newExpiry}
	fx := newIntegrationFixture(t, conn)
	ctx := context.Background()

	expiring := activeCred("org-1", domain.SourceGoogle, time.Hour)
	expiring.Metadata.SetWebhook(&domain.WebhookRegistration{ID: "channel-old", Expiration: time.Now().Add(2 * time.Hour)})
	fx.seed(t, expiring)

	healthy := activeCred("org-2", domain.SourceGoogle, time.Hour)
	healthy.Metadata.SetWebhook(&domain.WebhookRegistration{ID: "channel-ok", Expiration: time.Now().Add(72 * time.Hour)})
	fx.seed(t, healthy)

	renewed, err := fx.svc.RenewWebhooks(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)
	assert.Equal(t, []string{"channel-old"}, conn.unregisteredIDs())

	stored, err := fx.store.GetBySource(ctx, "org-1", domain.SourceGoogle)
	require.NoError(t, err)
	require.NotNil(t, stored.Webhook())
	assert.Equal(t, "channel-new", stored.Webhook().ID)

	untouched, err := fx.store.GetBySource(ctx, "org-2", domain.SourceGoogle)
	require.NoError(t, err)
	assert.Equal(t, "channel-ok", untouched.Webhook().ID)
}

func TestIntegrationService_RenewWebhooks_ReportsFailures(t *testing.T) {
	conn := newFakeConnector(domain.SourceJira, allCaps)
	conn.registerErr = errProvider
	fx := newIntegrationFixture(t, conn)

	cred := activeCred("org-1", domain.SourceJira, time.Hour)
	cred.Metadata.SetWebhook(&domain.WebhookRegistration{ID: "10", Expiration: time.Now().Add(time.Hour)})
	fx.seed(t, cred)

	renewed, err := fx.svc.RenewWebhooks(context.Background(), 24*time.Hour)

	assert.Zero(t, renewed)
	assert.ErrorIs(t, err, errProvider)
}

func TestIntegrationService_RefreshExpiring(t *testing.T) {
	google := newFakeConnector(domain.SourceGoogle, allCaps)
	notion := newFakeConnector(domain.SourceNotion, domain.CapTestConnection)
	fx := newIntegrationFixture(t, google, notion)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		fx.seed(t, activeCred(fmt.Sprintf("org-%d", i), domain.SourceGoogle, 5*time.Minute))
	}
	fx.seed(t, activeCred("org-late", domain.SourceGoogle, 2*time.Hour))
	fx.seed(t, activeCred("org-notion", domain.SourceNotion, time.Minute))

	refreshed, err := fx.svc.RefreshExpiring(ctx, 10*time.Minute)

	require.NoError(t, err)
	assert.Equal(t, 3, refreshed)
	assert.Equal(t, int32(3), google.refreshCalls.Load())
	assert.Zero(t, notion.refreshCalls.Load())
}

func TestSameTime(t *testing.T) {
	a := time.Now()
	b := a
	assert.True(t, sameTime(nil, nil))
	assert.False(t, sameTime(&a, nil))
	assert.True(t, sameTime(&a, &b))
}
