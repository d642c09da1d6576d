package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrationCredential_ApplyToken_ClearsFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := &IntegrationCredential{
		AccessToken:  "old",
		RefreshToken: "refresh-1",
		IsActive:     true,
	}
	cred.RecordFailure(errors.New("boom"), now.Add(-time.Minute))
	assert.Equal(t, SyncStatusError, cred.SyncStatus)

	cred.ApplyToken(&OAuthToken{AccessToken: "new"}, now)

	assert.Equal(t, "new", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken, "empty refresh token keeps previous one")
	require.NotNil(t, cred.ExpiresAt)
	assert.Equal(t, now.Add(DefaultTokenLifetime), *cred.ExpiresAt)
	assert.Empty(t, cred.LastError)
	assert.Nil(t, cred.LastErrorAt)
	assert.Equal(t, SyncStatusIdle, cred.SyncStatus)
}

func TestIntegrationCredential_ApplyToken_ProviderExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(2 * time.Hour)
	cred := &IntegrationCredential{}

	cred.ApplyToken(&OAuthToken{AccessToken: "a", RefreshToken: "rotated", Expiry: expiry, Scopes: []string{"x"}}, now)

	assert.Equal(t, "rotated", cred.RefreshToken)
	assert.Equal(t, expiry, *cred.ExpiresAt)
	assert.Equal(t, []string{"x"}, cred.Scopes)
}

func TestIntegrationCredential_RecordFailure(t *testing.T) {
	now := time.Now()
	cred := &IntegrationCredential{SyncStatus: SyncStatusIdle}

	cred.RecordFailure(ErrAuth, now)

	assert.Equal(t, ErrAuth.Error(), cred.LastError)
	require.NotNil(t, cred.LastErrorAt)
	assert.Equal(t, now, *cred.LastErrorAt)
	assert.Equal(t, SyncStatusError, cred.SyncStatus)
}

func TestIntegrationCredential_Deactivate(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	cred := &IntegrationCredential{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    &exp,
		IsActive:     true,
	}

	cred.Deactivate(time.Now())
	assert.False(t, cred.IsActive)
	assert.Empty(t, cred.AccessToken)
	assert.Empty(t, cred.RefreshToken)
	assert.Nil(t, cred.ExpiresAt)

	// Deactivating twice is harmless.
	cred.Deactivate(time.Now())
	assert.False(t, cred.IsActive)
}

func TestIntegrationCredential_ExpiresWithin(t *testing.T) {
	now := time.Now()
	cred := &IntegrationCredential{}
	assert.False(t, cred.ExpiresWithin(now, time.Hour))

	soon := now.Add(5 * time.Minute)
	cred.ExpiresAt = &soon
	assert.True(t, cred.ExpiresWithin(now, 10*time.Minute))
	assert.False(t, cred.ExpiresWithin(now, time.Minute))
}

func TestIntegrationCredential_CredentialsAndWebhook(t *testing.T) {
	md := &MicrosoftMetadata{}
	md.SetWebhook(&WebhookRegistration{ID: "sub-1"})
	cred := &IntegrationCredential{
		OrganizationID: "org-1",
		AccessToken:    "a",
		RefreshToken:   "r",
		Metadata:       md,
	}

	cc := cred.Credentials()
	assert.Equal(t, "org-1", cc.OrganizationID)
	assert.Equal(t, "a", cc.AccessToken)
	assert.Equal(t, "r", cc.RefreshToken)
	assert.Same(t, md, cc.Metadata)
	assert.Equal(t, "sub-1", cred.Webhook().ID)

	assert.Nil(t, (&IntegrationCredential{}).Webhook())
}

func TestArchivedItem_RestoreCommand(t *testing.T) {
	at := time.Now()
	item := &ArchivedItem{
		ExternalID:       "file-1",
		Name:             "Q3.xlsx",
		OriginalPath:     "/Finance/Q3.xlsx",
		OriginalMetadata: map[string]string{"rev": "abc"},
		Action:           ArchiveActionTrash,
		ArchivedAt:       at,
	}

	cmd := item.RestoreCommand()
	assert.Equal(t, "file-1", cmd.ExternalID)
	assert.Equal(t, "/Finance/Q3.xlsx", cmd.OriginalPath)
	assert.Equal(t, "abc", cmd.Meta("rev"))
	assert.Empty(t, cmd.Meta("missing"))
	assert.Equal(t, ArchiveActionTrash, cmd.Action)
	assert.False(t, item.IsRestored())
}
