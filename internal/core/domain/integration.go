package domain

import "time"

// SyncStatus describes what the background jobs are doing with an integration.
type SyncStatus string

// Sync statuses.
const (
	SyncStatusIdle    SyncStatus = "IDLE"
	SyncStatusSyncing SyncStatus = "SYNCING"
	SyncStatusError   SyncStatus = "ERROR"
)

// IsValid returns true if the status is recognised.
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusIdle, SyncStatusSyncing, SyncStatusError:
		return true
	default:
		return false
	}
}

// DefaultTokenLifetime is assumed when a provider omits the expiry of a refreshed token.
const DefaultTokenLifetime = time.Hour

// IntegrationCredential is an organization's connection to one source.
// At most one exists per (OrganizationID, Source).
type IntegrationCredential struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Source         Source     `json:"source"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Scopes         []string   `json:"scopes"`
	Metadata       Metadata   `json:"metadata,omitempty"`
	IsActive       bool       `json:"is_active"`
	SyncStatus     SyncStatus `json:"sync_status"`
	LastError      string     `json:"last_error,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
	ConnectedBy    string     `json:"connected_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ConnectorCredentials is what a connector is constructed with.
type ConnectorCredentials struct {
	AccessToken    string
	RefreshToken   string
	OrganizationID string
	Metadata       Metadata
}

// Credentials projects the record into connector credentials.
func (c *IntegrationCredential) Credentials() ConnectorCredentials {
	return ConnectorCredentials{
		AccessToken:    c.AccessToken,
		RefreshToken:   c.RefreshToken,
		OrganizationID: c.OrganizationID,
		Metadata:       c.Metadata,
	}
}

// ApplyToken stores a fresh token and clears any recorded failure.
// A token without expiry is assumed to last DefaultTokenLifetime.
// An empty refresh token keeps the previous one.
func (c *IntegrationCredential) ApplyToken(tok *OAuthToken, now time.Time) {
	c.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.RefreshToken = tok.RefreshToken
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = now.Add(DefaultTokenLifetime)
	}
	c.ExpiresAt = &expiry
	if len(tok.Scopes) > 0 {
		c.Scopes = tok.Scopes
	}
	c.LastError = ""
	c.LastErrorAt = nil
	c.SyncStatus = SyncStatusIdle
	c.UpdatedAt = now
}

// RecordFailure stores the error message and flags the integration.
func (c *IntegrationCredential) RecordFailure(err error, now time.Time) {
	c.LastError = err.Error()
	c.LastErrorAt = &now
	c.SyncStatus = SyncStatusError
	c.UpdatedAt = now
}

// Deactivate soft-deletes the integration and drops its tokens.
func (c *IntegrationCredential) Deactivate(now time.Time) {
	c.IsActive = false
	c.AccessToken = ""
	c.RefreshToken = ""
	c.ExpiresAt = nil
	c.SyncStatus = SyncStatusIdle
	c.UpdatedAt = now
}

// ExpiresWithin reports whether the access token lapses before now+d.
// Tokens without an expiry never do.
func (c *IntegrationCredential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Before(now.Add(d))
}

// Webhook returns the stored webhook registration, if any.
func (c *IntegrationCredential) Webhook() *WebhookRegistration {
	if c.Metadata == nil {
		return nil
	}
	return c.Metadata.Webhook()
}
