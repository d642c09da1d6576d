package domain

import "time"

// PendingStateTTL is how long an authorization handshake stays valid.
const PendingStateTTL = 10 * time.Minute

// OAuthToken is the result of a code exchange or a refresh.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	// Providers that rotate refresh tokens return a new one here.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires. Zero if the provider did not say.
	Expiry time.Time `json:"expiry,omitempty"`
	// Scopes are the granted scopes, when the provider reports them.
	Scopes []string `json:"scopes,omitempty"`
	// Extra holds provider-specific fields from the token response
	// (Slack team, Notion workspace, ...).
	Extra map[string]any `json:"-"`
}

// ExtraString returns a string field from the token response extras.
func (t *OAuthToken) ExtraString(key string) string {
	if t.Extra == nil {
		return ""
	}
	if v, ok := t.Extra[key].(string); ok {
		return v
	}
	return ""
}

// ExtraMap returns a nested object from the token response extras.
func (t *OAuthToken) ExtraMap(key string) map[string]any {
	if t.Extra == nil {
		return nil
	}
	if v, ok := t.Extra[key].(map[string]any); ok {
		return v
	}
	return nil
}

// OAuthConfig is the static OAuth application configuration for a source.
type OAuthConfig struct {
	Source           Source
	ClientID         string
	ClientSecret     string
	AuthorizationURL string
	TokenURL         string
	RedirectURI      string
	Scopes           []string
	// UserScopes are requested on behalf of the installing user (Slack only).
	UserScopes []string
}

// OAuthPendingState binds an in-flight authorization to its originator.
type OAuthPendingState struct {
	State          string `json:"state"`
	Source         Source `json:"source"`
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	// Params are provider hints given at authorize time, such as
	// ParamTeamID, applied to the metadata on callback.
	Params    map[string]string `json:"params,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ParamTeamID names the Figma team whose files are watched. The token
// response does not carry it and the API cannot list a user's teams.
const ParamTeamID = "team_id"

// AuthorizeParams are the hint names accepted on authorize.
var AuthorizeParams = []string{ParamTeamID}

// IsExpired reports whether the state is older than PendingStateTTL at now.
func (s *OAuthPendingState) IsExpired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > PendingStateTTL
}
