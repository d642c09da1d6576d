package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

func tokenServer(t *testing.T, status int, body map[string]any) (*httptest.Server, *http.Request) {
	t.Helper()
	var captured http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func testConfig(source domain.Source, tokenURL string) *domain.OAuthConfig {
	return &domain.OAuthConfig{
		Source:           source,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		AuthorizationURL: "https://provider.example.com/authorize",
		TokenURL:         tokenURL,
		RedirectURI:      "https://sweep.example.com/callback",
	}
}

func TestClient_Exchange_Success(t *testing.T) {
	srv, req := tokenServer(t, http.StatusOK, map[string]any{
		"access_token":  "xoxb-access",
		"refresh_token": "refresh",
		"token_type":    "bearer",
		"expires_in":    3600,
		"scope":         "channels:read,users:read",
		"team":          map[string]any{"id": "T123", "name": "Acme"},
		"bot_user_id":   "U999",
	})

	tok, err := NewClient(srv.Client()).Exchange(context.Background(), testConfig(domain.SourceSlack, srv.URL), "the-code")
	require.NoError(t, err)

	assert.Equal(t, "xoxb-access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
	assert.Equal(t, []string{"channels:read", "users:read"}, tok.Scopes)
	assert.Equal(t, "T123", tok.ExtraMap("team")["id"])
	assert.Equal(t, "U999", tok.ExtraString("bot_user_id"))

	assert.Equal(t, "authorization_code", req.PostForm.Get("grant_type"))
	assert.Equal(t, "the-code", req.PostForm.Get("code"))
	assert.Equal(t, "client-id", req.PostForm.Get("client_id"))
	assert.Equal(t, "https://sweep.example.com/callback", req.PostForm.Get("redirect_uri"))
}

func TestClient_Exchange_NotionUsesBasicAuth(t *testing.T) {
	srv, req := tokenServer(t, http.StatusOK, map[string]any{
		"access_token":   "secret_abc",
		"token_type":     "bearer",
		"workspace_id":   "ws-1",
		"workspace_name": "Docs",
		"bot_id":         "bot-1",
	})

	tok, err := NewClient(srv.Client()).Exchange(context.Background(), testConfig(domain.SourceNotion, srv.URL), "code")
	require.NoError(t, err)

	user, pass, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "client-id", user)
	assert.Equal(t, "client-secret", pass)
	assert.Equal(t, "ws-1", tok.ExtraString("workspace_id"))
	assert.True(t, tok.Expiry.IsZero())
}

func TestClient_Exchange_EmptyCode(t *testing.T) {
	_, err := NewClient(nil).Exchange(context.Background(), testConfig(domain.SourceGoogle, "http://unused"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClient_Refresh_Success(t *testing.T) {
	srv, req := tokenServer(t, http.StatusOK, map[string]any{
		"access_token": "new-access",
		"token_type":   "Bearer",
		"expires_in":   1800,
	})

	tok, err := NewClient(srv.Client()).Refresh(context.Background(), testConfig(domain.SourceGoogle, srv.URL), "refresh-1")
	require.NoError(t, err)

	assert.Equal(t, "new-access", tok.AccessToken)
	assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
	assert.Equal(t, "refresh-1", req.PostForm.Get("refresh_token"))
}

func TestClient_Refresh_MissingRefreshToken(t *testing.T) {
	_, err := NewClient(nil).Refresh(context.Background(), testConfig(domain.SourceGoogle, "http://unused"), "")
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestClient_Refresh_InvalidGrant(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, map[string]any{
		"error":             "invalid_grant",
		"error_description": "Token has been expired or revoked.",
	})

	_, err := NewClient(srv.Client()).Refresh(context.Background(), testConfig(domain.SourceGoogle, srv.URL), "revoked")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuth)

	var ce *domain.ConnectorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.SourceGoogle, ce.Source)
}

func TestClient_Refresh_InvalidClient(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusUnauthorized, map[string]any{"error": "invalid_client"})

	_, err := NewClient(srv.Client()).Refresh(context.Background(), testConfig(domain.SourceJira, srv.URL), "r")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestClient_Refresh_ServerError(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadGateway, map[string]any{})

	_, err := NewClient(srv.Client()).Refresh(context.Background(), testConfig(domain.SourceJira, srv.URL), "r")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAuth)
	assert.NotErrorIs(t, err, domain.ErrConfiguration)
}

func TestSplitScopes(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitScopes("a b,c"))
	assert.Empty(t, splitScopes(""))
}
