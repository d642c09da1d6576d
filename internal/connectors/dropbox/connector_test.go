package dropbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

const fullAccount = `{
 "account_id": "dbid:AAH4f99",
 "name": {"given_name": "Ada", "surname": "Lovelace", "familiar_name": "Ada",
          "display_name": "Ada Lovelace", "abbreviated_name": "AL"},
 "email": "ada@example.com", "email_verified": true, "disabled": false,
 "locale": "en", "referral_link": "https://db.tt/x", "is_paired": false,
 "account_type": {".tag": "basic"},
 "root_info": {".tag": "user", "root_namespace_id": "1", "home_namespace_id": "1"},
 "country": "GB"
}`

const fileMetadata = `{
 "name": "plan.txt", "id": "id:a4ayc", "rev": "a1c10ce0dd78", "size": 12,
 "client_modified": "2024-05-12T15:50:38Z", "server_modified": "2024-05-12T15:50:38Z",
 "path_lower": "/docs/plan.txt", "path_display": "/docs/plan.txt", "is_downloadable": true
}`

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(
		domain.ConnectorCredentials{AccessToken: "access", RefreshToken: "refresh"},
		connectors.Deps{HTTPClient: srv.Client(), APIBase: srv.URL},
	)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestConnector_TestConnection(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/get_current_account", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, fullAccount)
	})

	ok, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnector_TestConnectionExpiredToken(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized,
			`{"error_summary": "expired_access_token/..", "error": {".tag": "expired_access_token"}}`)
	})

	ok, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_LoadMetadata(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, fullAccount)
	})

	md, err := c.LoadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dbid:AAH4f99", md.(*domain.DropboxMetadata).AccountID)
}

func TestConnector_RestoreFile(t *testing.T) {
	var restored map[string]any
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2/files/list_revisions":
			var arg map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&arg))
			assert.Equal(t, "/docs/plan.txt", arg["path"])
			writeJSON(w, http.StatusOK, `{"is_deleted": true, "entries": [`+fileMetadata+`]}`)
		case "/2/files/restore":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&restored))
			writeJSON(w, http.StatusOK, fileMetadata)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	err := c.RestoreFile(context.Background(), domain.RestoreCommand{
		ExternalID:   "id:a4ayc",
		OriginalPath: "/docs/plan.txt",
	})
	require.NoError(t, err)
	assert.Equal(t, "/docs/plan.txt", restored["path"])
	assert.Equal(t, "a1c10ce0dd78", restored["rev"])
}

func TestConnector_RestoreFilePurged(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusConflict,
			`{"error_summary": "path/not_found/..", "error": {".tag": "path", "path": {".tag": "not_found"}}}`)
	})

	err := c.RestoreFile(context.Background(), domain.RestoreCommand{OriginalPath: "/gone.txt"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_RestoreFileNoRevisions(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, `{"is_deleted": true, "entries": []}`)
	})

	err := c.RestoreFile(context.Background(), domain.RestoreCommand{OriginalPath: "/gone.txt"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_AppLevelWebhooks(t *testing.T) {
	c := New(domain.ConnectorCredentials{}, connectors.Deps{})
	reg, err := c.RegisterWebhook(context.Background(), "https://hook")
	require.NoError(t, err)
	assert.Nil(t, reg)
}
