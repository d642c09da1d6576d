package microsoft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(
		domain.ConnectorCredentials{AccessToken: "access", RefreshToken: "refresh"},
		connectors.Deps{HTTPClient: srv.Client(), APIBase: srv.URL, WebhookSecret: "client-state"},
	)
}

func TestConnector_TestConnection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"forbidden", http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/me", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"userPrincipalName":"ada@contoso.com"}`))
			})
			ok, err := c.TestConnection(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestConnector_TestConnectionServerError(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ok, err := c.TestConnection(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestConnector_LoadMetadata(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"u1","userPrincipalName":"ada@contoso.com"}`))
	})
	md, err := c.LoadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ada@contoso.com", md.(*domain.MicrosoftMetadata).UserPrincipalName)
}

func TestConnector_RestoreFile(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/me/drive/items/item-1/restore", r.URL.Path)
		var body restoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotNil(t, body.ParentReference)
		assert.Equal(t, "parent-1", body.ParentReference.ID)
		_, _ = w.Write([]byte(`{"id":"item-1"}`))
	})

	err := c.RestoreFile(context.Background(), domain.RestoreCommand{ExternalID: "item-1", ParentID: "parent-1"})
	require.NoError(t, err)
}

func TestConnector_RestoreFilePurged(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	err := c.RestoreFile(context.Background(), domain.RestoreCommand{ExternalID: "gone"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_RegisterWebhook(t *testing.T) {
	expires := time.Now().Add(SubscriptionTTL).UTC().Truncate(time.Second)
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions", r.URL.Path)
		var in subscription
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "client-state", in.ClientState)
		assert.Equal(t, watchedResource, in.Resource)
		assert.Equal(t, "https://hook", in.NotificationURL)

		in.ID = "sub-1"
		in.ExpirationDateTime = expires
		_ = json.NewEncoder(w).Encode(in)
	})

	reg, err := c.RegisterWebhook(context.Background(), "https://hook")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", reg.ID)
	assert.True(t, expires.Equal(reg.Expiration))
}

func TestConnector_UnregisterWebhook(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if r.URL.Path == "/subscriptions/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.UnregisterWebhook(context.Background(), &domain.WebhookRegistration{ID: "sub-1"}))
	assert.NoError(t, c.UnregisterWebhook(context.Background(), &domain.WebhookRegistration{ID: "gone"}))
}
