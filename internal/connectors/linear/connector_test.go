package linear

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

type recorded struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func newTestConnector(t *testing.T, respond func(req recorded) (int, string)) *Connector {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		assert.Equal(t, "Bearer lin", r.Header.Get("Authorization"))
		var req recorded
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		status, body := respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(
		domain.ConnectorCredentials{AccessToken: "lin", RefreshToken: "r"},
		connectors.Deps{HTTPClient: srv.Client(), APIBase: srv.URL, WebhookSecret: "whsec"},
	)
}

func TestConnector_TestConnection(t *testing.T) {
	c := newTestConnector(t, func(recorded) (int, string) {
		return http.StatusOK, `{"data":{"viewer":{"id":"u1"},"organization":{"name":"Acme"}}}`
	})
	ok, err := c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	md, err := c.LoadMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Acme", md.(*domain.LinearMetadata).OrganizationName)
}

func TestConnector_TestConnectionAuthError(t *testing.T) {
	c := newTestConnector(t, func(recorded) (int, string) {
		return http.StatusBadRequest,
			`{"errors":[{"message":"Authentication required, not authenticated","extensions":{"type":"authentication error","code":"AUTHENTICATION_ERROR"}}]}`
	})
	ok, err := c.TestConnection(context.Background())
	require.Error(t, err, "400 is a plain API error at the transport layer")
	assert.False(t, ok)

	c = newTestConnector(t, func(recorded) (int, string) {
		return http.StatusOK,
			`{"errors":[{"message":"Authentication required","extensions":{"code":"AUTHENTICATION_ERROR"}}]}`
	})
	ok, err = c.TestConnection(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_RestoreFile(t *testing.T) {
	c := newTestConnector(t, func(req recorded) (int, string) {
		assert.Contains(t, req.Query, "issueUnarchive")
		assert.Equal(t, "ISS-1", req.Variables["id"])
		return http.StatusOK, `{"data":{"issueUnarchive":{"success":true}}}`
	})
	require.NoError(t, c.RestoreFile(context.Background(), domain.RestoreCommand{ExternalID: "ISS-1"}))
}

func TestConnector_RestoreFileNotFound(t *testing.T) {
	c := newTestConnector(t, func(recorded) (int, string) {
		return http.StatusOK, `{"errors":[{"message":"Entity not found: Issue"}],"data":null}`
	})
	err := c.RestoreFile(context.Background(), domain.RestoreCommand{ExternalID: "gone"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnector_RegisterAndUnregisterWebhook(t *testing.T) {
	c := newTestConnector(t, func(req recorded) (int, string) {
		if _, ok := req.Variables["input"]; ok {
			input := req.Variables["input"].(map[string]any)
			assert.Equal(t, "https://hook", input["url"])
			assert.Equal(t, "whsec", input["secret"])
			return http.StatusOK, `{"data":{"webhookCreate":{"success":true,"webhook":{"id":"wh-1","enabled":true}}}}`
		}
		assert.Contains(t, req.Query, "webhookDelete")
		return http.StatusOK, `{"data":{"webhookDelete":{"success":true}}}`
	})

	reg, err := c.RegisterWebhook(context.Background(), "https://hook")
	require.NoError(t, err)
	assert.Equal(t, "wh-1", reg.ID)

	require.NoError(t, c.UnregisterWebhook(context.Background(), reg))
}
