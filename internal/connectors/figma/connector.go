// Package figma implements the Figma connector. Figma has no restore API,
// so the connector covers refresh, connection tests and team webhooks.
package figma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Figma connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection | domain.CapWebhooks

// Verify interface compliance.
var _ driven.Connector = (*Connector)(nil)

// Connector talks to the Figma REST API.
type Connector struct {
	connectors.Base
	api *connectors.RESTClient
}

// New creates a Figma connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	base := connectors.NewBase(domain.SourceFigma, Capabilities, creds, deps)
	return &Connector{
		Base: base,
		api: connectors.NewRESTClient(domain.SourceFigma,
			base.APIBase(connectors.Defaults(domain.SourceFigma).APIBase),
			creds.AccessToken, base.Deps.HTTPClient, deps.Limiter),
	}
}

// TestConnection reads /v1/me.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	ok, err := connectors.ConnectionResult(c.api.Do(ctx, http.MethodGet, "/v1/me", nil, &me))
	return ok, c.Fail("test connection", err)
}

type webhook struct {
	ID          string `json:"id,omitempty"`
	EventType   string `json:"event_type"`
	TeamID      string `json:"team_id"`
	Endpoint    string `json:"endpoint"`
	Passcode    string `json:"passcode,omitempty"`
	Description string `json:"description,omitempty"`
}

// RegisterWebhook creates a FILE_UPDATE webhook on the connected team.
// Figma webhooks do not expire.
func (c *Connector) RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	secret, err := c.RequireWebhookSecret()
	if err != nil {
		return nil, err
	}
	md, _ := c.Creds.Metadata.(*domain.FigmaMetadata)
	if md == nil || md.TeamID == "" {
		return nil, c.Fail("register webhook", fmt.Errorf("%w: figma team id is unknown", domain.ErrInvalidInput))
	}

	in := webhook{
		EventType:   "FILE_UPDATE",
		TeamID:      md.TeamID,
		Endpoint:    callbackURL,
		Passcode:    secret,
		Description: "sweep",
	}
	var out webhook
	if err := c.api.Do(ctx, http.MethodPost, "/v2/webhooks", in, &out); err != nil {
		return nil, c.Fail("register webhook", err)
	}
	return &domain.WebhookRegistration{ID: out.ID, ResourceID: md.TeamID}, nil
}

// UnregisterWebhook deletes a webhook; one already gone is fine.
func (c *Connector) UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error {
	if reg == nil || reg.ID == "" {
		return nil
	}
	err := c.api.Do(ctx, http.MethodDelete, "/v2/webhooks/"+url.PathEscape(reg.ID), nil, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return c.Fail("unregister webhook", err)
}
