// Package linear implements the Linear connector over the GraphQL API.
package linear

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Linear connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// WebhookResourceTypes are the entities webhooks deliver.
var WebhookResourceTypes = []string{"Issue", "Project", "Document"}

const (
	viewerQuery = `query { viewer { id } organization { name } }`

	unarchiveMutation = `mutation IssueUnarchive($id: String!) {
  issueUnarchive(id: $id) { success }
}`

	webhookCreateMutation = `mutation WebhookCreate($input: WebhookCreateInput!) {
  webhookCreate(input: $input) { success webhook { id enabled } }
}`

	webhookDeleteMutation = `mutation WebhookDelete($id: String!) {
  webhookDelete(id: $id) { success }
}`
)

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to one Linear organization.
type Connector struct {
	connectors.Base
	api *connectors.RESTClient
}

// New creates a Linear connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	base := connectors.NewBase(domain.SourceLinear, Capabilities, creds, deps)
	return &Connector{
		Base: base,
		api: connectors.NewRESTClient(domain.SourceLinear,
			base.APIBase(connectors.Defaults(domain.SourceLinear).APIBase),
			creds.AccessToken, base.Deps.HTTPClient, deps.Limiter),
	}
}

type viewerData struct {
	Viewer struct {
		ID string `json:"id"`
	} `json:"viewer"`
	Organization struct {
		Name string `json:"name"`
	} `json:"organization"`
}

// TestConnection queries the viewer.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	ok, err := connectors.ConnectionResult(query(ctx, c.api, viewerQuery, nil, &viewerData{}))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata returns the organization name.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	var data viewerData
	if err := query(ctx, c.api, viewerQuery, nil, &data); err != nil {
		return nil, c.Fail("load metadata", err)
	}
	return &domain.LinearMetadata{OrganizationName: data.Organization.Name}, nil
}

type successPayload struct {
	Success bool `json:"success"`
}

// RestoreFile unarchives an issue.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing issue id", domain.ErrInvalidInput))
	}
	var data struct {
		IssueUnarchive successPayload `json:"issueUnarchive"`
	}
	err := query(ctx, c.api, unarchiveMutation, map[string]any{"id": cmd.ExternalID}, &data)
	if err != nil {
		return c.Fail("restore file", err)
	}
	if !data.IssueUnarchive.Success {
		return c.Fail("restore file", errors.New("issueUnarchive reported failure"))
	}
	return nil
}

// RegisterWebhook creates an organization webhook for all public teams.
// Linear webhooks do not expire.
func (c *Connector) RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	secret, err := c.RequireWebhookSecret()
	if err != nil {
		return nil, err
	}
	input := map[string]any{
		"url":            callbackURL,
		"label":          "sweep",
		"resourceTypes":  WebhookResourceTypes,
		"allPublicTeams": true,
		"secret":         secret,
	}
	var data struct {
		WebhookCreate struct {
			Success bool `json:"success"`
			Webhook struct {
				ID string `json:"id"`
			} `json:"webhook"`
		} `json:"webhookCreate"`
	}
	if err := query(ctx, c.api, webhookCreateMutation, map[string]any{"input": input}, &data); err != nil {
		return nil, c.Fail("register webhook", err)
	}
	if !data.WebhookCreate.Success || data.WebhookCreate.Webhook.ID == "" {
		return nil, c.Fail("register webhook", errors.New("webhookCreate reported failure"))
	}
	return &domain.WebhookRegistration{ID: data.WebhookCreate.Webhook.ID}, nil
}

// UnregisterWebhook deletes a webhook; one already gone is fine.
func (c *Connector) UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error {
	if reg == nil || reg.ID == "" {
		return nil
	}
	err := query(ctx, c.api, webhookDeleteMutation, map[string]any{"id": reg.ID}, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return c.Fail("unregister webhook", err)
}
