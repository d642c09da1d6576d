// Package jira implements the Jira Cloud connector over the Atlassian
// platform API. Requests are routed through api.atlassian.com with the
// site's cloud id.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Jira connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// WebhookTTL is how long Jira keeps a dynamic webhook before it lapses.
const WebhookTTL = 30 * 24 * time.Hour

// WebhookEvents are the issue events subscribed to.
var WebhookEvents = []string{"jira:issue_updated", "jira:issue_deleted"}

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to one Jira Cloud site.
type Connector struct {
	connectors.Base
	api *connectors.RESTClient
	now func() time.Time
}

// New creates a Jira connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	base := connectors.NewBase(domain.SourceJira, Capabilities, creds, deps)
	return &Connector{
		Base: base,
		api: connectors.NewRESTClient(domain.SourceJira,
			base.APIBase(connectors.Defaults(domain.SourceJira).APIBase),
			creds.AccessToken, base.Deps.HTTPClient, deps.Limiter),
		now: time.Now,
	}
}

// Resource is a site the token can reach.
type Resource struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// accessibleResources lists the sites granted to the token.
func (c *Connector) accessibleResources(ctx context.Context) ([]Resource, error) {
	var out []Resource
	if err := c.api.Do(ctx, http.MethodGet, "/oauth/token/accessible-resources", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// cloudID returns the stored site id, resolving it when absent.
func (c *Connector) cloudID(ctx context.Context) (string, error) {
	if md, ok := c.Creds.Metadata.(*domain.JiraMetadata); ok && md.CloudID != "" {
		return md.CloudID, nil
	}
	sites, err := c.accessibleResources(ctx)
	if err != nil {
		return "", err
	}
	if len(sites) == 0 {
		return "", fmt.Errorf("%w: token grants no Jira sites", domain.ErrAuth)
	}
	return sites[0].ID, nil
}

func (c *Connector) do(ctx context.Context, method, path string, in, out any) error {
	id, err := c.cloudID(ctx)
	if err != nil {
		return err
	}
	return c.api.Do(ctx, method, "/ex/jira/"+id+"/rest/api/3"+path, in, out)
}

// TestConnection reads /myself.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	var me struct {
		AccountID string `json:"accountId"`
	}
	ok, err := connectors.ConnectionResult(c.do(ctx, http.MethodGet, "/myself", nil, &me))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata resolves the cloud id and site URL.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	sites, err := c.accessibleResources(ctx)
	if err != nil {
		return nil, c.Fail("load metadata", err)
	}
	if len(sites) == 0 {
		return nil, c.Fail("load metadata", fmt.Errorf("%w: token grants no Jira sites", domain.ErrAuth))
	}
	return &domain.JiraMetadata{CloudID: sites[0].ID, SiteURL: sites[0].URL}, nil
}

type unarchiveResult struct {
	NumberOfIssuesUpdated int `json:"numberOfIssuesUpdated"`
}

// RestoreFile unarchives an issue. Jira reports unknown keys in the body
// rather than with a 404.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing issue key", domain.ErrInvalidInput))
	}
	in := map[string][]string{"issueIdsOrKeys": {cmd.ExternalID}}
	var out unarchiveResult
	if err := c.do(ctx, http.MethodPut, "/issue/unarchive", in, &out); err != nil {
		return c.Fail("restore file", err)
	}
	if out.NumberOfIssuesUpdated == 0 {
		return c.Fail("restore file", fmt.Errorf("%w: issue %s", domain.ErrNotFound, cmd.ExternalID))
	}
	return nil
}

type webhookDetails struct {
	Events    []string `json:"events"`
	JQLFilter string   `json:"jqlFilter"`
}

type registerRequest struct {
	URL      string           `json:"url"`
	Webhooks []webhookDetails `json:"webhooks"`
}

type registerResponse struct {
	Results []struct {
		CreatedWebhookID int64    `json:"createdWebhookId"`
		Errors           []string `json:"errors"`
	} `json:"webhookRegistrationResult"`
}

// RegisterWebhook registers a dynamic webhook, which Jira expires after
// 30 days unless refreshed. Jira signs its deliveries with a JWT under the
// app's client secret, so no webhook secret is sent.
func (c *Connector) RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	in := registerRequest{
		URL:      callbackURL,
		Webhooks: []webhookDetails{{Events: WebhookEvents, JQLFilter: "project IS NOT EMPTY"}},
	}
	var out registerResponse
	if err := c.do(ctx, http.MethodPost, "/webhook", in, &out); err != nil {
		return nil, c.Fail("register webhook", err)
	}
	if len(out.Results) == 0 || out.Results[0].CreatedWebhookID == 0 {
		msg := "no webhook created"
		if len(out.Results) > 0 && len(out.Results[0].Errors) > 0 {
			msg = out.Results[0].Errors[0]
		}
		return nil, c.Fail("register webhook", errors.New(msg))
	}
	return &domain.WebhookRegistration{
		ID:         strconv.FormatInt(out.Results[0].CreatedWebhookID, 10),
		Expiration: c.now().Add(WebhookTTL).UTC(),
	}, nil
}

// UnregisterWebhook deletes a dynamic webhook.
func (c *Connector) UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error {
	if reg == nil || reg.ID == "" {
		return nil
	}
	id, err := strconv.ParseInt(reg.ID, 10, 64)
	if err != nil {
		return c.Fail("unregister webhook", fmt.Errorf("%w: webhook id %q", domain.ErrInvalidInput, reg.ID))
	}
	err = c.do(ctx, http.MethodDelete, "/webhook", map[string][]int64{"webhookIds": {id}}, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return c.Fail("unregister webhook", err)
}
