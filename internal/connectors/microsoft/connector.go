package microsoft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Microsoft connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// SubscriptionTTL is the lifetime requested for Graph subscriptions.
const SubscriptionTTL = 72 * time.Hour

// watchedResource is the Graph resource subscriptions are created on.
const watchedResource = "/me/drive/root"

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to Microsoft Graph on behalf of one integration.
type Connector struct {
	connectors.Base
	api *connectors.RESTClient
	now func() time.Time
}

// New creates a Microsoft connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	base := connectors.NewBase(domain.SourceMicrosoft, Capabilities, creds, deps)
	return &Connector{
		Base: base,
		api: connectors.NewRESTClient(domain.SourceMicrosoft,
			base.APIBase(connectors.Defaults(domain.SourceMicrosoft).APIBase),
			creds.AccessToken, base.Deps.HTTPClient, deps.Limiter),
		now: time.Now,
	}
}

type me struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// TestConnection reads the signed-in user.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	ok, err := connectors.ConnectionResult(c.api.Do(ctx, http.MethodGet, "/me", nil, &me{}))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata returns the user principal name.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	var m me
	if err := c.api.Do(ctx, http.MethodGet, "/me", nil, &m); err != nil {
		return nil, c.Fail("load metadata", err)
	}
	return &domain.MicrosoftMetadata{UserPrincipalName: m.UserPrincipalName}, nil
}

type parentReference struct {
	ID string `json:"id"`
}

type restoreRequest struct {
	ParentReference *parentReference `json:"parentReference,omitempty"`
	Name            string           `json:"name,omitempty"`
}

// RestoreFile restores a deleted drive item from the recycle bin.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing item id", domain.ErrInvalidInput))
	}
	var req restoreRequest
	if cmd.ParentID != "" {
		req.ParentReference = &parentReference{ID: cmd.ParentID}
	}
	path := "/me/drive/items/" + url.PathEscape(cmd.ExternalID) + "/restore"
	return c.Fail("restore file", c.api.Do(ctx, http.MethodPost, path, req, nil))
}

type subscription struct {
	ID                 string    `json:"id,omitempty"`
	ChangeType         string    `json:"changeType"`
	NotificationURL    string    `json:"notificationUrl"`
	Resource           string    `json:"resource"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
	ClientState        string    `json:"clientState,omitempty"`
}

// RegisterWebhook creates a drive subscription. Graph validates the
// notification URL synchronously before answering.
func (c *Connector) RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	secret, err := c.RequireWebhookSecret()
	if err != nil {
		return nil, err
	}
	in := subscription{
		ChangeType:         "updated",
		NotificationURL:    callbackURL,
		Resource:           watchedResource,
		ExpirationDateTime: c.now().Add(SubscriptionTTL).UTC(),
		ClientState:        secret,
	}
	var out subscription
	if err := c.api.Do(ctx, http.MethodPost, "/subscriptions", in, &out); err != nil {
		return nil, c.Fail("register webhook", err)
	}
	return &domain.WebhookRegistration{
		ID:         out.ID,
		ResourceID: watchedResource,
		Expiration: out.ExpirationDateTime,
	}, nil
}

// UnregisterWebhook deletes a subscription; one already gone is fine.
func (c *Connector) UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error {
	if reg == nil || reg.ID == "" {
		return nil
	}
	err := c.api.Do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(reg.ID), nil, nil)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return c.Fail("unregister webhook", err)
}
