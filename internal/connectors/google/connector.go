package google

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Google Drive connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// ChannelTTL is the lifetime requested for changes.watch channels.
// Drive caps change channels at one week.
const ChannelTTL = 7 * 24 * time.Hour

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to Google Drive on behalf of one integration.
type Connector struct {
	connectors.Base
	now func() time.Time
}

// New creates a Google Drive connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	return &Connector{
		Base: connectors.NewBase(domain.SourceGoogle, Capabilities, creds, deps),
		now:  time.Now,
	}
}

func (c *Connector) service(ctx context.Context) (*drive.Service, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	return NewDriveService(ctx, c.Deps.HTTPClient, c.Creds.AccessToken, c.APIBase(""))
}

// TestConnection reads the about resource.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return false, c.Fail("test connection", err)
	}
	_, err = svc.About.Get().Fields("user").Context(ctx).Do()
	ok, err := connectors.ConnectionResult(WrapError(err))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata returns the connected account's email.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, c.Fail("load metadata", err)
	}
	about, err := svc.About.Get().Fields("user").Context(ctx).Do()
	if err != nil {
		return nil, c.Fail("load metadata", WrapError(err))
	}
	md := &domain.GoogleMetadata{}
	if about.User != nil {
		md.Email = about.User.EmailAddress
	}
	return md, nil
}

// RestoreFile moves a trashed file out of the trash.
// Files purged from the trash answer 404 and fail with ErrNotFound.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing file id", domain.ErrInvalidInput))
	}
	svc, err := c.service(ctx)
	if err != nil {
		return c.Fail("restore file", err)
	}

	update := &drive.File{Trashed: false, ForceSendFields: []string{"Trashed"}}
	_, err = svc.Files.Update(cmd.ExternalID, update).
		SupportsAllDrives(true).
		Fields("id, trashed").
		Context(ctx).
		Do()
	return c.Fail("restore file", WrapError(err))
}

// RegisterWebhook opens a changes.watch channel delivering to callbackURL.
// The channel token is the configured webhook secret.
func (c *Connector) RegisterWebhook(ctx context.Context, callbackURL string) (*domain.WebhookRegistration, error) {
	secret, err := c.RequireWebhookSecret()
	if err != nil {
		return nil, err
	}
	svc, err := c.service(ctx)
	if err != nil {
		return nil, c.Fail("register webhook", err)
	}

	start, err := svc.Changes.GetStartPageToken().SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, c.Fail("register webhook", WrapError(err))
	}

	channel := &drive.Channel{
		Id:         uuid.NewString(),
		Type:       "web_hook",
		Address:    callbackURL,
		Token:      secret,
		Expiration: c.now().Add(ChannelTTL).UnixMilli(),
	}
	created, err := svc.Changes.Watch(start.StartPageToken, channel).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, c.Fail("register webhook", WrapError(err))
	}

	reg := &domain.WebhookRegistration{ID: created.Id, ResourceID: created.ResourceId}
	if created.Expiration > 0 {
		reg.Expiration = time.UnixMilli(created.Expiration).UTC()
	}
	return reg, nil
}

// UnregisterWebhook stops a channel. A channel Google no longer knows is
// treated as already stopped.
func (c *Connector) UnregisterWebhook(ctx context.Context, reg *domain.WebhookRegistration) error {
	if reg == nil || reg.ID == "" {
		return nil
	}
	svc, err := c.service(ctx)
	if err != nil {
		return c.Fail("unregister webhook", err)
	}
	err = svc.Channels.Stop(&drive.Channel{Id: reg.ID, ResourceId: reg.ResourceID}).Context(ctx).Do()
	if IsNotFound(err) {
		return nil
	}
	return c.Fail("unregister webhook", WrapError(err))
}
