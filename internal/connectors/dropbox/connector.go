package dropbox

import (
	"context"
	"fmt"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/users"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Dropbox connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to Dropbox on behalf of one integration.
type Connector struct {
	connectors.Base
}

// New creates a Dropbox connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	return &Connector{Base: connectors.NewBase(domain.SourceDropbox, Capabilities, creds, deps)}
}

// config builds the SDK configuration. The bearer is applied by the HTTP
// client so endpoint overrides keep working.
func (c *Connector) config(ctx context.Context) (dropbox.Config, error) {
	if err := c.Wait(ctx); err != nil {
		return dropbox.Config{}, err
	}
	client, err := connectors.BearerClient(c.Deps.HTTPClient, c.Creds.AccessToken, c.APIBase(""))
	if err != nil {
		return dropbox.Config{}, err
	}
	return dropbox.Config{
		Token:    c.Creds.AccessToken,
		LogLevel: dropbox.LogOff,
		Client:   client,
	}, nil
}

// TestConnection reads the current account.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return false, c.Fail("test connection", err)
	}
	_, err = users.New(cfg).GetCurrentAccount()
	ok, err := connectors.ConnectionResult(WrapError(err))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata returns the Dropbox account id.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	cfg, err := c.config(ctx)
	if err != nil {
		return nil, c.Fail("load metadata", err)
	}
	account, err := users.New(cfg).GetCurrentAccount()
	if err != nil {
		return nil, c.Fail("load metadata", WrapError(err))
	}
	return &domain.DropboxMetadata{AccountID: account.AccountId}, nil
}

// RestoreFile restores the most recent revision of a deleted file.
// A file with no revisions left was purged and fails with ErrNotFound.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	path, err := ResolvePath(cmd)
	if err != nil {
		return c.Fail("restore file", err)
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return c.Fail("restore file", err)
	}
	client := files.New(cfg)

	arg := files.NewListRevisionsArg(path)
	arg.Limit = 1
	revs, err := client.ListRevisions(arg)
	if err != nil {
		return c.Fail("restore file", WrapError(err))
	}
	if len(revs.Entries) == 0 || revs.Entries[0].Rev == "" {
		return c.Fail("restore file", fmt.Errorf("%w: no revisions for %s", domain.ErrNotFound, path))
	}

	if err := c.Wait(ctx); err != nil {
		return c.Fail("restore file", err)
	}
	_, err = client.Restore(files.NewRestoreArg(path, revs.Entries[0].Rev))
	return c.Fail("restore file", WrapError(err))
}
