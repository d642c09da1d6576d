// Package notion implements the Notion connector with jomei/notionapi.
// Notion access tokens do not expire, so there is no refresh.
package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Notion connector.
const Capabilities = domain.CapTestConnection | domain.CapRestoreFile | domain.CapWebhooks

// Verify interface compliance.
var _ driven.Connector = (*Connector)(nil)

// Connector talks to one Notion workspace.
type Connector struct {
	connectors.Base
}

// New creates a Notion connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	return &Connector{Base: connectors.NewBase(domain.SourceNotion, Capabilities, creds, deps)}
}

func (c *Connector) client(ctx context.Context) (*notionapi.Client, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, err
	}
	httpClient, err := connectors.BearerClient(c.Deps.HTTPClient, c.Creds.AccessToken, c.APIBase(""))
	if err != nil {
		return nil, err
	}
	return notionapi.NewClient(notionapi.Token(c.Creds.AccessToken), notionapi.WithHTTPClient(httpClient)), nil
}

// TestConnection reads the bot user.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	client, err := c.client(ctx)
	if err != nil {
		return false, c.Fail("test connection", err)
	}
	_, err = client.User.Me(ctx)
	ok, err := connectors.ConnectionResult(WrapError(err))
	return ok, c.Fail("test connection", err)
}

// RestoreFile moves an archived page out of the trash.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing page id", domain.ErrInvalidInput))
	}
	client, err := c.client(ctx)
	if err != nil {
		return c.Fail("restore file", err)
	}
	_, err = client.Page.Update(ctx, notionapi.PageID(cmd.ExternalID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   false,
	})
	return c.Fail("restore file", WrapError(err))
}

// WrapError converts a notionapi error to the domain taxonomy.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrAuth, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		}
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unauthorized"):
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	case strings.Contains(msg, "object_not_found"):
		return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
	}
	return err
}
