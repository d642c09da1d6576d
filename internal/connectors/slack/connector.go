package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Capabilities of the Slack connector.
const Capabilities = domain.CapRefreshToken | domain.CapTestConnection |
	domain.CapRestoreFile | domain.CapWebhooks

// Verify interface compliance.
var (
	_ driven.Connector      = (*Connector)(nil)
	_ driven.MetadataLoader = (*Connector)(nil)
)

// Connector talks to one Slack workspace.
type Connector struct {
	connectors.Base
	api *slack.Client
}

// New creates a Slack connector. It performs no I/O.
func New(creds domain.ConnectorCredentials, deps connectors.Deps) *Connector {
	base := connectors.NewBase(domain.SourceSlack, Capabilities, creds, deps)
	apiURL := strings.TrimRight(base.APIBase(connectors.Defaults(domain.SourceSlack).APIBase), "/") + "/"
	return &Connector{
		Base: base,
		api: slack.New(creds.AccessToken,
			slack.OptionAPIURL(apiURL),
			slack.OptionHTTPClient(base.Deps.HTTPClient),
		),
	}
}

// TestConnection calls auth.test.
func (c *Connector) TestConnection(ctx context.Context) (bool, error) {
	if err := c.Wait(ctx); err != nil {
		return false, c.Fail("test connection", err)
	}
	_, err := c.api.AuthTestContext(ctx)
	ok, err := connectors.ConnectionResult(WrapError(err))
	return ok, c.Fail("test connection", err)
}

// LoadMetadata returns the workspace and bot identity.
func (c *Connector) LoadMetadata(ctx context.Context) (domain.Metadata, error) {
	if err := c.Wait(ctx); err != nil {
		return nil, c.Fail("load metadata", err)
	}
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return nil, c.Fail("load metadata", WrapError(err))
	}
	return &domain.SlackMetadata{
		TeamID:    resp.TeamID,
		TeamName:  resp.Team,
		BotUserID: resp.UserID,
	}, nil
}

// RestoreFile unarchives a channel. A channel that is already active counts
// as restored.
func (c *Connector) RestoreFile(ctx context.Context, cmd domain.RestoreCommand) error {
	if cmd.ExternalID == "" {
		return c.Fail("restore file", fmt.Errorf("%w: missing channel id", domain.ErrInvalidInput))
	}
	if err := c.Wait(ctx); err != nil {
		return c.Fail("restore file", err)
	}
	err := c.api.UnArchiveConversationContext(ctx, cmd.ExternalID)
	if isNotArchived(err) {
		return nil
	}
	return c.Fail("restore file", WrapError(err))
}
