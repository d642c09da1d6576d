package factory

import (
	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/connectors/dropbox"
	"github.com/custodia-labs/sweep/internal/connectors/figma"
	"github.com/custodia-labs/sweep/internal/connectors/google"
	"github.com/custodia-labs/sweep/internal/connectors/jira"
	"github.com/custodia-labs/sweep/internal/connectors/linear"
	"github.com/custodia-labs/sweep/internal/connectors/microsoft"
	"github.com/custodia-labs/sweep/internal/connectors/notion"
	"github.com/custodia-labs/sweep/internal/connectors/slack"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

// NewWebhookRegistry registers a handler for every source. Dropbox signs
// with the app secret, Jira with the app secret or its webhook secret, and
// every other provider with its webhook secret.
func NewWebhookRegistry(settings *domain.Settings) *connectors.WebhookRegistry {
	secret := func(source domain.Source) string {
		return settings.Provider(source).WebhookSecret
	}
	return connectors.NewWebhookRegistry(
		google.NewWebhookHandler(secret(domain.SourceGoogle)),
		microsoft.NewWebhookHandler(secret(domain.SourceMicrosoft)),
		dropbox.NewWebhookHandler(settings.Provider(domain.SourceDropbox).ClientSecret),
		slack.NewWebhookHandler(secret(domain.SourceSlack)),
		figma.NewWebhookHandler(secret(domain.SourceFigma)),
		linear.NewWebhookHandler(secret(domain.SourceLinear)),
		jira.NewWebhookHandler(secret(domain.SourceJira), settings.Provider(domain.SourceJira).ClientSecret),
		notion.NewWebhookHandler(secret(domain.SourceNotion)),
	)
}
