package driving

import "github.com/custodia-labs/sweep/internal/core/domain"

// SourceInfo describes a supported source and how it is set up.
type SourceInfo struct {
	Source       domain.Source     `json:"source"`
	DisplayName  string            `json:"display_name"`
	Capabilities domain.Capability `json:"-"`
	Operations   []string          `json:"operations"`
	Configured   bool              `json:"configured"`
	CallbackURL  string            `json:"callback_url"`
	WebhookURL   string            `json:"webhook_url,omitempty"`
	Scopes       []string          `json:"scopes,omitempty"`
}

// SourceRegistry reports the sources this service can connect.
type SourceRegistry interface {
	// Sources returns every supported source in enum order.
	Sources() []SourceInfo

	// Source returns one source or domain.ErrUnsupportedSource.
	Source(source domain.Source) (*SourceInfo, error)
}
