package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// WebhookRegistration describes a provider-side subscription that delivers
// change notifications to this service.
type WebhookRegistration struct {
	// ID is the channel, subscription or webhook identifier.
	ID string `json:"id"`
	// ResourceID is the provider resource being watched, when it has one.
	ResourceID string `json:"resource_id,omitempty"`
	// Expiration is when the provider stops delivering. Zero means no expiry.
	Expiration time.Time `json:"expiration,omitempty"`
	// Secret is the per-registration token the provider echoes back, if any.
	Secret string `json:"secret,omitempty"`
}

// ExpiresWithin reports whether the registration lapses before now+d.
func (w *WebhookRegistration) ExpiresWithin(now time.Time, d time.Duration) bool {
	if w == nil || w.Expiration.IsZero() {
		return false
	}
	return w.Expiration.Before(now.Add(d))
}

// Metadata is provider-specific state attached to an integration.
// Each source has exactly one concrete variant.
type Metadata interface {
	Source() Source
	Webhook() *WebhookRegistration
	SetWebhook(reg *WebhookRegistration)
	isMetadata()
}

type webhookField struct {
	WebhookReg *WebhookRegistration `json:"webhook,omitempty"`
}

func (w *webhookField) Webhook() *WebhookRegistration { return w.WebhookReg }

func (w *webhookField) SetWebhook(reg *WebhookRegistration) { w.WebhookReg = reg }

func (w *webhookField) isMetadata() {}

// GoogleMetadata holds Google Drive state.
type GoogleMetadata struct {
	Email string `json:"email,omitempty"`
	webhookField
}

// MicrosoftMetadata holds Microsoft Graph state.
type MicrosoftMetadata struct {
	UserPrincipalName string `json:"user_principal_name,omitempty"`
	webhookField
}

// DropboxMetadata holds Dropbox state. Webhooks are configured per app.
type DropboxMetadata struct {
	AccountID string `json:"account_id,omitempty"`
	webhookField
}

// SlackMetadata holds Slack workspace state. Events are configured per app.
type SlackMetadata struct {
	TeamID    string `json:"team_id,omitempty"`
	TeamName  string `json:"team_name,omitempty"`
	BotUserID string `json:"bot_user_id,omitempty"`
	webhookField
}

// FigmaMetadata holds Figma state.
type FigmaMetadata struct {
	TeamID string `json:"team_id,omitempty"`
	webhookField
}

// LinearMetadata holds Linear state.
type LinearMetadata struct {
	OrganizationName string `json:"organization_name,omitempty"`
	webhookField
}

// JiraMetadata holds Atlassian site state.
type JiraMetadata struct {
	CloudID string `json:"cloud_id,omitempty"`
	SiteURL string `json:"site_url,omitempty"`
	webhookField
}

// NotionMetadata holds Notion workspace state. Webhooks are configured per integration.
type NotionMetadata struct {
	WorkspaceID   string `json:"workspace_id,omitempty"`
	WorkspaceName string `json:"workspace_name,omitempty"`
	BotID         string `json:"bot_id,omitempty"`
	webhookField
}

func (*GoogleMetadata) Source() Source    { return SourceGoogle }
func (*MicrosoftMetadata) Source() Source { return SourceMicrosoft }
func (*DropboxMetadata) Source() Source   { return SourceDropbox }
func (*SlackMetadata) Source() Source     { return SourceSlack }
func (*FigmaMetadata) Source() Source     { return SourceFigma }
func (*LinearMetadata) Source() Source    { return SourceLinear }
func (*JiraMetadata) Source() Source      { return SourceJira }
func (*NotionMetadata) Source() Source    { return SourceNotion }

// NewMetadata returns the empty variant for a source.
func NewMetadata(source Source) (Metadata, error) {
	switch source {
	case SourceGoogle:
		return &GoogleMetadata{}, nil
	case SourceMicrosoft:
		return &MicrosoftMetadata{}, nil
	case SourceDropbox:
		return &DropboxMetadata{}, nil
	case SourceSlack:
		return &SlackMetadata{}, nil
	case SourceFigma:
		return &FigmaMetadata{}, nil
	case SourceLinear:
		return &LinearMetadata{}, nil
	case SourceJira:
		return &JiraMetadata{}, nil
	case SourceNotion:
		return &NotionMetadata{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
	}
}

type metadataEnvelope struct {
	Source Source          `json:"source"`
	Data   json.RawMessage `json:"data"`
}

// EncodeMetadata serialises metadata with its source discriminator.
// A nil value encodes as JSON null.
func EncodeMetadata(md Metadata) ([]byte, error) {
	if md == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s metadata: %w", md.Source(), err)
	}
	return json.Marshal(metadataEnvelope{Source: md.Source(), Data: data})
}

// DecodeMetadata parses metadata written by EncodeMetadata.
// Empty input yields the empty variant for source.
func DecodeMetadata(source Source, raw []byte) (Metadata, error) {
	md, err := NewMetadata(source)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return md, nil
	}

	var env metadataEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata envelope: %w", err)
	}
	if env.Source != "" && env.Source != source {
		return nil, fmt.Errorf("%w: metadata for %s stored on %s integration",
			ErrInvalidInput, env.Source, source)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return md, nil
	}
	if err := json.Unmarshal(env.Data, md); err != nil {
		return nil, fmt.Errorf("unmarshalling %s metadata: %w", source, err)
	}
	return md, nil
}
