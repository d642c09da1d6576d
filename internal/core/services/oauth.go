package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
	"github.com/custodia-labs/sweep/internal/core/ports/driving"
	"github.com/custodia-labs/sweep/internal/metrics"
)

// Ensure OAuthService implements the interface.
var _ driving.OAuthService = (*OAuthService)(nil)

// OAuthService runs the authorize and callback halves of the handshake.
type OAuthService struct {
	configs   driven.OAuthConfigRegistry
	states    *StateManager
	exchanger driven.TokenExchanger
	store     driven.IntegrationStore
	factory   driven.ConnectorFactory
	settings  *domain.Settings
	logger    *zap.Logger
	now       func() time.Time
}

// NewOAuthService creates the OAuth service.
func NewOAuthService(
	configs driven.OAuthConfigRegistry,
	states *StateManager,
	exchanger driven.TokenExchanger,
	store driven.IntegrationStore,
	factory driven.ConnectorFactory,
	settings *domain.Settings,
	logger *zap.Logger,
) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		configs:   configs,
		states:    states,
		exchanger: exchanger,
		store:     store,
		factory:   factory,
		settings:  settings,
		logger:    logger.Named("oauth"),
		now:       time.Now,
	}
}

// Authorize mints a state and returns the provider consent URL.
func (s *OAuthService) Authorize(ctx context.Context, source domain.Source, orgID, userID string, params map[string]string) (redirect string, err error) {
	defer func() { metrics.RecordOAuthFlow(source.String(), "authorize", err) }()

	cfg, err := s.configs.Get(source)
	if err != nil {
		return "", err
	}
	state, err := s.states.CreateState(ctx, source, orgID, userID, params)
	if err != nil {
		return "", err
	}
	return connectors.BuildAuthURL(cfg, state)
}

// Callback completes the handshake and persists an active integration.
// Webhook registration afterwards is best-effort.
func (s *OAuthService) Callback(ctx context.Context, source domain.Source, code, state string) (cred *domain.IntegrationCredential, err error) {
	defer func() { metrics.RecordOAuthFlow(source.String(), "callback", err) }()

	pending, err := s.states.VerifyState(ctx, state)
	if err != nil {
		return nil, err
	}
	if pending.Source != source {
		return nil, fmt.Errorf("%w: state was issued for %s", domain.ErrInvalidState, pending.Source)
	}

	cfg, err := s.configs.Get(source)
	if err != nil {
		return nil, err
	}
	tok, err := s.exchanger.Exchange(ctx, cfg, code)
	if err != nil {
		return nil, err
	}

	caps, err := s.factory.Capabilities(source)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cred = &domain.IntegrationCredential{
		OrganizationID: pending.OrganizationID,
		Source:         source,
		Scopes:         cfg.Scopes,
		Metadata:       s.initialMetadata(source, tok, pending.Params),
		IsActive:       true,
		ConnectedBy:    pending.UserID,
		CreatedAt:      now,
	}
	cred.ApplyToken(tok, now)
	if !caps.SupportsRefresh() && tok.Expiry.IsZero() {
		// Tokens that cannot be refreshed are long-lived.
		cred.ExpiresAt = nil
	}

	conn, err := s.factory.Create(source, cred.Credentials())
	if err != nil {
		return nil, err
	}
	s.loadMetadata(ctx, conn, cred)

	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("saving integration: %w", err)
	}
	s.logger.Info("integration connected",
		zap.String("source", source.String()),
		zap.String("organization_id", cred.OrganizationID))

	if caps.SupportsWebhooks() {
		s.registerWebhook(ctx, conn, cred)
	}
	return cred, nil
}

// loadMetadata asks the connector for account details the token response
// lacked. Failures keep the token-derived metadata.
func (s *OAuthService) loadMetadata(ctx context.Context, conn driven.Connector, cred *domain.IntegrationCredential) {
	loader, ok := conn.(driven.MetadataLoader)
	if !ok {
		return
	}
	md, err := loader.LoadMetadata(ctx)
	if err != nil {
		s.logger.Warn("loading account metadata failed",
			zap.String("source", cred.Source.String()), zap.Error(err))
		return
	}
	if md != nil {
		cred.Metadata = mergeMetadata(cred.Metadata, md)
	}
}

func (s *OAuthService) registerWebhook(ctx context.Context, conn driven.Connector, cred *domain.IntegrationCredential) {
	reg, err := conn.RegisterWebhook(ctx, s.settings.WebhookURL(cred.Source))
	if err != nil {
		if !errors.Is(err, domain.ErrUnsupportedOperation) {
			s.logger.Warn("webhook registration failed",
				zap.String("source", cred.Source.String()),
				zap.String("organization_id", cred.OrganizationID),
				zap.Error(err))
		}
		return
	}
	if reg == nil {
		return
	}
	cred.Metadata.SetWebhook(reg)
	cred.UpdatedAt = s.now()
	if err := s.store.Save(ctx, cred); err != nil {
		s.logger.Warn("saving webhook registration failed",
			zap.String("source", cred.Source.String()), zap.Error(err))
	}
}

// initialMetadata combines the token response with authorize hints and
// configured defaults.
func (s *OAuthService) initialMetadata(source domain.Source, tok *domain.OAuthToken, params map[string]string) domain.Metadata {
	md := MetadataFromToken(source, tok)
	if m, ok := md.(*domain.FigmaMetadata); ok {
		m.TeamID = params[domain.ParamTeamID]
		if m.TeamID == "" {
			m.TeamID = s.settings.Provider(domain.SourceFigma).TeamID
		}
	}
	return md
}

// MetadataFromToken extracts provider details carried in the token response.
func MetadataFromToken(source domain.Source, tok *domain.OAuthToken) domain.Metadata {
	md, err := domain.NewMetadata(source)
	if err != nil {
		return nil
	}
	switch m := md.(type) {
	case *domain.SlackMetadata:
		if team := tok.ExtraMap("team"); team != nil {
			m.TeamID, _ = team["id"].(string)
			m.TeamName, _ = team["name"].(string)
		}
		m.BotUserID = tok.ExtraString("bot_user_id")
	case *domain.NotionMetadata:
		m.WorkspaceID = tok.ExtraString("workspace_id")
		m.WorkspaceName = tok.ExtraString("workspace_name")
		m.BotID = tok.ExtraString("bot_id")
	case *domain.DropboxMetadata:
		m.AccountID = tok.ExtraString("account_id")
	}
	return md
}

// mergeMetadata keeps the token-derived webhook and fields the loaded
// variant leaves empty.
func mergeMetadata(base, loaded domain.Metadata) domain.Metadata {
	if base == nil || base.Source() != loaded.Source() {
		return loaded
	}
	switch l := loaded.(type) {
	case *domain.SlackMetadata:
		b := base.(*domain.SlackMetadata)
		if l.TeamID == "" {
			l.TeamID = b.TeamID
		}
		if l.TeamName == "" {
			l.TeamName = b.TeamName
		}
		if l.BotUserID == "" {
			l.BotUserID = b.BotUserID
		}
	case *domain.DropboxMetadata:
		if l.AccountID == "" {
			l.AccountID = base.(*domain.DropboxMetadata).AccountID
		}
	}
	if loaded.Webhook() == nil {
		loaded.SetWebhook(base.Webhook())
	}
	return loaded
}
