package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sweep/internal/connectors/factory"
	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

const allCaps = domain.CapRefreshToken | domain.CapTestConnection | domain.CapRestoreFile | domain.CapWebhooks

// fakeConnector records calls and returns canned results.
type fakeConnector struct {
	source domain.Source
	caps   domain.Capability

	mu           sync.Mutex
	refreshTok   *domain.OAuthToken
	refreshErr   error
	refreshDelay time.Duration
	refreshCalls atomic.Int32
	testOK       bool
	testErr      error
	restoreErr   error
	restored     []domain.RestoreCommand
	registerReg  *domain.WebhookRegistration
	registerErr  error
	registered   int
	unregErr     error
	unregistered []string
	metadata     domain.Metadata
	metadataErr  error
	lastCreds    domain.ConnectorCredentials
}

var (
	_ driven.Connector      = (*fakeConnector)(nil)
	_ driven.MetadataLoader = (*fakeConnector)(nil)
)

func newFakeConnector(source domain.Source, caps domain.Capability) *fakeConnector {
	return &fakeConnector{source: source, caps: caps, testOK: true}
}

func (f *fakeConnector) Source() domain.Source           { return f.source }
func (f *fakeConnector) Capabilities() domain.Capability { return f.caps }

func (f *fakeConnector) RefreshToken(ctx context.Context) (*domain.OAuthToken, error) {
	f.refreshCalls.Add(1)
	if f.refreshDelay > 0 {
		select {
		case <-time.After(f.refreshDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	if f.refreshTok != nil {
		tok := *f.refreshTok
		return &tok, nil
	}
	return &domain.OAuthToken{AccessToken: "refreshed-token", TokenType: "Bearer"}, nil
}

func (f *fakeConnector) TestConnection(_ context.Context) (bool, error) {
	return f.testOK, f.testErr
}

func (f *fakeConnector) RestoreFile(_ context.Context, cmd domain.RestoreCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restoreErr != nil {
		return f.restoreErr
	}
	f.restored = append(f.restored, cmd)
	return nil
}

func (f *fakeConnector) RegisterWebhook(_ context.Context, _ string) (*domain.WebhookRegistration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered++
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	if f.registerReg == nil {
		return nil, nil
	}
	reg := *f.registerReg
	return &reg, nil
}

func (f *fakeConnector) UnregisterWebhook(_ context.Context, reg *domain.WebhookRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unregErr != nil {
		return f.unregErr
	}
	f.unregistered = append(f.unregistered, reg.ID)
	return nil
}

func (f *fakeConnector) LoadMetadata(_ context.Context) (domain.Metadata, error) {
	return f.metadata, f.metadataErr
}

func (f *fakeConnector) unregisteredIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.unregistered...)
}

// newFakeFactory registers conn for its source on a real factory.
func newFakeFactory(conns ...*fakeConnector) *factory.Factory {
	f := factory.New()
	for _, c := range conns {
		conn := c
		f.Register(conn.source, conn.caps, func(creds domain.ConnectorCredentials) (driven.Connector, error) {
			conn.mu.Lock()
			conn.lastCreds = creds
			conn.mu.Unlock()
			return conn, nil
		})
	}
	return f
}

// fakeExchanger returns a canned token for any code except "bad".
type fakeExchanger struct {
	tok   *domain.OAuthToken
	calls atomic.Int32
}

func (f *fakeExchanger) Exchange(_ context.Context, cfg *domain.OAuthConfig, code string) (*domain.OAuthToken, error) {
	f.calls.Add(1)
	if code == "bad" {
		return nil, domain.NewConnectorError(cfg.Source, "exchange code", domain.ErrAuth)
	}
	tok := *f.tok
	return &tok, nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.WebhookEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, events []domain.WebhookEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []domain.WebhookEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.WebhookEvent(nil), p.events...)
}

var errProvider = errors.New("provider unavailable")

// testSettings configures client credentials for every source.
func testSettings() *domain.Settings {
	s := domain.DefaultSettings()
	s.Server.PublicURL = "https://sweep.example.com"
	for _, src := range domain.AllSources() {
		s.Providers[src] = domain.ProviderSettings{
			ClientID:     "client-" + src.Slug(),
			ClientSecret: "secret-" + src.Slug(),
		}
	}
	return &s
}
