package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/connectors"
	"github.com/custodia-labs/sweep/internal/core/domain"
)

func newTestSourceRegistry(settings *domain.Settings) *SourceRegistry {
	f := newFakeFactory(
		newFakeConnector(domain.SourceGoogle, allCaps),
		newFakeConnector(domain.SourceNotion, domain.CapTestConnection|domain.CapRestoreFile),
	)
	return NewSourceRegistry(f, connectors.NewConfigRegistry(settings), settings)
}

func TestSourceRegistry_Sources(t *testing.T) {
	settings := testSettings()
	settings.Providers[domain.SourceNotion] = domain.ProviderSettings{}
	registry := newTestSourceRegistry(settings)

	sources := registry.Sources()

	require.Len(t, sources, 2)
	assert.Equal(t, domain.SourceGoogle, sources[0].Source)
	assert.Equal(t, "Google Workspace", sources[0].DisplayName)
	assert.True(t, sources[0].Configured)
	assert.NotEmpty(t, sources[0].Scopes)
	assert.Equal(t, []string{"refresh", "test", "restore", "webhooks"}, sources[0].Operations)
	assert.Equal(t, "https://sweep.example.com/api/webhooks/google", sources[0].WebhookURL)

	assert.Equal(t, domain.SourceNotion, sources[1].Source)
	assert.False(t, sources[1].Configured)
	assert.Empty(t, sources[1].WebhookURL)
}

func TestSourceRegistry_Source_Unknown(t *testing.T) {
	registry := newTestSourceRegistry(testSettings())

	_, err := registry.Source(domain.SourceFigma)

	assert.ErrorIs(t, err, domain.ErrUnsupportedSource)
}

func TestSourceRegistry_Source_CallbackURL(t *testing.T) {
	registry := newTestSourceRegistry(testSettings())

	info, err := registry.Source(domain.SourceGoogle)

	require.NoError(t, err)
	assert.Equal(t, "https://sweep.example.com/api/integrations/google/callback", info.CallbackURL)
}
