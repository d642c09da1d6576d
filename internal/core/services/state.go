package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// stateBytes is the entropy of a state token (256 bits).
const stateBytes = 32

// StateManager mints and verifies single-use OAuth state tokens.
type StateManager struct {
	store driven.PendingAuthStateStore
	now   func() time.Time
}

// NewStateManager creates a state manager over store.
func NewStateManager(store driven.PendingAuthStateStore) *StateManager {
	return &StateManager{store: store, now: time.Now}
}

// CreateState mints a token bound to source, organization and user.
// params travel with the state to the callback.
func (m *StateManager) CreateState(ctx context.Context, source domain.Source, orgID, userID string, params map[string]string) (string, error) {
	if !source.IsValid() {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, source)
	}
	if orgID == "" {
		return "", fmt.Errorf("%w: organization id is required", domain.ErrInvalidInput)
	}

	token, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	st := &domain.OAuthPendingState{
		State:          token,
		Source:         source,
		OrganizationID: orgID,
		UserID:         userID,
		Params:         params,
		CreatedAt:      m.now(),
	}
	if err := m.store.Save(ctx, st); err != nil {
		return "", fmt.Errorf("saving state: %w", err)
	}
	return token, nil
}

// VerifyState consumes token. A second call with the same token, or one
// older than domain.PendingStateTTL, fails with domain.ErrInvalidState.
func (m *StateManager) VerifyState(ctx context.Context, token string) (*domain.OAuthPendingState, error) {
	if token == "" {
		return nil, domain.ErrInvalidState
	}
	return m.store.Consume(ctx, token)
}

// Sweep drops expired states.
func (m *StateManager) Sweep(ctx context.Context) (int, error) {
	return m.store.Sweep(ctx)
}

// generateState creates a random state parameter for CSRF protection.
func generateState() (string, error) {
	bytes := make([]byte, stateBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
