package connectors

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.WebhookRegistry = (*WebhookRegistry)(nil)

// WebhookRegistry is a concurrency-safe map of webhook handlers.
type WebhookRegistry struct {
	mu       sync.RWMutex
	handlers map[domain.Source]driven.WebhookHandler
}

// NewWebhookRegistry creates a registry with the given handlers.
func NewWebhookRegistry(handlers ...driven.WebhookHandler) *WebhookRegistry {
	r := &WebhookRegistry{handlers: make(map[domain.Source]driven.WebhookHandler)}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Get returns the handler for source.
func (r *WebhookRegistry) Get(source domain.Source) (driven.WebhookHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[source]
	return h, ok
}

// Register adds or replaces a handler.
func (r *WebhookRegistry) Register(handler driven.WebhookHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.Source()] = handler
}

// NewEvent builds a normalized event with a fresh id.
func NewEvent(source domain.Source, eventType, account string, payload json.RawMessage, at time.Time) domain.WebhookEvent {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return domain.WebhookEvent{
		ID:                uuid.NewString(),
		Source:            source,
		EventType:         eventType,
		ExternalAccountID: account,
		Payload:           payload,
		ReceivedAt:        at,
	}
}
