package oauthstate

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// DefaultSweepInterval is how often MemoryStore drops expired states.
const DefaultSweepInterval = time.Minute

var _ driven.PendingAuthStateStore = (*MemoryStore)(nil)

// MemoryStore keeps pending states in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]domain.OAuthPendingState
	now    func() time.Time

	interval  time.Duration
	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweepInterval changes the background sweep period.
// A non-positive interval disables the background sweep.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(s *MemoryStore) { s.interval = d }
}

// NewMemoryStore creates the store and starts its sweeper.
// Call Close to stop the sweeper.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		states:   make(map[string]domain.OAuthPendingState),
		now:      time.Now,
		interval: DefaultSweepInterval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.interval > 0 {
		go s.sweepLoop()
	} else {
		close(s.done)
	}
	return s
}

// Save stores a pending state.
func (s *MemoryStore) Save(_ context.Context, st *domain.OAuthPendingState) error {
	if st == nil || st.State == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.State] = *st
	return nil
}

// Consume fetches and deletes a state under one lock, so concurrent
// callers cannot both receive it.
func (s *MemoryStore) Consume(_ context.Context, token string) (*domain.OAuthPendingState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[token]
	if !ok {
		return nil, domain.ErrInvalidState
	}
	delete(s.states, token)

	if st.IsExpired(s.now()) {
		return nil, domain.ErrInvalidState
	}
	return &st, nil
}

// Sweep deletes expired states.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, st := range s.states {
		if st.IsExpired(now) {
			delete(s.states, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored states.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Close stops the background sweeper. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
	})
	<-s.done
	return nil
}

func (s *MemoryStore) sweepLoop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			_, _ = s.Sweep(context.Background())
		}
	}
}
