package oauthstate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sweep/internal/core/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func pending(token string, createdAt time.Time) *domain.OAuthPendingState {
	return &domain.OAuthPendingState{
		State:          token,
		Source:         domain.SourceGoogle,
		OrganizationID: "org-1",
		UserID:         "user-1",
		CreatedAt:      createdAt,
	}
}

func newTestStore(t *testing.T) (*MemoryStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now), WithSweepInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	return store, clock
}

func TestMemoryStore_SaveAndConsume(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pending("abc", clock.Now())))

	st, err := store.Consume(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "org-1", st.OrganizationID)
	assert.Equal(t, domain.SourceGoogle, st.Source)

	_, err = store.Consume(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidState, "second consume must fail")
}

func TestMemoryStore_Consume_Unknown(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Consume(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestMemoryStore_Consume_Expired(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pending("old", clock.Now())))
	clock.Advance(domain.PendingStateTTL + time.Second)

	_, err := store.Consume(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Zero(t, store.Len(), "expired state is removed on consume")
}

func TestMemoryStore_Consume_AtTTLBoundary(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pending("edge", clock.Now())))
	clock.Advance(domain.PendingStateTTL)

	_, err := store.Consume(ctx, "edge")
	assert.NoError(t, err)
}

func TestMemoryStore_Save_Invalid(t *testing.T) {
	store, _ := newTestStore(t)
	assert.ErrorIs(t, store.Save(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.Save(context.Background(), &domain.OAuthPendingState{}), domain.ErrInvalidInput)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, pending("stale", clock.Now())))
	clock.Advance(9 * time.Minute)
	require.NoError(t, store.Save(ctx, pending("fresh", clock.Now())))
	clock.Advance(2 * time.Minute)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	_, err = store.Consume(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, pending("race", clock.Now())))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Consume(ctx, "race"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	store := NewMemoryStore(WithClock(clock.Now), WithSweepInterval(10*time.Millisecond))
	defer store.Close()

	require.NoError(t, store.Save(context.Background(), pending("gone", clock.Now())))
	clock.Advance(domain.PendingStateTTL + time.Minute)

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	store := NewMemoryStore(WithSweepInterval(time.Hour))
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}
