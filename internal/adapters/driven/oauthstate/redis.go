package oauthstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sweep/internal/core/domain"
	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// DefaultKeyPrefix namespaces state keys.
const DefaultKeyPrefix = "sweep:oauth:state:"

var _ driven.PendingAuthStateStore = (*RedisStore)(nil)

// RedisStore keeps pending states in redis. Keys expire after
// domain.PendingStateTTL and GETDEL makes consumption atomic across instances.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a redis-backed state store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
}

// Save stores the state payload with the pending-state TTL.
func (s *RedisStore) Save(ctx context.Context, st *domain.OAuthPendingState) error {
	if st == nil || st.State == "" {
		return domain.ErrInvalidInput
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+st.State, payload, domain.PendingStateTTL).Err(); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

// Consume fetches and deletes the state in one GETDEL.
func (s *RedisStore) Consume(ctx context.Context, token string) (*domain.OAuthPendingState, error) {
	if token == "" {
		return nil, domain.ErrInvalidState
	}
	raw, err := s.client.GetDel(ctx, s.prefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrInvalidState
		}
		return nil, fmt.Errorf("load state: %w", err)
	}

	var st domain.OAuthPendingState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	// Redis expiry has second granularity; check the creation time too.
	if st.IsExpired(s.now()) {
		return nil, domain.ErrInvalidState
	}
	return &st, nil
}

// Sweep is a no-op: redis expires keys itself.
func (s *RedisStore) Sweep(_ context.Context) (int, error) {
	return 0, nil
}
