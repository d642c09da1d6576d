package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/custodia-labs/sweep/internal/core/ports/driven"
)

// ErrNotAcquired is returned when the wait budget runs out.
var ErrNotAcquired = errors.New("lock not acquired")

const (
	// DefaultKeyPrefix namespaces lock keys.
	DefaultKeyPrefix = "sweep:lock:"

	minBackoff = 10 * time.Millisecond
	maxBackoff = 500 * time.Millisecond
)

// releaseScript deletes the key only if this owner still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var _ driven.RefreshLocker = (*RedisLocker)(nil)

// RedisLocker is a distributed lock on SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a locker. ttl bounds how long a crashed holder
// blocks others and wait bounds how long Acquire retries.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, logger *zap.Logger) *RedisLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		prefix: DefaultKeyPrefix,
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire retries SET NX with capped exponential backoff until the lock
// is held, the wait budget is spent or ctx ends.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.prefix + key
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	backoff := minBackoff

	for {
		ok, err := l.client.SetNX(ctx, lockKey, owner, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquiring lock %s: %w", key, err)
		}
		if ok {
			l.logger.Debug("acquired lock", zap.String("key", key))
			return l.releaser(lockKey, owner), nil
		}

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (l *RedisLocker) releaser(lockKey, owner string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, owner).Int64()
		switch {
		case err != nil:
			l.logger.Warn("failed to release lock", zap.String("key", lockKey), zap.Error(err))
		case n == 0:
			l.logger.Warn("lock expired before release", zap.String("key", lockKey))
		}
	}
}
