package driven

import "context"

// RefreshLocker serialises work on a key across callers.
type RefreshLocker interface {
	// Acquire blocks until the lock for key is held or ctx ends.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
