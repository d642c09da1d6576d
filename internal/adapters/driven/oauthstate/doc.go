// Package oauthstate stores pending OAuth authorization states.
//
// A state is single use: Consume returns it at most once and only within
// domain.PendingStateTTL of its creation. MemoryStore serves a single
// instance. RedisStore is shared by every instance behind a load balancer.
package oauthstate
