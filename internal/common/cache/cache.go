package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is the TTL-keyed blob store backing invoice intents, webhook
// idempotency markers, active attempt handles, sessions and rate counters.
//
// Del reports whether the key existed at delete time. That return value is the
// claim primitive: when the webhook and the polling path race to settle the
// same payment, exactly one caller observes true and performs the terminal
// credit.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Del(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically creates the key with the given TTL and
	// reports whether it was newly created.
	SetIfNotExists(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Incr increments an integer counter, applying ttl on first increment.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// TTL returns the remaining lifetime of key, or ErrMiss.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Keys lists keys matching a glob pattern. Used only by low-frequency
	// administrative scans (session revocation).
	Keys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}
