package ports

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a key/value store with TTL and glob-pattern bulk invalidation.
//
// Callers must treat every error other than ErrCacheMiss as a degraded cache,
// not a failed operation: log it and fall back to the source of truth.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPattern removes every key matching the glob pattern (e.g. "tasks:list:*").
	DeleteByPattern(ctx context.Context, pattern string) error
	Clear(ctx context.Context) error
}
