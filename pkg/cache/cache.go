// Package cache stores rendered diagram artifacts.
//
// Two kinds of storage live here:
//
//   - [FileStore] is the content-addressed artifact directory. Every rendered
//     diagram is written to <dir>/<prefix><digest>.<ext> exactly once and is
//     never modified afterwards, so the directory can be shared by concurrent
//     preprocessor runs and survives between builds.
//   - [Cache] is an optional shared tier consulted when the file store misses.
//     Implementations are [NullCache], [MemoryCache] (in-process, TTL bound)
//     and [RedisCache] (shared between machines). [Scoped] prefixes keys so
//     several books or services can share one backend.
//
// Artifacts are addressed by [Key], a SHA-1 digest over everything that
// influences the rendered bytes.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value tier with per-entry expiry.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. A ttl of zero means the entry does not expire.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
