package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMemoryCapacity bounds the number of artifacts held by a MemoryCache.
const DefaultMemoryCapacity = 1024

// MemoryCache is an in-process tier backed by ttlcache. The caching proxy
// uses it as its hot tier in front of the file store.
type MemoryCache struct {
	cache *ttlcache.Cache[string, []byte]
}

// NewMemoryCache creates a memory cache holding at most capacity entries.
// Expired entries are evicted by a background goroutine until Close.
func NewMemoryCache(capacity uint64) *MemoryCache {
	if capacity == 0 {
		capacity = DefaultMemoryCapacity
	}
	c := ttlcache.New(
		ttlcache.WithCapacity[string, []byte](capacity),
	)
	go c.Start()
	return &MemoryCache{cache: c}
}

// Get returns the entry for key without extending its lifetime.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := c.cache.Get(key, ttlcache.WithDisableTouchOnHit[string, []byte]())
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Set stores data under key. A ttl of zero keeps the entry until evicted for
// capacity.
func (c *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	c.cache.Set(key, data, ttl)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.cache.Len()
}

// Close stops the expiry goroutine.
func (c *MemoryCache) Close() error {
	c.cache.Stop()
	return nil
}

var _ Cache = (*MemoryCache)(nil)
