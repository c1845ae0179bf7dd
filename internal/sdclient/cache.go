package sdclient

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Fetcher is the subset of Client the cache wraps; split out so tests can
// substitute a fake without a real HTTP round trip.
type Fetcher interface {
	GetOpen(ctx context.Context, limit int) Result
}

// CachingClient wraps a Fetcher with a short-TTL cache keyed by limit.
// Only successful results are cached: a transient failure must never
// pin a stale error in place of a retry.
type CachingClient struct {
	fetcher Fetcher
	cache   *expirable.LRU[string, Result]
}

// NewCachingClient wraps fetcher with a cache holding up to 8 distinct
// limit values, each entry expiring after ttl. ttl of zero disables
// caching (every call passes through).
func NewCachingClient(fetcher Fetcher, ttl time.Duration) *CachingClient {
	if ttl <= 0 {
		return &CachingClient{fetcher: fetcher}
	}
	return &CachingClient{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, Result](8, nil, ttl),
	}
}

// GetOpen returns a cached result if one is fresh for limit, otherwise
// fetches, caches the result on success, and returns it.
func (c *CachingClient) GetOpen(ctx context.Context, limit int) Result {
	if c.cache == nil {
		return c.fetcher.GetOpen(ctx, limit)
	}

	key := strconv.Itoa(limit)
	if result, ok := c.cache.Get(key); ok {
		return result
	}

	result := c.fetcher.GetOpen(ctx, limit)
	if result.OK {
		c.cache.Add(key, result)
	}
	return result
}
