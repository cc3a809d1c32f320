package identitystore

import (
	"context"
	"time"

	"github.com/shirady/noobaa-core/pkg/cache"
)

const (
	defaultCacheMaxItems = 10000
	defaultCacheTTL      = 5 * time.Minute
)

// cacheInvalidatorAdapter is the reference CacheInvalidator implementation:
// it wraps the generic sharded cache engine the way
// pkg/iam/manager.go's Manager wraps its access-key cache, except
// invalidation here is the adapter's only job -- populating the cache is
// the data plane's responsibility, not this store's.
type cacheInvalidatorAdapter struct {
	cache *cache.Cache[string, struct{}]
}

// NewCacheInvalidator builds a CacheInvalidator backed by an in-process
// sharded, TTL-expiring cache. Suitable for a single-process deployment;
// a multi-process deployment would back this interface with a shared cache
// (e.g. a Redis-backed adapter) instead.
func NewCacheInvalidator(ctx context.Context) CacheInvalidator {
	return &cacheInvalidatorAdapter{
		cache: cache.New[string, struct{}](ctx,
			cache.WithMaxSize[string, struct{}](defaultCacheMaxItems),
			cache.WithExpiry[string, struct{}](defaultCacheTTL),
		),
	}
}

// Invalidate evicts accessKey from the cache, matching
// pkg/iam/manager.go's InvalidateAccessKey shape.
func (a *cacheInvalidatorAdapter) Invalidate(ctx context.Context, accessKey string) {
	a.cache.Delete(accessKey)
}

// Stop releases the adapter's background cleanup goroutine.
func (a *cacheInvalidatorAdapter) Stop() {
	a.cache.Stop()
}
