package credential

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// CacheConfig sets the memoization policy of the credential cache.
type CacheConfig struct {
	// TTL bounds how long an entry may be served (0 = until evicted).
	TTL time.Duration
	// NumCounters and MaxCost size the ristretto admission policy. Every
	// entry costs 1, so MaxCost is the entry capacity.
	NumCounters int64
	MaxCost     int64
}

// DefaultCacheConfig returns a config holding up to 100k credentials for
// ten minutes.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:         10 * time.Minute,
		NumCounters: 1_000_000,
		MaxCost:     100_000,
	}
}

// Cache is a read-through cache of credential views keyed by ID. It is
// populated only by GetOrLoad, never by writes.
//
// Every invalidation bumps an epoch. A load that observes a different epoch
// after storing its result removes it again, so a read racing an in-process
// delete cannot leave the deleted value behind.
type Cache struct {
	store *ristretto.Cache[string, *View]
	group singleflight.Group
	ttl   time.Duration
	epoch atomic.Uint64
}

// NewCache creates a Cache. Zero sizing fields take the defaults.
func NewCache(config CacheConfig) (*Cache, error) {
	def := DefaultCacheConfig()
	if config.NumCounters <= 0 {
		config.NumCounters = def.NumCounters
	}
	if config.MaxCost <= 0 {
		config.MaxCost = def.MaxCost
	}
	if config.TTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative")
	}

	store, err := ristretto.NewCache(&ristretto.Config[string, *View]{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &Cache{store: store, ttl: config.TTL}, nil
}

// GetOrLoad returns the cached view for id, calling load on a miss.
// Concurrent misses for the same id share one load. Errors are not cached.
func (c *Cache) GetOrLoad(ctx context.Context, id string, load func(context.Context) (*View, error)) (*View, error) {
	if v, ok := c.store.Get(id); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		if v, ok := c.store.Get(id); ok {
			return v, nil
		}

		epoch := c.epoch.Load()
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.epoch.Load() != epoch {
			return v, nil
		}

		c.store.SetWithTTL(id, v, 1, c.ttl)
		// Ristretto applies sets asynchronously
		c.store.Wait()
		if c.epoch.Load() != epoch {
			c.store.Del(id)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

// Invalidate removes ids from the cache and prevents in-flight loads that
// started earlier from storing their result.
func (c *Cache) Invalidate(ids ...string) {
	c.epoch.Add(1)
	for _, id := range ids {
		c.group.Forget(id)
		c.store.Del(id)
	}
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.epoch.Add(1)
	c.store.Clear()
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.store.Close()
}
