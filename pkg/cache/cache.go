package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"price-alert-engine/pkg/logger"

	"go.uber.org/zap"
)

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	LocalHits    int64 `json:"local_hits"`
	RemoteHits   int64 `json:"remote_hits"`
	Misses       int64 `json:"misses"`
	Evictions    int64 `json:"evictions"`
	RemoteErrors int64 `json:"remote_errors"`
	Size         int   `json:"size"`
}

// Cache is a two-tier key/value store with per-entry TTL: a local
// in-memory tier that always works and an optional remote tier that is
// mirrored best-effort. Get and Set never return errors to callers; a
// failing remote tier only degrades the cache to local-only.
type Cache struct {
	mu     sync.Mutex
	local  *localTier
	remote RemoteTier

	remoteTimeout time.Duration

	localHits    int64
	remoteHits   int64
	misses       int64
	remoteErrors int64
}

// New creates a Cache with a bounded local tier. remote may be nil, in
// which case the cache is purely local.
func New(maxSize int, remote RemoteTier, remoteTimeout time.Duration) *Cache {
	if remoteTimeout <= 0 {
		remoteTimeout = 2 * time.Second
	}
	return &Cache{
		local:         newLocalTier(maxSize),
		remote:        remote,
		remoteTimeout: remoteTimeout,
	}
}

// Get returns the cached value for key, or false when absent. The local
// tier is checked first; on a local miss the remote tier is consulted
// and a remote hit is backfilled into the local tier with its remaining
// TTL. Remote failures are counted and treated as a remote miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	c.mu.Lock()
	value, ok := c.local.get(key, now)
	c.mu.Unlock()
	if ok {
		atomic.AddInt64(&c.localHits, 1)
		return value, true
	}

	if c.remote != nil {
		remoteCtx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		value, ttl, err := c.remote.Get(remoteCtx, key)
		cancel()

		switch {
		case err != nil:
			atomic.AddInt64(&c.remoteErrors, 1)
			logger.GetLogger().Debug("Remote cache tier unavailable, degrading to local tier",
				zap.String("key", key),
				zap.Error(err),
			)
		case value != nil && ttl > 0:
			atomic.AddInt64(&c.remoteHits, 1)
			c.mu.Lock()
			c.local.set(key, value, now.Add(ttl))
			c.mu.Unlock()
			return value, true
		}
	}

	atomic.AddInt64(&c.misses, 1)
	return nil, false
}

// Set writes the entry to the local tier synchronously and mirrors it
// to the remote tier asynchronously. A remote write failure is logged
// and swallowed.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.local.set(key, value, time.Now().Add(ttl))
	c.mu.Unlock()

	if c.remote != nil {
		go func() {
			// Detached from the caller's context so a cancelled fetch
			// does not abort the mirror write.
			remoteCtx, cancel := context.WithTimeout(context.Background(), c.remoteTimeout)
			defer cancel()

			if err := c.remote.Set(remoteCtx, key, value, ttl); err != nil {
				atomic.AddInt64(&c.remoteErrors, 1)
				logger.GetLogger().Debug("Remote cache mirror write failed",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		}()
	}
}

// Invalidate removes the key from both tiers. Absent keys are a no-op.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	c.local.delete(key)
	c.mu.Unlock()

	if c.remote != nil {
		remoteCtx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
		defer cancel()

		if err := c.remote.Delete(remoteCtx, key); err != nil {
			atomic.AddInt64(&c.remoteErrors, 1)
			logger.GetLogger().Debug("Remote cache invalidate failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
}

// Ping reports remote tier reachability; a cache without a remote tier
// is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.remote == nil {
		return nil
	}
	remoteCtx, cancel := context.WithTimeout(ctx, c.remoteTimeout)
	defer cancel()
	return c.remote.Ping(remoteCtx)
}

// Stats returns a best-effort snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := c.local.size()
	evictions := c.local.evictions
	c.mu.Unlock()

	return Stats{
		LocalHits:    atomic.LoadInt64(&c.localHits),
		RemoteHits:   atomic.LoadInt64(&c.remoteHits),
		Misses:       atomic.LoadInt64(&c.misses),
		Evictions:    evictions,
		RemoteErrors: atomic.LoadInt64(&c.remoteErrors),
		Size:         size,
	}
}
