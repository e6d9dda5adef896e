package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"price-alert-engine/internal/config"
	"price-alert-engine/internal/models"
	"price-alert-engine/pkg/cache"
	"price-alert-engine/pkg/logger"
	"price-alert-engine/pkg/metrics"
	"price-alert-engine/pkg/ratelimiter"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Resource classes for admission control. Limiter keys are coarse:
// they model the upstream's quota grouping, not individual symbols.
const (
	ResourceClassTicker    = "ticker"
	ResourceClassReference = "reference"
)

// FetchClient composes the cache and the rate limiter around the raw
// transport. Cache hits are free: they never touch the limiter. On a
// miss, one token is acquired for the resource class and a single
// upstream attempt is made; retries, if any, happen on later cycles.
type FetchClient struct {
	transport Transport
	cache     *cache.Cache
	limiter   *ratelimiter.RateLimiter
	metrics   *metrics.Collector

	acquireTimeout time.Duration
	tickerTTL      time.Duration

	// Concurrent misses for the same symbol within a cycle collapse
	// into one upstream call.
	group singleflight.Group
}

// NewFetchClient creates a FetchClient wired to the given collaborators.
func NewFetchClient(transport Transport, c *cache.Cache, limiter *ratelimiter.RateLimiter, collector *metrics.Collector, cfg *config.Config) *FetchClient {
	limiter.SetLimit(ResourceClassTicker, ratelimiter.Limit{
		Capacity:        cfg.RateLimit.Ticker.Capacity,
		RefillPerSecond: cfg.RateLimit.Ticker.RefillPerSecond,
	})
	limiter.SetLimit(ResourceClassReference, ratelimiter.Limit{
		Capacity:        cfg.RateLimit.Reference.Capacity,
		RefillPerSecond: cfg.RateLimit.Reference.RefillPerSecond,
	})

	return &FetchClient{
		transport:      transport,
		cache:          c,
		limiter:        limiter,
		metrics:        collector,
		acquireTimeout: cfg.RateLimit.AcquireTimeout,
		tickerTTL:      cfg.Cache.TickerTTL,
	}
}

// GetQuote returns the current quote for symbol, from cache when fresh,
// otherwise from upstream through the rate limiter.
func (fc *FetchClient) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	key := ResourceClassTicker + ":" + symbol

	if quote, ok := fc.cachedQuote(ctx, key); ok {
		fc.metrics.RecordCacheHit()
		return quote, nil
	}
	fc.metrics.RecordCacheMiss()

	v, err, _ := fc.group.Do(key, func() (interface{}, error) {
		// Another task may have populated the cache while this one was
		// joining the flight.
		if quote, ok := fc.cachedQuote(ctx, key); ok {
			return quote, nil
		}
		return fc.fetchAndCache(ctx, key, symbol)
	})
	if err != nil {
		return models.Quote{}, err
	}
	return v.(models.Quote), nil
}

// cachedQuote reads and decodes a quote from the cache. An undecodable
// entry is invalidated and treated as a miss.
func (fc *FetchClient) cachedQuote(ctx context.Context, key string) (models.Quote, bool) {
	raw, ok := fc.cache.Get(ctx, key)
	if !ok {
		return models.Quote{}, false
	}

	var quote models.Quote
	if err := json.Unmarshal(raw, &quote); err != nil {
		logger.GetLogger().Warn("Discarding undecodable cache entry",
			zap.String("key", key),
			zap.Error(err),
		)
		fc.cache.Invalidate(ctx, key)
		return models.Quote{}, false
	}
	return quote, true
}

// fetchAndCache acquires a token, performs the single upstream attempt
// and caches the result. Failures are never cached.
func (fc *FetchClient) fetchAndCache(ctx context.Context, key, symbol string) (models.Quote, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, fc.acquireTimeout)
	defer cancel()

	waitStart := time.Now()
	if err := fc.limiter.Acquire(acquireCtx, ResourceClassTicker); err != nil {
		if errors.Is(err, ratelimiter.ErrAcquireTimeout) {
			fc.metrics.RecordRateLimitTimeout()
		}
		return models.Quote{}, err
	}
	if time.Since(waitStart) > time.Millisecond {
		fc.metrics.RecordRateLimitWait()
	}

	// The token is consumed either way; bail out before the upstream
	// call when the cycle deadline has already passed.
	if err := ctx.Err(); err != nil {
		return models.Quote{}, err
	}

	callStart := time.Now()
	quote, err := fc.transport.FetchQuote(ctx, symbol)
	fc.metrics.RecordUpstreamCall(time.Since(callStart), err == nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Quote{}, ctx.Err()
		}
		return models.Quote{}, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}

	if raw, merr := json.Marshal(quote); merr == nil {
		fc.cache.Set(ctx, key, raw, fc.tickerTTL)
	}

	return quote, nil
}
