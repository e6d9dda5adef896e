package ratelimiter

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAcquireTimeout is returned when no token became available for a key
// before the caller's deadline. The caller is expected to skip that unit
// of work; it is not re-queued.
var ErrAcquireTimeout = errors.New("rate limiter: no token acquired before deadline")

// Limit describes a token bucket: at most Capacity tokens, replenished
// continuously at RefillPerSecond.
type Limit struct {
	Capacity        float64
	RefillPerSecond float64
}

// Stats is a best-effort snapshot of one bucket. It may race benignly
// with concurrent acquires; it is meant for observability, not for
// correctness decisions.
type Stats struct {
	Acquired int64   `json:"acquired"`
	TimedOut int64   `json:"timed_out"`
	Tokens   float64 `json:"tokens"`
	Waiting  int     `json:"waiting"`
}

// waiter is one blocked Acquire call. ready is closed when a token has
// been handed to this waiter; granted is written under the bucket mutex.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// bucket holds the token state for one key. Refill and deduct are a
// single atomic step under mu; buckets for different keys never share
// state.
type bucket struct {
	mu         sync.Mutex
	limit      Limit
	tokens     float64
	lastRefill time.Time
	queue      []*waiter
	timerArmed bool

	acquired int64
	timedOut int64
}

// RateLimiter provides per-key token-bucket admission control for
// outbound calls. Buckets are created lazily on first use.
type RateLimiter struct {
	mu           sync.RWMutex
	buckets      map[string]*bucket
	limits       map[string]Limit
	defaultLimit Limit

	now func() time.Time
}

// New creates a RateLimiter whose unknown keys fall back to defaultLimit.
func New(defaultLimit Limit) *RateLimiter {
	return &RateLimiter{
		buckets:      make(map[string]*bucket),
		limits:       make(map[string]Limit),
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// SetLimit registers a limit for a specific key. It must be called
// before the first Acquire for that key to take effect.
func (rl *RateLimiter) SetLimit(key string, limit Limit) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limits[key] = limit
}

// Acquire blocks the calling goroutine until one token is available for
// key or ctx is done. On success exactly one token has been deducted.
// On a deadline it returns ErrAcquireTimeout and no token was consumed.
// Callers waiting on the same key are served in arrival order; callers
// on different keys never block each other.
func (rl *RateLimiter) Acquire(ctx context.Context, key string) error {
	b := rl.bucket(key)

	b.mu.Lock()
	b.refill(rl.now())
	if len(b.queue) == 0 && b.tokens >= 1 {
		b.tokens--
		b.acquired++
		b.mu.Unlock()
		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	b.queue = append(b.queue, w)
	b.armTimer(rl)
	b.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		defer b.mu.Unlock()
		if w.granted {
			// The token was handed over concurrently with the timeout.
			// The grant wins: the token stays consumed and counted.
			return nil
		}
		b.removeWaiter(w)
		b.timedOut++
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrAcquireTimeout
		}
		return ctx.Err()
	}
}

// TryAcquire deducts a token for key without blocking. It reports false
// when the bucket is empty or other callers are already waiting.
func (rl *RateLimiter) TryAcquire(key string) bool {
	b := rl.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(rl.now())
	if len(b.queue) == 0 && b.tokens >= 1 {
		b.tokens--
		b.acquired++
		return true
	}
	return false
}

// Stats returns a snapshot of the bucket for key.
func (rl *RateLimiter) Stats(key string) Stats {
	b := rl.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(rl.now())
	return Stats{
		Acquired: b.acquired,
		TimedOut: b.timedOut,
		Tokens:   b.tokens,
		Waiting:  len(b.queue),
	}
}

// Keys returns the keys of all buckets created so far, sorted.
func (rl *RateLimiter) Keys() []string {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	keys := make([]string, 0, len(rl.buckets))
	for k := range rl.buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// bucket returns the bucket for key, creating it lazily. New buckets
// start full.
func (rl *RateLimiter) bucket(key string) *bucket {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if ok {
		return b
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if b, ok := rl.buckets[key]; ok {
		return b
	}

	limit, ok := rl.limits[key]
	if !ok {
		limit = rl.defaultLimit
	}
	b = &bucket{
		limit:      limit,
		tokens:     limit.Capacity,
		lastRefill: rl.now(),
	}
	rl.buckets[key] = b
	return b
}

// refill accrues tokens for the elapsed wall-clock time, clamped to
// capacity. Must be called with b.mu held.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.lastRefill = now
	b.tokens += elapsed * b.limit.RefillPerSecond
	if b.tokens > b.limit.Capacity {
		b.tokens = b.limit.Capacity
	}
}

// dispatch grants tokens to waiters in FIFO order while tokens are
// available, then re-arms the refill timer if waiters remain. Must be
// called with b.mu held.
func (b *bucket) dispatch(rl *RateLimiter) {
	b.refill(rl.now())
	for len(b.queue) > 0 && b.tokens >= 1 {
		w := b.queue[0]
		b.queue = b.queue[1:]
		b.tokens--
		b.acquired++
		w.granted = true
		close(w.ready)
	}
	b.armTimer(rl)
}

// armTimer schedules a dispatch for the moment the next full token has
// accrued. Must be called with b.mu held.
func (b *bucket) armTimer(rl *RateLimiter) {
	if b.timerArmed || len(b.queue) == 0 || b.limit.RefillPerSecond <= 0 {
		return
	}
	deficit := 1 - b.tokens
	if deficit < 0 {
		deficit = 0
	}
	wait := time.Duration(deficit / b.limit.RefillPerSecond * float64(time.Second))
	b.timerArmed = true
	time.AfterFunc(wait, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.timerArmed = false
		b.dispatch(rl)
	})
}

// removeWaiter drops a timed-out waiter from the queue. Must be called
// with b.mu held.
func (b *bucket) removeWaiter(w *waiter) {
	for i, q := range b.queue {
		if q == w {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			return
		}
	}
}
