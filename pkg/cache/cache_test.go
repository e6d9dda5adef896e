package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemoteTier is an in-memory RemoteTier for tests. When failing is
// set, every call returns an error.
type fakeRemoteTier struct {
	mu      sync.Mutex
	entries map[string]fakeRemoteEntry
	failing bool

	gets int
	sets int
}

type fakeRemoteEntry struct {
	value     []byte
	expiresAt time.Time
}

func newFakeRemoteTier() *fakeRemoteTier {
	return &fakeRemoteTier{entries: make(map[string]fakeRemoteEntry)}
}

func (f *fakeRemoteTier) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.failing {
		return nil, 0, errors.New("connection refused")
	}

	entry, ok := f.entries[key]
	if !ok || !time.Now().Before(entry.expiresAt) {
		return nil, 0, nil
	}
	return entry.value, time.Until(entry.expiresAt), nil
}

func (f *fakeRemoteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sets++
	if f.failing {
		return errors.New("connection refused")
	}
	f.entries[key] = fakeRemoteEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakeRemoteTier) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return errors.New("connection refused")
	}
	delete(f.entries, key)
	return nil
}

func (f *fakeRemoteTier) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing {
		return errors.New("connection refused")
	}
	return nil
}

func (f *fakeRemoteTier) Close() error { return nil }

func (f *fakeRemoteTier) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func TestLocalHit(t *testing.T) {
	c := New(10, nil, 0)
	ctx := context.Background()

	c.Set(ctx, "btc", []byte("100000"), time.Minute)

	value, ok := c.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, []byte("100000"), value)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.LocalHits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestExpiredEntryIsNeverReturned(t *testing.T) {
	c := New(10, nil, 0)
	ctx := context.Background()

	c.Set(ctx, "btc", []byte("100000"), 20*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get(ctx, "btc")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Misses)
	assert.Equal(t, 0, c.Stats().Size)
}

func TestSetReplacesValueAndTTL(t *testing.T) {
	c := New(10, nil, 0)
	ctx := context.Background()

	c.Set(ctx, "btc", []byte("old"), 20*time.Millisecond)
	c.Set(ctx, "btc", []byte("new"), time.Minute)
	time.Sleep(30 * time.Millisecond)

	value, ok := c.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, []byte("new"), value)
}

func TestLRUEviction(t *testing.T) {
	c := New(2, nil, 0)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	// Touch "a" so that "b" is the least recently used
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", []byte("3"), time.Minute)

	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 2, c.Stats().Size)
}

func TestRemoteHitBackfillsLocal(t *testing.T) {
	remote := newFakeRemoteTier()
	c := New(10, remote, time.Second)
	ctx := context.Background()

	require.NoError(t, remote.Set(ctx, "btc", []byte("100000"), time.Minute))

	value, ok := c.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, []byte("100000"), value)
	assert.Equal(t, int64(1), c.Stats().RemoteHits)

	// The second read must come from the backfilled local tier
	remoteGets := remote.gets
	_, ok = c.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().LocalHits)
	assert.Equal(t, remoteGets, remote.gets)
}

func TestFailingRemoteDegradesToLocal(t *testing.T) {
	remote := newFakeRemoteTier()
	remote.setFailing(true)
	c := New(10, remote, 100*time.Millisecond)
	ctx := context.Background()

	// Set and Get never surface the remote failure
	c.Set(ctx, "btc", []byte("100000"), time.Minute)

	value, ok := c.Get(ctx, "btc")
	require.True(t, ok)
	assert.Equal(t, []byte("100000"), value)

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	assert.Positive(t, c.Stats().RemoteErrors)
	assert.Error(t, c.Ping(ctx))
}

func TestRemoteRecoveryIsPickedUp(t *testing.T) {
	remote := newFakeRemoteTier()
	remote.setFailing(true)
	c := New(10, remote, 100*time.Millisecond)
	ctx := context.Background()

	_, ok := c.Get(ctx, "btc")
	require.False(t, ok)

	remote.setFailing(false)
	require.NoError(t, remote.Set(ctx, "btc", []byte("100000"), time.Minute))

	_, ok = c.Get(ctx, "btc")
	assert.True(t, ok)
	assert.NoError(t, c.Ping(ctx))
}

func TestSetMirrorsToRemote(t *testing.T) {
	remote := newFakeRemoteTier()
	c := New(10, remote, time.Second)
	ctx := context.Background()

	c.Set(ctx, "btc", []byte("100000"), time.Minute)

	// The mirror write is asynchronous
	assert.Eventually(t, func() bool {
		value, _, err := remote.Get(ctx, "btc")
		return err == nil && value != nil
	}, time.Second, 10*time.Millisecond)
}

func TestInvalidateRemovesBothTiers(t *testing.T) {
	remote := newFakeRemoteTier()
	c := New(10, remote, time.Second)
	ctx := context.Background()

	c.Set(ctx, "btc", []byte("100000"), time.Minute)
	assert.Eventually(t, func() bool {
		value, _, err := remote.Get(ctx, "btc")
		return err == nil && value != nil
	}, time.Second, 10*time.Millisecond)

	c.Invalidate(ctx, "btc")

	_, ok := c.Get(ctx, "btc")
	assert.False(t, ok)
}

func TestPingWithoutRemoteTier(t *testing.T) {
	c := New(10, nil, 0)
	assert.NoError(t, c.Ping(context.Background()))
}
