package cache

import (
	"container/list"
	"time"
)

// localEntry is one cached value in the local tier together with its
// absolute expiry. Entries are immutable once written; a new set simply
// replaces the old entry and its TTL.
type localEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// localTier is the in-process tier: a bounded map with lazy TTL expiry
// checked at read time and LRU eviction as the size safeguard.
type localTier struct {
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int

	evictions int64
}

func newLocalTier(maxSize int) *localTier {
	return &localTier{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// get returns the value for key if present and not expired. Expired
// entries are removed on sight and treated as absent, never returned
// stale. Not safe for concurrent use; the Cache serializes access.
func (t *localTier) get(key string, now time.Time) ([]byte, bool) {
	elem, ok := t.entries[key]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*localEntry)
	if !now.Before(entry.expiresAt) {
		t.order.Remove(elem)
		delete(t.entries, key)
		return nil, false
	}

	t.order.MoveToFront(elem)
	return entry.value, true
}

// set writes or replaces an entry and evicts the least recently used
// entry when the tier is over capacity.
func (t *localTier) set(key string, value []byte, expiresAt time.Time) {
	if elem, ok := t.entries[key]; ok {
		elem.Value = &localEntry{key: key, value: value, expiresAt: expiresAt}
		t.order.MoveToFront(elem)
		return
	}

	t.entries[key] = t.order.PushFront(&localEntry{key: key, value: value, expiresAt: expiresAt})

	for t.maxSize > 0 && t.order.Len() > t.maxSize {
		oldest := t.order.Back()
		if oldest == nil {
			break
		}
		t.order.Remove(oldest)
		delete(t.entries, oldest.Value.(*localEntry).key)
		t.evictions++
	}
}

// delete removes an entry; absent keys are a no-op.
func (t *localTier) delete(key string) {
	if elem, ok := t.entries[key]; ok {
		t.order.Remove(elem)
		delete(t.entries, key)
	}
}

func (t *localTier) size() int {
	return t.order.Len()
}
