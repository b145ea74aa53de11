package cache

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// localMaxEntries caps the LRU entry count; the effective bound is the byte
// budget, this only sizes the underlying structure.
const localMaxEntries = 1 << 18

// localTier is the process-local cache tier: least-recently-accessed entries
// are evicted once the byte budget is exceeded. It deliberately has no
// time-based expiry; TTL is owned by the backing tier (see Manager docs).
type localTier struct {
	mu       sync.Mutex
	entries  *lru.Cache[string, []byte]
	bytes    int64
	maxBytes int64
}

func newLocalTier(maxBytes int64) (*localTier, error) {
	t := &localTier{maxBytes: maxBytes}
	c, err := lru.NewWithEvict[string, []byte](localMaxEntries, func(key string, value []byte) {
		t.bytes -= int64(len(key) + len(value))
	})
	if err != nil {
		return nil, err
	}
	t.entries = c
	return t, nil
}

func (t *localTier) get(key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Get(key)
}

func (t *localTier) set(key string, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Replacing an existing key does not trigger the evict callback, so the
	// old size must be subtracted here.
	if old, ok := t.entries.Peek(key); ok {
		t.bytes -= int64(len(key) + len(old))
	}
	t.entries.Add(key, value)
	t.bytes += int64(len(key) + len(value))
	for t.bytes > t.maxBytes && t.entries.Len() > 0 {
		t.entries.RemoveOldest()
	}
}

// removeMatching removes all keys containing pattern; an empty pattern clears the tier.
func (t *localTier) removeMatching(pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pattern == "" {
		t.entries.Purge()
		return
	}
	for _, key := range t.entries.Keys() {
		if strings.Contains(key, pattern) {
			t.entries.Remove(key)
		}
	}
}

func (t *localTier) stats() (entries int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len(), t.bytes
}
