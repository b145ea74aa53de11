package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

// backingTier is the second cache tier. Its TTL is authoritative for expiry.
type backingTier interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// invalidate removes keys containing pattern; empty pattern clears everything.
	invalidate(ctx context.Context, pattern string) error
	name() string
	close() error
}

// fallbackMaxEntries bounds the in-process fallback tier.
const fallbackMaxEntries = 4096

// fallbackTier is a bounded in-process dictionary used when the Redis service
// is unreachable. Unlike the local tier it honors per-entry TTLs, matching
// the backing-tier contract.
type fallbackTier struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type fallbackEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func newFallbackTier() *fallbackTier {
	return &fallbackTier{
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (t *fallbackTier) get(ctx context.Context, key string) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	elem, ok := t.entries[key]
	if !ok {
		return nil, false, nil
	}
	entry := elem.Value.(*fallbackEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		t.order.Remove(elem)
		delete(t.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (t *fallbackTier) set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if elem, ok := t.entries[key]; ok {
		entry := elem.Value.(*fallbackEntry)
		entry.value = value
		entry.expiresAt = expiresAt
		t.order.MoveToBack(elem)
		return nil
	}
	elem := t.order.PushBack(&fallbackEntry{key: key, value: value, expiresAt: expiresAt})
	t.entries[key] = elem
	if t.order.Len() > fallbackMaxEntries {
		oldest := t.order.Front()
		if oldest != nil {
			t.order.Remove(oldest)
			delete(t.entries, oldest.Value.(*fallbackEntry).key)
		}
	}
	return nil
}

func (t *fallbackTier) invalidate(ctx context.Context, pattern string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pattern == "" {
		t.entries = make(map[string]*list.Element)
		t.order.Init()
		return nil
	}
	for key, elem := range t.entries {
		if strings.Contains(key, pattern) {
			t.order.Remove(elem)
			delete(t.entries, key)
		}
	}
	return nil
}

func (t *fallbackTier) name() string { return "fallback" }

func (t *fallbackTier) close() error { return nil }
