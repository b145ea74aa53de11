package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTierEvictsUnderByteBudget(t *testing.T) {
	// Each entry is ~100 bytes of value plus a short key; a 1000-byte budget
	// holds roughly nine of them.
	tier, err := newLocalTier(1000)
	require.NoError(t, err)

	value := make([]byte, 100)
	for i := 0; i < 50; i++ {
		tier.set(fmt.Sprintf("k%02d", i), value)
	}
	entries, bytes := tier.stats()
	assert.LessOrEqual(t, bytes, int64(1000), "byte budget exceeded")
	assert.Less(t, entries, 50, "nothing was evicted")

	// The most recent entry survives, the oldest does not.
	_, ok := tier.get("k49")
	assert.True(t, ok)
	_, ok = tier.get("k00")
	assert.False(t, ok)
}

func TestLocalTierReplaceAccountsBytes(t *testing.T) {
	tier, err := newLocalTier(1 << 20)
	require.NoError(t, err)
	tier.set("k", make([]byte, 500))
	tier.set("k", make([]byte, 10))
	entries, bytes := tier.stats()
	assert.Equal(t, 1, entries)
	assert.Equal(t, int64(len("k")+10), bytes)
}

func TestLocalTierRemoveMatching(t *testing.T) {
	tier, err := newLocalTier(1 << 20)
	require.NoError(t, err)
	tier.set("kensaku:search:aaa", []byte("1"))
	tier.set("kensaku:search:bbb", []byte("2"))
	tier.set("kensaku:embed:ccc", []byte("3"))

	tier.removeMatching("search")
	if _, ok := tier.get("kensaku:search:aaa"); ok {
		t.Error("matching key survived invalidation")
	}
	if _, ok := tier.get("kensaku:embed:ccc"); !ok {
		t.Error("non-matching key was removed")
	}

	tier.removeMatching("")
	entries, bytes := tier.stats()
	assert.Equal(t, 0, entries)
	assert.Equal(t, int64(0), bytes)
}

func TestLocalTierLRUOrder(t *testing.T) {
	tier, err := newLocalTier(350)
	require.NoError(t, err)
	tier.set("a", make([]byte, 100))
	tier.set("b", make([]byte, 100))
	tier.set("c", make([]byte, 100))

	// Touch a so b becomes the eviction candidate.
	_, ok := tier.get("a")
	require.True(t, ok)
	tier.set("d", make([]byte, 100))

	_, ok = tier.get("a")
	assert.True(t, ok, "recently used entry evicted")
	_, ok = tier.get("b")
	assert.False(t, ok, "least recently used entry survived")
}
