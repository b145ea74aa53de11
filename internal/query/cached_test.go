package query

import (
	"context"
	"testing"

	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
)

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	c, err := cache.NewManager(context.Background(), config.CacheConfig{
		LocalMaxBytes:     1 << 20,
		DefaultTTLSeconds: 60,
	})
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachedSearchRepeatsAreStable(t *testing.T) {
	m, emb := buildTestIndex(t, corpusTexts(30))
	e := NewCachedEngine(New(m, emb, testQueryConfig()), newTestCache(t))

	req := noRerank()
	req.Query = "topic 2 subsystem"
	req.K = 5
	first, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Search failed: %v", err)
	}
	if len(first.Results) != len(second.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(first.Results), len(second.Results))
	}
	for i := range first.Results {
		if first.Results[i].ChunkID != second.Results[i].ChunkID {
			t.Errorf("result %d differs after caching: %s vs %s",
				i, first.Results[i].ChunkID, second.Results[i].ChunkID)
		}
	}
}

func TestCachedSearchCopiesOut(t *testing.T) {
	m, emb := buildTestIndex(t, corpusTexts(10))
	e := NewCachedEngine(New(m, emb, testQueryConfig()), newTestCache(t))

	req := noRerank()
	req.Query = "topic 1"
	req.K = 3
	if _, err := e.Search(context.Background(), req); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	hit, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Search failed: %v", err)
	}
	// Mutate the returned copy, then fetch again: the cache must be unaffected.
	hit.Results[0].Text = "mutated"
	again, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("cached Search failed: %v", err)
	}
	if again.Results[0].Text == "mutated" {
		t.Error("cached entry shared state with a caller")
	}
}

func TestCachedSearchKeyedByGeneration(t *testing.T) {
	m, emb := buildTestIndex(t, corpusTexts(10))
	e := NewCachedEngine(New(m, emb, testQueryConfig()), newTestCache(t))

	req := noRerank()
	req.Query = "topic 1"
	req.K = 10
	before, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// Shrink the corpus; the new generation must not serve the old entry.
	var kept []*models.Chunk
	g, _ := m.Current()
	for _, r := range before.Results[:3] {
		c, _ := g.Chunk(r.ChunkID)
		kept = append(kept, c)
	}
	if _, err := m.Build(kept); err != nil {
		t.Fatalf("rebuild index: %v", err)
	}

	after, err := e.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(after.Results) == len(before.Results) {
		t.Errorf("stale cached response served across generations: %d results", len(after.Results))
	}
	if len(after.Results) != 3 {
		t.Errorf("expected 3 results from the shrunken corpus, got %d", len(after.Results))
	}
}
