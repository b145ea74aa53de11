package embedding

import (
	"context"

	"github.com/hyperjump/kensaku/internal/cache"
)

// cacheOp is the cache operation name for embedding lookups; invalidating
// the substring "embed" drops all memoized vectors.
const cacheOp = "embed"

// CachedEmbedder memoizes embeddings through the cache manager so repeated
// texts (common for queries) skip the oracle round-trip.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Manager
}

// NewCachedEmbedder wraps inner with cache-backed memoization.
func NewCachedEmbedder(inner Embedder, c *cache.Manager) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c}
}

type embedKey struct {
	Text string `json:"text"`
	Dim  int    `json:"dim"`
}

// Embed returns a cached embedding when available, otherwise calls the
// wrapped embedder and stores the result. Cache failures are non-fatal.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := embedKey{Text: text, Dim: e.inner.Dimensions()}
	var vec []float32
	if ok, err := e.cache.Get(ctx, cacheOp, key, &vec); err == nil && ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, cacheOp, key, vec, 0)
	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and batching the misses
// into a single call to the wrapped embedder.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		key := embedKey{Text: text, Dim: e.inner.Dimensions()}
		var vec []float32
		if ok, err := e.cache.Get(ctx, cacheOp, key, &vec); err == nil && ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vecs, err := e.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		e.cache.Set(ctx, cacheOp, embedKey{Text: missTexts[j], Dim: e.inner.Dimensions()}, vecs[j], 0)
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
