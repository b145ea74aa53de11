package query

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/models"
)

const searchOp = "search"

// searchKey is the cache key material for one search. The generation sequence
// is part of the key so responses cached against a superseded index can never
// be served for the current one.
type searchKey struct {
	Query      string                 `json:"query"`
	K          int                    `json:"k"`
	Filters    map[string]interface{} `json:"filters,omitempty"`
	Rerank     bool                   `json:"rerank"`
	Generation int64                  `json:"generation"`
}

// CachedEngine wraps an Engine with response caching. Hits skip retrieval and
// reranking entirely; misses run the full search and populate the cache.
type CachedEngine struct {
	engine *Engine
	cache  *cache.Manager
	logger *zap.Logger
}

// NewCachedEngine wraps engine with c.
func NewCachedEngine(engine *Engine, c *cache.Manager) *CachedEngine {
	return &CachedEngine{engine: engine, cache: c, logger: engine.logger}
}

// Search serves from cache when possible, otherwise delegates to the inner
// engine. Empty queries and cache failures fall through to the engine;
// a failed cache write is logged, never surfaced.
func (e *CachedEngine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	req.Validate()
	g, err := e.engine.index.Current()
	if err != nil {
		return nil, err
	}
	key := searchKey{
		Query:      req.Query,
		K:          req.K,
		Filters:    req.Filters,
		Rerank:     req.RerankEnabled(),
		Generation: g.Seq(),
	}

	var cached models.SearchResponse
	hit, err := e.cache.Get(ctx, searchOp, key, &cached)
	if err == nil && hit {
		return &cached, nil
	}

	resp, err := e.engine.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	e.cache.Set(ctx, searchOp, key, resp, 0)
	return resp, nil
}
