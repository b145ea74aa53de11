package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/rerank"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// Engine runs hybrid searches against the current index generation: the
// query is expanded, dense and sparse retrieval run in parallel, the ranked
// lists are fused, filtered, and optionally reranked.
type Engine struct {
	index         *index.Manager
	embedder      embedding.Embedder
	reranker      rerank.Reranker
	cfg           config.QueryConfig
	rerankTimeout time.Duration
	logger        *zap.Logger
}

// Option configures the engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithReranker attaches a reranker. timeout bounds each scoring call; zero
// means no engine-side deadline.
func WithReranker(r rerank.Reranker, timeout time.Duration) Option {
	return func(e *Engine) {
		e.reranker = r
		e.rerankTimeout = timeout
	}
}

// New creates a query engine over idx using embedder for query vectors.
func New(idx *index.Manager, embedder embedding.Embedder, cfg config.QueryConfig, opts ...Option) *Engine {
	e := &Engine{index: idx, embedder: embedder, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search executes one hybrid search. An empty query returns an empty result
// set without touching the index; an unbuilt index is an error.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	start := time.Now()
	req.Validate()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &models.SearchResponse{
			Results:   []*models.RetrievalResult{},
			Query:     req.Query,
			QueryTime: time.Since(start).Milliseconds(),
		}, nil
	}

	g, err := e.index.Current()
	if err != nil {
		return nil, err
	}

	expanded := expand(query, e.cfg.Synonyms)
	fetch := e.cfg.CandidateMult * req.K

	var (
		wg     sync.WaitGroup
		dense  []index.ScoredID
		sparse []index.ScoredID
	)
	errChan := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vec, err := e.embedder.Embed(ctx, expanded)
		if err != nil {
			errChan <- fmt.Errorf("embed query: %w", err)
			return
		}
		hits, err := g.SearchDense(vec, fetch)
		if err != nil {
			errChan <- fmt.Errorf("dense search: %w", err)
			return
		}
		dense = hits
	}()
	go func() {
		defer wg.Done()
		sparse = g.SearchSparse(utils.Tokenize(expanded), fetch)
	}()
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := fuse(dense, sparse, e.cfg.RRFK, e.cfg.DenseWeight, e.cfg.SparseWeight)

	candidates := make([]*models.Chunk, 0, len(fused))
	scores := make(map[string]float64, len(fused))
	for _, fc := range fused {
		c, ok := g.Chunk(fc.ChunkID)
		if !ok {
			continue
		}
		if len(req.Filters) > 0 && !matchesFilters(c, req.Filters) {
			continue
		}
		candidates = append(candidates, c)
		scores[c.ID] = fc.Score
	}
	if len(candidates) > fetch {
		candidates = candidates[:fetch]
	}

	reranked := false
	if req.RerankEnabled() && e.reranker != nil && len(candidates) > 0 {
		// Reranking scores the user's original query, not the expanded one.
		if ordered, rescores, err := e.rerank(ctx, query, candidates); err != nil {
			e.logger.Warn("reranking failed, keeping fusion order", zap.Error(err))
		} else {
			candidates = ordered
			scores = rescores
			reranked = true
		}
	}

	if len(candidates) > req.K {
		candidates = candidates[:req.K]
	}
	results := make([]*models.RetrievalResult, 0, len(candidates))
	for _, c := range candidates {
		// Results carry a copy of the chunk so callers mutating result
		// metadata cannot reach the index's live maps.
		cc := c.Clone()
		results = append(results, &models.RetrievalResult{
			ChunkID:  cc.ID,
			Text:     cc.Text,
			Score:    scores[cc.ID],
			Metadata: cc.Metadata,
			Method:   models.MethodHybrid,
		})
	}

	e.logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", len(results)),
		zap.Bool("reranked", reranked),
		zap.Int64("generation", g.Seq()))

	return &models.SearchResponse{
		Results:   results,
		Reranked:  reranked,
		Query:     req.Query,
		QueryTime: time.Since(start).Milliseconds(),
	}, nil
}

// rerank rescores candidates against the original query and returns them in
// descending score order, ties broken by chunk ID. Any scoring failure aborts
// the whole pass so the caller can fall back to fusion order.
func (e *Engine) rerank(ctx context.Context, query string, candidates []*models.Chunk) ([]*models.Chunk, map[string]float64, error) {
	rescores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		callCtx := ctx
		cancel := func() {}
		if e.rerankTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, e.rerankTimeout)
		}
		score, err := e.reranker.Score(callCtx, query, c.Text)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("score %s: %w", c.ID, err)
		}
		rescores[c.ID] = score
	}
	ordered := make([]*models.Chunk, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		si, sj := rescores[ordered[i].ID], rescores[ordered[j].ID]
		if si != sj {
			return si > sj
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered, rescores, nil
}
