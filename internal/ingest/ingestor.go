// Package ingest turns documents into indexed chunks: segmentation,
// embedding, atomic index replacement, and cache invalidation.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/models"
)

// Segmenter is the chunking stage of the pipeline.
type Segmenter interface {
	Segment(ctx context.Context, text string, metadata map[string]interface{}) ([]*models.Chunk, error)
}

// embedTimeout bounds each per-chunk embedding call so one stuck request
// cannot stall the whole document.
const embedTimeout = 30 * time.Second

// Report summarizes one ingestion: how many chunks made it into the index
// and which ones were dropped with their reasons.
type Report struct {
	DocumentID    string
	ChunksIndexed int
	ChunksFailed  int
	Failures      []string
	Generation    int64
	Elapsed       time.Duration
}

// Ingestor drives the document pipeline.
type Ingestor struct {
	segmenter Segmenter
	embedder  embedding.Embedder
	index     *index.Manager
	cache     *cache.Manager
	logger    *zap.Logger
}

// Option configures the ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingestor) { i.logger = l }
}

// WithCache attaches a cache manager whose search entries are invalidated
// after every successful index mutation.
func WithCache(c *cache.Manager) Option {
	return func(i *Ingestor) { i.cache = c }
}

// New creates an ingestor.
func New(seg Segmenter, embedder embedding.Embedder, idx *index.Manager, opts ...Option) *Ingestor {
	ing := &Ingestor{segmenter: seg, embedder: embedder, index: idx, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest segments text, embeds any chunk the segmenter did not already embed,
// and atomically replaces docID's chunks in the index. A chunk whose
// embedding fails is recorded in the report and skipped; it never aborts the
// document. Re-ingesting a document supersedes its previous chunks.
func (i *Ingestor) Ingest(ctx context.Context, docID, text string, metadata map[string]interface{}) (*Report, error) {
	start := time.Now()
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, fmt.Errorf("document ID is required")
	}
	report := &Report{DocumentID: docID}

	chunks, err := i.segmenter.Segment(ctx, text, metadata)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", docID, err)
	}
	if len(chunks) == 0 {
		i.logger.Debug("document produced no chunks", zap.String("document", docID))
		report.Elapsed = time.Since(start)
		return report, nil
	}

	var indexed []*models.Chunk
	for _, c := range chunks {
		c.DocumentID = docID
		c.ID = docID + "_" + uuid.New().String()[:8]
		if c.Embedding == nil {
			embCtx, cancel := context.WithTimeout(ctx, embedTimeout)
			vec, err := i.embedder.Embed(embCtx, c.Text)
			cancel()
			if err != nil {
				report.ChunksFailed++
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", c.ID, err))
				i.logger.Warn("failed to embed chunk, skipping",
					zap.String("chunk", c.ID), zap.Error(err))
				continue
			}
			c.Embedding = vec
		}
		indexed = append(indexed, c)
	}
	if len(indexed) == 0 {
		return report, fmt.Errorf("all %d chunks of %s failed to embed", len(chunks), docID)
	}

	g, err := i.index.Replace(docID, indexed)
	if err != nil {
		return report, fmt.Errorf("index %s: %w", docID, err)
	}
	report.ChunksIndexed = len(indexed)
	report.Generation = g.Seq()
	report.Elapsed = time.Since(start)
	i.invalidateSearches(ctx)

	i.logger.Info("document ingested",
		zap.String("document", docID),
		zap.Int("chunks", report.ChunksIndexed),
		zap.Int("failed", report.ChunksFailed),
		zap.Int64("generation", report.Generation),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// Delete removes every chunk of docID from the index.
func (i *Ingestor) Delete(ctx context.Context, docID string) (int, error) {
	removed, err := i.index.RemoveDocument(docID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		i.invalidateSearches(ctx)
	}
	return removed, nil
}

func (i *Ingestor) invalidateSearches(ctx context.Context) {
	if i.cache == nil {
		return
	}
	if err := i.cache.Invalidate(ctx, "search"); err != nil {
		i.logger.Warn("failed to invalidate search cache", zap.Error(err))
	}
}
