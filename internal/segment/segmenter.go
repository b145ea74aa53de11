package segment

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// Segmenter splits raw text into semantically coherent chunks. It is a pure
// function over the text plus the embedding oracle: no state is kept between
// calls, and the same text always yields the same chunks.
type Segmenter struct {
	cfg      config.SegmentConfig
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithLogger sets a logger for debug output (strategy selection, dedup drops).
func WithLogger(l *zap.Logger) Option {
	return func(s *Segmenter) { s.logger = l }
}

// New creates a segmenter with the given thresholds and embedding oracle.
func New(cfg config.SegmentConfig, embedder embedding.Embedder, opts ...Option) *Segmenter {
	s := &Segmenter{cfg: cfg, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits text into chunks, scores them, deduplicates, and stamps
// metadata. Text shorter than min_chunk_size yields an empty result, never
// an error. Chunks come back with embeddings attached, ready for indexing.
func (s *Segmenter) Segment(ctx context.Context, text string, metadata map[string]interface{}) ([]*models.Chunk, error) {
	if len(text) < s.cfg.MinChunkSize {
		return nil, nil
	}

	info := analyzeStructure(text)
	var (
		chunks []*models.Chunk
		err    error
	)
	switch {
	case len(info.sections) > 2:
		s.logger.Debug("segmenting hierarchically", zap.Int("sections", len(info.sections)))
		chunks, err = s.splitHierarchical(ctx, text, info)
	case len(info.tables) > 0:
		s.logger.Debug("segmenting table-aware", zap.Int("tables", len(info.tables)))
		chunks, err = s.splitTableAware(ctx, text, info)
	default:
		chunks, err = s.splitSemantic(ctx, text, 0)
	}
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].StartOffset < chunks[j].StartOffset })

	s.injectOverlap(chunks)
	if err := s.scoreChunks(ctx, chunks); err != nil {
		return nil, err
	}
	chunks, err = s.deduplicate(ctx, chunks)
	if err != nil {
		return nil, err
	}
	s.enrich(chunks, metadata)
	return chunks, nil
}

// splitHierarchical cuts the text at section boundaries. Sections above
// max_chunk_size are resplit by accumulating whole sentences up to
// target_chunk_size; undersized sections are merged with their successor so
// emitted chunks respect the minimum size.
func (s *Segmenter) splitHierarchical(ctx context.Context, text string, info *structureInfo) ([]*models.Chunk, error) {
	cuts := make([]int, 0, len(info.sections)+2)
	if len(info.sections) == 0 || info.sections[0].offset != 0 {
		cuts = append(cuts, 0)
	}
	for _, sec := range info.sections {
		cuts = append(cuts, sec.offset)
	}
	cuts = append(cuts, len(text))

	var out []*models.Chunk
	accStart := -1
	for i := 0; i+1 < len(cuts); i++ {
		start, end := cuts[i], cuts[i+1]
		if accStart < 0 {
			accStart = start
		}
		// Merge consecutive sections until the accumulated span reaches the minimum.
		if end-accStart < s.cfg.MinChunkSize && i+2 < len(cuts) {
			continue
		}
		body := text[accStart:end]
		if strings.TrimSpace(body) == "" {
			accStart = -1
			continue
		}
		if spanTables := tablesWithin(info.tables, accStart, end); len(spanTables) > 0 {
			chunks, err := s.carveTables(text, accStart, end, spanTables)
			if err != nil {
				return nil, err
			}
			out = append(out, chunks...)
			accStart = -1
			continue
		}
		if len(body) < s.cfg.MinChunkSize && len(out) > 0 && out[len(out)-1].Kind != models.KindTable {
			// Trailing undersized remainder folds into the previous chunk.
			last := out[len(out)-1]
			last.Text = text[last.StartOffset:end]
			last.EndOffset = end
			accStart = -1
			continue
		}
		if len(body) > s.cfg.MaxChunkSize {
			resplit, err := s.resplitSection(body, accStart)
			if err != nil {
				return nil, err
			}
			out = append(out, resplit...)
		} else {
			out = append(out, &models.Chunk{
				Text:           body,
				StartOffset:    accStart,
				EndOffset:      end,
				Kind:           models.KindSection,
				CoherenceScore: 1.0,
			})
		}
		accStart = -1
	}
	return out, nil
}

// tablesWithin returns the table blocks overlapping [start, end).
func tablesWithin(tables []tableBlock, start, end int) []tableBlock {
	var out []tableBlock
	for _, tbl := range tables {
		if tbl.start < end && tbl.end > start {
			out = append(out, tbl)
		}
	}
	return out
}

// carveTables emits every table inside [start, end) as its own Table chunk
// and the text around the tables as section chunks, resplit when oversized.
// A table embedded in a section must never be swallowed into prose.
func (s *Segmenter) carveTables(text string, start, end int, tables []tableBlock) ([]*models.Chunk, error) {
	var out []*models.Chunk
	emit := func(from, to int) error {
		body := text[from:to]
		if strings.TrimSpace(body) == "" {
			return nil
		}
		if len(body) > s.cfg.MaxChunkSize {
			resplit, err := s.resplitSection(body, from)
			if err != nil {
				return err
			}
			out = append(out, resplit...)
			return nil
		}
		out = append(out, &models.Chunk{
			Text:           body,
			StartOffset:    from,
			EndOffset:      to,
			Kind:           models.KindSection,
			CoherenceScore: 1.0,
		})
		return nil
	}
	pos := start
	for _, tbl := range tables {
		tblStart, tblEnd := tbl.start, tbl.end
		if tblStart < pos {
			tblStart = pos
		}
		if tblEnd > end {
			tblEnd = end
		}
		if tblStart > pos {
			if err := emit(pos, tblStart); err != nil {
				return nil, err
			}
		}
		if body := strings.TrimSpace(text[tblStart:tblEnd]); body != "" {
			out = append(out, &models.Chunk{
				Text:           body,
				StartOffset:    tblStart,
				EndOffset:      tblEnd,
				Kind:           models.KindTable,
				CoherenceScore: 1.0,
			})
		}
		pos = tblEnd
	}
	if pos < end {
		if err := emit(pos, end); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resplitSection splits an oversized section into paragraph chunks by
// accumulating whole sentences until target_chunk_size; sentences are never
// split mid-sentence. A section with no sentence boundaries stays one
// Section chunk even above the maximum (an atomic structural unit).
func (s *Segmenter) resplitSection(body string, base int) ([]*models.Chunk, error) {
	sentences := splitSentences(body)
	if len(sentences) == 0 {
		return []*models.Chunk{{
			Text:           body,
			StartOffset:    base,
			EndOffset:      base + len(body),
			Kind:           models.KindSection,
			CoherenceScore: 1.0,
		}}, nil
	}
	var out []*models.Chunk
	first := 0
	size := 0
	for i, sent := range sentences {
		size += len(sent.text)
		if size < s.cfg.TargetChunkSize && i+1 < len(sentences) {
			continue
		}
		span := body[sentences[first].start:sent.end]
		kind := models.KindParagraph
		if i == first {
			kind = models.KindSentence
		}
		out = append(out, &models.Chunk{
			Text:        span,
			StartOffset: base + sentences[first].start,
			EndOffset:   base + sent.end,
			Kind:        kind,
		})
		first = i + 1
		size = 0
	}
	return out, nil
}

// splitTableAware emits each table block as its own chunk and recursively
// segments the text before, between, and after tables with the semantic
// strategy.
func (s *Segmenter) splitTableAware(ctx context.Context, text string, info *structureInfo) ([]*models.Chunk, error) {
	var out []*models.Chunk
	pos := 0
	for _, tbl := range info.tables {
		if tbl.start > pos {
			chunks, err := s.splitSemantic(ctx, text[pos:tbl.start], pos)
			if err != nil {
				return nil, err
			}
			out = append(out, chunks...)
		}
		body := strings.TrimSpace(text[tbl.start:tbl.end])
		if body != "" {
			out = append(out, &models.Chunk{
				Text:           body,
				StartOffset:    tbl.start,
				EndOffset:      tbl.end,
				Kind:           models.KindTable,
				CoherenceScore: 1.0,
			})
		}
		pos = tbl.end
	}
	if pos < len(text) {
		chunks, err := s.splitSemantic(ctx, text[pos:], pos)
		if err != nil {
			return nil, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

// splitSemantic tokenizes text into sentences and greedily grows chunks:
// a sentence is appended while the chunk stays under max_chunk_size and
// either the sentence is semantically close to the chunk-so-far (cosine to
// the mean embedding above the similarity threshold) or the chunk is still
// under min_chunk_size. Text with no sentence boundaries degrades to a
// single chunk.
func (s *Segmenter) splitSemantic(ctx context.Context, text string, base int) ([]*models.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		if len(text) < s.cfg.MinChunkSize {
			return nil, nil
		}
		return []*models.Chunk{{
			Text:        text,
			StartOffset: base,
			EndOffset:   base + len(text),
			Kind:        models.KindParagraph,
		}}, nil
	}

	texts := make([]string, len(sentences))
	for i, sent := range sentences {
		texts[i] = sent.text
	}
	embs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}

	var out []*models.Chunk
	first := 0
	size := len(sentences[0].text)
	current := [][]float32{embs[0]}

	flush := func(last int) {
		span := text[sentences[first].start:sentences[last].end]
		kind := models.KindParagraph
		if last == first {
			kind = models.KindSentence
		}
		out = append(out, &models.Chunk{
			Text:        span,
			StartOffset: base + sentences[first].start,
			EndOffset:   base + sentences[last].end,
			Kind:        kind,
		})
	}

	for i := 1; i < len(sentences); i++ {
		sentSize := len(sentences[i].text)
		sim := utils.CosineSimilarity(embs[i], utils.MeanVector(current))
		if size+sentSize <= s.cfg.MaxChunkSize && (sim > s.cfg.SimilarityThreshold || size < s.cfg.MinChunkSize) {
			size += sentSize
			current = append(current, embs[i])
			continue
		}
		flush(i - 1)
		first = i
		size = sentSize
		current = [][]float32{embs[i]}
	}
	flush(len(sentences) - 1)
	// A short final sentence can land in its own undersized chunk; fold it
	// into the previous chunk when the merged span stays within the maximum.
	if n := len(out); n > 1 {
		last, prev := out[n-1], out[n-2]
		if last.Size() < s.cfg.MinChunkSize && last.EndOffset-prev.StartOffset <= s.cfg.MaxChunkSize {
			prev.Text = text[prev.StartOffset-base : last.EndOffset-base]
			prev.EndOffset = last.EndOffset
			prev.Kind = models.KindParagraph
			out = out[:n-1]
		}
	}
	return out, nil
}

// injectOverlap prepends the trailing overlap_ratio fraction of each chunk's
// predecessor (its pre-overlap text) to the chunk. The first chunk is never
// modified. Offsets keep pointing at the chunk's original span.
func (s *Segmenter) injectOverlap(chunks []*models.Chunk) {
	if s.cfg.OverlapRatio <= 0 {
		return
	}
	originals := make([]string, len(chunks))
	for i, c := range chunks {
		originals[i] = c.Text
	}
	for i := 1; i < len(chunks); i++ {
		prev := originals[i-1]
		n := int(s.cfg.OverlapRatio * float64(len(prev)))
		if n <= 0 {
			continue
		}
		chunks[i].Text = prev[len(prev)-n:] + chunks[i].Text
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]interface{})
		}
		chunks[i].Metadata["has_overlap"] = true
	}
}

// deduplicate embeds every chunk and accepts them in order, dropping any
// whose cosine similarity to an already-accepted chunk exceeds the dedup
// threshold (first occurrence wins). Accepted chunks keep their embeddings.
// An embedding failure costs only the affected chunk: the chunk passes
// through without an embedding for the ingest stage to retry or drop.
func (s *Segmenter) deduplicate(ctx context.Context, chunks []*models.Chunk) ([]*models.Chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("batch chunk embedding failed, retrying per chunk", zap.Error(err))
		embs = make([][]float32, len(chunks))
		for i, text := range texts {
			vec, embErr := s.embedder.Embed(ctx, text)
			if embErr != nil {
				s.logger.Warn("failed to embed chunk", zap.Int("index", i), zap.Error(embErr))
				continue
			}
			embs[i] = vec
		}
	}
	accepted := make([]*models.Chunk, 0, len(chunks))
	acceptedEmbs := make([][]float32, 0, len(chunks))
	for i, c := range chunks {
		if embs[i] == nil {
			accepted = append(accepted, c)
			continue
		}
		dup := false
		for _, e := range acceptedEmbs {
			if utils.CosineSimilarity(embs[i], e) > s.cfg.DedupThreshold {
				dup = true
				break
			}
		}
		if dup {
			s.logger.Debug("dropping near-duplicate chunk", zap.Int("index", i))
			continue
		}
		c.Embedding = embs[i]
		accepted = append(accepted, c)
		acceptedEmbs = append(acceptedEmbs, embs[i])
	}
	return accepted, nil
}

// enrich stamps chunk-local facts and merges caller metadata. Chunk-local
// facts win on key collisions.
func (s *Segmenter) enrich(chunks []*models.Chunk, metadata map[string]interface{}) {
	total := len(chunks)
	for i, c := range chunks {
		merged := make(map[string]interface{}, len(metadata)+4)
		for k, v := range metadata {
			merged[k] = v
		}
		for k, v := range c.Metadata {
			merged[k] = v
		}
		merged["chunk_index"] = i
		merged["total_chunks"] = total
		merged["relative_position"] = float64(i) / float64(total)
		c.Metadata = merged
	}
}
