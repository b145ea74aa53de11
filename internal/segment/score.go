package segment

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// typeBonus weights structural chunks above free-text ones in the quality composite.
func typeBonus(kind models.ChunkKind) float64 {
	switch kind {
	case models.KindSection, models.KindTable:
		return 1.0
	default:
		return 0.7
	}
}

// scoreChunks computes coherence and quality for every chunk. Coherence is
// the mean cosine similarity between embeddings of consecutive sentences
// inside the chunk; single-sentence chunks score 1.0. Table and Section
// chunks keep their pre-assigned 1.0 coherence.
func (s *Segmenter) scoreChunks(ctx context.Context, chunks []*models.Chunk) error {
	for _, c := range chunks {
		if c.Kind != models.KindTable && c.Kind != models.KindSection {
			coherence, err := s.coherence(ctx, c.Text)
			if err != nil {
				return err
			}
			c.CoherenceScore = coherence
		}
		c.QualityScore = 0.5*c.CoherenceScore + 0.3*s.sizeScore(c.Size()) + 0.2*typeBonus(c.Kind)
	}
	return nil
}

// coherence embeds the chunk's sentences and averages adjacent-pair cosine
// similarity, clamped to [0,1].
func (s *Segmenter) coherence(ctx context.Context, text string) (float64, error) {
	sentences := splitSentences(text)
	if len(sentences) < 2 {
		return 1.0, nil
	}
	texts := make([]string, len(sentences))
	for i, sent := range sentences {
		texts[i] = sent.text
	}
	embs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed sentences for coherence: %w", err)
	}
	var total float64
	for i := 1; i < len(embs); i++ {
		total += utils.CosineSimilarity(embs[i-1], embs[i])
	}
	mean := total / float64(len(embs)-1)
	return math.Max(0, math.Min(1, mean)), nil
}

// sizeScore peaks at target_chunk_size and decays linearly to 0 at zero or
// double the target.
func (s *Segmenter) sizeScore(size int) float64 {
	target := float64(s.cfg.TargetChunkSize)
	return math.Max(0, 1-math.Abs(float64(size)-target)/target)
}
