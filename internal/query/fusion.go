// Package query provides the hybrid query engine: expansion, dual retrieval,
// reciprocal rank fusion, metadata filtering, and reranking.
package query

import (
	"sort"

	"github.com/hyperjump/kensaku/internal/index"
)

// fusedCandidate holds a chunk ID and its rank-fused score.
type fusedCandidate struct {
	ChunkID string
	Score   float64
}

// fuse merges the dense and sparse ranked lists with weighted reciprocal
// rank fusion: each list contributes weight / (K + rank + 1) for every
// candidate it contains. Raw sub-search scores are ignored; only ranks
// matter, which makes the two score scales commensurable. Results are
// sorted descending, ties broken by chunk ID ascending for determinism.
func fuse(dense, sparse []index.ScoredID, k int, denseWeight, sparseWeight float64) []fusedCandidate {
	scores := make(map[string]float64, len(dense)+len(sparse))
	for rank, hit := range dense {
		scores[hit.ID] += denseWeight / float64(k+rank+1)
	}
	for rank, hit := range sparse {
		scores[hit.ID] += sparseWeight / float64(k+rank+1)
	}
	out := make([]fusedCandidate, 0, len(scores))
	for id, score := range scores {
		out = append(out, fusedCandidate{ChunkID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
