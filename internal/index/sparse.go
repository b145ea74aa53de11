// Package index provides the dual (dense + lexical) chunk index with
// generation-swap concurrency and directory persistence.
package index

import (
	"math"
	"sort"
)

// ScoredID is a single sub-search hit.
type ScoredID struct {
	ID    string
	Score float64
}

// sortScored orders hits best-first, breaking score ties by ID ascending so
// repeated searches over the same generation are deterministic.
func sortScored(hits []ScoredID) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// SparseIndex is a BM25 index over lowercased, punctuation-stripped tokens.
// It is immutable once its generation is published.
type SparseIndex struct {
	k1 float64
	b  float64
	// postings maps term -> chunk ID -> term frequency.
	postings map[string]map[string]int
	docLens  map[string]int
	totalLen int
}

// NewSparseIndex creates an empty BM25 index with the given parameters.
func NewSparseIndex(k1, b float64) *SparseIndex {
	return &SparseIndex{
		k1:       k1,
		b:        b,
		postings: make(map[string]map[string]int),
		docLens:  make(map[string]int),
	}
}

// add indexes one chunk's tokens. Only called while building a generation.
func (s *SparseIndex) add(id string, tokens []string) {
	s.docLens[id] = len(tokens)
	s.totalLen += len(tokens)
	for _, t := range tokens {
		m, ok := s.postings[t]
		if !ok {
			m = make(map[string]int)
			s.postings[t] = m
		}
		m[id]++
	}
}

// Search scores all chunks containing any query token with BM25 and returns
// the top k, ties broken by chunk ID ascending.
func (s *SparseIndex) Search(tokens []string, k int) []ScoredID {
	if k <= 0 || len(tokens) == 0 || len(s.docLens) == 0 {
		return nil
	}
	n := float64(len(s.docLens))
	avgdl := float64(s.totalLen) / n
	scores := make(map[string]float64)
	for _, t := range tokens {
		posting, ok := s.postings[t]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, tf := range posting {
			dl := float64(s.docLens[id])
			norm := float64(tf) * (s.k1 + 1) / (float64(tf) + s.k1*(1-s.b+s.b*dl/avgdl))
			scores[id] += idf * norm
		}
	}
	hits := make([]ScoredID, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, ScoredID{ID: id, Score: score})
	}
	sortScored(hits)
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

// Size returns the number of indexed chunks.
func (s *SparseIndex) Size() int {
	return len(s.docLens)
}

// sparseSnapshot is the gob-serializable form of a SparseIndex.
type sparseSnapshot struct {
	K1       float64
	B        float64
	Postings map[string]map[string]int
	DocLens  map[string]int
	TotalLen int
}

func (s *SparseIndex) snapshot() *sparseSnapshot {
	return &sparseSnapshot{K1: s.k1, B: s.b, Postings: s.postings, DocLens: s.docLens, TotalLen: s.totalLen}
}

func sparseFromSnapshot(snap *sparseSnapshot) *SparseIndex {
	return &SparseIndex{k1: snap.K1, b: snap.B, postings: snap.Postings, docLens: snap.DocLens, totalLen: snap.TotalLen}
}
