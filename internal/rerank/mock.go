package rerank

import (
	"context"
	"time"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// MockReranker is a deterministic reranker for tests and development. It
// scores a pair by query-term overlap with the passage, so the same pair
// always gets the same score.
type MockReranker struct {
	// Err, when set, is returned from every Score call.
	Err error
	// Delay, when set, is waited before scoring; combined with a short
	// context deadline this simulates a slow oracle.
	Delay time.Duration
}

// NewMockReranker returns a deterministic overlap-scoring reranker.
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

// Score returns the fraction of query terms present in the passage.
func (m *MockReranker) Score(ctx context.Context, query, passage string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	queryTerms := utils.Tokenize(query)
	if len(queryTerms) == 0 {
		return 0, nil
	}
	passageTerms := make(map[string]bool)
	for _, t := range utils.Tokenize(passage) {
		passageTerms[t] = true
	}
	matched := 0
	for _, t := range queryTerms {
		if passageTerms[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms)), nil
}

// Close is a no-op for MockReranker.
func (m *MockReranker) Close() error {
	return nil
}
