// Package rerank provides the cross-encoder reranking oracle interface and clients.
package rerank

import "context"

// Reranker scores a (query, passage) pair; higher is more relevant. No fixed
// scale is guaranteed across models, so scores are only compared within one
// query. Implementations call an external scoring service; callers fall back
// to the pre-rerank order when a call fails or times out.
type Reranker interface {
	Score(ctx context.Context, query, passage string) (float64, error)
	Close() error
}
