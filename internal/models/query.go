package models

// SearchRequest represents a retrieval request with optional metadata filters.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
	// Filters are matched against chunk metadata: a plain value requires
	// equality, a slice value means "chunk value must be one of these".
	// A filter key absent from a chunk's metadata fails the match.
	Filters map[string]interface{} `json:"filters,omitempty"`
	// Rerank enables cross-encoder rescoring of the fused candidates.
	// Nil means use the default (enabled).
	Rerank *bool `json:"rerank,omitempty"`
}

// Validate normalizes the request. An empty query is not an error here;
// the engine returns empty results for it (degenerate input, not a failure).
func (r *SearchRequest) Validate() {
	if r.K <= 0 {
		r.K = 10
	}
	if r.K > 100 {
		r.K = 100
	}
	if r.Rerank == nil {
		t := true
		r.Rerank = &t
	}
}

// RerankEnabled reports whether reranking is requested (defaults to true).
func (r *SearchRequest) RerankEnabled() bool {
	return r.Rerank == nil || *r.Rerank
}
