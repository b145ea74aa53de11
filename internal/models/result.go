package models

// Method identifies which retrieval path produced a result.
type Method string

// MethodHybrid marks results produced by fused dense and sparse retrieval;
// the engine always fuses, so this is the only method responses carry.
const MethodHybrid Method = "hybrid"

// RetrievalResult is a single retrieval hit, ordered best-first in responses.
type RetrievalResult struct {
	ChunkID  string                 `json:"chunk_id"`
	Text     string                 `json:"text"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Method   Method                 `json:"method"`
}

// SearchResponse is the response for a retrieval request.
type SearchResponse struct {
	Results []*RetrievalResult `json:"results"`
	// Reranked is false when reranking was skipped or degraded (oracle
	// unavailable or timed out); the results then carry the fusion order.
	Reranked  bool   `json:"reranked"`
	QueryTime int64  `json:"query_time_ms"`
	Query     string `json:"query"`
}
