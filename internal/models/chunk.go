// Package models defines core data structures for chunks, queries, and retrieval results.
package models

// ChunkKind records how a chunk was produced by the segmenter.
type ChunkKind string

const (
	KindSection   ChunkKind = "section"
	KindParagraph ChunkKind = "paragraph"
	KindSentence  ChunkKind = "sentence"
	KindTable     ChunkKind = "table"
)

// Chunk is a contiguous span of source text selected for independent retrieval.
// Chunks are immutable once indexed; reprocessing a document replaces its
// chunk set wholesale rather than patching individual chunks.
type Chunk struct {
	ID             string                 `json:"id"`
	DocumentID     string                 `json:"document_id"`
	Text           string                 `json:"text"`
	StartOffset    int                    `json:"start_offset"`
	EndOffset      int                    `json:"end_offset"`
	Kind           ChunkKind              `json:"kind"`
	CoherenceScore float64                `json:"coherence_score"`
	QualityScore   float64                `json:"quality_score"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Embedding      []float32              `json:"-"`
}

// Size returns the chunk text length in bytes.
func (c *Chunk) Size() int {
	return len(c.Text)
}

// Clone returns a deep copy of the chunk (metadata map included, embedding shared
// read-only since embeddings are never mutated after creation).
func (c *Chunk) Clone() *Chunk {
	out := *c
	if c.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
