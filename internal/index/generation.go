package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// ErrNotBuilt is returned when a search or save is attempted before any
// generation has been built or loaded.
var ErrNotBuilt = errors.New("index not built")

// Generation is an immutable snapshot of the dual index: the chunk set, the
// dense structure, and the sparse structure all reference the same chunk-id
// space. Readers hold a generation for the duration of one query and never
// observe partial rebuilds.
type Generation struct {
	seq    int64
	chunks map[string]*models.Chunk
	ids    []string
	dense  denseIndex
	sparse *SparseIndex
	dims   int
}

func newGeneration(seq int64, chunks []*models.Chunk, cfg config.IndexConfig, dims int) (*Generation, error) {
	byID := make(map[string]*models.Chunk, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return nil, fmt.Errorf("chunk with empty ID")
		}
		if _, dup := byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate chunk ID %s", c.ID)
		}
		if len(c.Embedding) != dims {
			return nil, fmt.Errorf("chunk %s embedding dimension: got %d, expected %d", c.ID, len(c.Embedding), dims)
		}
		byID[c.ID] = c
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)

	vectors := make([][]float32, len(ids))
	sparse := NewSparseIndex(cfg.BM25K1, cfg.BM25B)
	for i, id := range ids {
		c := byID[id]
		vectors[i] = c.Embedding
		sparse.add(id, utils.Tokenize(c.Text))
	}
	dense, err := newDenseIndex(ids, vectors, dims, cfg.FlatThreshold)
	if err != nil {
		return nil, err
	}
	return &Generation{seq: seq, chunks: byID, ids: ids, dense: dense, sparse: sparse, dims: dims}, nil
}

// Seq returns the generation sequence number (monotonic across rebuilds).
func (g *Generation) Seq() int64 { return g.seq }

// Size returns the number of indexed chunks.
func (g *Generation) Size() int { return len(g.ids) }

// MemoryBytes estimates the dense side's vector footprint.
func (g *Generation) MemoryBytes() int64 { return g.dense.memoryBytes() }

// Chunk returns the chunk for id.
func (g *Generation) Chunk(id string) (*models.Chunk, bool) {
	c, ok := g.chunks[id]
	return c, ok
}

// SearchDense returns the top-k chunks by inner product against query.
func (g *Generation) SearchDense(query []float32, k int) ([]ScoredID, error) {
	if len(query) != g.dims {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), g.dims)
	}
	return g.dense.search(query, k), nil
}

// SearchSparse returns the top-k chunks by BM25 score against tokens.
func (g *Generation) SearchSparse(tokens []string, k int) []ScoredID {
	return g.sparse.Search(tokens, k)
}

// chunkIDsForDocument returns the ids of chunks belonging to docID.
func (g *Generation) chunkIDsForDocument(docID string) []string {
	var out []string
	for _, id := range g.ids {
		if g.chunks[id].DocumentID == docID {
			out = append(out, id)
		}
	}
	return out
}

// Manager owns the current generation pointer. Mutations (Build, Add,
// Remove, Replace) are serialized by a writer mutex, construct the next
// generation off to the side, and publish it with one atomic store; in-flight
// reads against the previous generation complete safely. Vectors of a live
// generation are never mutated in place.
type Manager struct {
	cfg     config.IndexConfig
	dims    int
	mu      sync.Mutex
	seq     atomic.Int64
	current atomic.Pointer[Generation]
}

// NewManager creates an index manager for embeddings of the given dimension.
func NewManager(cfg config.IndexConfig, dims int) *Manager {
	return &Manager{cfg: cfg, dims: dims}
}

// Current returns the live generation, or ErrNotBuilt before the first build.
func (m *Manager) Current() (*Generation, error) {
	g := m.current.Load()
	if g == nil {
		return nil, ErrNotBuilt
	}
	return g, nil
}

// Build replaces the whole index with a generation over chunks.
func (m *Manager) Build(chunks []*models.Chunk) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.publish(chunks)
}

// Add publishes a new generation containing the current chunks plus chunks.
func (m *Manager) Add(chunks []*models.Chunk) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := m.snapshotChunks()
	merged = append(merged, chunks...)
	return m.publish(merged)
}

// Remove publishes a new generation without the given chunk ids.
func (m *Manager) Remove(ids []string) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []*models.Chunk
	for _, c := range m.snapshotChunks() {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	return m.publish(kept)
}

// RemoveDocument publishes a new generation without any chunk of docID and
// returns how many chunks were dropped.
func (m *Manager) RemoveDocument(docID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.current.Load()
	if g == nil {
		return 0, ErrNotBuilt
	}
	ids := g.chunkIDsForDocument(docID)
	if len(ids) == 0 {
		return 0, nil
	}
	var kept []*models.Chunk
	for _, c := range m.snapshotChunks() {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	if _, err := m.publish(kept); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Replace atomically supersedes all chunks of docID with chunks: the old
// chunk set is fully removed and the new one added within one generation, so
// no reader ever sees a partially patched document.
func (m *Manager) Replace(docID string, chunks []*models.Chunk) (*Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*models.Chunk
	for _, c := range m.snapshotChunks() {
		if c.DocumentID != docID {
			kept = append(kept, c)
		}
	}
	kept = append(kept, chunks...)
	return m.publish(kept)
}

// snapshotChunks returns the current generation's chunks; callers hold m.mu.
func (m *Manager) snapshotChunks() []*models.Chunk {
	g := m.current.Load()
	if g == nil {
		return nil
	}
	out := make([]*models.Chunk, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.chunks[id])
	}
	return out
}

func (m *Manager) publish(chunks []*models.Chunk) (*Generation, error) {
	g, err := newGeneration(m.seq.Add(1), chunks, m.cfg, m.dims)
	if err != nil {
		return nil, err
	}
	m.current.Store(g)
	return g, nil
}
