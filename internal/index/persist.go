package index

import (
	"context"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
)

// ErrCorruptIndex is returned by Load when the artifact directory is missing
// pieces or the artifacts disagree on the chunk-id set. Loading never
// silently constructs an empty index.
var ErrCorruptIndex = errors.New("index artifacts missing or inconsistent")

const (
	vectorsFile = "vectors.bin"
	lexicalFile = "lexical.gob"
	chunksFile  = "chunks.db"
)

// Save persists the current generation to dir: the vector artifact, the
// lexical artifact, and the chunk/metadata list. Artifacts are rewritten
// wholesale so the directory always reflects exactly one generation.
func (m *Manager) Save(ctx context.Context, dir string) error {
	g := m.current.Load()
	if g == nil {
		return ErrNotBuilt
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	if err := saveVectors(filepath.Join(dir, vectorsFile), g); err != nil {
		return err
	}
	if err := saveLexical(filepath.Join(dir, lexicalFile), g.sparse); err != nil {
		return err
	}

	chunksPath := filepath.Join(dir, chunksFile)
	if err := os.RemoveAll(chunksPath); err != nil {
		return fmt.Errorf("reset chunk store: %w", err)
	}
	store, err := storage.NewChunkStore(chunksPath)
	if err != nil {
		return err
	}
	defer store.Close()
	chunks := make([]*models.Chunk, 0, len(g.ids))
	for _, id := range g.ids {
		chunks = append(chunks, g.chunks[id])
	}
	if err := store.PutChunks(ctx, chunks); err != nil {
		return err
	}
	return nil
}

// Load reads the three artifacts from dir, verifies they describe the same
// chunk-id set, and publishes the result as a new generation.
func (m *Manager) Load(ctx context.Context, dir string) error {
	for _, name := range []string{vectorsFile, lexicalFile, chunksFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("%w: missing artifact %s: %v", ErrCorruptIndex, name, err)
		}
	}

	ids, vectors, err := loadVectors(filepath.Join(dir, vectorsFile), m.dims)
	if err != nil {
		return err
	}
	sparse, err := loadLexical(filepath.Join(dir, lexicalFile))
	if err != nil {
		return err
	}
	store, err := storage.NewChunkStore(filepath.Join(dir, chunksFile))
	if err != nil {
		return err
	}
	defer store.Close()
	chunks, err := store.AllChunks(ctx)
	if err != nil {
		return err
	}

	if len(chunks) != len(ids) || sparse.Size() != len(ids) {
		return fmt.Errorf("%w: %d chunks, %d vectors, %d lexical entries",
			ErrCorruptIndex, len(chunks), len(ids), sparse.Size())
	}
	vecByID := make(map[string][]float32, len(ids))
	for i, id := range ids {
		vecByID[id] = vectors[i]
	}
	for _, c := range chunks {
		vec, ok := vecByID[c.ID]
		if !ok {
			return fmt.Errorf("%w: chunk %s has no vector", ErrCorruptIndex, c.ID)
		}
		if _, ok := sparse.docLens[c.ID]; !ok {
			return fmt.Errorf("%w: chunk %s missing from lexical artifact", ErrCorruptIndex, c.ID)
		}
		c.Embedding = vec
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := newGeneration(m.seq.Add(1), chunks, m.cfg, m.dims)
	if err != nil {
		return err
	}
	// Reuse the persisted lexical structure rather than retokenizing.
	g.sparse = sparse
	m.current.Store(g)
	return nil
}

// saveVectors writes dims, count, then per vector: id length, id bytes, and
// dims*4 bytes of little-endian float32s.
func saveVectors(path string, g *Generation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(g.dims)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(g.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, id := range g.ids {
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(g.chunks[id].Embedding)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// loadVectors reads the vector artifact and checks the stored dimension.
func loadVectors(path string, dims int) ([]string, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("%w: read dimensions: %v", ErrCorruptIndex, err)
	}
	if int(dim) != dims {
		return nil, nil, fmt.Errorf("%w: dimension mismatch: file has %d, index expects %d", ErrCorruptIndex, dim, dims)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("%w: read count: %v", ErrCorruptIndex, err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, dims*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, nil, fmt.Errorf("%w: read id len: %v", ErrCorruptIndex, err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return nil, nil, fmt.Errorf("%w: read id: %v", ErrCorruptIndex, err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, nil, fmt.Errorf("%w: read vector: %v", ErrCorruptIndex, err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return ids, vectors, nil
}

func saveLexical(path string, sparse *SparseIndex) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create lexical file: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(sparse.snapshot()); err != nil {
		return fmt.Errorf("encode lexical index: %w", err)
	}
	return nil
}

func loadLexical(path string) (*SparseIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lexical file: %w", err)
	}
	defer f.Close()
	var snap sparseSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decode lexical index: %v", ErrCorruptIndex, err)
	}
	return sparseFromSnapshot(&snap), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
