package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func newTestStore(t *testing.T) *ChunkStore {
	t.Helper()
	s, err := NewChunkStore(filepath.Join(t.TempDir(), "chunks.db"))
	if err != nil {
		t.Fatalf("NewChunkStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestChunkStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := []*models.Chunk{
		{
			ID: "b", DocumentID: "d1", Text: "second", StartOffset: 10, EndOffset: 16,
			Kind: models.KindParagraph, CoherenceScore: 0.8, QualityScore: 0.7,
			Metadata: map[string]interface{}{"lang": "en"},
		},
		{ID: "a", DocumentID: "d1", Text: "first", Kind: models.KindSection, CoherenceScore: 1.0},
	}
	if err := s.PutChunks(ctx, in); err != nil {
		t.Fatalf("PutChunks failed: %v", err)
	}

	out, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("chunks not ordered by id: %s, %s", out[0].ID, out[1].ID)
	}
	if out[1].Metadata["lang"] != "en" {
		t.Errorf("metadata lost: %v", out[1].Metadata)
	}
	if out[0].Kind != models.KindSection {
		t.Errorf("kind lost: %s", out[0].Kind)
	}
	if out[1].StartOffset != 10 || out[1].EndOffset != 16 {
		t.Errorf("offsets lost: [%d,%d)", out[1].StartOffset, out[1].EndOffset)
	}
}

func TestChunkStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PutChunks(ctx, []*models.Chunk{{ID: "a", DocumentID: "d", Text: "old", Kind: models.KindParagraph}}); err != nil {
		t.Fatalf("PutChunks failed: %v", err)
	}
	if err := s.PutChunks(ctx, []*models.Chunk{{ID: "a", DocumentID: "d", Text: "new", Kind: models.KindParagraph}}); err != nil {
		t.Fatalf("PutChunks failed: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1 after upsert", n)
	}
	out, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if out[0].Text != "new" {
		t.Errorf("text = %q, want replacement", out[0].Text)
	}
}

func TestChunkStoreEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	out, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatalf("AllChunks failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected no chunks, got %d", len(out))
	}
}
