package index

import (
	"testing"

	"github.com/hyperjump/kensaku/pkg/utils"
)

func buildSparse(docs map[string]string) *SparseIndex {
	s := NewSparseIndex(1.2, 0.75)
	for id, text := range docs {
		s.add(id, utils.Tokenize(text))
	}
	return s
}

func TestSparseSearchRanksByRelevance(t *testing.T) {
	s := buildSparse(map[string]string{
		"c1": "redis cache eviction policy",
		"c2": "redis redis redis cluster setup",
		"c3": "postgres storage engine",
	})
	hits := s.Search([]string{"redis"}, 10)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "c2" {
		t.Errorf("higher term frequency should rank first, got %s", hits[0].ID)
	}
	for _, h := range hits {
		if h.ID == "c3" {
			t.Error("document without the term must not match")
		}
	}
}

func TestSparseSearchMultiTerm(t *testing.T) {
	s := buildSparse(map[string]string{
		"c1": "vector index search",
		"c2": "vector search ranking with extra terms",
		"c3": "unrelated text entirely",
	})
	hits := s.Search(utils.Tokenize("vector search"), 10)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// Both contain both terms; the shorter document scores higher via length
	// normalization.
	if hits[0].ID != "c1" {
		t.Errorf("shorter document should rank first, got %s", hits[0].ID)
	}
}

func TestSparseSearchTieBreaksByID(t *testing.T) {
	s := buildSparse(map[string]string{
		"b": "identical text here",
		"a": "identical text here",
		"c": "identical text here",
	})
	hits := s.Search([]string{"identical"}, 10)
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i, want := range []string{"a", "b", "c"} {
		if hits[i].ID != want {
			t.Errorf("hit %d = %s, want %s (ID ascending on equal scores)", i, hits[i].ID, want)
		}
	}
}

func TestSparseSearchEdgeCases(t *testing.T) {
	s := buildSparse(map[string]string{"c1": "some text"})
	if hits := s.Search(nil, 10); hits != nil {
		t.Errorf("empty token list should return nil, got %v", hits)
	}
	if hits := s.Search([]string{"text"}, 0); hits != nil {
		t.Errorf("k=0 should return nil, got %v", hits)
	}
	if hits := s.Search([]string{"missing"}, 10); len(hits) != 0 {
		t.Errorf("unknown term should return no hits, got %v", hits)
	}
	empty := NewSparseIndex(1.2, 0.75)
	if hits := empty.Search([]string{"text"}, 10); hits != nil {
		t.Errorf("empty index should return nil, got %v", hits)
	}
}

func TestSparseSearchTruncatesToK(t *testing.T) {
	docs := make(map[string]string)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		docs[id] = "shared term plus " + id
	}
	s := buildSparse(docs)
	hits := s.Search([]string{"shared"}, 3)
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
}

func TestSparseSnapshotRoundTrip(t *testing.T) {
	s := buildSparse(map[string]string{
		"c1": "alpha beta gamma",
		"c2": "beta gamma delta",
	})
	restored := sparseFromSnapshot(s.snapshot())
	if restored.Size() != s.Size() {
		t.Fatalf("size after round trip = %d, want %d", restored.Size(), s.Size())
	}
	orig := s.Search([]string{"beta"}, 10)
	got := restored.Search([]string{"beta"}, 10)
	if len(orig) != len(got) {
		t.Fatalf("hit counts differ: %d vs %d", len(orig), len(got))
	}
	for i := range orig {
		if orig[i] != got[i] {
			t.Errorf("hit %d differs: %v vs %v", i, orig[i], got[i])
		}
	}
}
