package query

import (
	"testing"

	"github.com/hyperjump/kensaku/internal/index"
)

func TestFuseWeightsAndRanks(t *testing.T) {
	dense := []index.ScoredID{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.5}}
	sparse := []index.ScoredID{{ID: "b", Score: 12.0}, {ID: "a", Score: 3.0}}
	fused := fuse(dense, sparse, 60, 0.6, 0.4)
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	// a leads the heavier dense list, so it wins despite trailing in sparse.
	if fused[0].ChunkID != "a" {
		t.Errorf("fused order = [%s, %s], want a first", fused[0].ChunkID, fused[1].ChunkID)
	}
	wantA := 0.6/61 + 0.4/62
	if diff := fused[0].Score - wantA; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("score of a = %v, want %v", fused[0].Score, wantA)
	}
}

func TestFuseBothListsBeatsSingleList(t *testing.T) {
	dense := []index.ScoredID{{ID: "both", Score: 1}, {ID: "denseonly", Score: 0.9}}
	sparse := []index.ScoredID{{ID: "both", Score: 5}, {ID: "sparseonly", Score: 4}}
	fused := fuse(dense, sparse, 60, 0.6, 0.4)
	if fused[0].ChunkID != "both" {
		t.Errorf("candidate in both lists should rank first, got %s", fused[0].ChunkID)
	}
}

func TestFuseTieBreaksByChunkID(t *testing.T) {
	dense := []index.ScoredID{{ID: "zzz", Score: 1}}
	sparse := []index.ScoredID{{ID: "aaa", Score: 1}}
	fused := fuse(dense, sparse, 60, 0.5, 0.5)
	if len(fused) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(fused))
	}
	if fused[0].ChunkID != "aaa" {
		t.Errorf("equal scores must order by chunk ID ascending, got %s first", fused[0].ChunkID)
	}
}

func TestFuseEmptyLists(t *testing.T) {
	if fused := fuse(nil, nil, 60, 0.6, 0.4); len(fused) != 0 {
		t.Errorf("expected no candidates, got %d", len(fused))
	}
}
