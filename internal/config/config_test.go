package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Segment.MinChunkSize != 200 || cfg.Segment.MaxChunkSize != 1000 || cfg.Segment.TargetChunkSize != 600 {
		t.Errorf("segment size defaults wrong: %+v", cfg.Segment)
	}
	if cfg.Segment.DedupThreshold != 0.95 {
		t.Errorf("dedup threshold = %f, want 0.95", cfg.Segment.DedupThreshold)
	}
	if cfg.Index.FlatThreshold != 10000 {
		t.Errorf("flat threshold = %d, want 10000", cfg.Index.FlatThreshold)
	}
	if cfg.Index.BM25K1 != 1.2 || cfg.Index.BM25B != 0.75 {
		t.Errorf("bm25 defaults wrong: k1=%f b=%f", cfg.Index.BM25K1, cfg.Index.BM25B)
	}
	if cfg.Query.RRFK != 60 || cfg.Query.DenseWeight != 0.6 || cfg.Query.SparseWeight != 0.4 {
		t.Errorf("fusion defaults wrong: %+v", cfg.Query)
	}
	if cfg.Cache.DefaultTTLSeconds != 3600 {
		t.Errorf("cache ttl = %d, want 3600", cfg.Cache.DefaultTTLSeconds)
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
segment:
  min_chunk_size: 100
  max_chunk_size: 500
index:
  dir: ./data/index
query:
  synonyms:
    ml:
      - machine
      - learning
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug not loaded")
	}
	if cfg.Segment.MinChunkSize != 100 || cfg.Segment.MaxChunkSize != 500 {
		t.Errorf("segment sizes wrong: %+v", cfg.Segment)
	}
	if cfg.Segment.TargetChunkSize != 600 {
		t.Error("defaults not applied on unset fields")
	}
	if !filepath.IsAbs(cfg.Index.Dir) {
		t.Errorf("index dir not expanded: %s", cfg.Index.Dir)
	}
	if len(cfg.Query.Synonyms["ml"]) != 2 {
		t.Errorf("synonyms not loaded: %+v", cfg.Query.Synonyms)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"min above max", "segment:\n  min_chunk_size: 900\n  max_chunk_size: 500\n"},
		{"overlap out of range", "segment:\n  overlap_ratio: 1.5\n"},
		{"weights exceed one", "query:\n  dense_weight: 0.8\n  sparse_weight: 0.4\n"},
		{"bad yaml", "segment: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
