// Package config provides configuration loading and structs for Kensaku.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is treated as
// immutable after Load: components receive it (or a sub-struct) at
// construction and never read ad-hoc global settings.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Segment   SegmentConfig   `yaml:"segment"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Index     IndexConfig     `yaml:"index"`
	Query     QueryConfig     `yaml:"query"`
	Cache     CacheConfig     `yaml:"cache"`
}

// SegmentConfig holds chunking thresholds. Sizes are in characters.
type SegmentConfig struct {
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size"`
	TargetChunkSize     int     `yaml:"target_chunk_size"`
	OverlapRatio        float64 `yaml:"overlap_ratio"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	DedupThreshold      float64 `yaml:"dedup_threshold"`
}

// EmbeddingConfig holds embedding oracle settings. When BaseURL is empty the
// CLI falls back to the deterministic mock embedder (useful for development).
type EmbeddingConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RerankConfig holds reranking oracle settings. A missing BaseURL disables
// reranking; searches then return the fusion order tagged reranked=false.
type RerankConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IndexConfig holds dual-index settings and the persistence directory.
type IndexConfig struct {
	Dir string `yaml:"dir"`
	// FlatThreshold is the chunk count above which the dense side switches
	// from an exact flat scan to an inverted-file approximate structure.
	FlatThreshold int     `yaml:"flat_threshold"`
	BM25K1        float64 `yaml:"bm25_k1"`
	BM25B         float64 `yaml:"bm25_b"`
}

// QueryConfig holds fusion and expansion settings.
type QueryConfig struct {
	RRFK          int     `yaml:"rrf_k"`
	DenseWeight   float64 `yaml:"dense_weight"`
	SparseWeight  float64 `yaml:"sparse_weight"`
	CandidateMult int     `yaml:"candidate_multiplier"`
	// Synonyms maps a lowercased query term to expansion terms appended to
	// the retrieval query (the original query is preserved for reranking).
	Synonyms map[string][]string `yaml:"synonyms"`
}

// CacheConfig holds the two cache tiers' settings.
type CacheConfig struct {
	LocalMaxBytes     int64       `yaml:"local_max_bytes"`
	DefaultTTLSeconds int         `yaml:"default_ttl_seconds"`
	Redis             RedisConfig `yaml:"redis"`
}

// RedisConfig holds backing cache service settings. An empty Addr skips Redis
// entirely and uses the in-process fallback tier.
type RedisConfig struct {
	Addr               string `yaml:"addr"`
	Password           string `yaml:"password"`
	DB                 int    `yaml:"db"`
	PingTimeoutSeconds int    `yaml:"ping_timeout_seconds"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Index.Dir = expandPath(cfg.Index.Dir, configDir)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Segment.MinChunkSize >= c.Segment.MaxChunkSize {
		return fmt.Errorf("segment: min_chunk_size (%d) must be below max_chunk_size (%d)",
			c.Segment.MinChunkSize, c.Segment.MaxChunkSize)
	}
	if c.Segment.OverlapRatio < 0 || c.Segment.OverlapRatio >= 1 {
		return fmt.Errorf("segment: overlap_ratio must be in [0,1), got %f", c.Segment.OverlapRatio)
	}
	if sum := c.Query.DenseWeight + c.Query.SparseWeight; sum > 1.0+1e-9 {
		return fmt.Errorf("query: dense_weight + sparse_weight must not exceed 1, got %f", sum)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
