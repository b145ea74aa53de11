package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Segment.MinChunkSize == 0 {
		cfg.Segment.MinChunkSize = 200
	}
	if cfg.Segment.MaxChunkSize == 0 {
		cfg.Segment.MaxChunkSize = 1000
	}
	if cfg.Segment.TargetChunkSize == 0 {
		cfg.Segment.TargetChunkSize = 600
	}
	if cfg.Segment.OverlapRatio == 0 {
		cfg.Segment.OverlapRatio = 0.15
	}
	if cfg.Segment.SimilarityThreshold == 0 {
		cfg.Segment.SimilarityThreshold = 0.7
	}
	if cfg.Segment.DedupThreshold == 0 {
		cfg.Segment.DedupThreshold = 0.95
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 30
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Rerank.TimeoutSeconds == 0 {
		cfg.Rerank.TimeoutSeconds = 10
	}
	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "/usr/local/var/kensaku/data/index"
	}
	if cfg.Index.FlatThreshold == 0 {
		cfg.Index.FlatThreshold = 10000
	}
	if cfg.Index.BM25K1 == 0 {
		cfg.Index.BM25K1 = 1.2
	}
	if cfg.Index.BM25B == 0 {
		cfg.Index.BM25B = 0.75
	}
	if cfg.Query.RRFK == 0 {
		cfg.Query.RRFK = 60
	}
	if cfg.Query.DenseWeight == 0 {
		cfg.Query.DenseWeight = 0.6
	}
	if cfg.Query.SparseWeight == 0 {
		cfg.Query.SparseWeight = 0.4
	}
	if cfg.Query.CandidateMult == 0 {
		cfg.Query.CandidateMult = 2
	}
	if cfg.Cache.LocalMaxBytes == 0 {
		cfg.Cache.LocalMaxBytes = 64 << 20 // 64 MiB
	}
	if cfg.Cache.DefaultTTLSeconds == 0 {
		cfg.Cache.DefaultTTLSeconds = 3600
	}
	if cfg.Cache.Redis.PingTimeoutSeconds == 0 {
		cfg.Cache.Redis.PingTimeoutSeconds = 2
	}
}
