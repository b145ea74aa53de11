// Package main is the Kensaku CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/index"
	"github.com/hyperjump/kensaku/internal/ingest"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/rerank"
	"github.com/hyperjump/kensaku/internal/segment"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "index":
		runIndex()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: kensaku <command> [flags]

Commands:
  index <file-or-directory>   segment, embed, and index documents (.txt/.md)
  search <query>              hybrid search over the index
  delete <document-id>        remove a document's chunks from the index
  status                      show index and cache statistics
  version                     print version

Run "kensaku <command> -h" for command flags.`)
}

// components bundles everything a command needs.
type components struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embedding.Embedder
	cache    *cache.Manager
	index    *index.Manager
	engine   *query.CachedEngine
	ingestor *ingest.Ingestor
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	var embedder embedding.Embedder
	if cfg.Embedding.BaseURL != "" {
		httpEmbedder, err := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder = httpEmbedder
	} else {
		logger.Warn("no embedding service configured, using deterministic mock embeddings")
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}

	cacheMgr, err := cache.NewManager(ctx, cfg.Cache, cache.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("init cache: %w", err)
	}
	cachedEmbedder := embedding.NewCachedEmbedder(embedder, cacheMgr)

	idx := index.NewManager(cfg.Index, cfg.Embedding.Dimensions)

	engineOpts := []query.Option{query.WithLogger(logger)}
	if cfg.Rerank.BaseURL != "" {
		reranker, err := rerank.NewHTTPReranker(rerank.HTTPConfig{
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Rerank.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("init reranker: %w", err)
		}
		engineOpts = append(engineOpts, query.WithReranker(reranker,
			time.Duration(cfg.Rerank.TimeoutSeconds)*time.Second))
	}
	engine := query.New(idx, cachedEmbedder, cfg.Query, engineOpts...)

	segmenter := segment.New(cfg.Segment, cachedEmbedder, segment.WithLogger(logger))
	ingestor := ingest.New(segmenter, cachedEmbedder, idx,
		ingest.WithLogger(logger), ingest.WithCache(cacheMgr))

	return &components{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		cache:    cacheMgr,
		index:    idx,
		engine:   query.NewCachedEngine(engine, cacheMgr),
		ingestor: ingestor,
	}, nil
}

func (c *components) Close() {
	if err := c.embedder.Close(); err != nil {
		c.logger.Warn("embedder close failed", zap.Error(err))
	}
	if err := c.cache.Close(); err != nil {
		c.logger.Warn("cache close failed", zap.Error(err))
	}
}

func setup(configPath string, debug bool) (*components, context.Context) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return comps, ctx
}

// loadIndex restores the persisted index; required says a missing index is fatal.
func loadIndex(ctx context.Context, c *components, required bool) {
	err := c.index.Load(ctx, c.cfg.Index.Dir)
	if err == nil {
		return
	}
	if required {
		fmt.Fprintf(os.Stderr, "Failed to load index from %s: %v\n", c.cfg.Index.Dir, err)
		os.Exit(1)
	}
	if !errors.Is(err, index.ErrCorruptIndex) {
		c.logger.Warn("index load failed, starting empty", zap.Error(err))
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku index [flags] <file-or-directory>")
		os.Exit(1)
	}
	root := fs.Arg(0)

	comps, ctx := setup(*configPath, *debug)
	defer comps.Close()
	defer comps.logger.Sync()
	loadIndex(ctx, comps, false)

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to scan %s: %v\n", root, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No .txt or .md files found under %s\n", root)
		os.Exit(1)
	}

	indexed, failed := 0, 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			comps.logger.Warn("failed to read file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		docID := docIDForPath(path)
		report, err := comps.ingestor.Ingest(ctx, docID, string(data), map[string]interface{}{
			"source": path,
			"title":  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		})
		if err != nil {
			comps.logger.Warn("failed to ingest file", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		indexed++
		fmt.Printf("indexed %s: %d chunks (%d failed) in %s\n",
			path, report.ChunksIndexed, report.ChunksFailed, report.Elapsed.Round(time.Millisecond))
	}

	if indexed > 0 {
		if err := comps.index.Save(ctx, comps.cfg.Index.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save index: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("done: %d files indexed, %d failed\n", indexed, failed)
}

// docIDForPath derives a stable document ID from a file path.
func docIDForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	id := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, id)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of results")
	noRerank := fs.Bool("no-rerank", false, "skip reranking, return fusion order")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	filterFlag := fs.String("filter", "", "metadata filter as key=value, comma-separated")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku search [flags] <query>")
		os.Exit(1)
	}
	queryStr := strings.TrimSpace(strings.Join(fs.Args(), " "))
	format, err := cli.ParseSearchOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	comps, ctx := setup(*configPath, false)
	defer comps.Close()
	defer comps.logger.Sync()
	loadIndex(ctx, comps, true)

	req := &models.SearchRequest{Query: queryStr, K: *limit, Filters: parseFilters(*filterFlag)}
	if *noRerank {
		rerankOff := false
		req.Rerank = &rerankOff
	}

	resp, err := comps.engine.Search(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// parseFilters turns "lang=en,year=2024" into a filter map.
func parseFilters(s string) map[string]interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	out := make(map[string]interface{})
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku delete [flags] <document-id>")
		os.Exit(1)
	}
	docID := fs.Arg(0)

	comps, ctx := setup(*configPath, false)
	defer comps.Close()
	defer comps.logger.Sync()
	loadIndex(ctx, comps, true)

	removed, err := comps.ingestor.Delete(ctx, docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	if removed == 0 {
		fmt.Printf("no chunks found for document %s\n", docID)
		return
	}
	if err := comps.index.Save(ctx, comps.cfg.Index.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save index: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed %d chunks of document %s\n", removed, docID)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	comps, ctx := setup(*configPath, false)
	defer comps.Close()
	defer comps.logger.Sync()
	loadIndex(ctx, comps, true)

	g, err := comps.index.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	cacheStats := comps.cache.Stats()

	status := struct {
		Chunks           int    `json:"chunks"`
		Generation       int64  `json:"generation"`
		VectorBytes      int64  `json:"vector_bytes"`
		IndexDir         string `json:"index_dir"`
		CacheEntries     int    `json:"cache_entries"`
		CacheBytes       int64  `json:"cache_bytes"`
		CacheBackingTier string `json:"cache_backing_tier"`
	}{
		Chunks:           g.Size(),
		Generation:       g.Seq(),
		VectorBytes:      g.MemoryBytes(),
		IndexDir:         comps.cfg.Index.Dir,
		CacheEntries:     cacheStats.LocalEntries,
		CacheBytes:       cacheStats.LocalBytes,
		CacheBackingTier: cacheStats.BackingTier,
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("chunks:             %d\n", status.Chunks)
		fmt.Printf("generation:         %d\n", status.Generation)
		fmt.Printf("vector_bytes:       %d\n", status.VectorBytes)
		fmt.Printf("index_dir:          %s\n", status.IndexDir)
		fmt.Printf("cache_entries:      %d\n", status.CacheEntries)
		fmt.Printf("cache_bytes:        %d\n", status.CacheBytes)
		fmt.Printf("cache_backing_tier: %s\n", status.CacheBackingTier)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}
