package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/config"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	a, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at %d for identical text", i)
		}
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("embedding norm = %f, want 1.0", norm)
	}
}

func TestMockEmbedderBatch(t *testing.T) {
	e := NewMockEmbedder(16)
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "a"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vecs))
	}
	for i := range vecs[0] {
		if vecs[0][i] != vecs[2][i] {
			t.Fatal("identical texts got different embeddings in a batch")
		}
	}
}

func embeddingServer(t *testing.T, dims int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		resp := struct {
			Data []item `json:"data"`
		}{}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 2 // non-unit on purpose, the client normalizes
			resp.Data = append(resp.Data, item{Embedding: vec, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPEmbedder(t *testing.T) {
	srv := embeddingServer(t, 8, nil)
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 8, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder failed: %v", err)
	}
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	for i, v := range vecs {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1.0) > 1e-5 {
			t.Errorf("vector %d not normalized: norm=%f", i, norm)
		}
	}
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	srv := embeddingServer(t, 8, nil)
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 16, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder failed: %v", err)
	}
	defer e.Close()
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestHTTPEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 8, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder failed: %v", err)
	}
	defer e.Close()
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for 5xx response")
	}
}

func TestHTTPEmbedderRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPEmbedder(HTTPConfig{Dimensions: 8}); err == nil {
		t.Error("expected error for missing base URL")
	}
}

func TestCachedEmbedderSkipsRepeatCalls(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, 8, &calls)
	defer srv.Close()

	inner, err := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 8, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder failed: %v", err)
	}
	cm, err := cache.NewManager(context.Background(), config.CacheConfig{
		LocalMaxBytes:     1 << 20,
		DefaultTTLSeconds: 60,
	})
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	defer cm.Close()
	e := NewCachedEmbedder(inner, cm)
	defer e.Close()

	first, err := e.Embed(context.Background(), "repeated text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := e.Embed(context.Background(), "repeated text")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("oracle called %d times, want 1", calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs from original")
		}
	}
}

func TestCachedEmbedderBatchesOnlyMisses(t *testing.T) {
	var calls atomic.Int64
	srv := embeddingServer(t, 8, &calls)
	defer srv.Close()

	inner, err := NewHTTPEmbedder(HTTPConfig{BaseURL: srv.URL, Dimensions: 8, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPEmbedder failed: %v", err)
	}
	cm, err := cache.NewManager(context.Background(), config.CacheConfig{
		LocalMaxBytes:     1 << 20,
		DefaultTTLSeconds: 60,
	})
	if err != nil {
		t.Fatalf("cache manager: %v", err)
	}
	defer cm.Close()
	e := NewCachedEmbedder(inner, cm)
	defer e.Close()

	if _, err := e.Embed(context.Background(), "warm"); err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"warm", "cold"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 || vecs[0] == nil || vecs[1] == nil {
		t.Fatalf("batch result incomplete: %v", vecs)
	}
	if calls.Load() != 2 {
		t.Errorf("oracle called %d times, want 2 (one warm-up, one for the miss)", calls.Load())
	}
}
