package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMockRerankerOverlap(t *testing.T) {
	m := NewMockReranker()
	tests := []struct {
		name    string
		query   string
		passage string
		want    float64
	}{
		{"full overlap", "quick brown fox", "the quick brown fox jumps", 1.0},
		{"partial overlap", "quick brown fox", "a quick walk", 1.0 / 3.0},
		{"no overlap", "quick brown fox", "unrelated text", 0},
		{"empty query", "", "anything", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Score(context.Background(), tt.query, tt.passage)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Score = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestMockRerankerError(t *testing.T) {
	m := &MockReranker{Err: errors.New("down")}
	if _, err := m.Score(context.Background(), "q", "p"); err == nil {
		t.Error("expected configured error")
	}
}

func TestMockRerankerHonorsDeadline(t *testing.T) {
	m := &MockReranker{Delay: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	if _, err := m.Score(ctx, "q", "p"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestHTTPReranker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string   `json:"query"`
			Documents []string `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Documents) != 1 {
			http.Error(w, "one document per call", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"index": 0, "relevance_score": 0.87},
			},
		})
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPReranker failed: %v", err)
	}
	defer r.Close()

	score, err := r.Score(context.Background(), "query", "passage")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score != 0.87 {
		t.Errorf("score = %f, want 0.87", score)
	}
}

func TestHTTPRerankerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(HTTPConfig{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewHTTPReranker failed: %v", err)
	}
	defer r.Close()
	if _, err := r.Score(context.Background(), "q", "p"); err == nil {
		t.Error("expected error for 5xx response")
	}
}

func TestHTTPRerankerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(HTTPConfig{BaseURL: srv.URL, Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewHTTPReranker failed: %v", err)
	}
	defer r.Close()
	if _, err := r.Score(context.Background(), "q", "p"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestHTTPRerankerRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPReranker(HTTPConfig{}); err == nil {
		t.Error("expected error for missing base URL")
	}
}
