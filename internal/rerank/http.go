package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPReranker calls a cross-encoder scoring service
// (POST {base_url}/rerank with a query and one passage per call).
type HTTPReranker struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

// HTTPConfig configures an HTTPReranker.
type HTTPConfig struct {
	BaseURL string
	Model   string
	// Timeout bounds each Score call independently of the caller's context.
	Timeout time.Duration
}

// NewHTTPReranker creates a reranking client.
func NewHTTPReranker(cfg HTTPConfig) (*HTTPReranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReranker{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Score returns the relevance of passage to query.
func (r *HTTPReranker) Score(ctx context.Context, query, passage string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{Query: query, Documents: []string{passage}, Model: r.model})
	if err != nil {
		return 0, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("rerank server returned %s: %s", resp.Status, payload)
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return 0, fmt.Errorf("rerank server returned no results")
	}
	return decoded.Results[0].RelevanceScore, nil
}

// Close closes idle connections.
func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
