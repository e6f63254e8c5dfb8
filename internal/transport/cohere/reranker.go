// Package cohere is the client for the external reranking service (Cohere
// rerank API shape). Every failure mode maps to domain.ErrRerankUnavailable
// so the curator can fall back without inspecting transport details.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
	"github.com/kailas-cloud/melodex/internal/metrics"
)

// Reranker talks to the rerank API.
type Reranker struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the rerank service settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewReranker creates a rerank client.
func NewReranker(cfg Config) *Reranker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Rerank scores documents against the query and returns a relevance score per
// document index, parallel to the input. Indexes absent from the response
// keep a zero score; out-of-range indexes make the whole response malformed.
func (r *Reranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("encode rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.http.Do(req)
	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank request: %w: %w", domain.ErrRerankUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank status %d: %w", resp.StatusCode, domain.ErrRerankUnavailable)
	}

	var out rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode rerank response: %w: %w", domain.ErrRerankUnavailable, err)
	}

	scores := make([]float64, len(documents))
	for _, res := range out.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("rerank result index %d out of range: %w", res.Index, domain.ErrRerankUnavailable)
		}
		scores[res.Index] = res.RelevanceScore
	}

	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()
	r.logger.Debug("reranked documents",
		zap.Int("documents", len(documents)),
		zap.Int("scored", len(out.Results)),
	)
	return scores, nil
}
