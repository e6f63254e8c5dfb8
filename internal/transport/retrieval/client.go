// Package retrieval is the HTTP client for the external semantic candidate
// retrieval service. The vector index and embedding generation live behind
// that service; this core only consumes its search results.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Client talks to the candidate retrieval service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Config holds the retrieval service settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewClient creates a retrieval client.
func NewClient(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

type searchRequest struct {
	Query string `json:"query"`
	Genre string `json:"genre,omitempty"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Candidates []candidateDTO `json:"candidates"`
}

type candidateDTO struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Artist     string             `json:"artist"`
	Genre      string             `json:"genre"`
	Popularity int                `json:"popularity"`
	Lyrics     string             `json:"lyrics,omitempty"`
	Features   map[string]float64 `json:"features"`
	Score      float64            `json:"score"`
}

// Search retrieves up to limit candidates for a query, optionally restricted
// to a genre. The service may return fewer than requested.
func (c *Client) Search(ctx context.Context, query string, genre domain.Genre, limit int) ([]domain.Candidate, error) {
	body, err := json.Marshal(searchRequest{Query: query, Genre: string(genre), Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w: %w", domain.ErrRetrievalUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request status %d: %w", resp.StatusCode, domain.ErrRetrievalUnavailable)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w: %w", domain.ErrRetrievalUnavailable, err)
	}

	candidates := make([]domain.Candidate, 0, len(out.Candidates))
	for _, dto := range out.Candidates {
		candidates = append(candidates, domain.Candidate{
			Track: domain.Track{
				ID:         dto.ID,
				Name:       dto.Name,
				Artist:     dto.Artist,
				Genre:      domain.Genre(dto.Genre),
				Popularity: dto.Popularity,
				Lyrics:     dto.Lyrics,
				Features:   domain.FeatureVector(dto.Features),
			},
			Score: dto.Score,
		})
	}

	c.logger.Debug("retrieved candidates",
		zap.String("query", query),
		zap.Int("requested", limit),
		zap.Int("returned", len(candidates)),
	)
	return candidates, nil
}
