// Package openai provides the optional LLM profile summarizer used to enrich
// the rerank query with a natural-language taste description.
package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
)

const systemPrompt = `You are a music taste summarizer. Given a structured ` +
	`listening profile, write one short sentence describing what this listener ` +
	`enjoys. Mention genres, mood, and favorite artists when present. Do not ` +
	`invent preferences that are not in the profile.`

// Summarizer turns a user profile into a one-sentence taste description.
type Summarizer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// Config holds the summarizer settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// NewSummarizer creates an OpenAI-compatible profile summarizer.
func NewSummarizer(cfg Config) *Summarizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger,
	}
}

// Summarize renders a natural-language summary of the profile. Callers fall
// back to the profile's deterministic Summary() on any error.
func (s *Summarizer) Summarize(ctx context.Context, p *domain.UserProfile) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: p.Summary()},
		},
		MaxTokens:   120,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	s.logger.Debug("summarized profile", zap.String("user_id", p.UserID))
	return summary, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Summarizer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
