package curator

import (
	"context"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Retriever fetches candidate tracks from the semantic search service.
type Retriever interface {
	Search(ctx context.Context, query string, genre domain.Genre, limit int) ([]domain.Candidate, error)
}

// ProfileProvider supplies the user's preference profile and its summary.
type ProfileProvider interface {
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
	Describe(ctx context.Context, p *domain.UserProfile) string
}

// Reranker reorders candidate documents by relevance to a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]float64, error)
}
