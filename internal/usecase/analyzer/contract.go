package analyzer

import (
	"context"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// InteractionLog is the append-only interaction history contract.
type InteractionLog interface {
	Append(ctx context.Context, in domain.Interaction) error
	List(ctx context.Context, userID string) ([]domain.Interaction, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// TrackReader reads track metadata for interacted tracks.
type TrackReader interface {
	GetMulti(ctx context.Context, trackIDs []string) ([]domain.Track, error)
}

// ProfileStore persists profiles with optimistic locking.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	Put(ctx context.Context, p *domain.UserProfile, expectedRevision int64) error
}

// Summarizer renders a natural-language taste description (optional).
type Summarizer interface {
	Summarize(ctx context.Context, p *domain.UserProfile) (string, error)
}
