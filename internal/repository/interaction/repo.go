// Package interaction persists the append-only interaction log per user.
package interaction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// store is the consumer interface for interaction log operations (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)
}

// Repo implements the interaction log on top of db.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates an interaction repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Append adds one interaction to the user's log.
func (r *Repo) Append(ctx context.Context, in domain.Interaction) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode interaction: %w", err)
	}
	if err := r.store.RPush(ctx, r.key(in.UserID), string(data)); err != nil {
		return fmt.Errorf("append interaction for %s: %w", in.UserID, err)
	}
	return nil
}

// List returns the full interaction history for a user, oldest first.
// Records that fail to decode are skipped rather than failing the read.
func (r *Repo) List(ctx context.Context, userID string) ([]domain.Interaction, error) {
	items, err := r.store.LRange(ctx, r.key(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("list interactions for %s: %w", userID, err)
	}

	out := make([]domain.Interaction, 0, len(items))
	for _, item := range items {
		var in domain.Interaction
		if err := json.Unmarshal([]byte(item), &in); err != nil {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// Count returns the number of recorded interactions for a user.
func (r *Repo) Count(ctx context.Context, userID string) (int64, error) {
	n, err := r.store.LLen(ctx, r.key(userID))
	if err != nil {
		return 0, fmt.Errorf("count interactions for %s: %w", userID, err)
	}
	return n, nil
}

func (r *Repo) key(userID string) string {
	return r.keyPrefix + "interactions:" + userID
}
