// Package profile persists user preference profiles as versioned JSON
// records. Updates go through a compare-and-swap on a per-user revision
// counter; plain read-then-write without versioning is not offered.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/melodex/internal/db"
	"github.com/kailas-cloud/melodex/internal/domain"
)

// store is the consumer interface for profile operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Eval(ctx context.Context, script string, keys []string, args []string) (int64, error)
}

// casScript stores the profile blob only when the revision counter still
// matches the caller's expectation, then bumps the counter. Returns -1 on
// success, the current revision on conflict.
const casScript = `
local rev = tonumber(redis.call('GET', KEYS[2]) or '0')
if rev ~= tonumber(ARGV[1]) then
  return rev
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('INCR', KEYS[2])
return -1
`

// Repo implements profile storage on top of db.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a profile repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Get loads a user's profile. Returns domain.ErrProfileNotFound when the user
// has no stored profile and domain.ErrProfileCorrupt when the stored record
// fails to decode; both are recoverable with a neutral profile.
func (r *Repo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	data, err := r.store.Get(ctx, r.profileKey(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("user %s: %w", userID, domain.ErrProfileNotFound)
		}
		return nil, fmt.Errorf("get profile %s: %w", userID, err)
	}

	var p domain.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", userID, domain.ErrProfileCorrupt)
	}

	// Missing fields in old records degrade to neutral defaults.
	p.Sanitize()
	return &p, nil
}

// Put stores a profile if its revision counter still equals expectedRevision.
// On success the stored record carries expectedRevision+1. On a concurrent
// update it returns a RevisionConflictError with the winning revision;
// callers reload and retry rather than overwrite.
func (r *Repo) Put(ctx context.Context, p *domain.UserProfile, expectedRevision int64) error {
	p.Revision = expectedRevision + 1
	p.UpdatedAt = p.UpdatedAt.UTC()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.UserID, err)
	}

	res, err := r.store.Eval(ctx, casScript,
		[]string{r.profileKey(p.UserID), r.revisionKey(p.UserID)},
		[]string{strconv.FormatInt(expectedRevision, 10), string(data)},
	)
	if err != nil {
		return fmt.Errorf("put profile %s: %w", p.UserID, err)
	}
	if res >= 0 {
		p.Revision = expectedRevision // roll back the optimistic bump
		return domain.NewRevisionConflict(res)
	}
	return nil
}

func (r *Repo) profileKey(userID string) string {
	return r.keyPrefix + "profile:" + userID
}

func (r *Repo) revisionKey(userID string) string {
	return r.keyPrefix + "profile:" + userID + ":rev"
}
