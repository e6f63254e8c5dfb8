// Package catalog provides read-only track metadata lookup. Tracks are
// written by the ingestion pipeline, which lives outside this service; the
// ranking core never mutates the catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/melodex/internal/domain"
	"github.com/kailas-cloud/melodex/internal/metrics"
)

// store is the consumer interface for catalog operations (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Repo implements catalog lookup on top of db with an in-process TTL cache.
type Repo struct {
	store     store
	keyPrefix string
	cache     *gocache.Cache // nil disables caching
}

// New creates a catalog repository. cacheTTL <= 0 disables the cache.
func New(s store, keyPrefix string, cacheTTL time.Duration) *Repo {
	r := &Repo{store: s, keyPrefix: keyPrefix}
	if cacheTTL > 0 {
		r.cache = gocache.New(cacheTTL, 2*cacheTTL)
	}
	return r
}

// Get returns one track by id.
func (r *Repo) Get(ctx context.Context, trackID string) (domain.Track, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(trackID); ok {
			metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
			return v.(domain.Track), nil
		}
		metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	fields, err := r.store.HGetAll(ctx, r.key(trackID))
	if err != nil {
		return domain.Track{}, fmt.Errorf("get track %s: %w", trackID, err)
	}
	if len(fields) == 0 {
		return domain.Track{}, fmt.Errorf("track %s: %w", trackID, domain.ErrTrackNotFound)
	}

	track := trackFromFields(trackID, fields)
	if r.cache != nil {
		r.cache.SetDefault(trackID, track)
	}
	return track, nil
}

// GetMulti returns the tracks for the given ids, skipping missing ones.
// Cached tracks are served locally; the rest are fetched in one round-trip.
func (r *Repo) GetMulti(ctx context.Context, trackIDs []string) ([]domain.Track, error) {
	out := make([]domain.Track, 0, len(trackIDs))
	missing := make([]string, 0, len(trackIDs))

	for _, id := range trackIDs {
		if r.cache != nil {
			if v, ok := r.cache.Get(id); ok {
				metrics.CatalogCacheTotal.WithLabelValues("hit").Inc()
				out = append(out, v.(domain.Track))
				continue
			}
			metrics.CatalogCacheTotal.WithLabelValues("miss").Inc()
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return out, nil
	}

	keys := make([]string, len(missing))
	for i, id := range missing {
		keys[i] = r.key(id)
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get tracks: %w", err)
	}
	for i, fields := range results {
		if len(fields) == 0 {
			continue
		}
		track := trackFromFields(missing[i], fields)
		if r.cache != nil {
			r.cache.SetDefault(track.ID, track)
		}
		out = append(out, track)
	}
	return out, nil
}

// IsNotFound reports whether an error is a missing-track error.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrTrackNotFound)
}

func (r *Repo) key(trackID string) string {
	return r.keyPrefix + "track:" + trackID
}
