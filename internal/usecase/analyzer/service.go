// Package analyzer maintains long-term user preference profiles. Profiles are
// always recomputed from the full interaction history, so a rebuild is
// idempotent and two concurrent rebuilds converge on the same result.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
	"github.com/kailas-cloud/melodex/internal/metrics"
	"github.com/kailas-cloud/melodex/internal/timeofday"
)

// minArtistOccurrences is how many times an artist must appear in positive
// (or negative) interactions before entering the liked (disliked) set. One
// play is noise, two is a signal.
const minArtistOccurrences = 2

// maxPutRetries bounds the CAS retry loop on concurrent profile updates.
const maxPutRetries = 3

// Config holds the analyzer thresholds.
type Config struct {
	LikeThreshold     int // rating >= threshold counts as positive
	DislikeThreshold  int // rating <= threshold counts as negative
	ProfileUpdateEach int // rebuild after this many new interactions
}

// Service builds and maintains user preference profiles.
type Service struct {
	log      InteractionLog
	tracks   TrackReader
	profiles ProfileStore
	summ     Summarizer // nil disables LLM summaries
	cfg      Config
	logger   *zap.Logger
}

// New creates an analyzer service. summ may be nil.
func New(log InteractionLog, tracks TrackReader, profiles ProfileStore, summ Summarizer, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{log: log, tracks: tracks, profiles: profiles, summ: summ, cfg: cfg, logger: logger}
}

// Profile returns the user's stored profile, or a neutral empty profile when
// none exists yet. A corrupted stored record also degrades to neutral.
func (s *Service) Profile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) || errors.Is(err, domain.ErrProfileCorrupt) {
			return domain.NewUserProfile(userID), nil
		}
		return nil, err
	}
	return p, nil
}

// ObserveInteraction records one interaction and rebuilds the profile once
// every ProfileUpdateEach interactions. The append always succeeds or fails
// on its own; a rebuild failure never loses the interaction.
func (s *Service) ObserveInteraction(ctx context.Context, in domain.Interaction) error {
	if in.UserID == "" || in.TrackID == "" {
		return fmt.Errorf("interaction needs user_id and track_id: %w", domain.ErrInvalidInput)
	}
	if in.Rating < 0 || in.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5: %w", domain.ErrInvalidInput)
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	if err := s.log.Append(ctx, in); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}

	count, err := s.log.Count(ctx, in.UserID)
	if err != nil {
		return fmt.Errorf("count interactions: %w", err)
	}
	if count%int64(s.cfg.ProfileUpdateEach) != 0 {
		return nil
	}

	if _, err := s.Rebuild(ctx, in.UserID); err != nil {
		// Interaction is recorded; the next threshold crossing rebuilds
		// from the same history.
		s.logger.Warn("profile rebuild failed",
			zap.String("user_id", in.UserID),
			zap.Error(err),
		)
	}
	return nil
}

// Rebuild recomputes the user's profile from the full interaction history and
// stores it under optimistic locking. On a revision conflict the freshly
// computed profile is retried against the winning revision; since the input
// is the same history, retrying preserves idempotence.
func (s *Service) Rebuild(ctx context.Context, userID string) (*domain.UserProfile, error) {
	history, err := s.log.List(ctx, userID)
	if err != nil {
		metrics.ProfileUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load history: %w", err)
	}

	p, err := s.compute(ctx, userID, history)
	if err != nil {
		metrics.ProfileUpdatesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	expected := int64(0)
	if current, err := s.profiles.Get(ctx, userID); err == nil {
		expected = current.Revision
	} else if !errors.Is(err, domain.ErrProfileNotFound) && !errors.Is(err, domain.ErrProfileCorrupt) {
		metrics.ProfileUpdatesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load current profile: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err = s.profiles.Put(ctx, p, expected)
		if err == nil {
			break
		}
		var conflict *domain.RevisionConflictError
		if !errors.As(err, &conflict) || attempt >= maxPutRetries {
			metrics.ProfileUpdatesTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("store profile: %w", err)
		}
		metrics.ProfileUpdatesTotal.WithLabelValues("conflict").Inc()
		expected = conflict.CurrentRevision
	}

	metrics.ProfileUpdatesTotal.WithLabelValues("success").Inc()
	s.logger.Info("profile rebuilt",
		zap.String("user_id", userID),
		zap.Int("interactions", p.TotalInteractions),
		zap.Int64("revision", p.Revision),
	)
	return p, nil
}

// Describe returns a natural-language taste summary. Uses the LLM summarizer
// when configured, falling back to the deterministic profile summary.
func (s *Service) Describe(ctx context.Context, p *domain.UserProfile) string {
	if s.summ == nil || p.Empty() {
		return p.Summary()
	}
	summary, err := s.summ.Summarize(ctx, p)
	if err != nil {
		s.logger.Debug("summarizer unavailable, using deterministic summary",
			zap.String("user_id", p.UserID),
			zap.Error(err),
		)
		return p.Summary()
	}
	return summary
}

// compute derives a profile from the interaction history. Zero interactions
// produce a neutral profile, never an error.
func (s *Service) compute(ctx context.Context, userID string, history []domain.Interaction) (*domain.UserProfile, error) {
	p := domain.NewUserProfile(userID)
	p.TotalInteractions = len(history)
	p.UpdatedAt = time.Now().UTC()
	if len(history) == 0 {
		return p, nil
	}

	var positive, negative []domain.Interaction
	for _, in := range history {
		switch {
		case in.Positive(s.cfg.LikeThreshold):
			positive = append(positive, in)
		case in.Negative(s.cfg.DislikeThreshold):
			negative = append(negative, in)
		}
	}

	tracks, err := s.lookupTracks(ctx, append(interactionIDs(positive), interactionIDs(negative)...))
	if err != nil {
		return nil, fmt.Errorf("load interacted tracks: %w", err)
	}

	likedArtists := map[string]int{}
	for _, in := range positive {
		track, ok := tracks[in.TrackID]
		if !ok {
			continue
		}
		p.GenreWeights[track.Genre]++
		for name, v := range track.Features {
			stats := p.FeatureStats[name]
			stats.Fold(v)
			p.FeatureStats[name] = stats
		}
		likedArtists[track.Artist]++
		p.TemporalHistogram[string(timeofday.PeriodFor(in.Timestamp.Hour()))]++
	}

	dislikedArtists := map[string]int{}
	for _, in := range negative {
		if track, ok := tracks[in.TrackID]; ok {
			dislikedArtists[track.Artist]++
		}
	}

	normalizeWeights(p.GenreWeights)
	p.LikedArtists = frequentArtists(likedArtists)
	p.DislikedArtists = frequentArtists(dislikedArtists)
	return p, nil
}

func (s *Service) lookupTracks(ctx context.Context, ids []string) (map[string]domain.Track, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]domain.Track{}, nil
	}

	tracks, err := s.tracks.GetMulti(ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}
	return byID, nil
}

func interactionIDs(ins []domain.Interaction) []string {
	ids := make([]string, len(ins))
	for i, in := range ins {
		ids[i] = in.TrackID
	}
	return ids
}

// normalizeWeights scales genre counts so the most played genre gets 1.0.
func normalizeWeights(weights map[domain.Genre]float64) {
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if max == 0 {
		return
	}
	for g, w := range weights {
		weights[g] = w / max
	}
}

// frequentArtists keeps artists seen at least minArtistOccurrences times,
// sorted for stable output.
func frequentArtists(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for artist, n := range counts {
		if artist != "" && n >= minArtistOccurrences {
			out = append(out, artist)
		}
	}
	sort.Strings(out)
	return out
}
