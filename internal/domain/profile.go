package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// FeatureStats holds the running statistics of one audio feature across a
// user's positively rated tracks. Foldable via Welford's method; folding must
// converge to the same result as full recomputation.
type FeatureStats struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`

	// M2 is the running sum of squared deviations (Welford state).
	M2 float64 `json:"m2"`
}

// Fold incorporates one observation into the running statistics.
func (s *FeatureStats) Fold(v float64) {
	if s.Count == 0 {
		s.Min, s.Max = v, v
	} else {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	s.Count++
	delta := v - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (v - s.Mean)
	if s.Count > 0 {
		s.Std = math.Sqrt(s.M2 / float64(s.Count))
	}
}

// Usable reports whether the stats carry enough observations to score with.
func (s FeatureStats) Usable() bool { return s.Count > 0 }

// UserProfile is the persisted long-term preference model for one user.
// It is owned by the profile store and only ever replaced through a
// compare-and-swap on Revision — statistics are recomputed or folded in,
// never silently reset.
type UserProfile struct {
	UserID            string                  `json:"user_id"`
	GenreWeights      map[Genre]float64       `json:"genre_weights"`
	FeatureStats      map[string]FeatureStats `json:"feature_stats"`
	LikedArtists      []string                `json:"liked_artists"`
	DislikedArtists   []string                `json:"disliked_artists"`
	TemporalHistogram map[string]int          `json:"temporal_histogram"`
	TotalInteractions int                     `json:"total_interactions"`
	UpdatedAt         time.Time               `json:"updated_at"`

	// Revision is the optimistic-locking counter bumped on every store.
	Revision int64 `json:"revision"`
}

// NewUserProfile creates an empty profile for a user. Callers must treat an
// empty profile as "no personalization available" and fall back to
// content-only scoring.
func NewUserProfile(userID string) *UserProfile {
	return &UserProfile{
		UserID:            userID,
		GenreWeights:      map[Genre]float64{},
		FeatureStats:      map[string]FeatureStats{},
		TemporalHistogram: map[string]int{},
	}
}

// Empty reports whether the profile carries no learned preferences.
func (p *UserProfile) Empty() bool {
	return p == nil || p.TotalInteractions == 0
}

// Sanitize substitutes neutral defaults for missing or corrupted fields so a
// damaged stored profile degrades to content-only scoring instead of failing.
func (p *UserProfile) Sanitize() {
	if p.GenreWeights == nil {
		p.GenreWeights = map[Genre]float64{}
	}
	for g, w := range p.GenreWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			p.GenreWeights[g] = 0
		}
	}
	if p.FeatureStats == nil {
		p.FeatureStats = map[string]FeatureStats{}
	}
	for name, s := range p.FeatureStats {
		if s.Count < 0 || math.IsNaN(s.Mean) || math.IsNaN(s.Std) {
			delete(p.FeatureStats, name)
		}
	}
	if p.TemporalHistogram == nil {
		p.TemporalHistogram = map[string]int{}
	}
	if p.TotalInteractions < 0 {
		p.TotalInteractions = 0
	}
}

// GenreWeight returns the relative preference weight for a genre, 0 when the
// genre is unseen or the profile is empty.
func (p *UserProfile) GenreWeight(g Genre) float64 {
	if p.Empty() {
		return 0
	}
	return p.GenreWeights[g]
}

// LikesArtist reports whether the artist is in the liked set.
func (p *UserProfile) LikesArtist(artist string) bool {
	return containsFold(p.LikedArtists, artist)
}

// DislikesArtist reports whether the artist is in the disliked set.
func (p *UserProfile) DislikesArtist(artist string) bool {
	return containsFold(p.DislikedArtists, artist)
}

// MeanVector returns the per-feature preference means restricted to features
// with usable statistics, plus the list of those feature names.
func (p *UserProfile) MeanVector() (FeatureVector, []string) {
	if p.Empty() || len(p.FeatureStats) == 0 {
		return nil, nil
	}
	fv := make(FeatureVector, len(p.FeatureStats))
	names := make([]string, 0, len(p.FeatureStats))
	for name, s := range p.FeatureStats {
		if s.Usable() {
			fv[name] = s.Mean
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return fv, names
}

// MatchScore returns how well a feature vector matches the profile's
// preference means, in [0,1]. Returns the neutral midpoint for profiles
// without usable statistics.
func (p *UserProfile) MatchScore(fv FeatureVector) float64 {
	mean, names := p.MeanVector()
	if len(names) == 0 {
		return NeutralFeatureValue
	}
	return 1 - fv.Distance(mean, names)
}

// TopGenres returns up to n genres ordered by descending weight.
func (p *UserProfile) TopGenres(n int) []Genre {
	if p.Empty() {
		return nil
	}
	genres := make([]Genre, 0, len(p.GenreWeights))
	for g := range p.GenreWeights {
		genres = append(genres, g)
	}
	sort.Slice(genres, func(i, j int) bool {
		wi, wj := p.GenreWeights[genres[i]], p.GenreWeights[genres[j]]
		if wi != wj {
			return wi > wj
		}
		return genres[i] < genres[j]
	})
	if len(genres) > n {
		genres = genres[:n]
	}
	return genres
}

// Summary renders a short human-readable taste description, used to augment
// the rerank query.
func (p *UserProfile) Summary() string {
	if p.Empty() {
		return "New user with no preferences yet"
	}

	var parts []string

	if top := p.TopGenres(3); len(top) > 0 {
		rendered := make([]string, len(top))
		for i, g := range top {
			rendered[i] = fmt.Sprintf("%s (%.2f)", g, p.GenreWeights[g])
		}
		parts = append(parts, "Preferred genres: "+strings.Join(rendered, ", "))
	}

	var traits []string
	if s, ok := p.FeatureStats[FeatureEnergy]; ok && s.Usable() {
		if s.Mean > 0.7 {
			traits = append(traits, "high energy")
		} else if s.Mean < 0.3 {
			traits = append(traits, "low energy")
		}
	}
	if s, ok := p.FeatureStats[FeatureValence]; ok && s.Usable() {
		if s.Mean > 0.7 {
			traits = append(traits, "positive mood")
		} else if s.Mean < 0.3 {
			traits = append(traits, "melancholic mood")
		}
	}
	if s, ok := p.FeatureStats[FeatureDanceability]; ok && s.Usable() && s.Mean > 0.7 {
		traits = append(traits, "danceable")
	}
	if len(traits) > 0 {
		parts = append(parts, "Prefers: "+strings.Join(traits, ", "))
	}

	if len(p.LikedArtists) > 0 {
		artists := p.LikedArtists
		if len(artists) > 5 {
			artists = artists[:5]
		}
		parts = append(parts, "Favorite artists: "+strings.Join(artists, ", "))
	}

	parts = append(parts, fmt.Sprintf("Based on %d interactions", p.TotalInteractions))
	return strings.Join(parts, ". ")
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
