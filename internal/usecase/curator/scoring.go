package curator

import (
	"hash/fnv"
	"sort"
	"strconv"

	"github.com/kailas-cloud/melodex/internal/domain"
	"github.com/kailas-cloud/melodex/internal/timeofday"
)

// scoreAll computes the base component scores for every candidate. Scoring
// one candidate never looks at another, so the result is invariant under
// input permutation.
func (s *Service) scoreAll(candidates []domain.Candidate, profile *domain.UserProfile, tctx timeofday.Context) []domain.ScoredCandidate {
	scored := make([]domain.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = domain.ScoredCandidate{
			Track:  c.Track,
			Scores: s.score(c, profile, tctx),
		}
	}
	return scored
}

func (s *Service) score(c domain.Candidate, profile *domain.UserProfile, tctx timeofday.Context) domain.ComponentScores {
	cs := domain.ComponentScores{
		Retrieval: c.Score,
		Feature:   profile.MatchScore(c.Track.Features),
		Genre:     profile.GenreWeight(c.Track.Genre),
		TimeMatch: tctx.MatchScore(c.Track.Features),
	}

	switch {
	case profile.LikesArtist(c.Track.Artist):
		cs.Artist = s.cfg.ArtistBonus
	case profile.DislikesArtist(c.Track.Artist):
		cs.Artist = -s.cfg.ArtistPenalty
	}

	cs.Base = s.cfg.SemanticWeight*cs.Retrieval +
		s.cfg.PreferenceWeight*cs.Feature +
		s.cfg.GenreWeight*cs.Genre +
		cs.Artist
	return cs
}

// sortCandidates orders candidates by the key descending. Ties break by the
// higher base score, then by a per-track hash so equal-scoring tracks land in
// a stable order that does not leak retrieval insertion order.
func sortCandidates(scored []domain.ScoredCandidate, key func(domain.ScoredCandidate) float64) {
	sort.SliceStable(scored, func(i, j int) bool {
		ki, kj := key(scored[i]), key(scored[j])
		if ki != kj {
			return ki > kj
		}
		if scored[i].Scores.Base != scored[j].Scores.Base {
			return scored[i].Scores.Base > scored[j].Scores.Base
		}
		hi, hj := tieHash(scored[i].Track), tieHash(scored[j].Track)
		if hi != hj {
			return hi < hj
		}
		return scored[i].Track.ID < scored[j].Track.ID
	})
}

// tieHash is an FNV-1a digest of the track id salted with its popularity.
func tieHash(t domain.Track) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(t.ID))
	_, _ = h.Write([]byte(strconv.Itoa(t.Popularity)))
	return h.Sum64()
}
