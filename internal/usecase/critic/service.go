// Package critic evaluates a finished recommendation list for diversity and
// profile alignment. It reports, it never reorders.
package critic

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Issue codes raised by Evaluate.
const (
	IssueLowDiversity  = "low_diversity"
	IssueRepetition    = "repetition"
	IssueImbalance     = "imbalance"
	IssueLowVariety    = "low_variety"
	IssueGenreMismatch = "genre_mismatch"
)

// Detection thresholds.
const (
	lowGenreDiversity  = 0.3
	dominantGenreShare = 0.5
	lowEnergyStd       = 0.1
	energyStdScale     = 0.2 // std at or above this counts as fully diverse
)

// Issue is one detected quality problem.
type Issue struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Report is the critic's structured verdict on a recommendation list.
type Report struct {
	GenreDiversity  float64 `json:"genre_diversity"`
	ArtistDiversity float64 `json:"artist_diversity"`
	EnergyDiversity float64 `json:"energy_diversity"`
	Alignment       float64 `json:"alignment"`
	Issues          []Issue `json:"issues,omitempty"`
}

// Service evaluates recommendation lists.
type Service struct {
	logger *zap.Logger
}

// New creates a critic service.
func New(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{logger: logger}
}

// Evaluate scores the list's diversity and its alignment with the profile.
// An empty list yields an empty report.
func (s *Service) Evaluate(list []domain.ScoredCandidate, profile *domain.UserProfile) Report {
	if len(list) == 0 {
		return Report{}
	}
	n := float64(len(list))

	genres := map[domain.Genre]int{}
	artists := map[string]int{}
	var energy []float64
	for _, c := range list {
		genres[c.Track.Genre]++
		artists[strings.ToLower(c.Track.Artist)]++
		energy = append(energy, c.Track.Features.Get(domain.FeatureEnergy))
	}

	r := Report{
		GenreDiversity:  float64(len(genres)) / n,
		ArtistDiversity: float64(len(artists)) / n,
	}

	std := stddev(energy)
	r.EnergyDiversity = clamp01(std / energyStdScale)
	r.Alignment = s.alignment(list, profile)

	if r.GenreDiversity < lowGenreDiversity {
		r.Issues = append(r.Issues, Issue{
			Code:   IssueLowDiversity,
			Reason: fmt.Sprintf("only %d genre(s) across %d tracks", len(genres), len(list)),
		})
	}
	for artist, count := range artists {
		if count > 1 {
			r.Issues = append(r.Issues, Issue{
				Code:   IssueRepetition,
				Reason: fmt.Sprintf("artist %q appears %d times", artist, count),
			})
			break
		}
	}
	for genre, count := range genres {
		if float64(count)/n > dominantGenreShare {
			r.Issues = append(r.Issues, Issue{
				Code:   IssueImbalance,
				Reason: fmt.Sprintf("genre %q covers %d of %d tracks", genre, count, len(list)),
			})
			break
		}
	}
	if std < lowEnergyStd {
		r.Issues = append(r.Issues, Issue{
			Code:   IssueLowVariety,
			Reason: fmt.Sprintf("energy std %.3f below %.1f", std, lowEnergyStd),
		})
	}
	if issue, mismatch := s.genreMismatch(genres, profile); mismatch {
		r.Issues = append(r.Issues, issue)
	}

	s.logger.Debug("list evaluated",
		zap.Float64("genre_diversity", r.GenreDiversity),
		zap.Float64("artist_diversity", r.ArtistDiversity),
		zap.Int("issues", len(r.Issues)),
	)
	return r
}

// alignment is the mean cosine similarity between each candidate's features
// and the profile mean vector, over the profiled features only. Empty
// profiles have nothing to align with.
func (s *Service) alignment(list []domain.ScoredCandidate, profile *domain.UserProfile) float64 {
	mean, names := profile.MeanVector()
	if len(names) == 0 {
		return 0
	}

	var total float64
	for _, c := range list {
		total += cosine(c.Track.Features, mean, names)
	}
	return total / float64(len(list))
}

func (s *Service) genreMismatch(genres map[domain.Genre]int, profile *domain.UserProfile) (Issue, bool) {
	top := profile.TopGenres(3)
	if len(top) == 0 {
		return Issue{}, false
	}
	for _, g := range top {
		if genres[g] > 0 {
			return Issue{}, false
		}
	}
	rendered := make([]string, len(top))
	for i, g := range top {
		rendered[i] = string(g)
	}
	return Issue{
		Code:   IssueGenreMismatch,
		Reason: "no track matches the listener's top genres: " + strings.Join(rendered, ", "),
	}, true
}

func cosine(a, b domain.FeatureVector, names []string) float64 {
	var dot, na, nb float64
	for _, name := range names {
		va, vb := a.Get(name), b.Get(name)
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
