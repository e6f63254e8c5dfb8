package critic

import (
	"fmt"
	"math"
	"testing"

	"github.com/kailas-cloud/melodex/internal/domain"
)

func entry(id, artist string, genre domain.Genre, energy float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{Track: domain.Track{
		ID:       id,
		Artist:   artist,
		Genre:    genre,
		Features: domain.FeatureVector{domain.FeatureEnergy: energy},
	}}
}

func hasIssue(r Report, code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

func TestEvaluate_EmptyList(t *testing.T) {
	r := New(nil).Evaluate(nil, domain.NewUserProfile("u1"))
	if r.GenreDiversity != 0 || len(r.Issues) != 0 {
		t.Errorf("empty list must yield an empty report, got %+v", r)
	}
}

func TestEvaluate_DominantGenreFlagsImbalance(t *testing.T) {
	var list []domain.ScoredCandidate
	for i := 0; i < 6; i++ {
		list = append(list, entry(fmt.Sprintf("p%d", i), fmt.Sprintf("artist %d", i), domain.GenrePop, 0.1*float64(i)))
	}
	list = append(list,
		entry("r1", "artist r1", domain.GenreRock, 0.7),
		entry("r2", "artist r2", domain.GenreRock, 0.8),
		entry("e1", "artist e1", domain.GenreElectronic, 0.9),
		entry("h1", "artist h1", domain.GenreHipHop, 1.0),
	)

	r := New(nil).Evaluate(list, domain.NewUserProfile("u1"))

	if !hasIssue(r, IssueImbalance) {
		t.Errorf("6 of 10 tracks in one genre must flag imbalance, got %+v", r.Issues)
	}
	if r.GenreDiversity != 0.4 {
		t.Errorf("genre diversity: got %v, want 0.4", r.GenreDiversity)
	}
	if r.ArtistDiversity != 1.0 {
		t.Errorf("artist diversity: got %v, want 1.0", r.ArtistDiversity)
	}
	if hasIssue(r, IssueRepetition) {
		t.Error("distinct artists must not flag repetition")
	}
}

func TestEvaluate_IdenticalTracks(t *testing.T) {
	var list []domain.ScoredCandidate
	for i := 0; i < 10; i++ {
		list = append(list, entry(fmt.Sprintf("t%d", i), "same artist", domain.GenrePop, 0.5))
	}

	r := New(nil).Evaluate(list, domain.NewUserProfile("u1"))

	if r.GenreDiversity != 0.1 || r.ArtistDiversity != 0.1 {
		t.Errorf("diversities: got %v/%v, want 0.1/0.1", r.GenreDiversity, r.ArtistDiversity)
	}
	if r.EnergyDiversity != 0 {
		t.Errorf("zero energy spread: got %v", r.EnergyDiversity)
	}
	for _, code := range []string{IssueRepetition, IssueLowDiversity, IssueImbalance, IssueLowVariety} {
		if !hasIssue(r, code) {
			t.Errorf("expected issue %s, got %+v", code, r.Issues)
		}
	}
}

func TestEvaluate_EnergyDiversityClamped(t *testing.T) {
	list := []domain.ScoredCandidate{
		entry("a", "a", domain.GenrePop, 0.0),
		entry("b", "b", domain.GenreRock, 1.0),
	}

	r := New(nil).Evaluate(list, domain.NewUserProfile("u1"))

	// std = 0.5, well above the 0.2 scale.
	if r.EnergyDiversity != 1.0 {
		t.Errorf("energy diversity must clamp at 1, got %v", r.EnergyDiversity)
	}
}

func TestEvaluate_AlignmentZeroForEmptyProfile(t *testing.T) {
	list := []domain.ScoredCandidate{entry("a", "a", domain.GenrePop, 0.8)}

	r := New(nil).Evaluate(list, domain.NewUserProfile("u1"))
	if r.Alignment != 0 {
		t.Errorf("empty profile has nothing to align with, got %v", r.Alignment)
	}
}

func TestEvaluate_AlignmentPerfectMatch(t *testing.T) {
	profile := domain.NewUserProfile("u1")
	profile.TotalInteractions = 10
	stats := domain.FeatureStats{}
	stats.Fold(0.8)
	profile.FeatureStats = map[string]domain.FeatureStats{domain.FeatureEnergy: stats}

	list := []domain.ScoredCandidate{entry("a", "a", domain.GenrePop, 0.8)}

	r := New(nil).Evaluate(list, profile)
	if math.Abs(r.Alignment-1.0) > 1e-9 {
		t.Errorf("identical vectors must align at 1, got %v", r.Alignment)
	}
}

func TestEvaluate_GenreMismatch(t *testing.T) {
	profile := domain.NewUserProfile("u1")
	profile.TotalInteractions = 10
	profile.GenreWeights = map[domain.Genre]float64{
		domain.GenrePop:  1.0,
		domain.GenreRock: 0.8,
		domain.GenreRNB:  0.5,
	}

	list := []domain.ScoredCandidate{
		entry("a", "a", domain.GenreElectronic, 0.5),
		entry("b", "b", domain.GenreHipHop, 0.9),
	}

	r := New(nil).Evaluate(list, profile)
	if !hasIssue(r, IssueGenreMismatch) {
		t.Errorf("no overlap with top genres must flag mismatch, got %+v", r.Issues)
	}

	list = append(list, entry("c", "c", domain.GenrePop, 0.2))
	r = New(nil).Evaluate(list, profile)
	if hasIssue(r, IssueGenreMismatch) {
		t.Error("one overlapping genre clears the mismatch flag")
	}
}
