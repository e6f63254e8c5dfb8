package curator

import (
	"context"

	"github.com/kailas-cloud/melodex/internal/domain"
)

type mockRetriever struct {
	candidates []domain.Candidate
	err        error
	gotQuery   string
	gotGenre   domain.Genre
	gotLimit   int
}

func (m *mockRetriever) Search(_ context.Context, query string, genre domain.Genre, limit int) ([]domain.Candidate, error) {
	m.gotQuery, m.gotGenre, m.gotLimit = query, genre, limit
	return m.candidates, m.err
}

type mockProfileProvider struct {
	profile *domain.UserProfile
	err     error
}

func (m *mockProfileProvider) Profile(_ context.Context, userID string) (*domain.UserProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.profile != nil {
		return m.profile, nil
	}
	return domain.NewUserProfile(userID), nil
}

func (m *mockProfileProvider) Describe(_ context.Context, p *domain.UserProfile) string {
	return p.Summary()
}

type mockReranker struct {
	scores   []float64
	err      error
	gotQuery string
	gotDocs  []string
	calls    int
}

func (m *mockReranker) Rerank(_ context.Context, query string, documents []string, _ int) ([]float64, error) {
	m.calls++
	m.gotQuery, m.gotDocs = query, documents
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}

func testCuratorConfig() Config {
	return Config{
		CandidateCount:   50,
		PrerankCount:     30,
		FinalCount:       10,
		SemanticWeight:   0.4,
		PreferenceWeight: 0.2,
		GenreWeight:      0.3,
		ArtistBonus:      0.1,
		ArtistPenalty:    0.2,
	}
}

func candidate(id string, genre domain.Genre, score float64) domain.Candidate {
	return domain.Candidate{
		Track: domain.Track{ID: id, Name: "track " + id, Artist: "artist " + id, Genre: genre},
		Score: score,
	}
}
