package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/melodex/internal/domain"
	analyzeruc "github.com/kailas-cloud/melodex/internal/usecase/analyzer"
	criticuc "github.com/kailas-cloud/melodex/internal/usecase/critic"
	curatoruc "github.com/kailas-cloud/melodex/internal/usecase/curator"
	healthuc "github.com/kailas-cloud/melodex/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/melodex/internal/usecase/session"
)

type memLog struct {
	items map[string][]domain.Interaction
}

func (m *memLog) Append(_ context.Context, in domain.Interaction) error {
	if m.items == nil {
		m.items = map[string][]domain.Interaction{}
	}
	m.items[in.UserID] = append(m.items[in.UserID], in)
	return nil
}

func (m *memLog) List(_ context.Context, userID string) ([]domain.Interaction, error) {
	return m.items[userID], nil
}

func (m *memLog) Count(_ context.Context, userID string) (int64, error) {
	return int64(len(m.items[userID])), nil
}

type memProfiles struct {
	profiles map[string]*domain.UserProfile
}

func (m *memProfiles) Get(_ context.Context, userID string) (*domain.UserProfile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, domain.ErrProfileNotFound
}

func (m *memProfiles) Put(_ context.Context, p *domain.UserProfile, expectedRevision int64) error {
	if m.profiles == nil {
		m.profiles = map[string]*domain.UserProfile{}
	}
	if existing, ok := m.profiles[p.UserID]; ok && existing.Revision != expectedRevision {
		return domain.NewRevisionConflict(existing.Revision)
	}
	p.Revision = expectedRevision + 1
	copied := *p
	m.profiles[p.UserID] = &copied
	return nil
}

type memTracks struct{}

func (memTracks) GetMulti(_ context.Context, ids []string) ([]domain.Track, error) {
	out := make([]domain.Track, len(ids))
	for i, id := range ids {
		out[i] = domain.Track{ID: id, Artist: "artist " + id, Genre: domain.GenrePop}
	}
	return out, nil
}

type stubRetriever struct {
	candidates []domain.Candidate
	err        error
	gotQuery   string
}

func (s *stubRetriever) Search(_ context.Context, query string, _ domain.Genre, _ int) ([]domain.Candidate, error) {
	s.gotQuery = query
	return s.candidates, s.err
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(_ context.Context) error { return s.err }

type testEnv struct {
	router    chi.Router
	retriever *stubRetriever
	log       *memLog
	sessions  *sessionuc.Manager
}

func newTestEnv() *testEnv {
	log := &memLog{}
	profiles := &memProfiles{}
	retriever := &stubRetriever{}

	analyzer := analyzeruc.New(log, memTracks{}, profiles, nil,
		analyzeruc.Config{LikeThreshold: 4, DislikeThreshold: 2, ProfileUpdateEach: 5}, nil)
	curator := curatoruc.New(retriever, analyzer, nil, curatoruc.Config{
		CandidateCount: 50, PrerankCount: 30, FinalCount: 10,
		SemanticWeight: 0.4, PreferenceWeight: 0.2, GenreWeight: 0.3,
		ArtistBonus: 0.1, ArtistPenalty: 0.2,
	}, nil)
	sessions := sessionuc.NewManager(sessionuc.Config{
		QueryWindow: 10, InteractionWindow: 20, IdleTimeout: time.Hour,
	})
	server := NewServer(curator, analyzer, criticuc.New(nil), sessions,
		healthuc.New(stubPinger{}, nil), nil)

	r := chi.NewRouter()
	server.Routes(r)
	return &testEnv{router: r, retriever: retriever, log: log, sessions: sessions}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRecommend_OK(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 15; i++ {
		env.retriever.candidates = append(env.retriever.candidates, domain.Candidate{
			Track: domain.Track{
				ID:     fmt.Sprintf("t%02d", i),
				Name:   fmt.Sprintf("song %d", i),
				Artist: fmt.Sprintf("artist %d", i),
				Genre:  domain.GenrePop,
			},
			Score: float64(i) / 15,
		})
	}

	rr := doJSON(t, env.router, "POST", "/v1/recommendations",
		map[string]any{"user_id": "u1", "query": "late night drive"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Recommendations []recommendationItem `json:"recommendations"`
		Critique        criticuc.Report      `json:"critique"`
		Status          recommendStatus      `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Recommendations) != 10 {
		t.Errorf("recommendations: got %d, want 10", len(resp.Recommendations))
	}
	if resp.Recommendations[0].Rank != 1 {
		t.Errorf("first rank: got %d", resp.Recommendations[0].Rank)
	}
	// No reranker wired: the pipeline reports fallback honestly.
	if resp.Status.State != "FALLBACK" || resp.Status.Reranked {
		t.Errorf("status: got %+v", resp.Status)
	}
	if resp.Critique.ArtistDiversity != 1.0 {
		t.Errorf("critique must cover the returned list, got %+v", resp.Critique)
	}
}

func TestRecommend_BadBody(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest("POST", "/v1/recommendations", bytes.NewBufferString("{broken"))
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestRecommend_MissingFields(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/recommendations", map[string]any{"query": "q"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestRecommend_NoCandidates(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/recommendations",
		map[string]any{"user_id": "u1", "query": "nothing matches"})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", rr.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["code"] != codeNoCandidates {
		t.Errorf("code: got %s", resp["code"])
	}
}

func TestRecommend_RetrievalDown(t *testing.T) {
	env := newTestEnv()
	env.retriever.err = fmt.Errorf("search: %w", domain.ErrRetrievalUnavailable)

	rr := doJSON(t, env.router, "POST", "/v1/recommendations",
		map[string]any{"user_id": "u1", "query": "q"})

	if rr.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want 502", rr.Code)
	}
}

func TestRecommend_SessionContext(t *testing.T) {
	env := newTestEnv()
	env.retriever.candidates = []domain.Candidate{
		{Track: domain.Track{ID: "a", Genre: domain.GenrePop}, Score: 0.5},
	}
	sess := env.sessions.Start("u1")
	sess.RecordQuery("rainy jazz")

	rr := doJSON(t, env.router, "POST", "/v1/recommendations",
		map[string]any{"user_id": "u1", "query": "piano", "session_id": sess.ID})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if env.retriever.gotQuery != "rainy jazz piano" {
		t.Errorf("session context must reach retrieval, got %q", env.retriever.gotQuery)
	}
	if got := sess.RecentQueries(); len(got) != 2 || got[1] != "piano" {
		t.Errorf("query must be recorded in the session, got %v", got)
	}
}

func TestRecordInteraction(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/interactions",
		map[string]any{"user_id": "u1", "track_id": "t1", "action": "rate", "rating": 5})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", rr.Code)
	}
	if len(env.log.items["u1"]) != 1 {
		t.Errorf("interaction must be appended, got %v", env.log.items)
	}
}

func TestRecordInteraction_Invalid(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/interactions",
		map[string]any{"user_id": "u1", "action": "like"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestGetProfile_NewUser(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "GET", "/v1/users/stranger/profile", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp profileResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "stranger" || resp.TotalInteractions != 0 {
		t.Errorf("expected neutral profile, got %+v", resp)
	}
	if resp.Summary != "New user with no preferences yet" {
		t.Errorf("summary: got %q", resp.Summary)
	}
}

func TestRefreshProfile(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 3; i++ {
		doJSON(t, env.router, "POST", "/v1/interactions",
			map[string]any{"user_id": "u1", "track_id": "t1", "action": "rate", "rating": 5})
	}

	rr := doJSON(t, env.router, "POST", "/v1/users/u1/profile/refresh", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rr.Code, rr.Body.String())
	}

	var resp profileResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalInteractions != 3 {
		t.Errorf("interactions: got %d, want 3", resp.TotalInteractions)
	}
	if resp.GenreWeights[domain.GenrePop] != 1.0 {
		t.Errorf("genre weights: got %v", resp.GenreWeights)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/sessions", map[string]any{"user_id": "u1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", rr.Code)
	}
	var resp map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&resp)
	if resp["session_id"] == "" {
		t.Fatal("expected a session id")
	}

	rr = doJSON(t, env.router, "DELETE", "/v1/sessions/"+resp["session_id"], nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status: got %d, want 204", rr.Code)
	}
	if env.sessions.Len() != 0 {
		t.Errorf("session must be gone, %d live", env.sessions.Len())
	}
}

func TestStartSession_MissingUser(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "POST", "/v1/sessions", map[string]any{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	rr := doJSON(t, env.router, "GET", "/health", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rr.Code)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	server := NewServer(nil, nil, nil, nil,
		healthuc.New(stubPinger{err: fmt.Errorf("down")}, nil), nil)
	r := chi.NewRouter()
	server.Routes(r)

	rr := doJSON(t, r, "GET", "/health", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}
