// Package chi is the HTTP API surface: recommendations, interactions,
// profiles, session memory, health, metrics.
package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
	analyzeruc "github.com/kailas-cloud/melodex/internal/usecase/analyzer"
	criticuc "github.com/kailas-cloud/melodex/internal/usecase/critic"
	curatoruc "github.com/kailas-cloud/melodex/internal/usecase/curator"
	healthuc "github.com/kailas-cloud/melodex/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/melodex/internal/usecase/session"
)

// Error response codes.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeNoCandidates         = "no_candidates"
	codeTrackNotFound        = "track_not_found"
	codeSessionNotFound      = "session_not_found"
	codeRevisionConflict     = "revision_conflict"
	codeRetrievalUnavailable = "retrieval_unavailable"
	codeInternalError        = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	curator       *curatoruc.Service
	analyzer      *analyzeruc.Service
	critic        *criticuc.Service
	sessions      *sessionuc.Manager
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	curator *curatoruc.Service,
	analyzer *analyzeruc.Service,
	critic *criticuc.Service,
	sessions *sessionuc.Manager,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		curator:  curator,
		analyzer: analyzer,
		critic:   critic,
		sessions: sessions,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		revisionConflictHandler,
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNoCandidates, http.StatusNotFound, codeNoCandidates),
		sentinelHandler(domain.ErrTrackNotFound, http.StatusNotFound, codeTrackNotFound),
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusBadGateway, codeRetrievalUnavailable),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/recommendations", s.Recommend)
	r.Post("/v1/interactions", s.RecordInteraction)
	r.Get("/v1/users/{userID}/profile", s.GetProfile)
	r.Post("/v1/users/{userID}/profile/refresh", s.RefreshProfile)
	r.Post("/v1/sessions", s.StartSession)
	r.Delete("/v1/sessions/{sessionID}", s.EndSession)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type recommendRequest struct {
	UserID    string `json:"user_id"`
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	Genre     string `json:"genre,omitempty"`

	DisableTimeMatch bool `json:"disable_time_match,omitempty"`
	DisableRerank    bool `json:"disable_rerank,omitempty"`
}

type recommendationItem struct {
	Rank       int                    `json:"rank"`
	TrackID    string                 `json:"track_id"`
	Name       string                 `json:"name"`
	Artist     string                 `json:"artist"`
	Genre      string                 `json:"genre"`
	Popularity int                    `json:"popularity,omitempty"`
	Scores     domain.ComponentScores `json:"scores"`
}

type recommendResponse struct {
	Recommendations []recommendationItem `json:"recommendations"`
	Critique        criticuc.Report      `json:"critique"`
	Status          recommendStatus      `json:"status"`
}

type recommendStatus struct {
	State        string `json:"state"`
	Period       string `json:"period"`
	TimeAdjusted bool   `json:"time_adjusted"`
	Reranked     bool   `json:"reranked"`
}

// Recommend handles POST /v1/recommendations.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	curReq := curatoruc.Request{
		UserID:         req.UserID,
		Query:          req.Query,
		Genre:          domain.Genre(req.Genre),
		SkipTimeAdjust: req.DisableTimeMatch,
		SkipRerank:     req.DisableRerank,
	}

	// Session memory folds recent queries into the retrieval context and can
	// pin a genre filter for the sitting.
	var sess *sessionuc.Session
	if req.SessionID != "" {
		if live, ok := s.sessions.Get(req.SessionID); ok {
			sess = live
			curReq.Query = sess.QueryContext(req.Query)
			if curReq.Genre == "" {
				curReq.Genre = sess.GenreHint()
			}
		}
	}

	res, err := s.curator.Recommend(r.Context(), curReq)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if sess != nil {
		sess.RecordQuery(req.Query)
		if req.Genre != "" {
			sess.SetGenreHint(domain.Genre(req.Genre))
		}
	}

	profile, err := s.analyzer.Profile(r.Context(), req.UserID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]recommendationItem, len(res.Tracks))
	for i, c := range res.Tracks {
		items[i] = recommendationItem{
			Rank:       c.Rank,
			TrackID:    c.Track.ID,
			Name:       c.Track.Name,
			Artist:     c.Track.Artist,
			Genre:      string(c.Track.Genre),
			Popularity: c.Track.Popularity,
			Scores:     c.Scores,
		}
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		Recommendations: items,
		Critique:        s.critic.Evaluate(res.Tracks, profile),
		Status: recommendStatus{
			State:        string(res.State),
			Period:       string(res.Period),
			TimeAdjusted: res.TimeAdjusted,
			Reranked:     res.Reranked,
		},
	})
}

type interactionRequest struct {
	UserID    string `json:"user_id"`
	TrackID   string `json:"track_id"`
	Action    string `json:"action"`
	Rating    int    `json:"rating,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// RecordInteraction handles POST /v1/interactions. Returns 202: the
// interaction is durably appended, while the profile rebuild it may trigger
// is best-effort.
func (s *Server) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	in := domain.Interaction{
		UserID:    req.UserID,
		TrackID:   req.TrackID,
		Action:    domain.Action(req.Action),
		Rating:    req.Rating,
		Timestamp: time.Now().UTC(),
	}

	if err := s.analyzer.ObserveInteraction(r.Context(), in); err != nil {
		s.handleDomainError(w, err)
		return
	}

	if req.SessionID != "" {
		if sess, ok := s.sessions.Get(req.SessionID); ok {
			sess.RecordInteraction(in)
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

type profileResponse struct {
	UserID            string                         `json:"user_id"`
	GenreWeights      map[domain.Genre]float64       `json:"genre_weights"`
	FeatureStats      map[string]domain.FeatureStats `json:"feature_stats"`
	LikedArtists      []string                       `json:"liked_artists,omitempty"`
	DislikedArtists   []string                       `json:"disliked_artists,omitempty"`
	TemporalHistogram map[string]int                 `json:"temporal_histogram"`
	TotalInteractions int                            `json:"total_interactions"`
	UpdatedAt         time.Time                      `json:"updated_at"`
	Revision          int64                          `json:"revision"`
	Summary           string                         `json:"summary"`
}

// GetProfile handles GET /v1/users/{userID}/profile. Users without history
// get a neutral profile, not a 404.
func (s *Server) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "userID is required")
		return
	}

	p, err := s.analyzer.Profile(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileToResponse(p, s.analyzer.Describe(r.Context(), p)))
}

// RefreshProfile handles POST /v1/users/{userID}/profile/refresh: a forced
// rebuild from the full interaction history.
func (s *Server) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "userID is required")
		return
	}

	p, err := s.analyzer.Rebuild(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, profileToResponse(p, s.analyzer.Describe(r.Context(), p)))
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

// StartSession handles POST /v1/sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	sess := s.sessions.Start(req.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id": sess.ID,
		"user_id":    sess.UserID,
	})
}

// EndSession handles DELETE /v1/sessions/{sessionID}. Ending an already-gone
// session is a no-op.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(chi.URLParam(r, "sessionID"))
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func profileToResponse(p *domain.UserProfile, summary string) profileResponse {
	return profileResponse{
		UserID:            p.UserID,
		GenreWeights:      p.GenreWeights,
		FeatureStats:      p.FeatureStats,
		LikedArtists:      p.LikedArtists,
		DislikedArtists:   p.DislikedArtists,
		TemporalHistogram: p.TemporalHistogram,
		TotalInteractions: p.TotalInteractions,
		UpdatedAt:         p.UpdatedAt,
		Revision:          p.Revision,
		Summary:           summary,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrNoCandidates,
		domain.ErrTrackNotFound,
		domain.ErrProfileNotFound,
		domain.ErrProfileCorrupt,
		domain.ErrRevisionConflict,
		domain.ErrRetrievalUnavailable,
		domain.ErrRerankUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// revisionConflictHandler handles ErrRevisionConflict with the winning
// revision in the body.
func revisionConflictHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrRevisionConflict) {
		return false
	}
	var rce *domain.RevisionConflictError
	if errors.As(err, &rce) {
		w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(rce.CurrentRevision, 10)))
		writeJSON(w, http.StatusConflict, map[string]any{
			"code":             codeRevisionConflict,
			"message":          msg,
			"current_revision": rce.CurrentRevision,
		})
		return true
	}
	writeError(w, http.StatusConflict, codeRevisionConflict, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
