// Package curator runs the candidate ranking pipeline: retrieve, score
// against the user profile, adjust for time of day, rerank, truncate. The
// pipeline never writes anywhere; cancelling it mid-flight leaks nothing.
package curator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/domain"
	"github.com/kailas-cloud/melodex/internal/metrics"
	"github.com/kailas-cloud/melodex/internal/timeofday"
)

// State is the pipeline progress marker carried in the result status.
type State string

// Pipeline states. A run that completes without reranking ends in
// StateFallback instead of StateDone.
const (
	StateReceived     State = "RECEIVED"
	StateScored       State = "SCORED"
	StateTimeAdjusted State = "TIME_ADJUSTED"
	StateReranked     State = "RERANKED"
	StateTruncated    State = "TRUNCATED"
	StateDone         State = "DONE"
	StateFallback     State = "FALLBACK"
)

// Config holds the pool sizes and scoring weights.
type Config struct {
	CandidateCount   int
	PrerankCount     int
	FinalCount       int
	SemanticWeight   float64
	PreferenceWeight float64
	GenreWeight      float64
	ArtistBonus      float64
	ArtistPenalty    float64
}

// Request is one recommendation request.
type Request struct {
	UserID string
	Query  string
	Genre  domain.Genre // optional retrieval filter
	At     time.Time    // zero means now

	SkipTimeAdjust bool
	SkipRerank     bool
}

// Result is the ordered recommendation list plus pipeline status.
type Result struct {
	Tracks []domain.ScoredCandidate
	State  State

	Period       timeofday.Period
	TimeAdjusted bool
	Reranked     bool
}

// Service orchestrates the ranking pipeline.
type Service struct {
	retriever Retriever
	profiles  ProfileProvider
	reranker  Reranker // nil disables reranking
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a curator service. reranker may be nil.
func New(retriever Retriever, profiles ProfileProvider, reranker Reranker, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever: retriever,
		profiles:  profiles,
		reranker:  reranker,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Recommend runs the full pipeline for one request.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	defer func() {
		metrics.RecommendationDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	}()

	if req.UserID == "" || req.Query == "" {
		metrics.RecommendationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("user_id and query are required: %w", domain.ErrInvalidInput)
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	profile, err := s.profiles.Profile(ctx, req.UserID)
	if err != nil {
		metrics.RecommendationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load profile: %w", err)
	}

	candidates, err := s.retriever.Search(ctx, req.Query, req.Genre, s.cfg.CandidateCount)
	if err != nil {
		metrics.RecommendationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("retrieve candidates: %w", err)
	}
	candidates = dedupe(candidates)
	if len(candidates) == 0 {
		metrics.RecommendationRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("query %q: %w", req.Query, domain.ErrNoCandidates)
	}

	res := &Result{State: StateReceived}
	tctx := timeofday.At(at)
	res.Period = tctx.Period

	// Step 1: content + profile base score, order-invariant.
	scoreStart := time.Now()
	scored := s.scoreAll(candidates, profile, tctx)
	res.State = StateScored

	// Step 2: time adjustment and prerank cut.
	if !req.SkipTimeAdjust {
		for i := range scored {
			scored[i].Scores.Adjusted = tctx.Adjust(scored[i].Scores.Base, scored[i].Scores.TimeMatch)
		}
		res.TimeAdjusted = true
	} else {
		for i := range scored {
			scored[i].Scores.Adjusted = scored[i].Scores.Base
		}
	}
	sortCandidates(scored, func(c domain.ScoredCandidate) float64 { return c.Scores.Adjusted })
	if len(scored) > s.cfg.PrerankCount {
		scored = scored[:s.cfg.PrerankCount]
	}
	res.State = StateTimeAdjusted
	metrics.RecommendationDuration.WithLabelValues("score").Observe(time.Since(scoreStart).Seconds())

	// Step 3: rerank; any failure falls back to the Step-2 ordering.
	reranked := s.rerank(ctx, req, profile, tctx, scored)
	if reranked {
		sortCandidates(scored, func(c domain.ScoredCandidate) float64 { return c.Scores.Rerank })
		res.Reranked = true
		res.State = StateReranked
	}
	for i := range scored {
		if reranked {
			scored[i].Scores.Final = scored[i].Scores.Rerank
		} else {
			scored[i].Scores.Final = scored[i].Scores.Adjusted
		}
	}

	// Step 4: truncate and rank.
	if len(scored) > s.cfg.FinalCount {
		scored = scored[:s.cfg.FinalCount]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	res.Tracks = scored
	res.State = StateTruncated

	if res.Reranked {
		res.State = StateDone
		metrics.RecommendationRequestsTotal.WithLabelValues("ok").Inc()
	} else {
		res.State = StateFallback
		metrics.RecommendationRequestsTotal.WithLabelValues("fallback").Inc()
	}

	s.logger.Info("recommendation served",
		zap.String("user_id", req.UserID),
		zap.String("period", string(res.Period)),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(res.Tracks)),
		zap.Bool("reranked", res.Reranked),
	)
	return res, nil
}

// rerank calls the external reranker over the surviving candidates. Returns
// whether rerank scores were applied. Failures only log; the rerank stage
// must never fail the request.
func (s *Service) rerank(ctx context.Context, req Request, profile *domain.UserProfile, tctx timeofday.Context, scored []domain.ScoredCandidate) bool {
	if s.reranker == nil || req.SkipRerank || len(scored) == 0 {
		metrics.RerankRequestsTotal.WithLabelValues("skipped").Inc()
		return false
	}

	rerankStart := time.Now()
	defer func() {
		metrics.RecommendationDuration.WithLabelValues("rerank").Observe(time.Since(rerankStart).Seconds())
	}()

	docs := make([]string, len(scored))
	for i, c := range scored {
		docs[i] = c.Track.Describe()
	}
	query := s.rerankQuery(ctx, req.Query, profile, tctx)

	relevance, err := s.reranker.Rerank(ctx, query, docs, s.cfg.FinalCount)
	if err != nil || len(relevance) != len(scored) {
		if !errors.Is(err, domain.ErrRerankUnavailable) && err != nil {
			s.logger.Warn("unexpected rerank failure", zap.Error(err))
		} else {
			s.logger.Info("rerank unavailable, keeping time-adjusted ordering", zap.Error(err))
		}
		return false
	}

	for i := range scored {
		scored[i].Scores.Rerank = relevance[i]
	}
	return true
}

// rerankQuery augments the raw query with the listener's taste summary and
// the current listening period.
func (s *Service) rerankQuery(ctx context.Context, query string, profile *domain.UserProfile, tctx timeofday.Context) string {
	summary := s.profiles.Describe(ctx, profile)
	return query + ". Listener: " + summary + ". " + tctx.Period.Description()
}

// dedupe drops duplicate track ids, keeping the highest retrieval score.
func dedupe(candidates []domain.Candidate) []domain.Candidate {
	best := make(map[string]int, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c.Track.ID == "" {
			continue
		}
		if i, ok := best[c.Track.ID]; ok {
			if c.Score > out[i].Score {
				out[i] = c
			}
			continue
		}
		best[c.Track.ID] = len(out)
		out = append(out, c)
	}
	return out
}
