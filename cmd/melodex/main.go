package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/melodex/internal/config"
	dbRedis "github.com/kailas-cloud/melodex/internal/db/redis"
	logpkg "github.com/kailas-cloud/melodex/internal/logger"
	"github.com/kailas-cloud/melodex/internal/metrics"
	catalogrepo "github.com/kailas-cloud/melodex/internal/repository/catalog"
	interactionrepo "github.com/kailas-cloud/melodex/internal/repository/interaction"
	profilerepo "github.com/kailas-cloud/melodex/internal/repository/profile"
	chiTransport "github.com/kailas-cloud/melodex/internal/transport/chi"
	"github.com/kailas-cloud/melodex/internal/transport/cohere"
	openaiSum "github.com/kailas-cloud/melodex/internal/transport/openai"
	"github.com/kailas-cloud/melodex/internal/transport/retrieval"
	analyzeruc "github.com/kailas-cloud/melodex/internal/usecase/analyzer"
	criticuc "github.com/kailas-cloud/melodex/internal/usecase/critic"
	curatoruc "github.com/kailas-cloud/melodex/internal/usecase/curator"
	healthuc "github.com/kailas-cloud/melodex/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/melodex/internal/usecase/session"
	"github.com/kailas-cloud/melodex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting melodex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Repositories
	prefix := cfg.Database.KeyPrefix
	profileRepo := profilerepo.New(store, prefix)
	interactionRepo := interactionrepo.New(store, prefix)
	catalogRepo := catalogrepo.New(store, prefix, time.Duration(cfg.Catalog.CacheTTLHours)*time.Hour)

	// External collaborators
	retrievalClient := retrieval.NewClient(retrieval.Config{
		BaseURL: cfg.Retrieval.BaseURL,
		APIKey:  cfg.Retrieval.APIKey,
		Timeout: time.Duration(cfg.Retrieval.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Pass nil interface (not typed nil pointer!) when a collaborator is
	// not configured. Go gotcha: (*Reranker)(nil) wrapped in the interface
	// compares non-nil.
	var reranker curatoruc.Reranker
	if cfg.Rerank.Enabled {
		reranker = cohere.NewReranker(cohere.Config{
			BaseURL: cfg.Rerank.BaseURL,
			APIKey:  cfg.Rerank.APIKey,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Rerank.TimeoutSec) * time.Second,
			Logger:  logger,
		})
		logger.Info("Reranker enabled", zap.String("model", cfg.Rerank.Model))
	}

	var summarizer analyzeruc.Summarizer
	var summarizerHealth healthuc.SummarizerChecker
	if cfg.OpenAI.APIKey != "" {
		s := openaiSum.NewSummarizer(openaiSum.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Logger:  logger,
		})
		summarizer = s
		summarizerHealth = s
		logger.Info("Profile summarizer enabled", zap.String("model", cfg.OpenAI.Model))
	}

	// Use case services
	analyzerSvc := analyzeruc.New(interactionRepo, catalogRepo, profileRepo, summarizer,
		analyzeruc.Config{
			LikeThreshold:     cfg.Ranking.LikeThreshold,
			DislikeThreshold:  cfg.Ranking.DislikeThreshold,
			ProfileUpdateEach: cfg.Ranking.ProfileUpdateEach,
		}, logger)
	curatorSvc := curatoruc.New(retrievalClient, analyzerSvc, reranker,
		curatoruc.Config{
			CandidateCount:   cfg.Ranking.CandidateCount,
			PrerankCount:     cfg.Ranking.PrerankCount,
			FinalCount:       cfg.Ranking.FinalCount,
			SemanticWeight:   cfg.Ranking.SemanticWeight,
			PreferenceWeight: cfg.Ranking.PreferenceWeight,
			GenreWeight:      cfg.Ranking.GenreWeight,
			ArtistBonus:      cfg.Ranking.ArtistBonus,
			ArtistPenalty:    cfg.Ranking.ArtistPenalty,
		}, logger)
	criticSvc := criticuc.New(logger)
	sessions := sessionuc.NewManager(sessionuc.Config{
		QueryWindow:       cfg.Session.QueryWindow,
		InteractionWindow: cfg.Session.InteractionWindow,
		IdleTimeout:       time.Duration(cfg.Session.IdleTimeoutMin) * time.Minute,
	})
	healthSvc := healthuc.New(store, summarizerHealth)

	// Background idle-session sweep
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Session.IdleTimeoutMin) * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if n := sessions.Sweep(); n > 0 {
					logger.Debug("evicted idle sessions", zap.Int("count", n))
				}
			}
		}
	}()

	server := chiTransport.NewServer(curatorSvc, analyzerSvc, criticSvc, sessions, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
