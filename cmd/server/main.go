// Skillcheck - adaptive technical interview server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/skillcheck/internal/api"
	"github.com/ashureev/skillcheck/internal/config"
	"github.com/ashureev/skillcheck/internal/evalcache"
	"github.com/ashureev/skillcheck/internal/evaluator"
	"github.com/ashureev/skillcheck/internal/evaluator/gemini"
	"github.com/ashureev/skillcheck/internal/interview"
	"github.com/ashureev/skillcheck/internal/middleware"
	"github.com/ashureev/skillcheck/internal/question"
	"github.com/ashureev/skillcheck/internal/session"
	"github.com/ashureev/skillcheck/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "evaluator", cfg.Evaluator.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Durable tier.
	durable, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := durable.Close(); closeErr != nil {
			slog.Error("Failed to close durable store", "error", closeErr)
		}
	}()

	// No blocking health probe at startup: database reachability only
	// affects the reported /health status.
	slog.Info("Database opened", "path", cfg.DBPath)

	// Fast tier is optional; the session manager works against the durable
	// store alone when it is disabled.
	var fast store.FastTier
	if cfg.FastTier.Enabled {
		fast = store.NewMemoryFastTier()
		slog.Info("Fast tier enabled", "staleness_window", cfg.FastTier.StalenessWindow)
	}

	sessions := session.NewManager(durable, fast, cfg.FastTier.StalenessWindow, logger)
	if cfg.FastTier.Enabled {
		sessions.StartReconciler(ctx, cfg.FastTier.ReconcileInterval)
	}

	// Evaluation stack: cache in front of the configured provider, retries
	// around the provider.
	cache := evalcache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL, logger)

	var eval evaluator.Evaluator
	switch cfg.Evaluator.Provider {
	case "gemini":
		generator, err := gemini.NewGenerator(ctx, cfg.Evaluator.GeminiAPIKey, cfg.Evaluator.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		eval = gemini.NewScorer(generator, logger)
		slog.Info("Gemini evaluator initialized", "model", cfg.Evaluator.GeminiModel)
	default:
		eval = evaluator.Unavailable{}
		slog.Info("No evaluator configured, responses will be flagged for manual review")
	}
	eval = evaluator.WithRetry(eval, evaluator.RetryConfig{
		MaxAttempts:    cfg.Evaluator.MaxAttempts,
		BackoffBase:    cfg.Evaluator.BackoffBase,
		RequestTimeout: cfg.Evaluator.RequestTimeout,
	}, logger)

	// Question bank.
	var source question.Source
	if cfg.QuestionFile != "" {
		source, err = question.LoadFile(cfg.QuestionFile)
		if err != nil {
			slog.Error("Failed to load question file", "error", err, "path", cfg.QuestionFile)
			os.Exit(1)
		}
		slog.Info("Question bank loaded", "path", cfg.QuestionFile)
	} else {
		source = question.NewStaticSource(question.DefaultBank())
		slog.Info("Using built-in question bank")
	}

	engine := interview.NewEngine(sessions, source, cache, eval, cfg.Interview, nil, logger)
	engine.StartInactivitySweep(ctx)

	// Handlers and router.
	sessionHandler := api.NewSessionHandler(engine)
	healthHandler := api.NewHealthHandler(durable, 5*time.Second)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	healthHandler.RegisterHealth(r)
	sessionHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the event stream holds connections open.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
