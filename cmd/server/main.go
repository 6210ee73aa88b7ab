// Confidence Coach server
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

	"github.com/ashureev/confidence-coach/internal/agent"
	"github.com/ashureev/confidence-coach/internal/api"
	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/completion"
	"github.com/ashureev/confidence-coach/internal/config"
	"github.com/ashureev/confidence-coach/internal/health"
	"github.com/ashureev/confidence-coach/internal/identity"
	"github.com/ashureev/confidence-coach/internal/middleware"
	"github.com/ashureev/confidence-coach/internal/session"
	"github.com/ashureev/confidence-coach/internal/store"
)

const (
	sweepInterval       = time.Minute
	healthWatchInterval = 15 * time.Second
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "provider", cfg.Completion.Provider, "assessment_mode", cfg.Coaching.AssessmentMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Archive.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Coaching core.
	policy, err := coach.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		slog.Error("Failed to load coaching policy", "path", cfg.PolicyPath, "error", err)
		os.Exit(1)
	}

	client, err := completion.New(ctx, completion.Options{
		Provider: cfg.Completion.Provider,
		APIKey:   cfg.Completion.APIKey,
		Model:    cfg.Completion.Model,
		BaseURL:  cfg.Completion.BaseURL,
	})
	if err != nil {
		slog.Error("Failed to initialize completion client", "error", err)
		os.Exit(1)
	}
	completer := completion.NewRetrying(client, completion.RetryPolicy{
		MaxAttempts: cfg.Completion.MaxAttempts,
		Timeout:     cfg.Completion.Timeout,
		Delay:       cfg.Completion.RetryDelay,
	})
	slog.Info("Completion client ready", "name", completer.Name(), "max_attempts", cfg.Completion.MaxAttempts)

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	registry := session.NewRegistry(cfg.SessionTTL, nil)
	svc := agent.NewService(registry, completer, repo, conversationLogger, agent.ServiceConfig{
		AssessmentMode: cfg.Coaching.AssessmentMode,
		Validator:      coach.NewValidator(cfg.Coaching.MessageMaxChars, cfg.Coaching.Denylist),
		Policy:         policy,
	})

	// Workers.
	session.StartSweeper(ctx, registry, sweepInterval, store.CleanupHook(repo, cfg.ArchiveTTL))

	if _, err := health.Start(ctx, cfg.GRPCHealthAddr, repo, healthWatchInterval); err != nil {
		slog.Error("Failed to start gRPC health server", "error", err)
		os.Exit(1)
	}

	// Handlers.
	origins := middleware.Origins(cfg.FrontendURL)
	limiter := agent.NewRateLimiter(ctx, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	coachHandler := agent.NewHandler(svc, limiter)
	wsHandler := agent.NewWebSocketHandler(svc, limiter, origins, cfg.IsDevelopment())
	healthHandler := api.NewHealthHandler(repo, completer.Name(), registry)

	// Setup router.
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(origins))

	healthHandler.RegisterHealth(r)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		coachHandler.RegisterRoutes(r)
		r.Get("/ws/coach", wsHandler.ServeHTTP)
	})

	// WriteTimeout stays 0 so WebSocket connections are not cut off.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
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
