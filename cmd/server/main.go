// Concierge - multi-agent fitness coaching backend.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blackcard-ai/concierge/internal/agent"
	"github.com/blackcard-ai/concierge/internal/api"
	"github.com/blackcard-ai/concierge/internal/config"
	"github.com/blackcard-ai/concierge/internal/feed"
	"github.com/blackcard-ai/concierge/internal/healthsrv"
	"github.com/blackcard-ai/concierge/internal/identity"
	"github.com/blackcard-ai/concierge/internal/knowledge"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/middleware"
	"github.com/blackcard-ai/concierge/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server",
		"port", cfg.Port,
		"env", cfg.Env,
		"llm_provider", cfg.LLM.Provider,
		"retriever", cfg.Retrieval.Backend,
		"version", version)
	if cfg.AuthDisabled {
		slog.Warn("API key authentication is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
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
	slog.Info("Database connected", "path", cfg.DBPath)

	if cfg.SeedOnStart {
		if _, err := store.Seed(ctx, repo); err != nil {
			slog.Error("Failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	gen, err := llm.New(ctx, cfg.LLM, cfg.IsProduction())
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	embedder := knowledge.EmbedderFor(gen, cfg.LLM.EmbeddingModel)
	if cfg.Retrieval.Backend == "vector" {
		ensureVectorIndex(ctx, repo, embedder)
	}
	retriever, err := knowledge.New(cfg.Retrieval, repo, embedder)
	if err != nil {
		slog.Error("Failed to initialize retriever", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := agent.NewMetrics(reg)

	hub := feed.NewHub(feed.DefaultBuffer, cfg.CORSOrigins)

	graph := agent.NewGraph(agent.GraphConfig{
		Generator:         gen,
		Retriever:         retriever,
		Vision:            llm.NewVision(gen, cfg.LLM.GeminiModel),
		Users:             repo,
		RecoveryTopK:      cfg.Retrieval.TopK,
		GenerationTimeout: cfg.LLM.GenerationTimeout,
		Metrics:           metrics,
	})
	orch := agent.NewOrchestrator(agent.OrchestratorConfig{
		Graph:             graph,
		Generator:         gen,
		Repo:              repo,
		Retriever:         retriever,
		Publisher:         hub,
		Metrics:           metrics,
		GenerationTimeout: cfg.LLM.GenerationTimeout,
		TopK:              cfg.Retrieval.TopK,
	})

	agentHandler := agent.NewHandler(orch, repo, agent.NewRateLimiter(ctx, cfg.EventRateLimit, time.Minute))
	r := newRouter(cfg, repo, reg, agentHandler, hub)

	// Create server.
	// WriteTimeout stays 0 so /ws/events connections are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start background workers.
	store.StartRetentionWorker(ctx, repo, cfg.Retention.MaxAge, cfg.Retention.Interval)

	if cfg.GRPCHealthPort != "" {
		hs := healthsrv.New(repo, 0)
		go func() {
			if err := hs.ListenAndServe(ctx, ":"+cfg.GRPCHealthPort); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
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

// newRouter mounts the public routes, the provider webhooks and the
// key-protected API.
func newRouter(cfg *config.Config, repo store.Repository, reg *prometheus.Registry, agentHandler *agent.Handler, hub *feed.Hub) http.Handler {
	baseHandler := api.NewHandler(repo)
	healthHandler := api.NewHealthHandler(repo, api.HealthInfo{
		Service:          "concierge",
		Version:          version,
		LLMProvider:      cfg.LLM.Provider,
		RetrieverBackend: cfg.Retrieval.Backend,
	})

	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Terra and Twilio cannot send the API key header.
	agentHandler.RegisterWebhooks(r)

	// Everything else requires the API key.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.APIKey, cfg.AuthDisabled))

		api.NewUserHandler(baseHandler).RegisterRoutes(r)
		api.NewExerciseHandler(baseHandler).RegisterRoutes(r)
		agentHandler.RegisterRoutes(r)
		r.Get("/ws/events", hub.ServeHTTP)
	})
	return r
}

// ensureVectorIndex ingests the built-in corpus when the chunk table is empty
// so the vector backend has something to search on first boot.
func ensureVectorIndex(ctx context.Context, repo store.ChunkStore, embedder knowledge.Embedder) {
	existing, err := repo.ListChunks(ctx, nil)
	if err != nil {
		slog.Warn("Failed to inspect knowledge chunks", "error", err)
		return
	}
	if len(existing) > 0 {
		return
	}
	stats, err := knowledge.NewIngester(repo, embedder).IngestDocuments(ctx, knowledge.DefaultCorpus())
	if err != nil {
		slog.Warn("Failed to ingest built-in corpus, vector retrieval will return nothing", "error", err)
		return
	}
	slog.Info("Ingested built-in corpus", "documents", stats.Documents, "chunks", stats.Chunks)
}
