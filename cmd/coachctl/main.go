// coachctl is the operator CLI for the concierge backend: database seeding,
// knowledge ingestion and one-off agent runs against the local database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/blackcard-ai/concierge/internal/agent"
	"github.com/blackcard-ai/concierge/internal/config"
	"github.com/blackcard-ai/concierge/internal/knowledge"
	"github.com/blackcard-ai/concierge/internal/llm"
	"github.com/blackcard-ai/concierge/internal/store"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:          "coachctl",
		Short:        "Operate the concierge coaching backend",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			if err := godotenv.Load(); err != nil {
				slog.Debug("No .env file found, using environment variables")
			}
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(
		newSeedCmd(),
		newIngestCmd(),
		newPlanCmd(),
		newInterveneCmd(),
		newEventsCmd(),
		newHealthCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "coachctl version %s\n", version)
			},
		},
	)
	return rootCmd
}

// env bundles what the commands need from configuration.
type env struct {
	cfg  *config.Config
	repo *store.SQLiteStore
	gen  llm.Generator
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	gen, err := llm.New(ctx, cfg.LLM, cfg.IsProduction())
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return &env{cfg: cfg, repo: repo, gen: gen}, nil
}

func (e *env) Close() {
	if err := e.repo.Close(); err != nil {
		slog.Error("Failed to close repository", "error", err)
	}
}

func (e *env) embedder() knowledge.Embedder {
	return knowledge.EmbedderFor(e.gen, e.cfg.LLM.EmbeddingModel)
}

func (e *env) orchestrator() (*agent.Orchestrator, error) {
	retriever, err := knowledge.New(e.cfg.Retrieval, e.repo, e.embedder())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retriever: %w", err)
	}
	graph := agent.NewGraph(agent.GraphConfig{
		Generator:         e.gen,
		Retriever:         retriever,
		Vision:            llm.NewVision(e.gen, e.cfg.LLM.GeminiModel),
		Users:             e.repo,
		RecoveryTopK:      e.cfg.Retrieval.TopK,
		GenerationTimeout: e.cfg.LLM.GenerationTimeout,
	})
	return agent.NewOrchestrator(agent.OrchestratorConfig{
		Graph:             graph,
		Generator:         e.gen,
		Repo:              e.repo,
		Retriever:         retriever,
		GenerationTimeout: e.cfg.LLM.GenerationTimeout,
		TopK:              e.cfg.Retrieval.TopK,
	}), nil
}
