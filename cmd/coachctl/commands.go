package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackcard-ai/concierge/internal/healthsrv"
	"github.com/blackcard-ai/concierge/internal/knowledge"
	"github.com/blackcard-ai/concierge/internal/store"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the exercise catalog and demo clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := store.Seed(cmd.Context(), e.repo)
			if err != nil {
				return fmt.Errorf("failed to seed database: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d exercises, %d users, %d events\n", res.Exercises, res.Users, res.Events)
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var builtin bool

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Chunk, embed and store markdown knowledge for vector retrieval",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !builtin {
				return fmt.Errorf("pass a directory or --builtin")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			in := knowledge.NewIngester(e.repo, e.embedder())
			var stats knowledge.IngestStats
			if builtin {
				stats, err = in.IngestDocuments(cmd.Context(), knowledge.DefaultCorpus())
			} else {
				stats, err = in.IngestDir(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to ingest knowledge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents into %d chunks\n", stats.Documents, stats.Chunks)
			return nil
		},
	}
	cmd.Flags().BoolVar(&builtin, "builtin", false, "ingest the built-in corpus instead of a directory")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan <client-id>",
		Short: "Generate a workout plan for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			orch, err := e.orchestrator()
			if err != nil {
				return err
			}
			res := orch.Plan(cmd.Context(), args[0])
			out := cmd.OutOrStdout()
			if asJSON && res.Plan != nil {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.Plan)
			}
			fmt.Fprintf(out, "Client: %s  Recovery: %d/100  Outcome: %s\n\n%s\n", res.ClientID, res.RecoveryScore, res.Outcome, res.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the structured plan as indented JSON when available")
	return cmd
}

func newInterveneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intervene <client-id>",
		Short: "Send a trainer intervention to a client and log it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			orch, err := e.orchestrator()
			if err != nil {
				return err
			}
			resp := orch.TriggerIntervention(cmd.Context(), args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", resp.SuggestedAction, resp.Message)
			return nil
		},
	}
}

func newEventsCmd() *cobra.Command {
	var (
		limit  int
		userID string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the newest event-log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			var users []string
			if userID != "" {
				users = append(users, userID)
			}
			events, err := e.repo.ListEvents(cmd.Context(), limit, users...)
			if err != nil {
				return fmt.Errorf("failed to list events: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, ev := range events {
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\n",
					ev.ID, ev.CreatedAt.Format(time.RFC3339), ev.UserID, ev.EventType, ev.AgentDecision)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")
	cmd.Flags().StringVar(&userID, "user", "", "only show this client's entries")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running server's gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			status, err := healthsrv.Check(ctx, addr, service)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:9090", "gRPC health address")
	cmd.Flags().StringVar(&service, "service", "", "service name (empty for the whole server)")
	return cmd
}
