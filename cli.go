package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dutchsloot84/AgentOps-Mock/features/job"
	"github.com/dutchsloot84/AgentOps-Mock/internal/app"
	"github.com/dutchsloot84/AgentOps-Mock/internal/config"
	"github.com/dutchsloot84/AgentOps-Mock/internal/ingest"
	"github.com/dutchsloot84/AgentOps-Mock/internal/worker"
)

// exitError carries a process exit status out of a command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type failure struct {
	OK    bool   `json:"ok"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

// execute runs the CLI and returns the process exit status.
func execute(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) int {
	cmd := newRootCmd(out, logger, config.Load)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	logger.Error("command failed", "error", err)
	return 1
}

func newRootCmd(out io.Writer, logger *slog.Logger, load func() (*config.Config, error)) *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "agentops",
		Short:         "Retrieval backend for the AgentOps mock agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				logger.Error("config load failed", "error", err)
				return writeFailure(out, "config", fmt.Errorf("load config: %w", err))
			}
			cfg = c
			return nil
		},
	}
	root.SetOut(out)

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the chat API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), cfg, logger)
			},
		},
		newUpsertCmd(out, &cfg),
		newSearchCmd(out, &cfg),
		&cobra.Command{
			Use:   "worker",
			Short: "Consume reindex requests",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWorker(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "mocks",
			Short: "Serve the mock tasks and claims services",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := app.NewMocks(cfg)
				if err != nil {
					return err
				}
				return m.Run(cmd.Context())
			},
		},
	)
	return root
}

func newUpsertCmd(out io.Writer, cfg **config.Config) *cobra.Command {
	var docsDir string

	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Chunk, embed and index the document corpus",
		Long: `Loads every document in the corpus directory, embeds its chunks, makes sure
the index is created and deployed, upserts the vectors and updates the catalog.
Prints the result as JSON. Exits 1 when the run fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if docsDir == "" {
				docsDir = c.DocsDir
			}

			stack, err := app.BuildStack(cmd.Context(), c)
			if err != nil {
				return writeFailure(out, "config", err)
			}
			defer stack.Close()

			res, err := stack.Pipeline.Run(cmd.Context(), docsDir)
			if err != nil {
				stage := ""
				var se *ingest.StageError
				if errors.As(err, &se) {
					stage = string(se.Stage)
				}
				return writeFailure(out, stage, err)
			}
			return writeJSON(out, res)
		},
	}
	cmd.Flags().StringVar(&docsDir, "docs-dir", "", "corpus directory (defaults to DOCS_DIR)")
	return cmd
}

func newSearchCmd(out io.Writer, cfg **config.Config) *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Return the nearest catalog passages for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := app.BuildStack(cmd.Context(), *cfg)
			if err != nil {
				return writeFailure(out, "config", err)
			}
			defer stack.Close()

			results, err := stack.Search.SearchTopK(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return writeFailure(out, "", err)
			}
			return writeJSON(out, results)
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of results (defaults to TOP_K)")
	return cmd
}

func newReindexHandler(stack *app.Stack, jobs *job.Service, cfg *config.Config) *worker.ReindexConsumer {
	return worker.NewReindexConsumer(stack.Pipeline, jobs, cfg.DocsDir, cfg.OperationTimeout)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeFailure(out io.Writer, stage string, err error) error {
	if werr := writeJSON(out, failure{OK: false, Stage: stage, Error: err.Error()}); werr != nil {
		return werr
	}
	return &exitError{code: 1}
}
