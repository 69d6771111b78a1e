package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/agent"
	"github.com/xkilldash9x/uxagent/internal/browser/session"
	"github.com/xkilldash9x/uxagent/internal/config"
	"github.com/xkilldash9x/uxagent/internal/llmclient"
	"github.com/xkilldash9x/uxagent/internal/observability"
	"github.com/xkilldash9x/uxagent/internal/store"
	"github.com/xkilldash9x/uxagent/internal/transcript"
)

const closeTimeout = 10 * time.Second

// Function variables for dependency injection in tests.
var (
	openDocument = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (schemas.Document, error) {
		s, err := session.Open(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	newLLMClient   = llmclient.NewClient
	connectStore   = connectPostgres
	newArtifactDir = func(dir string) (agent.ObservationArchive, error) {
		w, err := transcript.NewArtifactWriter(dir)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
)

// transcriptStore is the part of store.Store the CLI uses.
type transcriptStore interface {
	schemas.Recorder
	EnsureSchema(ctx context.Context) error
	Import(ctx context.Context, entries []schemas.TranscriptEntry) (int64, error)
	ListRun(ctx context.Context, runID string) ([]schemas.TranscriptEntry, error)
}

func connectPostgres(ctx context.Context, url string, logger *zap.Logger) (transcriptStore, error) {
	s, err := store.Connect(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newRunCmd() *cobra.Command {
	var goal string

	runCmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Open url and let the agent work toward --goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			res, err := runAgent(cmd.Context(), cfg, args[0], goal, observability.GetLogger())
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
	runCmd.Flags().StringVarP(&goal, "goal", "g", "", "what the agent should accomplish (required)")
	_ = runCmd.MarkFlagRequired("goal")

	runCmd.Flags().Int("max-steps", 0, "override agent.max_steps")
	annotateFlag(runCmd.Flags(), "max-steps", "agent.max_steps")
	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	annotateFlag(runCmd.Flags(), "headless", "browser.headless")
	runCmd.Flags().String("transcript", "", "override transcript.path")
	annotateFlag(runCmd.Flags(), "transcript", "transcript.path")
	runCmd.Flags().String("screenshot", "", "override agent.screenshot_path")
	annotateFlag(runCmd.Flags(), "screenshot", "agent.screenshot_path")
	runCmd.Flags().Bool("save-artifacts", false, "write per-step observation artifacts")
	annotateFlag(runCmd.Flags(), "save-artifacts", "observe.save_artifacts")
	return runCmd
}

// runAgent wires the browser, the oracle, the recorders and the loop, and
// runs one goal against startURL.
func runAgent(ctx context.Context, cfg config.Interface, startURL, goal string, logger *zap.Logger) (*agent.RunResult, error) {
	agentCfg := cfg.Agent()

	client, err := newLLMClient(agentCfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close()

	recorder, err := buildRecorder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("Failed to close transcript recorder.", zap.Error(err))
		}
	}()

	options := []agent.Option{agent.WithRecorder(recorder)}
	if obs := cfg.Observe(); obs.SaveArtifacts {
		archive, err := newArtifactDir(obs.ArtifactsDir)
		if err != nil {
			return nil, err
		}
		options = append(options, agent.WithArchive(archive))
	}

	doc, err := openDocument(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(session.Detach(ctx), closeTimeout)
		defer cancel()
		if err := doc.Close(closeCtx); err != nil {
			logger.Warn("Failed to close browser.", zap.Error(err))
		}
	}()

	loadTimeout := cfg.Browser().LoadTimeout
	if err := doc.Navigate(ctx, startURL); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", startURL, err)
	}

	executor := agent.NewExecutor(logger, cfg.Observe().ResolverOptions(), loadTimeout)
	oracle := agent.NewLLMOracle(client, agentCfg.LLM, logger)
	loop := agent.New(doc, oracle, executor, agent.Options{
		MaxSteps:       agentCfg.MaxSteps,
		PostActionWait: agentCfg.PostActionWait,
		ObserveRetry:   agentCfg.ObserveRetry,
		LoadTimeout:    loadTimeout,
		ScreenshotPath: agentCfg.ScreenshotPath,
		Compile:        cfg.Observe().CompileOptions(),
	}, logger, options...)

	return loop.Run(ctx, goal)
}

// buildRecorder combines the JSONL file and, when enabled, the database sink.
func buildRecorder(ctx context.Context, cfg config.Interface, logger *zap.Logger) (schemas.Recorder, error) {
	tc := cfg.Transcript()
	var recorders transcript.MultiRecorder

	if tc.Path != "" {
		file, err := transcript.NewFileRecorder(tc.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Writing transcript.", zap.String("path", file.Path()))
		recorders = append(recorders, file)
	}
	if tc.Postgres.Enabled {
		db, err := connectStore(ctx, tc.Postgres.URL, logger)
		if err != nil {
			_ = recorders.Close()
			return nil, fmt.Errorf("failed to connect transcript database: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			_ = recorders.Close()
			_ = db.Close()
			return nil, err
		}
		recorders = append(recorders, db)
	}
	return recorders, nil
}

func printResult(w io.Writer, res *agent.RunResult) {
	fmt.Fprintf(w, "Run:    %s\n", res.RunID)
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	fmt.Fprintf(w, "Steps:  %d\n", res.Steps)
	if res.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", res.Reason)
	}
}
