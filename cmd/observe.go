package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uxagent/internal/browser/dom"
	"github.com/xkilldash9x/uxagent/internal/browser/session"
	"github.com/xkilldash9x/uxagent/internal/config"
	"github.com/xkilldash9x/uxagent/internal/observability"
)

func newObserveCmd() *cobra.Command {
	observeCmd := &cobra.Command{
		Use:   "observe <url>",
		Short: "Print the observation the agent would see for url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			obs, err := observeOnce(cmd.Context(), cfg, args[0], observability.GetLogger())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), obs.Text)
			return nil
		},
	}
	observeCmd.Flags().Int("max-chars", 0, "override observe.max_chars")
	annotateFlag(observeCmd.Flags(), "max-chars", "observe.max_chars")
	observeCmd.Flags().Int("max-depth", 0, "override observe.max_depth")
	annotateFlag(observeCmd.Flags(), "max-depth", "observe.max_depth")
	observeCmd.Flags().Bool("save-artifacts", false, "also write the raw, clean and summary captures")
	annotateFlag(observeCmd.Flags(), "save-artifacts", "observe.save_artifacts")
	return observeCmd
}

// observeOnce loads url and compiles a single observation.
func observeOnce(ctx context.Context, cfg config.Interface, url string, logger *zap.Logger) (*dom.Observation, error) {
	doc, err := openDocument(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(session.Detach(ctx), closeTimeout)
		defer cancel()
		_ = doc.Close(closeCtx)
	}()

	if err := doc.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}
	if err := doc.WaitLoad(ctx, cfg.Browser().LoadTimeout); err != nil {
		logger.Warn("Page did not finish loading; observing anyway.", zap.Error(err))
	}
	tree, err := doc.RenderedTree(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}

	var raw string
	observeCfg := cfg.Observe()
	if observeCfg.SaveArtifacts {
		raw = renderNode(tree)
	}
	obs := dom.Compile(tree, observeCfg.CompileOptions())

	if observeCfg.SaveArtifacts {
		archive, err := newArtifactDir(observeCfg.ArtifactsDir)
		if err != nil {
			return nil, err
		}
		path, err := archive.SaveObservation(0, raw, renderNode(tree), obs.Text)
		if err != nil {
			return nil, err
		}
		logger.Info("Observation saved.", zap.String("summary", path))
	}
	return obs, nil
}
