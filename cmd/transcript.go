package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/uxagent/api/schemas"
	"github.com/xkilldash9x/uxagent/internal/observability"
	"github.com/xkilldash9x/uxagent/internal/transcript"
)

func newTranscriptCmd() *cobra.Command {
	var (
		follow   bool
		importDB bool
		runID    string
	)

	transcriptCmd := &cobra.Command{
		Use:   "transcript [path]",
		Short: "Print, follow or import a run transcript",
		Long: `Print a JSONL transcript written by "run". With --follow, keep printing
entries as they are appended. With --import, load the file into the configured
PostgreSQL database. With --run-id, read one run back from the database instead
of a file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			out := cmd.OutOrStdout()

			path := cfg.Transcript().Path
			if len(args) == 1 {
				path = args[0]
			}

			if runID != "" || importDB {
				db, err := connectStore(ctx, cfg.Transcript().Postgres.URL, logger)
				if err != nil {
					return fmt.Errorf("failed to connect transcript database: %w", err)
				}
				defer db.Close()

				if runID != "" {
					entries, err := db.ListRun(ctx, runID)
					if err != nil {
						return err
					}
					printEntries(out, entries)
					return nil
				}

				entries, err := transcript.ReadFile(path)
				if err != nil {
					return err
				}
				if err := db.EnsureSchema(ctx); err != nil {
					return err
				}
				n, err := db.Import(ctx, entries)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Imported %d entries from %s\n", n, path)
				return nil
			}

			if path == "" {
				return errors.New("no transcript path given and transcript.path is empty")
			}
			if follow {
				return transcript.Follow(ctx, path,
					func(e schemas.TranscriptEntry) error {
						_, err := fmt.Fprintln(out, transcript.Format(e))
						return err
					},
					func(line string, err error) {
						logger.Warn("Skipping malformed transcript line.", zap.String("line", line), zap.Error(err))
					})
			}
			entries, err := transcript.ReadFile(path)
			if err != nil {
				return err
			}
			printEntries(out, entries)
			return nil
		},
	}
	transcriptCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing entries as they are appended")
	transcriptCmd.Flags().BoolVar(&importDB, "import", false, "load the file into the transcript database")
	transcriptCmd.Flags().StringVar(&runID, "run-id", "", "read one run from the transcript database")
	transcriptCmd.MarkFlagsMutuallyExclusive("follow", "import", "run-id")
	return transcriptCmd
}

func printEntries(w io.Writer, entries []schemas.TranscriptEntry) {
	for _, e := range entries {
		fmt.Fprintln(w, transcript.Format(e))
	}
}

func renderNode(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}
