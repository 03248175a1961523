package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/perimeterwatch/sigcor/internal/ingest"
	"github.com/perimeterwatch/sigcor/internal/signal"
)

var (
	watchDir  string
	watchOnce bool
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest raw events from a folder, continuously or one-shot",
	Long: `Watch a directory for JSON/JSONL files of raw sensor events and run
each event through the correlation pipeline as files appear or grow.

Examples:
  # Watch a drop folder until interrupted
  sigcor watch --dir ./drops

  # Process the folder contents once and exit
  sigcor watch --dir ./drops --once`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDir, "dir", "./drops", "Directory to ingest from")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Process existing files once instead of watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newCommandLogger("[watch] ")

	orch, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := func(ctx context.Context, ev *signal.Event) {
		if res := orch.ProcessEvent(ctx, ev, nil); res != nil {
			logger.Printf("Result source=%s verdict=%s risk=%.3f", ev.Source, res.Verdict, res.RiskScore)
		}
	}

	ingestor := ingest.NewFolderIngestor(ingest.NewParser(), handler, ingest.FolderOptions{
		Dir:    watchDir,
		Watch:  !watchOnce,
		Logger: logger,
	})

	err = ingestor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
