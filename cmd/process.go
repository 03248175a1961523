package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/perimeterwatch/sigcor/internal/ingest"
	"github.com/perimeterwatch/sigcor/internal/orchestrator"
)

var (
	processSeverity   string
	processConfidence float64
	skipInvalid       bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Process raw events from file or stdin",
	Long: `Process raw sensor events from a file or stdin. Supports JSON and JSONL.

Each event is wrapped in a signal using the configured default severity and
confidence, run through the full correlation pipeline, and the aggregated
results are printed as JSON, one per line.

Examples:
  # Process from file
  sigcor process events.jsonl

  # Process from stdin
  cat events.json | sigcor process -

  # Override the default severity for this batch
  sigcor process --severity medium --confidence 0.8 events.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processSeverity, "severity", "", "Severity override for this batch")
	processCmd.Flags().Float64Var(&processConfidence, "confidence", -1, "Confidence override for this batch (0..1)")
	processCmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip invalid events instead of failing")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newCommandLogger("[process] ")

	var input io.Reader = os.Stdin
	inputName := "stdin"
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
		inputName = args[0]
	}

	orch, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	events, skipped, err := ingest.NewParser().ReadEvents(input, skipInvalid)
	if err != nil {
		return err
	}

	var opts *orchestrator.EventOptions
	if processSeverity != "" || processConfidence >= 0 {
		opts = &orchestrator.EventOptions{Severity: processSeverity}
		if processConfidence >= 0 {
			conf := processConfidence
			opts.Confidence = &conf
		}
	}

	results := orch.ProcessEvents(ctx, events, opts)

	encoder := json.NewEncoder(os.Stdout)
	for _, res := range results {
		if err := encoder.Encode(res.Summary()); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	}

	logger.Printf("Processed %s: %d events, %d results, %d skipped", inputName, len(events), len(results), skipped)
	return nil
}
