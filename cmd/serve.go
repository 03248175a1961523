package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/perimeterwatch/sigcor/internal/ingest"
	"github.com/perimeterwatch/sigcor/internal/signal"
)

var (
	serveBind  string
	serveToken string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve HTTP ingestion and prometheus metrics",
	Long: `Start an HTTP server accepting raw sensor events on POST /events
(JSON or JSONL body) and exposing pipeline metrics on /metrics.

Examples:
  # Listen locally without auth
  sigcor serve --bind 127.0.0.1:8081

  # Require a bearer token
  sigcor serve --bind 0.0.0.0:8081 --token s3cret`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveBind, "bind", "127.0.0.1:8081", "HTTP bind address")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Bearer token required on /events (empty disables auth)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newCommandLogger("[serve] ")

	orch, cleanup, err := buildPipeline(logger)
	if err != nil {
		return err
	}
	defer cleanup()

	handler := func(ctx context.Context, ev *signal.Event) {
		orch.ProcessEvent(ctx, ev, nil)
	}

	server := ingest.NewHTTPServer(ingest.NewParser(), handler, ingest.HTTPOptions{
		Bind:   serveBind,
		Token:  serveToken,
		Logger: logger,
	})

	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
