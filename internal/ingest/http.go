package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPOptions controls the HTTP ingestion server behavior.
type HTTPOptions struct {
	// Bind address, e.g. "127.0.0.1:8081"
	Bind string
	// Token for Authorization: Bearer <token> header. Empty disables auth.
	Token string
	// MaxBodyBytes caps request body size; defaults to 10 MiB.
	MaxBodyBytes int64
	// Logger for minimal logs (optional)
	Logger *log.Logger
}

// HTTPServer accepts POST /events with JSON/JSONL raw event payloads and
// serves prometheus metrics on /metrics.
type HTTPServer struct {
	srv     *http.Server
	parser  *Parser
	handler EventHandler
	opts    HTTPOptions
	logger  *log.Logger
}

// NewHTTPServer constructs the ingestion server.
func NewHTTPServer(parser *Parser, handler EventHandler, opts HTTPOptions) *HTTPServer {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest-http] ", log.LstdFlags)
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}

	s := &HTTPServer{
		parser:  parser,
		handler: handler,
		opts:    opts,
		logger:  opts.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              opts.Bind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Serve runs the server until the context is cancelled.
func (s *HTTPServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP ingest listening on %s", s.opts.Bind)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	events, skipped, err := s.parser.ReadEvents(body, true)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to parse events: %v", err), http.StatusBadRequest)
		return
	}

	for _, ev := range events {
		s.handler(r.Context(), ev)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{
		"accepted": len(events),
		"skipped":  skipped,
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func (s *HTTPServer) authorized(r *http.Request) bool {
	if s.opts.Token == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ") == s.opts.Token
}
