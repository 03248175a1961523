package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// EventHandler receives each parsed event from an ingestion surface.
type EventHandler func(ctx context.Context, ev *signal.Event)

// FolderOptions controls folder ingestion behavior.
type FolderOptions struct {
	Dir      string
	Watch    bool
	Patterns []string // e.g. []string{"*.jsonl", "*.json"}
	Logger   *log.Logger
}

// FolderIngestor ingests raw events from a directory, either one-shot or in
// watch mode via fsnotify.
type FolderIngestor struct {
	parser  *Parser
	handler EventHandler
	opts    FolderOptions

	mu        sync.Mutex
	processed map[string]int64 // byte offset already handled per file

	ingested int
	errors   int
}

// NewFolderIngestor constructs a folder ingestor.
func NewFolderIngestor(parser *Parser, handler EventHandler, opts FolderOptions) *FolderIngestor {
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ingest-folder] ", log.LstdFlags)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = []string{"*.jsonl", "*.json"}
	}
	return &FolderIngestor{
		parser:    parser,
		handler:   handler,
		opts:      opts,
		processed: make(map[string]int64),
	}
}

// Run executes the ingestion per options (one-shot or watch).
func (fi *FolderIngestor) Run(ctx context.Context) error {
	if _, err := os.Stat(fi.opts.Dir); err != nil {
		return fmt.Errorf("ingest directory %s: %w", fi.opts.Dir, err)
	}

	if err := fi.sweep(ctx); err != nil {
		return err
	}
	if !fi.opts.Watch {
		fi.opts.Logger.Printf("Ingested %d events (%d errors)", fi.ingested, fi.errors)
		return nil
	}
	return fi.watch(ctx)
}

// Stats returns the ingested and error counters.
func (fi *FolderIngestor) Stats() (ingested, errors int) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.ingested, fi.errors
}

// sweep processes every matching file currently in the directory.
func (fi *FolderIngestor) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(fi.opts.Dir)
	if err != nil {
		return fmt.Errorf("failed to list ingest directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(fi.opts.Dir, entry.Name())
		if fi.matches(entry.Name()) {
			fi.processFile(ctx, path)
		}
	}
	return nil
}

// watch blocks on fsnotify events until the context is cancelled.
func (fi *FolderIngestor) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(fi.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", fi.opts.Dir, err)
	}
	fi.opts.Logger.Printf("Watching %s for new events", fi.opts.Dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if fi.matches(filepath.Base(event.Name)) {
				fi.processFile(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fi.opts.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// processFile parses any unseen bytes of the file and hands events to the
// handler. Parse failures are logged and counted, never fatal to the run.
func (fi *FolderIngestor) processFile(ctx context.Context, path string) {
	fi.mu.Lock()
	offset := fi.processed[path]
	fi.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		fi.opts.Logger.Printf("Failed to open %s: %v", path, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() <= offset {
		return
	}
	if _, err := f.Seek(offset, 0); err != nil {
		fi.opts.Logger.Printf("Failed to seek %s: %v", path, err)
		return
	}

	events, skipped, err := fi.parser.ReadEvents(f, true)
	if err != nil {
		fi.opts.Logger.Printf("Failed to parse %s: %v", path, err)
		fi.mu.Lock()
		fi.errors++
		fi.mu.Unlock()
		return
	}

	for _, ev := range events {
		fi.handler(ctx, ev)
	}

	fi.mu.Lock()
	fi.processed[path] = info.Size()
	fi.ingested += len(events)
	fi.errors += skipped
	fi.mu.Unlock()

	if len(events) > 0 || skipped > 0 {
		fi.opts.Logger.Printf("Processed %s: %d events, %d skipped", filepath.Base(path), len(events), skipped)
	}
}

func (fi *FolderIngestor) matches(name string) bool {
	for _, pattern := range fi.opts.Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
