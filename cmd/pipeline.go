package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/perimeterwatch/sigcor/internal/bus"
	"github.com/perimeterwatch/sigcor/internal/integrator"
	"github.com/perimeterwatch/sigcor/internal/orchestrator"
	"github.com/perimeterwatch/sigcor/internal/signal"
	"github.com/perimeterwatch/sigcor/internal/store"
	"github.com/perimeterwatch/sigcor/internal/threatctx"
)

// buildPipeline wires the full processing stack from configuration: the
// knowledge-backed integrator, the orchestrator facade, and the optional
// result bus and verdict-archive subscribers. The returned cleanup function
// closes whatever was opened.
func buildPipeline(logger *log.Logger) (*orchestrator.Orchestrator, func(), error) {
	config := GetConfig()

	builder, err := threatctx.NewBuilder(config.Knowledge.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load knowledge index: %w", err)
	}

	in := integrator.New(integrator.Options{
		ContextBuilder: builder,
		Logger:         logger,
	})

	moduleCfg, err := orchestrator.LoadConfig(config.Modules.Path)
	if err != nil {
		return nil, nil, err
	}
	orch, err := orchestrator.New(moduleCfg, in, logger)
	if err != nil {
		return nil, nil, err
	}

	var cleanups []func()

	resultBus := bus.NewBus(config.Redis.URL, logger)
	cleanups = append(cleanups, func() { resultBus.Close() })
	in.Subscribe(func(res *signal.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := bus.ResultMessage{
			ResultID:  res.Signal.Event.ID,
			Source:    res.Signal.Event.Source,
			Severity:  string(res.Signal.Severity),
			Verdict:   res.Verdict,
			RiskScore: res.RiskScore,
			Summary:   bus.MarshalSummary(res.Summary()),
		}
		if err := resultBus.PublishResult(ctx, msg); err != nil {
			logger.Printf("Failed to publish result: %v", err)
		}
	})

	if config.Database.Path != "" {
		archive, err := store.NewStore(config.Database.Path)
		if err != nil {
			for _, cleanup := range cleanups {
				cleanup()
			}
			return nil, nil, fmt.Errorf("failed to open verdict archive: %w", err)
		}
		cleanups = append(cleanups, func() { archive.Close() })
		in.Subscribe(func(res *signal.Result) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := archive.SaveResult(ctx, res); err != nil {
				logger.Printf("Failed to archive result: %v", err)
			}
		})
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return orch, cleanup, nil
}

func newCommandLogger(prefix string) *log.Logger {
	return log.New(os.Stderr, prefix, log.LstdFlags)
}
