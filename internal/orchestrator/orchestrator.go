// Package orchestrator is the config-driven facade over the integrator: it
// instantiates sensor modules from a declarative module map and exposes a
// simplified event-processing surface with defaulted severity/confidence.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/viper"

	"github.com/perimeterwatch/sigcor/internal/integrator"
	"github.com/perimeterwatch/sigcor/internal/sensor"
	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Package-level defaults, overridable per instance and per call.
const (
	DefaultSeverity   = "info"
	DefaultConfidence = 0.5
)

// Defaults carries the instance-level severity/confidence applied to events
// processed without call-site overrides.
type Defaults struct {
	Severity   string  `mapstructure:"severity"`
	Confidence float64 `mapstructure:"confidence"`
}

// ModuleConfig declares one sensor module: its factory type and the options
// passed to the factory.
type ModuleConfig struct {
	Type    string                 `mapstructure:"type"`
	Options map[string]interface{} `mapstructure:"options"`
}

// Config is the declarative orchestrator configuration.
type Config struct {
	Defaults    Defaults                `mapstructure:"defaults"`
	Integrators map[string]ModuleConfig `mapstructure:"integrators"`
}

// LoadConfig reads an orchestrator config file (YAML or JSON). A missing
// file yields an empty config, not an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("failed to read orchestrator config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode orchestrator config: %w", err)
	}
	return cfg, nil
}

// EventOptions overrides the configured defaults for a single call.
// Call-site values win over instance defaults, which win over the package
// defaults.
type EventOptions struct {
	Severity   string
	Confidence *float64
}

// Orchestrator owns an integrator populated from config.
type Orchestrator struct {
	integrator *integrator.Integrator
	defaults   Defaults
	logger     *log.Logger
}

// New builds an orchestrator from config. Module instantiation resolves each
// declared type against the sensor factory registry; an unsupported type is
// a fatal configuration error raised here, before any signal is processed.
// Modules register in sorted name order so invocation order is explicit.
func New(cfg Config, in *integrator.Integrator, logger *log.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[Orchestrator] ", log.LstdFlags)
	}
	if in == nil {
		in = integrator.New(integrator.Options{Logger: logger})
	}

	defaults := cfg.Defaults
	if defaults.Severity == "" {
		defaults.Severity = DefaultSeverity
	}
	if defaults.Confidence == 0 {
		defaults.Confidence = DefaultConfidence
	}

	names := make([]string, 0, len(cfg.Integrators))
	for name := range cfg.Integrators {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mc := cfg.Integrators[name]
		module, err := sensor.Build(mc.Type, mc.Options)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		if err := in.Register(name, module); err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		logger.Printf("Configured module %s (type=%s)", name, mc.Type)
	}

	return &Orchestrator{integrator: in, defaults: defaults, logger: logger}, nil
}

// Integrator exposes the owned integrator for subscriptions and
// introspection.
func (o *Orchestrator) Integrator() *integrator.Integrator {
	return o.integrator
}

// ProcessEvent wraps a raw event in a signal using the defaulted severity
// and confidence, then runs it through the pipeline. A nil opts uses the
// instance defaults.
func (o *Orchestrator) ProcessEvent(ctx context.Context, ev *signal.Event, opts *EventOptions) *signal.Result {
	if ev == nil {
		return nil
	}
	severity := o.defaults.Severity
	confidence := o.defaults.Confidence
	if opts != nil {
		if opts.Severity != "" {
			severity = opts.Severity
		}
		if opts.Confidence != nil {
			confidence = *opts.Confidence
		}
	}
	return o.integrator.ProcessSignal(ctx, signal.NewSignal(ev, severity, confidence))
}

// ProcessEvents applies ProcessEvent sequentially, collecting only events
// that produced a result, in input order.
func (o *Orchestrator) ProcessEvents(ctx context.Context, events []*signal.Event, opts *EventOptions) []*signal.Result {
	var results []*signal.Result
	for _, ev := range events {
		if res := o.ProcessEvent(ctx, ev, opts); res != nil {
			results = append(results, res)
		}
	}
	return results
}
