// Package integrator runs the central correlation pipeline: fan-out to
// registered sensor modules, severity/confidence escalation, evasion
// scoring, knowledge enrichment, risk scoring, verdict assignment, bounded
// history bookkeeping, and subscriber dispatch.
package integrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/perimeterwatch/sigcor/internal/aggregate"
	"github.com/perimeterwatch/sigcor/internal/analytics"
	"github.com/perimeterwatch/sigcor/internal/evasion"
	"github.com/perimeterwatch/sigcor/internal/metrics"
	"github.com/perimeterwatch/sigcor/internal/sensor"
	"github.com/perimeterwatch/sigcor/internal/signal"
	"github.com/perimeterwatch/sigcor/internal/threatctx"
)

const (
	// SignalHistoryCap bounds the per-source signal history.
	SignalHistoryCap = 200
	// ResultHistoryCap bounds the global aggregated-result history.
	ResultHistoryCap = 1000
	// AnalyticsWindow is the trailing result window used for rolling averages.
	AnalyticsWindow = 50

	blockThreshold       = 0.85
	investigateThreshold = 0.60

	fallbackRationale = "modules emitted actions without rationale"
)

// Subscriber receives every aggregated result after assembly. Panics inside
// a subscriber are caught and logged, never propagated.
type Subscriber func(*signal.Result)

// Options configures an Integrator. Nil collaborators get defaults.
type Options struct {
	Detector       *evasion.Detector
	ContextBuilder *threatctx.Builder
	Aggregator     *aggregate.Aggregator
	Analyzer       *analytics.Analyzer
	Logger         *log.Logger
}

type namedModule struct {
	name   string
	module sensor.Module
}

// Integrator owns the module registry, the bounded histories, and the
// subscriber list. Shared state is guarded by a mutex so a single instance
// can be driven from concurrent sensor feeds.
type Integrator struct {
	mu            sync.RWMutex
	modules       []namedModule
	moduleIndex   map[string]struct{}
	signalHistory map[string][]*signal.Signal
	resultHistory []*signal.Result
	subscribers   []Subscriber

	detector       *evasion.Detector
	contextBuilder *threatctx.Builder
	aggregator     *aggregate.Aggregator
	analyzer       *analytics.Analyzer
	logger         *log.Logger
}

// New creates an integrator with the given options.
func New(opts Options) *Integrator {
	if opts.Detector == nil {
		opts.Detector = evasion.NewDetector()
	}
	if opts.ContextBuilder == nil {
		opts.ContextBuilder, _ = threatctx.NewBuilder("", nil)
	}
	if opts.Aggregator == nil {
		opts.Aggregator = aggregate.NewAggregator(0)
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analytics.NewAnalyzer()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(os.Stderr, "[Integrator] ", log.LstdFlags)
	}
	metrics.InitMetrics()
	return &Integrator{
		moduleIndex:    make(map[string]struct{}),
		signalHistory:  make(map[string][]*signal.Signal),
		detector:       opts.Detector,
		contextBuilder: opts.ContextBuilder,
		aggregator:     opts.Aggregator,
		analyzer:       opts.Analyzer,
		logger:         opts.Logger,
	}
}

// Register adds a sensor module under a unique name. Modules run in
// registration order during processing.
func (in *Integrator) Register(name string, m sensor.Module) error {
	if name == "" {
		return fmt.Errorf("module name must not be empty")
	}
	if m == nil {
		return fmt.Errorf("module %q must not be nil", name)
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if _, exists := in.moduleIndex[name]; exists {
		return fmt.Errorf("module already registered: %s", name)
	}
	in.moduleIndex[name] = struct{}{}
	in.modules = append(in.modules, namedModule{name: name, module: m})
	in.logger.Printf("Registered module: %s", name)
	return nil
}

// List returns the registered module names, sorted.
func (in *Integrator) List() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()

	names := make([]string, 0, len(in.modules))
	for _, nm := range in.modules {
		names = append(names, nm.name)
	}
	sort.Strings(names)
	return names
}

// Subscribe adds a callback invoked with every aggregated result.
func (in *Integrator) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.subscribers = append(in.subscribers, fn)
}

// ProcessSignal runs the full pipeline for one signal. It returns nil when
// no registered module contributed an action ("no opinion"). Module failures
// and subscriber failures are isolated and logged, never propagated.
func (in *Integrator) ProcessSignal(ctx context.Context, sig *signal.Signal) *signal.Result {
	if sig == nil || sig.Event == nil {
		return nil
	}
	source := sig.Event.Source
	metrics.SignalsProcessed.WithLabelValues(source).Inc()

	in.mu.Lock()

	// Record the incoming signal before any module sees it.
	history := append(in.signalHistory[source], sig.Clone())
	if len(history) > SignalHistoryCap {
		history = history[len(history)-SignalHistoryCap:]
	}
	in.signalHistory[source] = history
	in.aggregator.Record(sig.Event)

	var (
		actions     []signal.Action
		rationales  []string
		contexts    []map[string]interface{}
		maxSeverity = sig.Severity.Score()
		maxConf     = sig.Confidence
	)

	for _, nm := range in.modules {
		metrics.ModuleInvocations.WithLabelValues(nm.name).Inc()
		clone := sig.Clone()
		res, err := in.invoke(ctx, nm.module, clone)
		if err != nil {
			metrics.ModuleFailures.WithLabelValues(nm.name).Inc()
			in.logger.Printf("Module %s failed, skipping: %v", nm.name, err)
			continue
		}
		if res == nil || len(res.Actions) == 0 {
			continue
		}

		actions = append(actions, res.Actions...)
		if res.Rationale != "" {
			rationales = append(rationales, fmt.Sprintf("%s: %s", nm.name, res.Rationale))
		}
		if score := clone.Severity.Score(); score > maxSeverity {
			maxSeverity = score
		}
		if clone.Confidence > maxConf {
			maxConf = clone.Confidence
		}
		// Tags applied by the module land on the shared event and are
		// already visible to every holder of the signal.
		if enrichment := in.contextBuilder.BuildContext(clone); len(enrichment) > 0 {
			contexts = append(contexts, enrichment)
		}
	}

	if len(actions) == 0 {
		in.mu.Unlock()
		return nil
	}

	// Aggregate severity and confidence back onto a fresh clone.
	aggregated := sig.Clone()
	aggregated.Severity = signal.SeverityFromScore(maxSeverity)
	aggregated.Confidence = maxConf

	combined := threatctx.MergeContexts(contexts)
	analyticsMap, _ := combined["analytics"].(map[string]interface{})
	if analyticsMap == nil {
		analyticsMap = make(map[string]interface{})
		combined["analytics"] = analyticsMap
	}

	evasionScore := in.detector.Score(aggregated)
	if evasionScore > 0 {
		analyticsMap["evasion_score"] = signal.Round3(evasionScore)
	}

	knowledgeRisk := threatctx.KnowledgeRisk(combined)
	severityScore := aggregated.Severity.Score()

	risk := severityScore
	if knowledgeRisk > risk {
		risk = knowledgeRisk
	}
	risk += evasionScore * 0.25
	if risk > 1.0 {
		risk = 1.0
	}

	verdict := signal.VerdictMonitor
	switch {
	case risk >= blockThreshold:
		verdict = signal.VerdictBlock
	case risk >= investigateThreshold:
		verdict = signal.VerdictInvestigate
	}

	rationale := fallbackRationale
	if len(rationales) > 0 {
		rationale = strings.Join(rationales, " | ")
	}

	result := &signal.Result{
		Signal:    aggregated,
		Actions:   actions,
		Verdict:   verdict,
		Rationale: rationale,
		RiskScore: risk,
		Context:   combined,
	}

	in.resultHistory = append(in.resultHistory, result)
	if len(in.resultHistory) > ResultHistoryCap {
		in.resultHistory = in.resultHistory[len(in.resultHistory)-ResultHistoryCap:]
	}
	metrics.ResultHistoryDepth.Set(float64(len(in.resultHistory)))
	metrics.VerdictsEmitted.WithLabelValues(verdict).Inc()

	// Trailing-window analytics over the most recent results, including the
	// one just appended. The window is global, not per-source.
	window := in.resultHistory
	if len(window) > AnalyticsWindow {
		window = window[len(window)-AnalyticsWindow:]
	}
	report := in.analyzer.BuildReport(window)
	analyticsMap["average_risk_window"] = signal.Round3(report.AverageRisk)
	analyticsMap["average_confidence_window"] = signal.Round3(report.AverageConfidence)

	subscribers := make([]Subscriber, len(in.subscribers))
	copy(subscribers, in.subscribers)
	in.mu.Unlock()

	for _, fn := range subscribers {
		in.dispatch(fn, result)
	}
	return result
}

// ProcessBatch applies ProcessSignal sequentially, collecting only the
// signals that produced a result, in input order.
func (in *Integrator) ProcessBatch(ctx context.Context, signals []*signal.Signal) []*signal.Result {
	var results []*signal.Result
	for _, sig := range signals {
		if res := in.ProcessSignal(ctx, sig); res != nil {
			results = append(results, res)
		}
	}
	return results
}

// RecentSignals returns up to limit of the most recent signals seen for a
// source. A non-positive limit yields an empty slice.
func (in *Integrator) RecentSignals(source string, limit int) []*signal.Signal {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if limit <= 0 {
		return []*signal.Signal{}
	}
	history := in.signalHistory[source]
	if limit > len(history) {
		limit = len(history)
	}
	out := make([]*signal.Signal, limit)
	copy(out, history[len(history)-limit:])
	return out
}

// RecentResults returns up to limit of the most recent aggregated results.
// A non-positive limit yields an empty slice.
func (in *Integrator) RecentResults(limit int) []*signal.Result {
	in.mu.RLock()
	defer in.mu.RUnlock()

	if limit <= 0 {
		return []*signal.Result{}
	}
	if limit > len(in.resultHistory) {
		limit = len(in.resultHistory)
	}
	out := make([]*signal.Result, limit)
	copy(out, in.resultHistory[len(in.resultHistory)-limit:])
	return out
}

// invoke runs one module against its clone, converting panics into errors so
// a misbehaving module can never abort the pipeline.
func (in *Integrator) invoke(ctx context.Context, m sensor.Module, clone *signal.Signal) (res *signal.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("module panicked: %v", r)
		}
	}()
	return m.Handle(ctx, clone)
}

// dispatch invokes one subscriber, isolating panics.
func (in *Integrator) dispatch(fn Subscriber, result *signal.Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberFailures.Inc()
			in.logger.Printf("Subscriber failed: %v", r)
		}
	}()
	fn(result)
}
