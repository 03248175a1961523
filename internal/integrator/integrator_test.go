package integrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeterwatch/sigcor/internal/sensor"
	"github.com/perimeterwatch/sigcor/internal/signal"
)

// fixedModule always votes with a single action.
type fixedModule struct {
	action    signal.Action
	rationale string
}

func (m *fixedModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	return &signal.Result{
		Signal:    sig,
		Actions:   []signal.Action{m.action},
		Verdict:   signal.VerdictMonitor,
		Rationale: m.rationale,
	}, nil
}

// abstainModule never votes.
type abstainModule struct{}

func (m *abstainModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	return nil, nil
}

// failingModule always errors.
type failingModule struct{}

func (m *failingModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	return nil, errors.New("sensor offline")
}

// panickyModule panics on every call.
type panickyModule struct{}

func (m *panickyModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	panic("boom")
}

func newTestIntegrator(t *testing.T) *Integrator {
	t.Helper()
	return New(Options{})
}

func wafSignal(severity string) *signal.Signal {
	return signal.NewSignal(signal.NewEvent("waf", map[string]interface{}{
		"status": "blocked",
		"reason": "sql_injection",
	}), severity, 0.5)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("waf", &abstainModule{}))
	assert.Error(t, in.Register("waf", &abstainModule{}))
	assert.Error(t, in.Register("", &abstainModule{}))
	assert.Error(t, in.Register("nil-module", nil))

	require.NoError(t, in.Register("ids", &abstainModule{}))
	assert.Equal(t, []string{"ids", "waf"}, in.List())
}

func TestProcessSignalWAFBlockPipeline(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("waf", sensor.NewWAFModule([]string{"sql_injection"})))

	res := in.ProcessSignal(context.Background(), wafSignal("medium"))
	require.NotNil(t, res)

	// Blocklisted reason escalated to high; severity score 0.75 drives risk
	assert.Equal(t, signal.SeverityHigh, res.Signal.Severity)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "waf_block", res.Actions[0].Name)
	assert.InDelta(t, 0.75, res.RiskScore, 1e-9)
	assert.Equal(t, signal.VerdictInvestigate, res.Verdict)
	assert.Contains(t, res.Rationale, "waf: ")
	assert.Empty(t, res.Signal.Event.Tags)

	// Trailing-window analytics are always stamped onto the result
	analytics := res.Context["analytics"].(map[string]interface{})
	assert.Equal(t, 0.75, analytics["average_risk_window"])
	assert.Equal(t, 0.5, analytics["average_confidence_window"])
}

func TestNoOpinionSuppression(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("quiet", &abstainModule{}))

	sig := signal.NewSignal(signal.NewEvent("waf", nil), "info", 0.5)
	res := in.ProcessSignal(context.Background(), sig)
	assert.Nil(t, res, "signal nobody reacted to must yield no result")

	// Per-source signal history still grew, result history did not
	assert.Len(t, in.RecentSignals("waf", 10), 1)
	assert.Empty(t, in.RecentResults(10))
}

func TestNoModulesRegistered(t *testing.T) {
	in := newTestIntegrator(t)
	res := in.ProcessSignal(context.Background(), wafSignal("low"))
	assert.Nil(t, res)
}

func TestBoundedSignalHistory(t *testing.T) {
	in := newTestIntegrator(t)
	for i := 0; i < SignalHistoryCap+50; i++ {
		ev := signal.NewEvent("waf", map[string]interface{}{"seq": i})
		in.ProcessSignal(context.Background(), signal.NewSignal(ev, "info", 0.5))
	}

	recent := in.RecentSignals("waf", 1000)
	require.Len(t, recent, SignalHistoryCap)
	// Entries are the most recent ones: the oldest surviving seq is 50
	first := recent[0].Event.Payload["seq"].(int)
	assert.Equal(t, 50, first)
	last := recent[len(recent)-1].Event.Payload["seq"].(int)
	assert.Equal(t, SignalHistoryCap+49, last)
}

func TestRecentLimits(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("fixed", &fixedModule{
		action:    signal.NewAction("noop", "fixed vote", nil),
		rationale: "always votes",
	}))
	for i := 0; i < 5; i++ {
		in.ProcessSignal(context.Background(), wafSignal("info"))
	}

	assert.Empty(t, in.RecentSignals("waf", 0))
	assert.Empty(t, in.RecentResults(-1))
	assert.Len(t, in.RecentSignals("waf", 3), 3)
	assert.Len(t, in.RecentResults(2), 2)
	assert.Len(t, in.RecentResults(100), 5)
}

func TestModuleFaultIsolation(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("broken", &failingModule{}))
	require.NoError(t, in.Register("panicky", &panickyModule{}))
	require.NoError(t, in.Register("fixed", &fixedModule{
		action:    signal.NewAction("steady", "well-behaved vote", nil),
		rationale: "steady state",
	}))

	res := in.ProcessSignal(context.Background(), wafSignal("low"))
	require.NotNil(t, res, "failing modules must not suppress the healthy one")
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "steady", res.Actions[0].Name)
	assert.Equal(t, "fixed: steady state", res.Rationale)
}

func TestFallbackRationale(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("mute", &fixedModule{
		action: signal.NewAction("silent", "vote without rationale", nil),
	}))

	res := in.ProcessSignal(context.Background(), wafSignal("info"))
	require.NotNil(t, res)
	assert.Equal(t, fallbackRationale, res.Rationale)
}

func TestSubscriberFaultIsolation(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("fixed", &fixedModule{
		action:    signal.NewAction("noop", "vote", nil),
		rationale: "vote",
	}))

	var received []*signal.Result
	in.Subscribe(func(res *signal.Result) { panic("subscriber bug") })
	in.Subscribe(func(res *signal.Result) { received = append(received, res) })

	res := in.ProcessSignal(context.Background(), wafSignal("info"))
	require.NotNil(t, res)
	require.Len(t, received, 1, "a panicking subscriber must not block later ones")
	assert.Same(t, res, received[0])
}

func TestProcessBatchPreservesOrder(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("ids", sensor.NewIDSModule()))

	var sigs []*signal.Signal
	for i := 0; i < 3; i++ {
		sigs = append(sigs, signal.NewSignal(signal.NewEvent("ids", map[string]interface{}{
			"alert": map[string]interface{}{"severity": "high", "signature_id": fmt.Sprintf("SIG-%d", i)},
		}), "info", 0.5))
	}
	// A signal nobody reacts to is dropped from the batch output
	sigs = append(sigs, signal.NewSignal(signal.NewEvent("ids", nil), "info", 0.5))

	results := in.ProcessBatch(context.Background(), sigs)
	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("SIG-%d", i), res.Actions[0].Metadata["signature"])
	}
}

func TestRiskClamped(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("ids", sensor.NewIDSModule()))

	// Critical alert plus heavy evasion signals: risk must stay within [0,1]
	ev := signal.NewEvent("ids", map[string]interface{}{
		"alert":     map[string]interface{}{"severity": "critical"},
		"headers":   map[string]interface{}{"X-Forwarded-For": "1.2.3.4"},
		"anomalies": []interface{}{"double encoded", "bypass attempt", "obfuscated body"},
	})
	res := in.ProcessSignal(context.Background(), signal.NewSignal(ev, "info", 1.0))
	require.NotNil(t, res)
	assert.Equal(t, 1.0, res.RiskScore)
	assert.Equal(t, signal.VerdictBlock, res.Verdict)

	analytics := res.Context["analytics"].(map[string]interface{})
	assert.Equal(t, 1.0, analytics["evasion_score"])
}

func TestCloneProtectsCallerSignal(t *testing.T) {
	in := newTestIntegrator(t)
	require.NoError(t, in.Register("ids", sensor.NewIDSModule()))

	sig := signal.NewSignal(signal.NewEvent("ids", map[string]interface{}{
		"alert": map[string]interface{}{"severity": "critical"},
	}), "info", 0.5)

	res := in.ProcessSignal(context.Background(), sig)
	require.NotNil(t, res)
	assert.Equal(t, signal.SeverityCritical, res.Signal.Severity)
	// The caller's signal keeps its own severity; only the event is shared
	assert.Equal(t, signal.SeverityInfo, sig.Severity)
}
