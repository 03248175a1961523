package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

func wafSignal(status, reason string) *signal.Signal {
	return signal.NewSignal(signal.NewEvent("waf", map[string]interface{}{
		"status": status,
		"reason": reason,
	}), "medium", 0.5)
}

func TestWAFAbstainsOnAllowedUnlisted(t *testing.T) {
	m := NewWAFModule([]string{"sql_injection"})
	res, err := m.Handle(context.Background(), wafSignal("allowed", "benign"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestWAFBlockScenario(t *testing.T) {
	m := NewWAFModule([]string{"sql_injection"})
	sig := wafSignal("blocked", "sql_injection")

	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, signal.SeverityHigh, sig.Severity, "blocklisted reason escalates to high")
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "waf_block", res.Actions[0].Name)
	assert.Equal(t, signal.VerdictBlock, res.Verdict)
	assert.Empty(t, sig.Event.Tags, "non-CVE reasons must not tag the event")
}

func TestWAFBlocklistedButAllowed(t *testing.T) {
	// Allowed traffic with a blocklisted reason still produces a monitor vote
	m := NewWAFModule([]string{"CVE-2024-1234"})
	sig := wafSignal("allowed", "CVE-2024-1234")

	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "waf_monitor", res.Actions[0].Name)
	assert.Equal(t, signal.VerdictMonitor, res.Verdict)
	assert.Equal(t, signal.SeverityHigh, sig.Severity)
	assert.Equal(t, []string{"CVE-2024-1234"}, sig.Event.Tags, "CVE-shaped reasons tag the event")
}

func TestWAFRateLimitedIsBlocking(t *testing.T) {
	m := NewWAFModule(nil)
	res, err := m.Handle(context.Background(), wafSignal("rate_limited", "flood"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "waf_block", res.Actions[0].Name)
	assert.Equal(t, signal.VerdictBlock, res.Verdict)
}

func TestWAFMissingPayloadFields(t *testing.T) {
	// An empty payload has no status; status is not "allowed", so the module
	// still reports a monitor vote rather than faulting.
	m := NewWAFModule(nil)
	sig := signal.NewSignal(signal.NewEvent("waf", nil), "info", 0.5)
	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, signal.VerdictMonitor, res.Verdict)
}
