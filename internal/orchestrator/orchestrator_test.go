package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

const testConfig = `defaults:
  severity: medium
  confidence: 0.7
integrators:
  edge-waf:
    type: waf
    options:
      blocklist:
        - sql_injection
  core-ids:
    type: ids
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigcor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err, "missing config file must not be an error")
	assert.Empty(t, cfg.Integrators)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Integrators)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "medium", cfg.Defaults.Severity)
	assert.Equal(t, 0.7, cfg.Defaults.Confidence)
	require.Len(t, cfg.Integrators, 2)
	assert.Equal(t, "waf", cfg.Integrators["edge-waf"].Type)
}

func TestNewRejectsUnknownType(t *testing.T) {
	cfg := Config{Integrators: map[string]ModuleConfig{
		"mystery": {Type: "firewall"},
	}}
	_, err := New(cfg, nil, nil)
	require.Error(t, err, "unsupported type must fail at setup, not per signal")
	assert.Contains(t, err.Error(), "firewall")
	assert.Contains(t, err.Error(), "waf")
}

func TestProcessEventDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	o, err := New(cfg, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"core-ids", "edge-waf"}, o.Integrator().List())

	ev := signal.NewEvent("waf", map[string]interface{}{
		"status": "blocked",
		"reason": "sql_injection",
	})
	res := o.ProcessEvent(context.Background(), ev, nil)
	require.NotNil(t, res)
	assert.Equal(t, signal.SeverityHigh, res.Signal.Severity)
	assert.Equal(t, 0.7, res.Signal.Confidence, "instance default confidence applies")
}

func TestProcessEventCallOverrides(t *testing.T) {
	o, err := New(Config{Integrators: map[string]ModuleConfig{
		"ids": {Type: "ids"},
	}}, nil, nil)
	require.NoError(t, err)

	conf := 0.9
	ev := signal.NewEvent("ids", map[string]interface{}{
		"alert": map[string]interface{}{"severity": "low"},
	})
	res := o.ProcessEvent(context.Background(), ev, &EventOptions{Severity: "high", Confidence: &conf})
	require.NotNil(t, res)
	// Call-site severity wins and cannot be lowered by the weaker alert
	assert.Equal(t, signal.SeverityHigh, res.Signal.Severity)
	assert.Equal(t, 0.9, res.Signal.Confidence)
}

func TestProcessEvents(t *testing.T) {
	o, err := New(Config{Integrators: map[string]ModuleConfig{
		"ids": {Type: "ids"},
	}}, nil, nil)
	require.NoError(t, err)

	events := []*signal.Event{
		signal.NewEvent("ids", map[string]interface{}{
			"alert": map[string]interface{}{"severity": "high"},
		}),
		signal.NewEvent("ids", nil), // abstained, dropped from output
	}
	results := o.ProcessEvents(context.Background(), events, nil)
	require.Len(t, results, 1)
	assert.Equal(t, signal.VerdictInvestigate, results[0].Verdict)
}

func TestPackageDefaultsApplied(t *testing.T) {
	o, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSeverity, o.defaults.Severity)
	assert.Equal(t, DefaultConfidence, o.defaults.Confidence)
}
