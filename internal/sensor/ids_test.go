package sensor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

func idsSignal(alert map[string]interface{}) *signal.Signal {
	payload := map[string]interface{}{}
	if alert != nil {
		payload["alert"] = alert
	}
	return signal.NewSignal(signal.NewEvent("ids", payload), "info", 0.5)
}

func TestIDSAbstainsWithoutAlert(t *testing.T) {
	m := NewIDSModule()

	res, err := m.Handle(context.Background(), idsSignal(nil))
	require.NoError(t, err)
	assert.Nil(t, res)

	// Malformed alert (not a map) is also an abstention
	sig := signal.NewSignal(signal.NewEvent("ids", map[string]interface{}{"alert": "broken"}), "info", 0.5)
	res, err = m.Handle(context.Background(), sig)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestIDSInvestigateScenario(t *testing.T) {
	m := NewIDSModule()
	sig := idsSignal(map[string]interface{}{
		"severity":     "High",
		"signature_id": "BOF-001",
	})

	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, signal.SeverityHigh, sig.Severity)
	assert.Equal(t, signal.VerdictInvestigate, res.Verdict)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "ids_alert", res.Actions[0].Name)
	assert.Equal(t, "BOF-001", res.Actions[0].Metadata["signature"])
	assert.Empty(t, sig.Event.Tags)
}

func TestIDSUnmappedSeverityDefaultsLow(t *testing.T) {
	m := NewIDSModule()
	sig := idsSignal(map[string]interface{}{"severity": "weird"})

	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, signal.SeverityLow, sig.Severity)
	assert.Equal(t, signal.VerdictMonitor, res.Verdict)
}

func TestIDSTagsCVE(t *testing.T) {
	m := NewIDSModule()
	sig := idsSignal(map[string]interface{}{
		"severity": "critical",
		"cve_id":   "cve-2021-22280",
	})

	res, err := m.Handle(context.Background(), sig)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []string{"CVE-2021-22280"}, sig.Event.Tags)
	assert.Equal(t, signal.VerdictInvestigate, res.Verdict)
}

func TestFactoryRegistry(t *testing.T) {
	assert.Equal(t, []string{"ids", "waf"}, Available())

	m, err := Build("waf", map[string]interface{}{"blocklist": []interface{}{"sql_injection"}})
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = Build("firewall", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "firewall")
	assert.Contains(t, err.Error(), "ids")
}
