package sensor

import (
	"context"
	"fmt"
	"strings"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// idsSeverityMap translates free-text IDS severities onto the fixed scale.
// Unmapped values default to "low".
var idsSeverityMap = map[string]signal.Severity{
	"informational": signal.SeverityInfo,
	"info":          signal.SeverityInfo,
	"low":           signal.SeverityLow,
	"minor":         signal.SeverityLow,
	"medium":        signal.SeverityMedium,
	"moderate":      signal.SeverityMedium,
	"high":          signal.SeverityHigh,
	"major":         signal.SeverityHigh,
	"critical":      signal.SeverityCritical,
}

// IDSModule interprets intrusion-detection alerts carried in the event
// payload's "alert" sub-object.
type IDSModule struct{}

// NewIDSModule builds an IDS module.
func NewIDSModule() *IDSModule {
	return &IDSModule{}
}

// Handle abstains when the payload carries no alert sub-object. Otherwise it
// maps the alert severity onto the fixed scale, escalates the signal, tags
// the event with any CVE identifier in the alert, and votes "investigate"
// for medium-or-worse alerts.
func (m *IDSModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	alert := signal.PayloadMap(sig.Event.Payload, "alert")
	if alert == nil {
		return nil, nil
	}

	rawSeverity := signal.PayloadString(alert, "severity")
	mapped, ok := idsSeverityMap[strings.ToLower(strings.TrimSpace(rawSeverity))]
	if !ok {
		mapped = signal.SeverityLow
	}
	sig.Escalate(string(mapped), fmt.Sprintf("ids alert severity %q", rawSeverity))

	for _, key := range []string{"cve_id", "signature_id"} {
		if id := signal.PayloadString(alert, key); strings.HasPrefix(strings.ToUpper(id), "CVE-") {
			sig.Event.Tag(strings.ToUpper(id))
		}
	}

	verdict := signal.VerdictMonitor
	if mapped.Ordinal() >= signal.SeverityMedium.Ordinal() {
		verdict = signal.VerdictInvestigate
	}

	sigID := signal.PayloadString(alert, "signature_id")
	action := signal.NewAction("ids_alert", fmt.Sprintf("ids alert with severity %q", rawSeverity), map[string]interface{}{
		"signature": sigID,
	})
	return &signal.Result{
		Signal:    sig,
		Actions:   []signal.Action{action},
		Verdict:   verdict,
		Rationale: fmt.Sprintf("alert severity=%s signature=%s", rawSeverity, sigID),
	}, nil
}
