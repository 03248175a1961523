package sensor

import (
	"context"
	"fmt"
	"strings"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// blockingStatuses are WAF statuses that indicate the request was actively
// stopped rather than just observed.
var blockingStatuses = map[string]struct{}{
	"blocked":      {},
	"rate_limited": {},
	"mitigated":    {},
}

// WAFModule interprets web-application-firewall telemetry. It is configured
// with a static blocklist of opaque reason codes.
type WAFModule struct {
	blocklist map[string]struct{}
}

// NewWAFModule builds a WAF module from a blocklist of reason codes.
func NewWAFModule(blocklist []string) *WAFModule {
	m := &WAFModule{blocklist: make(map[string]struct{}, len(blocklist))}
	for _, reason := range blocklist {
		reason = strings.TrimSpace(reason)
		if reason != "" {
			m.blocklist[reason] = struct{}{}
		}
	}
	return m
}

// Handle abstains on allowed traffic with an unlisted reason. Blocklisted
// reasons escalate the signal to high and, when CVE-shaped, tag the event.
// The verdict mirrors whether the WAF actively stopped the request.
func (m *WAFModule) Handle(ctx context.Context, sig *signal.Signal) (*signal.Result, error) {
	payload := sig.Event.Payload
	status := signal.PayloadString(payload, "status")
	reason := signal.PayloadString(payload, "reason")

	_, listed := m.blocklist[reason]
	if status == "allowed" && !listed {
		return nil, nil
	}

	if listed {
		sig.Escalate(string(signal.SeverityHigh), fmt.Sprintf("waf reason %q is blocklisted", reason))
		if strings.HasPrefix(strings.ToUpper(reason), "CVE-") {
			sig.Event.Tag(strings.ToUpper(reason))
		}
	}

	_, blocking := blockingStatuses[status]
	name := "waf_monitor"
	verdict := signal.VerdictMonitor
	if blocking {
		name = "waf_block"
		verdict = signal.VerdictBlock
	}

	action := signal.NewAction(name, fmt.Sprintf("waf reported status %q", status), map[string]interface{}{
		"status": status,
		"reason": reason,
	})
	return &signal.Result{
		Signal:    sig,
		Actions:   []signal.Action{action},
		Verdict:   verdict,
		Rationale: fmt.Sprintf("status=%s reason=%s", status, reason),
	}, nil
}
