package signal

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a raw observation ingested from one sensor source. The payload is
// an open key→value map carrying whatever the sensor reported (headers,
// anomaly lists, alert sub-objects).
type Event struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
	Tags      []string               `json:"tags"`
}

// NewEvent creates an event for the given source. A nil payload is replaced
// with an empty map so callers can always index into it.
func NewEvent(source string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.New().String(),
		Source:    source,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Tag appends labels to the event, skipping empty strings and duplicates.
// Insertion order is preserved; tagging is idempotent.
func (e *Event) Tag(labels ...string) {
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" || e.HasTag(label) {
			continue
		}
		e.Tags = append(e.Tags, label)
	}
}

// HasTag reports whether the event already carries the label.
func (e *Event) HasTag(label string) bool {
	for _, t := range e.Tags {
		if t == label {
			return true
		}
	}
	return false
}

// Signal is a normalized, severity-annotated view of one Event flowing
// through the pipeline. Clones share the Event by reference: tagging the
// event through any clone is visible to every holder, while severity,
// confidence and notes stay independent per clone.
type Signal struct {
	Event      *Event   `json:"event"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes,omitempty"`
}

// NewSignal wraps an event with a normalized severity and a confidence
// clamped into [0,1].
func NewSignal(event *Event, severity string, confidence float64) *Signal {
	return &Signal{
		Event:      event,
		Severity:   NormalizeSeverity(severity),
		Confidence: clamp01(confidence),
	}
}

// Escalate raises the signal severity to max(current, new) on the ordinal
// scale. Severity is never lowered. Notes are overwritten with the reason
// whether or not the severity actually changed.
func (s *Signal) Escalate(severity string, reason string) {
	next := NormalizeSeverity(severity)
	if next.Ordinal() > s.Severity.Ordinal() {
		s.Severity = next
	}
	s.Notes = reason
}

// Clone returns a new signal with independent severity/confidence/notes and
// a shared reference to the underlying event.
func (s *Signal) Clone() *Signal {
	return &Signal{
		Event:      s.Event,
		Severity:   s.Severity,
		Confidence: s.Confidence,
		Notes:      s.Notes,
	}
}

// Action is a discrete response emitted by a sensor module. Immutable once
// constructed.
type Action struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewAction builds an action with an optional metadata map.
func NewAction(name, description string, metadata map[string]interface{}) Action {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return Action{Name: name, Description: description, Metadata: metadata}
}

// Summary renders the action as a single line for serialization.
func (a Action) Summary() string {
	return a.Name + ": " + a.Description
}

// Verdict values attached to aggregated results. Sensor modules may emit
// additional module-specific verdicts on their own results.
const (
	VerdictMonitor     = "monitor"
	VerdictInvestigate = "investigate"
	VerdictBlock       = "block"
)

// Result is the per-module or aggregated outcome of processing a signal.
type Result struct {
	Signal    *Signal                `json:"signal"`
	Actions   []Action               `json:"actions"`
	Verdict   string                 `json:"verdict"`
	Rationale string                 `json:"rationale"`
	RiskScore float64                `json:"risk_score"`
	Context   map[string]interface{} `json:"context,omitempty"`
}

// Summary serializes the result into the stable wire shape: signal fields,
// one summary string per action, verdict, rationale, a risk score rounded to
// three decimals, and the context only when non-empty.
func (r *Result) Summary() map[string]interface{} {
	actions := make([]string, 0, len(r.Actions))
	for _, a := range r.Actions {
		actions = append(actions, a.Summary())
	}
	tags := r.Signal.Event.Tags
	if tags == nil {
		tags = []string{}
	}
	summary := map[string]interface{}{
		"signal": map[string]interface{}{
			"source":     r.Signal.Event.Source,
			"severity":   string(r.Signal.Severity),
			"confidence": r.Signal.Confidence,
			"tags":       tags,
			"notes":      r.Signal.Notes,
		},
		"actions":    actions,
		"verdict":    r.Verdict,
		"rationale":  r.Rationale,
		"risk_score": Round3(r.RiskScore),
	}
	if len(r.Context) > 0 {
		summary["context"] = r.Context
	}
	return summary
}

// Round3 rounds to three decimal places, the precision used for serialized
// risk and analytics values.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
