package signal

import (
	"math"
	"strings"
)

// Severity is an ordinal label on the fixed five-level scale used across the
// pipeline: info < low < medium < high < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityScale defines the ordinal ordering. Index position is the ordinal.
var severityScale = []Severity{
	SeverityInfo,
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

// SeverityLevels returns the number of severity levels on the scale.
func SeverityLevels() int {
	return len(severityScale)
}

// NormalizeSeverity maps a free-text severity string onto the fixed scale.
// Unknown values fall back to "info" rather than erroring.
func NormalizeSeverity(s string) Severity {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range severityScale {
		if sev == known {
			return known
		}
	}
	return SeverityInfo
}

// Ordinal returns the position of the severity on the scale. Unknown
// severities report 0 (the "info" position).
func (s Severity) Ordinal() int {
	for i, known := range severityScale {
		if s == known {
			return i
		}
	}
	return 0
}

// Known reports whether the severity is one of the five scale labels.
func (s Severity) Known() bool {
	for _, known := range severityScale {
		if s == known {
			return true
		}
	}
	return false
}

// Score maps the severity to [0,1]: ordinal / (levels-1).
func (s Severity) Score() float64 {
	return float64(s.Ordinal()) / float64(len(severityScale)-1)
}

// SeverityFromScore is the inverse of Score: it rounds a [0,1] score to the
// nearest ordinal, clamping out-of-range inputs to the scale bounds.
func SeverityFromScore(score float64) Severity {
	idx := int(math.Round(score * float64(len(severityScale)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(severityScale) {
		idx = len(severityScale) - 1
	}
	return severityScale[idx]
}
