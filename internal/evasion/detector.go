// Package evasion scores the likelihood that a signal represents an attempt
// to slip past detection, based on header and anomaly heuristics over the
// raw payload.
package evasion

import (
	"strings"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// DefaultThreshold is the evasion score above which IsEvasion reports true.
const DefaultThreshold = 0.6

// suspiciousHeaders are header keys commonly abused to spoof client origin.
// Matching is case-insensitive on the header key.
var suspiciousHeaders = map[string]struct{}{
	"x-forwarded-for":  {},
	"x-real-ip":        {},
	"x-originating-ip": {},
	"x-remote-addr":    {},
}

// defaultKeywords flag anomaly strings that suggest payload obfuscation.
var defaultKeywords = []string{"bypass", "encoded", "obfuscated"}

// Detector computes a pure [0,1] evasion score over a signal's payload.
// It holds no mutable state and is safe for concurrent use.
type Detector struct {
	keywords []string
}

// NewDetector builds a detector with the given suspicious keywords. With no
// arguments the default keyword set is used.
func NewDetector(keywords ...string) *Detector {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &Detector{keywords: lowered}
}

// Score computes the evasion heuristic: +0.3 for any suspicious header key,
// +0.25 per anomaly string containing a suspicious keyword, plus half of the
// confidence above 0.5. The result is clamped to 1.0.
func (d *Detector) Score(sig *signal.Signal) float64 {
	score := 0.0

	if headers := signal.PayloadMap(sig.Event.Payload, "headers"); headers != nil {
		for key := range headers {
			if _, ok := suspiciousHeaders[strings.ToLower(key)]; ok {
				score += 0.3
				break
			}
		}
	}

	for _, anomaly := range signal.PayloadStrings(sig.Event.Payload, "anomalies") {
		lowered := strings.ToLower(anomaly)
		for _, kw := range d.keywords {
			if strings.Contains(lowered, kw) {
				score += 0.25
				break
			}
		}
	}

	if sig.Confidence > 0.5 {
		score += (sig.Confidence - 0.5) * 0.5
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// IsEvasion reports whether the signal's evasion score meets the threshold.
// A non-positive threshold selects DefaultThreshold.
func (d *Detector) IsEvasion(sig *signal.Signal, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return d.Score(sig) >= threshold
}
