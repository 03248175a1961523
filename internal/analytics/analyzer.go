// Package analytics computes distributional reports over processed results
// and ranks signals for triage.
package analytics

import (
	"sort"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// Report is a read-only aggregate over a window of results.
type Report struct {
	Total             int                     `json:"total"`
	SeverityCounts    map[signal.Severity]int `json:"severity_counts"`
	VerdictCounts     map[string]int          `json:"verdict_counts"`
	AverageConfidence float64                 `json:"average_confidence"`
	AverageRisk       float64                 `json:"average_risk"`
}

// Analyzer builds reports and rankings. Stateless and safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer creates an analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// BuildReport computes severity and verdict histograms plus mean confidence
// and mean risk over the given results. Empty input yields zero means, never
// a divide-by-zero fault.
func (a *Analyzer) BuildReport(results []*signal.Result) Report {
	report := Report{
		Total:          len(results),
		SeverityCounts: make(map[signal.Severity]int),
		VerdictCounts:  make(map[string]int),
	}
	if len(results) == 0 {
		return report
	}

	var confidenceSum, riskSum float64
	for _, res := range results {
		report.SeverityCounts[res.Signal.Severity]++
		report.VerdictCounts[res.Verdict]++
		confidenceSum += res.Signal.Confidence
		riskSum += res.RiskScore
	}
	report.AverageConfidence = confidenceSum / float64(len(results))
	report.AverageRisk = riskSum / float64(len(results))
	return report
}

// RankSignals returns the signals sorted descending by (severity ordinal,
// confidence). The sort is stable and the input slice is not mutated.
// Signals with unknown severities rank below every known severity.
func (a *Analyzer) RankSignals(signals []*signal.Signal) []*signal.Signal {
	ranked := make([]*signal.Signal, len(signals))
	copy(ranked, signals)

	sort.SliceStable(ranked, func(i, j int) bool {
		oi, oj := rankOrdinal(ranked[i].Severity), rankOrdinal(ranked[j].Severity)
		if oi != oj {
			return oi > oj
		}
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// rankOrdinal sorts unknown severities to the bottom instead of folding them
// into "info" the way the pipeline does.
func rankOrdinal(s signal.Severity) int {
	if !s.Known() {
		return -1
	}
	return s.Ordinal()
}
