// Package metrics exposes prometheus collectors for the correlation
// pipeline. Collectors are registered once on the default registry and
// served by the `serve` command's /metrics endpoint.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// SignalsProcessed counts signals entering the pipeline per source
	SignalsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcor",
			Name:      "signals_processed_total",
			Help:      "Total number of signals processed by the integrator",
		},
		[]string{"source"},
	)

	// ModuleInvocations counts sensor module invocations per module
	ModuleInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcor",
			Name:      "module_invocations_total",
			Help:      "Total number of sensor module invocations",
		},
		[]string{"module"},
	)

	// ModuleFailures counts isolated sensor module failures per module
	ModuleFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcor",
			Name:      "module_failures_total",
			Help:      "Total number of sensor module failures caught by the integrator",
		},
		[]string{"module"},
	)

	// VerdictsEmitted counts aggregated results per verdict
	VerdictsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sigcor",
			Name:      "verdicts_emitted_total",
			Help:      "Total number of aggregated results emitted, by verdict",
		},
		[]string{"verdict"},
	)

	// SubscriberFailures counts subscriber callbacks that panicked
	SubscriberFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sigcor",
			Name:      "subscriber_failures_total",
			Help:      "Total number of subscriber callback failures caught during dispatch",
		},
	)

	// ResultHistoryDepth tracks the current size of the result history buffer
	ResultHistoryDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sigcor",
			Name:      "result_history_depth",
			Help:      "Current number of results held in the bounded history",
		},
	)

	// Ensure metrics are only registered once
	once sync.Once
)

// InitMetrics registers all collectors with the global prometheus registry.
// Idempotent; safe to call from every command path.
func InitMetrics() {
	once.Do(func() {
		prometheus.DefaultRegisterer.Register(SignalsProcessed)
		prometheus.DefaultRegisterer.Register(ModuleInvocations)
		prometheus.DefaultRegisterer.Register(ModuleFailures)
		prometheus.DefaultRegisterer.Register(VerdictsEmitted)
		prometheus.DefaultRegisterer.Register(SubscriberFailures)
		prometheus.DefaultRegisterer.Register(ResultHistoryDepth)
	})
}
