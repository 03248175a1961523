// Package aggregate maintains a rolling window of raw events and produces
// per-source rollup summaries for introspection.
package aggregate

import (
	"sync"
	"time"

	"github.com/perimeterwatch/sigcor/internal/signal"
)

// DefaultCapacity bounds the rolling event window when no capacity is given.
const DefaultCapacity = 500

// SourceSummary is the per-source rollup over the current window.
type SourceSummary struct {
	Source    string         `json:"source"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"first_seen"`
	LastSeen  time.Time      `json:"last_seen"`
	TagCounts map[string]int `json:"tag_counts,omitempty"`
}

// Aggregator keeps a fixed-capacity FIFO window of raw events. The oldest
// event is evicted when the window overflows.
type Aggregator struct {
	mu       sync.Mutex
	capacity int
	events   []*signal.Event
}

// NewAggregator creates an aggregator with the given window capacity.
// Non-positive capacities select DefaultCapacity.
func NewAggregator(capacity int) *Aggregator {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Aggregator{capacity: capacity}
}

// Record appends an event to the window, evicting the oldest on overflow.
func (a *Aggregator) Record(ev *signal.Event) {
	if ev == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.events = append(a.events, ev)
	if len(a.events) > a.capacity {
		a.events = a.events[len(a.events)-a.capacity:]
	}
}

// Len returns the number of events currently in the window.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// Summaries computes per-source rollups over the current window.
func (a *Aggregator) Summaries() map[string]SourceSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summaries := make(map[string]SourceSummary)
	for _, ev := range a.events {
		summary, ok := summaries[ev.Source]
		if !ok {
			summary = SourceSummary{
				Source:    ev.Source,
				FirstSeen: ev.CreatedAt,
				LastSeen:  ev.CreatedAt,
				TagCounts: make(map[string]int),
			}
		}
		summary.Count++
		if ev.CreatedAt.Before(summary.FirstSeen) {
			summary.FirstSeen = ev.CreatedAt
		}
		if ev.CreatedAt.After(summary.LastSeen) {
			summary.LastSeen = ev.CreatedAt
		}
		for _, tag := range ev.Tags {
			summary.TagCounts[tag]++
		}
		summaries[ev.Source] = summary
	}
	return summaries
}
