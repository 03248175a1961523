package bus

import (
	"context"
	"io"
	"log"
)

// Bus defines the interface for result-publishing implementations. Every
// aggregated result is pushed onto the bus so out-of-process consumers
// (e.g. an adaptive testing engine) can react to verdicts.
type Bus interface {
	// PublishResult publishes an aggregated result to the results stream
	PublishResult(ctx context.Context, msg ResultMessage) error

	// GetStats returns basic statistics about the bus
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// HealthCheck performs a health check on the bus connection
	HealthCheck(ctx context.Context) error

	// Close closes the bus connection
	Close() error
}

// NewBus creates a new bus instance based on the Redis URL.
// If redisURL is empty or unreachable, returns a NullBus.
func NewBus(redisURL string, logger *log.Logger) Bus {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	if redisURL == "" {
		return NewNullBus(logger)
	}

	if redisBus, err := NewRedisBus(redisURL, logger); err == nil {
		return redisBus
	}

	// Fall back to null bus if Redis fails
	return NewNullBus(logger)
}
