package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const resultsStream = "sigcor:results"

// maxStreamLength caps the results stream so an unattended consumer cannot
// grow Redis without bound.
const maxStreamLength = 10000

// RedisBus publishes aggregated results onto a Redis stream.
type RedisBus struct {
	client *redis.Client
	logger *log.Logger
}

// ResultMessage is the wire form of an aggregated result on the stream.
type ResultMessage struct {
	ResultID  string  `json:"result_id"`
	Source    string  `json:"source"`
	Severity  string  `json:"severity"`
	Verdict   string  `json:"verdict"`
	RiskScore float64 `json:"risk_score"`
	Summary   string  `json:"summary"` // JSON-serialized result summary
	Timestamp int64   `json:"timestamp"`
}

// NewRedisBus creates a new Redis bus instance.
func NewRedisBus(redisURL string, logger *log.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Writer(), "[RedisBus] ", log.LstdFlags)
	}

	return &RedisBus{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (rb *RedisBus) Close() error {
	return rb.client.Close()
}

// PublishResult appends the result message to the results stream.
func (rb *RedisBus) PublishResult(ctx context.Context, msg ResultMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	fields := map[string]interface{}{
		"result_id":  msg.ResultID,
		"source":     msg.Source,
		"severity":   msg.Severity,
		"verdict":    msg.Verdict,
		"risk_score": strconv.FormatFloat(msg.RiskScore, 'f', 3, 64),
		"summary":    msg.Summary,
		"timestamp":  strconv.FormatInt(msg.Timestamp, 10),
	}

	err := rb.client.XAdd(ctx, &redis.XAddArgs{
		Stream: resultsStream,
		MaxLen: maxStreamLength,
		Approx: true,
		Values: fields,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish result to stream: %w", err)
	}
	return nil
}

// GetStats returns basic statistics about the results stream.
func (rb *RedisBus) GetStats(ctx context.Context) (map[string]interface{}, error) {
	length, err := rb.client.XLen(ctx, resultsStream).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read stream length: %w", err)
	}
	return map[string]interface{}{
		"type":          "redis",
		"stream":        resultsStream,
		"stream_length": length,
	}, nil
}

// HealthCheck pings the Redis connection.
func (rb *RedisBus) HealthCheck(ctx context.Context) error {
	return rb.client.Ping(ctx).Err()
}

// MarshalSummary serializes a result summary map for the stream's summary
// field. Errors degrade to "{}" so publishing never fails on shape alone.
func MarshalSummary(summary map[string]interface{}) string {
	data, err := json.Marshal(summary)
	if err != nil {
		return "{}"
	}
	return string(data)
}
