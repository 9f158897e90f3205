package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/slava225678/parsing-count/internal/pipeline"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeBatchCompleted EventType = "BATCH_COMPLETED"
	EventTypeRunFinished    EventType = "RUN_FINISHED"

	DefaultStream = "stream:parsing_count"
)

// StreamClient is the subset of the redis client the publisher needs (for testing)
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// ProgressPayload is the body of every published event.
type ProgressPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	Batch       int       `json:"batch,omitempty"`
	BatchSize   int       `json:"batch_size,omitempty"`
	Valid       int       `json:"valid"`
	Resumed     int       `json:"resumed"`
	Fetched     int       `json:"fetched"`
	Absent      int       `json:"absent"`
	Checkpoints int       `json:"checkpoints"`
	Error       string    `json:"error,omitempty"`
}

// Publisher writes run progress to a Redis stream so other processes can
// follow a long run. Publishing is best effort: failures are logged only.
type Publisher struct {
	client StreamClient
	stream string
	runID  string
	mode   string
	logger *slog.Logger
}

func NewPublisher(client StreamClient, stream, runID, mode string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		client: client,
		stream: stream,
		runID:  runID,
		mode:   mode,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *Publisher) BatchDone(ctx context.Context, batch int, size int, stats pipeline.Stats) {
	payload := p.payload(EventTypeBatchCompleted, stats)
	payload.Batch = batch
	payload.BatchSize = size
	p.publish(ctx, payload)
}

func (p *Publisher) RunFinished(ctx context.Context, stats pipeline.Stats, err error) {
	payload := p.payload(EventTypeRunFinished, stats)
	if err != nil {
		payload.Error = err.Error()
	}
	p.publish(ctx, payload)
}

func (p *Publisher) payload(t EventType, stats pipeline.Stats) *ProgressPayload {
	return &ProgressPayload{
		EventID:     uuid.New().String(),
		EventType:   string(t),
		Timestamp:   time.Now(),
		RunID:       p.runID,
		Mode:        p.mode,
		Valid:       stats.Valid,
		Resumed:     stats.Resumed,
		Fetched:     stats.Fetched,
		Absent:      stats.Absent,
		Checkpoints: stats.Checkpoints,
	}
}

func (p *Publisher) publish(ctx context.Context, payload *ProgressPayload) {
	if err := p.Publish(ctx, payload); err != nil {
		p.logger.Warn("failed to publish event", "type", payload.EventType, "error", err)
	}
}

// Publish adds one event to the stream.
func (p *Publisher) Publish(ctx context.Context, payload *ProgressPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"data":       string(data),
			"type":       payload.EventType,
			"event_type": payload.EventType,
			"run_id":     payload.RunID,
			"timestamp":  fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Debug("event published", "type", payload.EventType, "event_id", payload.EventID)
	return nil
}
