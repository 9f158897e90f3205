package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slava225678/parsing-count/internal/pipeline"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0") // Mock stream ID
	}
	return cmd
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodePayload(t *testing.T, args *redis.XAddArgs) ProgressPayload {
	t.Helper()
	values, ok := args.Values.(map[string]any)
	require.True(t, ok)

	var p ProgressPayload
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &p))
	return p
}

func TestPublisher_BatchDone(t *testing.T) {
	client := new(MockRedisClient)
	var published *redis.XAddArgs
	client.On("XAdd", mock.Anything, mock.AnythingOfType("*redis.XAddArgs")).
		Run(func(args mock.Arguments) { published = args.Get(1).(*redis.XAddArgs) }).
		Return(nil)

	p := NewPublisher(client, "", "run-1", "browser", discardLogger())
	p.BatchDone(context.Background(), 2, 100, pipeline.Stats{Valid: 500, Fetched: 200, Absent: 7})

	client.AssertExpectations(t)
	require.NotNil(t, published)
	assert.Equal(t, DefaultStream, published.Stream)

	payload := decodePayload(t, published)
	assert.Equal(t, string(EventTypeBatchCompleted), payload.EventType)
	assert.Equal(t, "run-1", payload.RunID)
	assert.Equal(t, "browser", payload.Mode)
	assert.Equal(t, 2, payload.Batch)
	assert.Equal(t, 100, payload.BatchSize)
	assert.Equal(t, 200, payload.Fetched)
	assert.Equal(t, 7, payload.Absent)
	assert.NotEmpty(t, payload.EventID)
}

func TestPublisher_RunFinishedWithError(t *testing.T) {
	client := new(MockRedisClient)
	var published *redis.XAddArgs
	client.On("XAdd", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(1).(*redis.XAddArgs) }).
		Return(nil)

	p := NewPublisher(client, "stream:test", "run-1", "direct", discardLogger())
	p.RunFinished(context.Background(), pipeline.Stats{Fetched: 3}, errors.New("disk full"))

	require.NotNil(t, published)
	assert.Equal(t, "stream:test", published.Stream)
	payload := decodePayload(t, published)
	assert.Equal(t, string(EventTypeRunFinished), payload.EventType)
	assert.Equal(t, "disk full", payload.Error)
}

func TestPublisher_PublishError(t *testing.T) {
	client := new(MockRedisClient)
	client.On("XAdd", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	p := NewPublisher(client, "", "run-1", "direct", discardLogger())
	err := p.Publish(context.Background(), &ProgressPayload{EventType: string(EventTypeRunFinished)})
	assert.ErrorContains(t, err, "connection refused")

	// Best-effort path only logs.
	assert.NotPanics(t, func() {
		p.BatchDone(context.Background(), 1, 1, pipeline.Stats{})
	})
}
