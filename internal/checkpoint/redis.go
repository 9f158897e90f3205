package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/slava225678/parsing-count/internal/models"
)

// RedisClient is the subset of the redis client the store needs (for testing)
type RedisClient interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

type entry struct {
	Total    *int     `json:"total"`
	AvgPrice *float64 `json:"avg_price"`
}

// RedisStore keeps the checkpoint in a hash so several machines can share it.
// Field is the query text, value is a JSON entry.
type RedisStore struct {
	client RedisClient
	key    string
}

func NewRedisStore(client RedisClient, prefix, runKey string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    prefix + ":" + runKey,
	}
}

func (s *RedisStore) Key() string {
	return s.key
}

func (s *RedisStore) Load(ctx context.Context) (models.Results, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", s.key, err)
	}

	out := make(models.Results, len(fields))
	for q, raw := range fields {
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("corrupt checkpoint entry %q: %w", q, err)
		}
		out[q] = models.Result{Query: q, Total: e.Total, AvgPrice: e.AvgPrice}
	}
	return out, nil
}

// Save replaces the whole hash in one MULTI/EXEC block.
func (s *RedisStore) Save(ctx context.Context, results models.Results) error {
	values := make(map[string]any, len(results))
	for q, r := range results {
		data, err := json.Marshal(entry{Total: r.Total, AvgPrice: r.AvgPrice})
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint entry %q: %w", q, err)
		}
		values[q] = string(data)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", s.key, err)
	}
	return nil
}
