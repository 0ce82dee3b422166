package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pricepally/demandcast/internal/api"
)

// RedisSink stores forecast records as JSON under per-record keys with
// SETNX semantics: a re-run of the same run ID never overwrites records
// already delivered, so downstream consumers see each record at most once
// per run.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink connects to Redis and verifies the connection.
func NewRedisSink(addr, password string, db int, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisSink{client: client, ttl: ttl}, nil
}

func (r *RedisSink) WriteForecasts(ctx context.Context, runID string, records []api.ForecastRecord) error {
	pipe := r.client.Pipeline()

	for _, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record for %s: %w", rec.Key, err)
		}
		key := fmt.Sprintf("forecast:%s:%s:%d", runID, rec.Key, rec.Step)
		// First write wins; a retried batch is a no-op.
		pipe.SetNX(ctx, key, data, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
