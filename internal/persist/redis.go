package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const snapshotKey = "noema:snapshot"

// RedisBackend stores the snapshot as one JSON value under a fixed key.
type RedisBackend struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisBackend connects to Redis from a URL.
func NewRedisBackend(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBackend{rdb: rdb, logger: logger}, nil
}

func (r *RedisBackend) Save(ctx context.Context, snap *Snapshot) error {
	snap.SavedAt = time.Now()
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, snapshotKey, data, 0).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	r.logger.Debug("snapshot saved", zap.Int("bytes", len(data)))
	return nil
}

func (r *RedisBackend) Load(ctx context.Context) (*Snapshot, error) {
	data, err := r.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Close shuts down the Redis client.
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
