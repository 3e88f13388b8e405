// Package cachestore provides the stage-cache backends. Both honor the
// same contract: a failed read is a miss and a failed write is dropped,
// so cache trouble can slow the pipeline down but never break it.
package cachestore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is the shared cache backend for multi-replica deployments.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache wraps an already-configured client.
func NewRedisCache(client *redis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, namespace+":"+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache_read_failed",
				slog.String("namespace", namespace),
				slog.String("error", err.Error()))
		}
		return nil, false
	}
	return raw, true
}

func (c *RedisCache) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, namespace+":"+key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache_write_dropped",
			slog.String("namespace", namespace),
			slog.String("error", err.Error()))
	}
}
