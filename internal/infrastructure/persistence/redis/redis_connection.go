// Package redis opens the Redis client backing the distributed rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/pkg/logger"
)

const connectTimeout = 5 * time.Second

// RedisConnection manages the Redis client lifecycle.
type RedisConnection struct {
	client redis.UniversalClient
	logger logger.Logger
}

// NewRedisConnection parses cfg.URL (redis:// or rediss://) and verifies connectivity.
func NewRedisConnection(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*RedisConnection, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("redis url is empty")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	conn := &RedisConnection{client: redis.NewClient(opts), logger: log.WithComponent("redis")}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := conn.Probe(pingCtx); err != nil {
		_ = conn.client.Close()
		return nil, err
	}
	conn.logger.Info(ctx, "Redis connection established", logger.String("addr", opts.Addr))
	return conn, nil
}

// NewRedisConnectionFromClient wraps an existing client.
func NewRedisConnectionFromClient(client redis.UniversalClient, log logger.Logger) *RedisConnection {
	return &RedisConnection{client: client, logger: log.WithComponent("redis")}
}

// GetClient returns the underlying client.
func (rc *RedisConnection) GetClient() redis.UniversalClient {
	return rc.client
}

// Name implements service.DependencyProbe.
func (rc *RedisConnection) Name() string {
	return "redis"
}

// Probe pings Redis.
func (rc *RedisConnection) Probe(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (rc *RedisConnection) Close() error {
	return rc.client.Close()
}
