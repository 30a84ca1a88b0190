package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ronl/business-api/internal/domain/service"
	"github.com/ronl/business-api/pkg/logger"
)

// fixedWindowScript increments the window counter, starting the window on the
// first hit, and returns {count, remaining ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
    ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RedisRateLimiterConfig configures a RedisRateLimiter.
type RedisRateLimiterConfig struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// RedisRateLimiter counts requests in Redis so that every replica shares one
// budget per key. When Redis fails the request is counted by the local limiter instead.
type RedisRateLimiter struct {
	client   redis.UniversalClient
	limit    int
	window   time.Duration
	prefix   string
	fallback *LocalLimiter
	logger   logger.Logger
}

// NewRedisRateLimiter creates a limiter on client.
func NewRedisRateLimiter(client redis.UniversalClient, cfg RedisRateLimiterConfig, log logger.Logger) *RedisRateLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	log.Info(context.Background(), "Redis rate limiter initialized",
		logger.Int("limit", cfg.Limit),
		logger.Duration("window", cfg.Window),
	)
	return &RedisRateLimiter{
		client:   client,
		limit:    cfg.Limit,
		window:   cfg.Window,
		prefix:   cfg.KeyPrefix,
		fallback: NewLocalLimiter(cfg.Limit, cfg.Window),
		logger:   log.WithComponent("ratelimit"),
	}
}

// Allow counts one request for key.
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (*service.RateLimitDecision, error) {
	count, ttl, err := rl.incr(ctx, rl.prefix+":"+key)
	if err != nil {
		rl.logger.Warn(ctx, "Redis rate limiter unavailable, using local limiter",
			logger.Error(err),
			logger.String("key", key),
		)
		return rl.fallback.Allow(ctx, key)
	}
	return decide(rl.limit, count, time.Now().Add(ttl)), nil
}

func (rl *RedisRateLimiter) incr(ctx context.Context, key string) (int, time.Duration, error) {
	res, err := fixedWindowScript.Run(ctx, rl.client, []string{key}, rl.window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, err
	}
	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit script result %v", res)
	}
	count, ok1 := values[0].(int64)
	ttlMS, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return 0, 0, fmt.Errorf("unexpected rate limit script result %v", res)
	}
	return int(count), time.Duration(ttlMS) * time.Millisecond, nil
}

var _ service.RateLimiter = (*RedisRateLimiter)(nil)
