package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds the fixed-window limits applied to authentication endpoints.
type Config struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB"              envDefault:"0"`
	Limit         int64         `env:"AUTH_RATE_LIMIT"        envDefault:"10"`
	Window        time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Enabled reports whether a Redis backend is configured.
func (c Config) Enabled() bool {
	return c.RedisAddr != ""
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter is a fixed-window counter per key stored in Redis.
type Limiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
	prefix string
}

// NewLimiter creates a Limiter allowing limit hits per window for each key.
func NewLimiter(client redis.UniversalClient, limit int64, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// NewRedisClient creates a Redis client from cfg.
func NewRedisClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	if count <= l.limit {
		return Result{Allowed: true, Remaining: l.limit - count}, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	if ttl < 0 {
		// The counter lost its expiry; start a new window.
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
		ttl = l.window
	}

	return Result{Allowed: false, RetryAfter: ttl}, nil
}
