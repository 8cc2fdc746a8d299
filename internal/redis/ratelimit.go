package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type RateLimitConfig struct {
	MessageLimit  int
	MessageWindow time.Duration
	ConnectLimit  int
	ConnectWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  30,
		MessageWindow: time.Minute,
		ConnectLimit:  20,
		ConnectWindow: time.Minute,
	}
}

// RateLimitResult is what the quota middlewares turn into X-RateLimit-* headers.
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// RateLimiter keeps a sliding log per user and action in a sorted set scored by
// millisecond timestamps.
type RateLimiter struct {
	client goredis.UniversalClient
	config RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client goredis.UniversalClient, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{client: client, config: config, now: time.Now}
}

const (
	actionMessages = "messages"
	actionConnects = "connects"
)

func quotaKey(userID, action string) string {
	return "ratelimit:" + userID + ":" + action
}

func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.take(ctx, quotaKey(userID, actionMessages), r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) AllowConnect(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.take(ctx, quotaKey(userID, actionConnects), r.config.ConnectLimit, r.config.ConnectWindow)
}

// KEYS[1] log key; ARGV now_ms, window_ms, limit, member.
// Returns {allowed, remaining, reset_ms}.
var slidingWindow = goredis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local used = redis.call('ZCARD', KEYS[1])

local reset = window
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
	reset = tonumber(oldest[2]) + window - now
end

if used >= limit then
	return {0, 0, reset}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, limit - used - 1, reset}
`)

func (r *RateLimiter) take(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	if limit <= 0 || window <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: -1}, nil
	}

	now := r.now().UnixMilli()
	vals, err := slidingWindow.Run(ctx, r.client, []string{key},
		now, window.Milliseconds(), limit, uuid.NewString()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply %v", key, vals)
	}

	return &RateLimitResult{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetIn:   time.Duration(vals[2]) * time.Millisecond,
		Limit:     limit,
	}, nil
}
