package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisAllowScript keeps {count, reset} in a hash that expires just after reset.
// Returns {allowed, count, reset_ms}.
var redisAllowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local state = redis.call("HMGET", KEYS[1], "count", "reset")
local count = tonumber(state[1])
local reset = tonumber(state[2])
if count == nil or reset == nil or now > reset then
  reset = now + window
  redis.call("HSET", KEYS[1], "count", 1, "reset", reset)
  redis.call("PEXPIREAT", KEYS[1], reset + 1)
  return {1, 1, reset}
end
if count >= limit then
  return {0, count, reset}
end
count = redis.call("HINCRBY", KEYS[1], "count", 1)
return {1, count, reset}
`)

// RedisLimiter implements the fixed-window limiter on Redis so counters survive restarts
// and are shared between instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow consumes one unit for key when the current window has room.
func (l *RedisLimiter) Allow(ctx context.Context, key string, policy Policy, now time.Time) (Result, error) {
	if key == "" {
		return Result{}, ErrInvalidArgument
	}
	if errValidate := policy.Validate(); errValidate != nil {
		return Result{}, errValidate
	}
	if l == nil || l.client == nil {
		return Result{}, errors.New("rate limit redis: nil client")
	}
	res, errEval := redisAllowScript.Run(ctx, l.client, []string{l.buildKey(key)},
		now.UnixMilli(), policy.Limit, policy.Window.Milliseconds()).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	values, ok := res.([]any)
	if !ok || len(values) != 3 {
		return Result{}, errors.New("rate limit redis: unexpected response type")
	}
	allowed, errAllowed := toInt64(values[0])
	count, errCount := toInt64(values[1])
	resetMs, errReset := toInt64(values[2])
	if err := errors.Join(errAllowed, errCount, errReset); err != nil {
		return Result{}, err
	}
	reset := time.UnixMilli(resetMs)
	if allowed == 0 {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

// Remaining reports how many units Allow would still grant, without consuming.
func (l *RedisLimiter) Remaining(ctx context.Context, key string, limit int, now time.Time) (int, error) {
	if key == "" || limit <= 0 {
		return 0, ErrInvalidArgument
	}
	status, errStatus := l.Status(ctx, key, now)
	if errStatus != nil {
		return 0, errStatus
	}
	if status == nil {
		return limit, nil
	}
	remaining := limit - status.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Status returns the live counter for key, or nil when none exists.
func (l *RedisLimiter) Status(ctx context.Context, key string, now time.Time) (*Status, error) {
	if key == "" {
		return nil, ErrInvalidArgument
	}
	if l == nil || l.client == nil {
		return nil, errors.New("rate limit redis: nil client")
	}
	redisKey := l.buildKey(key)
	values, errGet := l.client.HMGet(ctx, redisKey, "count", "reset").Result()
	if errGet != nil {
		return nil, errGet
	}
	if len(values) != 2 || values[0] == nil || values[1] == nil {
		return nil, nil
	}
	count, errCount := toInt64(values[0])
	resetMs, errReset := toInt64(values[1])
	if err := errors.Join(errCount, errReset); err != nil {
		return nil, err
	}
	reset := time.UnixMilli(resetMs)
	if now.After(reset) {
		if errDel := l.client.Del(ctx, redisKey).Err(); errDel != nil {
			return nil, errDel
		}
		return nil, nil
	}
	return &Status{Count: int(count), Reset: reset}, nil
}

// Reset drops the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidArgument
	}
	if l == nil || l.client == nil {
		return errors.New("rate limit redis: nil client")
	}
	return l.client.Del(ctx, l.buildKey(key)).Err()
}

// Close releases the underlying client.
func (l *RedisLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func (l *RedisLimiter) buildKey(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

func toInt64(v any) (int64, error) {
	switch typed := v.(type) {
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case uint64:
		return int64(typed), nil
	case string:
		parsed, errParse := strconv.ParseInt(typed, 10, 64)
		if errParse != nil {
			return 0, fmt.Errorf("rate limit redis: parse %q: %w", typed, errParse)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("rate limit redis: unexpected value type %T", v)
	}
}
