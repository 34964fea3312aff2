package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every counter this package writes to Redis.
const KeyPrefix = "cms:attempts:"

// RedisLimiter shares attempt counters between every server using the same Redis.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// attemptScript returns {allowed, attempts, ttl_ms}. A refused attempt leaves
// the counter and its expiry untouched.
var attemptScript = redis.NewScript(`
local attempts = tonumber(redis.call("GET", KEYS[1]) or "0")
if attempts >= tonumber(ARGV[2]) then
  return {0, attempts, redis.call("PTTL", KEYS[1])}
end
attempts = redis.call("INCR", KEYS[1])
if attempts == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {1, attempts, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (*RedisLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		now:    now,
	}, nil
}

// Ping checks that Redis is reachable.
func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return unlimited(limit), nil
	}
	if window < time.Millisecond {
		window = time.Second
	}

	res, err := attemptScript.Run(ctx, r.client, []string{KeyPrefix + key}, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("count attempt: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("count attempt: unexpected reply %v", res)
	}
	allowed, attempts, ttl := res[0] == 1, int(res[1]), res[2]

	d := Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-attempts, 0),
		ResetAt:   r.now(),
	}
	if ttl > 0 {
		d.ResetAt = d.ResetAt.Add(time.Duration(ttl) * time.Millisecond)
	}
	return d, nil
}

func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, KeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

var _ Limiter = (*RedisLimiter)(nil)
