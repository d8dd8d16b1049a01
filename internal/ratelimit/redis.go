// Package ratelimit throttles proposal creation per caller with a fixed
// window counter kept in Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const script = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Limiter allows up to limit hits per key per window. A nil Limiter, a nil
// client or a Redis failure all allow the request.
type Limiter struct {
	client *redis.Client
	script *redis.Script
	limit  int
	window time.Duration
}

// New returns a Limiter, or nil when rdb is nil or limit is zero.
func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	if rdb == nil || limit <= 0 || window <= 0 {
		return nil
	}
	return &Limiter{client: rdb, script: redis.NewScript(script), limit: limit, window: window}
}

// Allow records a hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || key == "" {
		return true
	}
	ttl := l.window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{"ratelimit:" + key}, ttl, l.limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}
