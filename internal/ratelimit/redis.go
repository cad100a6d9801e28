package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingLogScript keeps one sorted set per key, scored by arrival time in
// milliseconds. Returns {allowed, count, oldestScore}.
var slidingLogScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local score = now
	if oldest[2] then
		score = tonumber(oldest[2])
	end
	return {0, count, score}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RedisWindow is a sliding-log limiter shared by every instance that points
// at the same Redis.
type RedisWindow struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisWindow stores logs under prefix+key.
func NewRedisWindow(client redis.UniversalClient, prefix string, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Admit implements Admitter.
func (w *RedisWindow) Admit(ctx context.Context, key string) (Decision, error) {
	nowMs := w.now().UnixMilli()
	windowMs := w.window.Milliseconds()

	res, err := slidingLogScript.Run(ctx, w.client,
		[]string{w.prefix + key},
		nowMs, windowMs, w.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis admit %q: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis admit %q: unexpected reply %v", key, res)
	}

	allowed, count, oldest := res[0] == 1, int(res[1]), res[2]
	if allowed {
		return Decision{
			Allowed:   true,
			Limit:     w.limit,
			Remaining: max(w.limit-count, 0),
		}, nil
	}
	return Decision{
		Allowed:    false,
		Limit:      w.limit,
		Remaining:  0,
		RetryAfter: time.Duration(oldest+windowMs-nowMs) * time.Millisecond,
	}, nil
}

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
