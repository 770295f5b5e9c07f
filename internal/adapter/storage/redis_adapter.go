package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-tracker/internal/port"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	idempotencyKeyTTL  = 24 * time.Hour
)

// allowScript counts a hit and starts the window on the first one.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('PEXPIRE', key, window)
end

if current > limit then
	return 0
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	result, err := allowScript.Run(ctx, r.client, []string{rateLimitKeyPrefix + key}, limit, window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
