package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"livegate/internal/core/domain"
	"livegate/internal/core/ports"
)

// decrementClamped decrements a counter without letting it go below zero.
// The check and the write run atomically inside Redis, a plain DECR with a
// follow-up correction could race with concurrent increments.
var decrementClamped = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisViewerCounter is the shared counter store used when several
// processes serve the same lives.
type RedisViewerCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisViewerCounter(client *redis.Client) ports.ViewerCounter {
	return &RedisViewerCounter{
		client: client,
		prefix: "livegate:viewers:",
	}
}

func (c *RedisViewerCounter) counterKey(liveID domain.LiveID) string {
	return c.prefix + string(liveID)
}

func (c *RedisViewerCounter) Increment(ctx context.Context, liveID domain.LiveID) (int64, error) {
	count, err := c.client.Incr(ctx, c.counterKey(liveID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment viewer count: %w", err)
	}
	return count, nil
}

func (c *RedisViewerCounter) Decrement(ctx context.Context, liveID domain.LiveID) (int64, error) {
	count, err := decrementClamped.Run(ctx, c.client, []string{c.counterKey(liveID)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement viewer count: %w", err)
	}
	return count, nil
}

func (c *RedisViewerCounter) Count(ctx context.Context, liveID domain.LiveID) (int64, error) {
	count, err := c.client.Get(ctx, c.counterKey(liveID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read viewer count: %w", err)
	}
	return count, nil
}

func (c *RedisViewerCounter) Reset(ctx context.Context, liveID domain.LiveID) error {
	if err := c.client.Del(ctx, c.counterKey(liveID)).Err(); err != nil {
		return fmt.Errorf("failed to reset viewer count: %w", err)
	}
	return nil
}
