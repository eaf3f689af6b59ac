package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"livegate/pkg/ratelimit"
)

// consumeQuota runs the whole consume-check-block sequence inside Redis so
// concurrent requests from the same key cannot under-count. Returns
// {allowed, remaining, retry_after_ms}.
var consumeQuota = redis.NewScript(`
local block_ttl = redis.call('PTTL', KEYS[2])
if block_ttl > 0 then
	return {0, 0, block_ttl}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if count > tonumber(ARGV[1]) then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
	redis.call('DEL', KEYS[1])
	return {0, 0, tonumber(ARGV[3])}
end
return {1, tonumber(ARGV[1]) - count, 0}
`)

// RedisRateLimitStore is the shared-store ratelimit.Consumer. Quota state
// lives in Redis so limits hold across every process serving traffic.
type RedisRateLimitStore struct {
	client   *redis.Client
	prefix   string
	policies map[string]ratelimit.Policy
}

func NewRedisRateLimitStore(client *redis.Client, policies map[string]ratelimit.Policy) *RedisRateLimitStore {
	if policies == nil {
		policies = ratelimit.DefaultPolicies()
	}
	return &RedisRateLimitStore{
		client:   client,
		prefix:   "livegate:ratelimit:",
		policies: policies,
	}
}

func (s *RedisRateLimitStore) Consume(ctx context.Context, policy, key string) (ratelimit.Result, error) {
	p, ok := s.policies[policy]
	if !ok {
		return ratelimit.Result{}, fmt.Errorf("unknown rate limit policy: %s", policy)
	}

	countKey := s.prefix + policy + ":" + key
	blockKey := countKey + ":block"

	raw, err := consumeQuota.Run(ctx, s.client,
		[]string{countKey, blockKey},
		p.Points,
		p.Duration.Milliseconds(),
		p.BlockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return ratelimit.Result{}, fmt.Errorf("failed to consume rate limit quota: %w", err)
	}
	if len(raw) != 3 {
		return ratelimit.Result{}, fmt.Errorf("unexpected rate limit script result: %v", raw)
	}

	return ratelimit.Result{
		Allowed:    raw[0] == 1,
		Remaining:  int(raw[1]),
		RetryAfter: time.Duration(raw[2]) * time.Millisecond,
	}, nil
}
