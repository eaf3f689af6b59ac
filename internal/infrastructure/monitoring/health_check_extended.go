package monitoring

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"livegate/internal/core/ports"
)

// AddRedisCheck adds a Redis health check
func (h *HealthChecker) AddRedisCheck(client *redis.Client, interval, timeout time.Duration) {
	h.AddCheck("redis", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddRepositoryCheck adds a live repository health check
func (h *HealthChecker) AddRepositoryCheck(repo ports.LiveRepository, interval, timeout time.Duration) {
	h.AddCheck("repository", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		// Try to list live sessions as a health check
		_, err := repo.ListActive(ctx, 1, 0)
		if err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddCredentialCheck verifies the issuance configuration can actually sign
// a credential. Missing secret material turns up here instead of on the
// first caller.
func (h *HealthChecker) AddCredentialCheck(tokens ports.TokenService, interval, timeout time.Duration) {
	h.AddCheck("credentials", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return tokens.TestConfiguration(ctx), nil
	}, interval, timeout)
}

// AddReadinessCheck creates a readiness check that verifies all dependencies
func (h *HealthChecker) AddReadinessCheck(
	redisClient *redis.Client,
	repo ports.LiveRepository,
	interval, timeout time.Duration,
) {
	h.AddCheck("readiness", func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return false, err
			}
		}

		if repo != nil {
			if _, err := repo.ListActive(ctx, 1, 0); err != nil {
				return false, err
			}
		}

		return true, nil
	}, interval, timeout)
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.CheckAll(ctx)
}
