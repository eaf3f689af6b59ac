package repositories

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"livegate/internal/core/ports"
	"livegate/internal/infrastructure/repositories/memory"
	redisrepo "livegate/internal/infrastructure/repositories/redis"
	"livegate/pkg/config"
	"livegate/pkg/ratelimit"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	cfg         *config.Config
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:      cfg,
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// CreateLiveRepository creates a live session repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateLiveRepository() ports.LiveRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisLiveRepository(f.redisClient)
	}
	return memory.NewMemoryLiveRepository()
}

// CreateMessageRepository creates a chat message repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateMessageRepository() ports.MessageRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisMessageRepository(f.redisClient, f.cfg.Chat.HistoryLimit)
	}
	return memory.NewMemoryMessageRepository(f.cfg.Chat.HistoryLimit)
}

// CreateViewerCounter creates a viewer counter store (Redis or memory with fallback)
func (f *RepositoryFactory) CreateViewerCounter() ports.ViewerCounter {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisViewerCounter(f.redisClient)
	}
	return memory.NewMemoryViewerCounter()
}

// CreateRateLimiter creates the quota consumer. Redis-backed when
// configured so quotas hold across processes, in-process otherwise.
func (f *RepositoryFactory) CreateRateLimiter() ratelimit.Consumer {
	if !f.cfg.RateLimiting.Enabled {
		return nil
	}

	policies := f.policies()
	if f.cfg.RateLimiting.UseRedis && f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisRateLimitStore(f.redisClient, policies)
	}
	return ratelimit.New(policies)
}

func (f *RepositoryFactory) policies() map[string]ratelimit.Policy {
	toPolicy := func(p config.PolicyConfig) ratelimit.Policy {
		return ratelimit.Policy{
			Points:        p.Points,
			Duration:      p.Window,
			BlockDuration: p.BlockDuration,
		}
	}
	policies := map[string]ratelimit.Policy{
		ratelimit.PolicyGeneral:   toPolicy(f.cfg.RateLimiting.Policies.General),
		ratelimit.PolicyAuth:      toPolicy(f.cfg.RateLimiting.Policies.Auth),
		ratelimit.PolicyIssuance:  toPolicy(f.cfg.RateLimiting.Policies.Issuance),
		ratelimit.PolicyMessaging: toPolicy(f.cfg.RateLimiting.Policies.Messaging),
	}
	for name, p := range policies {
		if p.Points <= 0 || p.Duration <= 0 {
			defaults := ratelimit.DefaultPolicies()
			policies[name] = defaults[name]
		}
	}
	return policies
}

// RedisClient exposes the shared client for health probes. Nil when the
// factory fell back to memory repositories.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}
