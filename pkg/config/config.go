package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type PolicyConfig struct {
	Points        int           `yaml:"points"`
	Window        time.Duration `yaml:"window"`
	BlockDuration time.Duration `yaml:"block_duration"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	RTC struct {
		AppID          string        `yaml:"app_id"`
		AppCertificate string        `yaml:"app_certificate"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
		EphemeralTTL   time.Duration `yaml:"ephemeral_ttl"`
	} `yaml:"rtc"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		// UseRedis backs quota state with the shared Redis store so limits
		// hold across processes. Requires redis.enabled.
		UseRedis bool `yaml:"use_redis"`

		Policies struct {
			General   PolicyConfig `yaml:"general"`
			Auth      PolicyConfig `yaml:"auth"`
			Issuance  PolicyConfig `yaml:"issuance"`
			Messaging PolicyConfig `yaml:"messaging"`
		} `yaml:"policies"`

		Flood struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"flood"`
	} `yaml:"rate_limiting"`

	Chat struct {
		HistoryLimit        int   `yaml:"history_limit"`
		MaxMessageSizeBytes int64 `yaml:"max_message_size_bytes"`
	} `yaml:"chat"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		SampleRate  float64 `yaml:"sample_rate"`
		Environment string  `yaml:"environment"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// RTC credential material. Absence is fatal: the process must refuse
	// to serve issuance without secrets.
	if c.RTC.AppID == "" {
		return fmt.Errorf("rtc.app_id must not be empty")
	}
	if c.RTC.AppCertificate == "" {
		return fmt.Errorf("rtc.app_certificate must not be empty")
	}
	if c.RTC.TokenTTL <= 0 {
		return fmt.Errorf("rtc.token_ttl must be > 0")
	}
	if c.RTC.EphemeralTTL <= 0 {
		return fmt.Errorf("rtc.ephemeral_ttl must be > 0")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.UseRedis && !c.Redis.Enabled {
			return fmt.Errorf("rate_limiting.use_redis requires redis.enabled=true")
		}
		for name, p := range map[string]PolicyConfig{
			"general":   c.RateLimiting.Policies.General,
			"auth":      c.RateLimiting.Policies.Auth,
			"issuance":  c.RateLimiting.Policies.Issuance,
			"messaging": c.RateLimiting.Policies.Messaging,
		} {
			if p.Points <= 0 {
				return fmt.Errorf("rate_limiting.policies.%s.points must be > 0", name)
			}
			if p.Window <= 0 {
				return fmt.Errorf("rate_limiting.policies.%s.window must be > 0", name)
			}
			if p.BlockDuration <= 0 {
				return fmt.Errorf("rate_limiting.policies.%s.block_duration must be > 0", name)
			}
		}
		if c.RateLimiting.Flood.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.flood.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Flood.Burst <= 0 {
			return fmt.Errorf("rate_limiting.flood.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Flood.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.flood.max_concurrent must be >= 0 when rate limiting is enabled")
		}
	}

	// Chat
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("chat.history_limit must be > 0")
	}
	if c.Chat.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("chat.max_message_size_bytes must be >= 0")
	}

	// Tracing
	if c.Tracing.Enabled && c.Tracing.JaegerURL == "" {
		return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults. RTC credential
// material has no default: it must come from the file or the environment.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.RTC.TokenTTL = 24 * time.Hour
	cfg.RTC.EphemeralTTL = time.Hour

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.UseRedis = false
	cfg.RateLimiting.Policies.General = PolicyConfig{Points: 100, Window: 15 * time.Minute, BlockDuration: 60 * time.Second}
	cfg.RateLimiting.Policies.Auth = PolicyConfig{Points: 5, Window: 15 * time.Minute, BlockDuration: 15 * time.Minute}
	cfg.RateLimiting.Policies.Issuance = PolicyConfig{Points: 20, Window: time.Minute, BlockDuration: 5 * time.Minute}
	cfg.RateLimiting.Policies.Messaging = PolicyConfig{Points: 10, Window: time.Minute, BlockDuration: 2 * time.Minute}
	cfg.RateLimiting.Flood.RequestsPerSecond = 50
	cfg.RateLimiting.Flood.Burst = 100
	cfg.RateLimiting.Flood.MaxConcurrent = 0

	cfg.Chat.HistoryLimit = 50
	cfg.Chat.MaxMessageSizeBytes = 4 * 1024

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0
	cfg.Tracing.Environment = "development"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("LIVEGATE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("LIVEGATE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("LIVEGATE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if appID := os.Getenv("LIVEGATE_RTC_APP_ID"); appID != "" {
		c.RTC.AppID = appID
	}
	if cert := os.Getenv("LIVEGATE_RTC_APP_CERTIFICATE"); cert != "" {
		c.RTC.AppCertificate = cert
	}
	if addr := os.Getenv("LIVEGATE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
}
