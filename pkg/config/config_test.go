package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.RTC.AppID = "test-app-id"
	cfg.RTC.AppCertificate = "test-certificate"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q, want :8080", cfg.Server.Address)
	}
	if cfg.RTC.TokenTTL != 24*time.Hour {
		t.Errorf("RTC.TokenTTL = %v, want 24h", cfg.RTC.TokenTTL)
	}
	if cfg.RTC.EphemeralTTL != time.Hour {
		t.Errorf("RTC.EphemeralTTL = %v, want 1h", cfg.RTC.EphemeralTTL)
	}
	if cfg.RateLimiting.Policies.Issuance.Points != 20 {
		t.Errorf("issuance points = %d, want 20", cfg.RateLimiting.Policies.Issuance.Points)
	}
	if cfg.RateLimiting.Policies.Auth.BlockDuration != 15*time.Minute {
		t.Errorf("auth block duration = %v, want 15m", cfg.RateLimiting.Policies.Auth.BlockDuration)
	}
}

func TestValidate_MissingRTCSecrets(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil without rtc secrets, want error")
	}

	cfg.RTC.AppID = "app"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil without rtc.app_certificate, want error")
	}

	cfg.RTC.AppCertificate = "cert"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidate_RateLimitPolicies(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimiting.Policies.Issuance.Points = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil with zero issuance points, want error")
	}
}

func TestValidate_UseRedisRequiresRedis(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimiting.UseRedis = true
	cfg.Redis.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil with use_redis but redis disabled, want error")
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("Server.Address = %q, want default", cfg.Server.Address)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  address: ":9999"
rtc:
  app_id: "file-app"
  app_certificate: "file-cert"
  token_ttl: 2h
rate_limiting:
  policies:
    issuance:
      points: 5
      window: 30s
      block_duration: 1m
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Errorf("Server.Address = %q, want :9999", cfg.Server.Address)
	}
	if cfg.RTC.AppID != "file-app" {
		t.Errorf("RTC.AppID = %q, want file-app", cfg.RTC.AppID)
	}
	if cfg.RTC.TokenTTL != 2*time.Hour {
		t.Errorf("RTC.TokenTTL = %v, want 2h", cfg.RTC.TokenTTL)
	}
	if cfg.RateLimiting.Policies.Issuance.Points != 5 {
		t.Errorf("issuance points = %d, want 5", cfg.RateLimiting.Policies.Issuance.Points)
	}
	// Untouched sections keep their defaults.
	if cfg.RateLimiting.Policies.Auth.Points != 5 {
		t.Errorf("auth points = %d, want default 5", cfg.RateLimiting.Policies.Auth.Points)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIVEGATE_RTC_APP_ID", "env-app")
	t.Setenv("LIVEGATE_RTC_APP_CERTIFICATE", "env-cert")
	t.Setenv("LIVEGATE_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RTC.AppID != "env-app" {
		t.Errorf("RTC.AppID = %q, want env-app", cfg.RTC.AppID)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil with env secrets", err)
	}
}
