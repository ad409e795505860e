package config

import (
	"errors"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("WS_PING_INTERVAL", "")
	t.Setenv("PASSWORD_MIN_LENGTH", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("Redis.DB = %d, want 0", cfg.Redis.DB)
	}
	if cfg.WS.PingInterval != 30*time.Second {
		t.Errorf("WS.PingInterval = %v, want 30s", cfg.WS.PingInterval)
	}
	if cfg.LinkRateLimit != 60 {
		t.Errorf("LinkRateLimit = %d, want 60", cfg.LinkRateLimit)
	}
	if cfg.PasswordMinLength != 10 {
		t.Errorf("PasswordMinLength = %d, want 10", cfg.PasswordMinLength)
	}
}

func TestFromEnvOverridesAndFallbacks(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("WS_PONG_TIMEOUT", "not-a-duration")
	t.Setenv("LINK_RATE_LIMIT", "-4")
	t.Setenv("LOG_DEVELOPMENT", "true")
	t.Setenv("PASSWORD_MIN_LENGTH", "14")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("Redis.DB = %d, want 3", cfg.Redis.DB)
	}
	if cfg.AccessTokenTTL != 5*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 5m", cfg.AccessTokenTTL)
	}
	if cfg.WS.PongTimeout != 90*time.Second {
		t.Errorf("WS.PongTimeout = %v, want default 90s", cfg.WS.PongTimeout)
	}
	if cfg.LinkRateLimit != 60 {
		t.Errorf("LinkRateLimit = %d, want default 60", cfg.LinkRateLimit)
	}
	if cfg.PasswordMinLength != 14 {
		t.Errorf("PasswordMinLength = %d, want 14", cfg.PasswordMinLength)
	}
	if !cfg.LogDevelopment {
		t.Error("LogDevelopment = false, want true")
	}
}

func TestFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := FromEnv(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("FromEnv() error = %v, want ErrMissingJWTSecret", err)
	}
}

func TestDSN(t *testing.T) {
	c := DBConfig{Host: "db", User: "u", Password: "p", Name: "n", Port: "5432", SSLMode: "disable"}
	want := "host=db user=u password=p dbname=n port=5432 sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
