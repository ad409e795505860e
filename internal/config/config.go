package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	PasswordMinLength int

	DB    DBConfig
	Redis RedisConfig

	AllowedOrigins string
	CSRFMode       string
	CookieSecure   bool

	LogLevel       string
	LogDevelopment bool

	LinkHistoryTTL time.Duration
	LinkRateLimit  int

	WS WSConfig
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     string
	SSLMode  string
}

// DSN builds the key/value connection string understood by the postgres driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type WSConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET is required")

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            envString("PORT", "8080"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  envDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL: envDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		PasswordMinLength: envInt("PASSWORD_MIN_LENGTH", 10),

		DB: DBConfig{
			Host:     envString("DB_HOST", "localhost"),
			User:     envString("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     envString("DB_NAME", "deskdrop"),
			Port:     envString("DB_PORT", "5432"),
			SSLMode:  envString("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     envString("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		AllowedOrigins: strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")),
		CSRFMode:       envString("CSRF_MODE", "token"),
		CookieSecure:   envBool("COOKIE_SECURE", true),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogDevelopment: envBool("LOG_DEVELOPMENT", false),
		LinkHistoryTTL: envDuration("LINK_HISTORY_TTL", time.Minute),
		LinkRateLimit:  envInt("LINK_RATE_LIMIT", 60),
		WS: WSConfig{
			PingInterval: envDuration("WS_PING_INTERVAL", 30*time.Second),
			PongTimeout:  envDuration("WS_PONG_TIMEOUT", 90*time.Second),
			WriteTimeout: envDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
