package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const developmentJWTSecret = "mindio-development-secret"

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	AI          AIConfig
	Suggestions SuggestionsConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Sets HSTS
	Environment string // "development", "production", "test"
	Debug       bool
	LogLevel    string
}

type DatabaseConfig struct {
	URL      string // DATABASE_URL; wins over the discrete settings
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration
}

type AIConfig struct {
	WebhookURL      string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	Locale          string
	Stub            bool
	RateLimit       int // personal generations per user per window
	RateLimitWindow time.Duration
}

type SuggestionsConfig struct {
	AutoApprove      bool
	IngestAPIKey     string
	IngestAPIKeyHash string // bcrypt hash, used instead of IngestAPIKey when set
	Timezone         string
	DailyTipCron     string
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return normalizeDatabaseURL(d.URL)
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// normalizeDatabaseURL requires TLS for hosted database URLs that do not
// choose an sslmode themselves.
func normalizeDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return raw
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (s SuggestionsConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// UsesDevelopmentSecret reports whether tokens are signed with the built-in
// development secret.
func (a AuthConfig) UsesDevelopmentSecret() bool {
	return a.JWTSecret == developmentJWTSecret
}

func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// Load reads the environment, after merging an optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Environment: getEnv("APP_ENV", "production"),
			Debug:       getEnvBool("DEBUG", false),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "mindio"),
			Password: getEnv("DB_PASSWORD", "mindio"),
			DBName:   getEnv("DB_NAME", "mindio"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTIssuer: getEnv("JWT_ISSUER", "mindio"),
			TokenTTL:  getEnvDuration("JWT_TTL", 30*24*time.Hour),
		},
		AI: AIConfig{
			WebhookURL:      strings.TrimSpace(getEnv("AI_WEBHOOK_URL", "")),
			ConnectTimeout:  getEnvDuration("AI_CONNECT_TIMEOUT", 10*time.Second),
			ReadTimeout:     getEnvDuration("AI_READ_TIMEOUT", 120*time.Second),
			MaxAttempts:     getEnvInt("AI_MAX_ATTEMPTS", 3),
			RetryBackoff:    getEnvDuration("AI_RETRY_BACKOFF", 1200*time.Millisecond),
			Locale:          getEnv("AI_LOCALE", "Turkish"),
			Stub:            getEnvBool("AI_STUB", false),
			RateLimit:       getEnvInt("AI_RATE_LIMIT", 10),
			RateLimitWindow: getEnvDuration("AI_RATE_LIMIT_WINDOW", time.Hour),
		},
		Suggestions: SuggestionsConfig{
			AutoApprove:      getEnvBool("SUGGESTIONS_AUTO_APPROVE", true),
			IngestAPIKey:     getEnv("INGEST_API_KEY", ""),
			IngestAPIKeyHash: getEnv("INGEST_API_KEY_HASH", ""),
			Timezone:         getEnv("SUGGESTIONS_TIMEZONE", "UTC"),
			DailyTipCron:     getEnv("DAILY_TIP_CRON", "5 0 * * *"),
		},
	}

	// Only an explicit APP_ENV=development falls back to the built-in secret.
	if cfg.Auth.JWTSecret == "" && cfg.Server.IsDevelopment() {
		cfg.Auth.JWTSecret = developmentJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required outside development")
	}
	if _, err := c.Suggestions.Location(); err != nil {
		return fmt.Errorf("invalid SUGGESTIONS_TIMEZONE %q: %w", c.Suggestions.Timezone, err)
	}
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("AI_MAX_ATTEMPTS must be at least 1, got %d", c.AI.MaxAttempts)
	}
	if c.AI.ConnectTimeout <= 0 || c.AI.ReadTimeout <= 0 {
		return errors.New("AI timeouts must be positive")
	}
	return nil
}

// CallBudget is the longest a webhook call sequence may take, including backoff.
func (a AIConfig) CallBudget() time.Duration {
	attempts := time.Duration(a.MaxAttempts)
	backoff := a.RetryBackoff * attempts * (attempts - 1) / 2
	return (a.ConnectTimeout+a.ReadTimeout)*attempts + backoff
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1m30s") or plain seconds ("10", "1.2").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}
