// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// MigrationConfig provides the location of the SQL migrations.
type MigrationConfig interface {
	DatabaseConfig
	GetMigrationsDir() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// HookConfig provides settings for the change-notification hooks.
type HookConfig interface {
	GetHookSecret() string
	GetHookRateLimitPerMinute() int
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// StoryConfig provides settings for the story engine.
type StoryConfig interface {
	IsStoryAsyncIngest() bool
	GetStoryLockBackend() string
	GetStoryLockTTL() time.Duration
	GetStoryLockWait() time.Duration
}

// PhoneConfig provides settings for phone-based contact resolution.
type PhoneConfig interface {
	GetPhoneDefaultRegion() string
	IsContactAutoCreate() bool
}

// ExportConfig provides settings for the CSV and XLSX story exports.
type ExportConfig interface {
	GetExportAPIKey() string
}

// Lock backends understood by GetStoryLockBackend.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	MigrationsDir          string
	CORSAllowAll           bool
	CORSOrigins            []string
	HookSecret             string
	HookRateLimitPerMinute int
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	StoryAsyncIngest       bool
	StoryLockBackend       string
	StoryLockTTL           time.Duration
	StoryLockWait          time.Duration
	PhoneDefaultRegion     string
	ContactAutoCreate      bool
	ExportAPIKey           string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string   { return c.DatabaseURL }
func (c *Config) GetMigrationsDir() string { return c.MigrationsDir }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// HookConfig implementation
func (c *Config) GetHookSecret() string          { return c.HookSecret }
func (c *Config) GetHookRateLimitPerMinute() int { return c.HookRateLimitPerMinute }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) IsSchedulerEnabled() bool  { return c.RedisURL != "" }

// StoryConfig implementation
func (c *Config) IsStoryAsyncIngest() bool        { return c.StoryAsyncIngest }
func (c *Config) GetStoryLockBackend() string     { return c.StoryLockBackend }
func (c *Config) GetStoryLockTTL() time.Duration  { return c.StoryLockTTL }
func (c *Config) GetStoryLockWait() time.Duration { return c.StoryLockWait }

// PhoneConfig implementation
func (c *Config) GetPhoneDefaultRegion() string { return c.PhoneDefaultRegion }
func (c *Config) IsContactAutoCreate() bool     { return c.ContactAutoCreate }

// ExportConfig implementation
func (c *Config) GetExportAPIKey() string { return c.ExportAPIKey }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		MigrationsDir:          getEnv("MIGRATIONS_DIR", "migrations"),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		HookSecret:             getEnv("HOOK_SECRET", ""),
		HookRateLimitPerMinute: mustInt(getEnv("HOOK_RATE_LIMIT_PER_MIN", "600")),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE_NAME", "story"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		StoryAsyncIngest:       strings.EqualFold(getEnv("STORY_ASYNC_INGEST", "false"), "true"),
		StoryLockBackend:       strings.ToLower(getEnv("STORY_LOCK_BACKEND", LockBackendMemory)),
		StoryLockTTL:           mustDuration(getEnv("STORY_LOCK_TTL", "30s")),
		StoryLockWait:          mustDuration(getEnv("STORY_LOCK_WAIT", "10s")),
		PhoneDefaultRegion:     strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "NL")),
		ContactAutoCreate:      strings.EqualFold(getEnv("CONTACT_AUTO_CREATE", "true"), "true"),
		ExportAPIKey:           getEnv("EXPORT_API_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StoryLockBackend != LockBackendMemory && cfg.StoryLockBackend != LockBackendRedis {
		return nil, fmt.Errorf("STORY_LOCK_BACKEND must be %q or %q", LockBackendMemory, LockBackendRedis)
	}
	if cfg.StoryLockBackend == LockBackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when STORY_LOCK_BACKEND is redis")
	}
	if cfg.StoryAsyncIngest && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when STORY_ASYNC_INGEST is true")
	}
	if cfg.StoryLockTTL <= 0 {
		return nil, fmt.Errorf("STORY_LOCK_TTL must be a positive duration")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
