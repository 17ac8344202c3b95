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

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the shared redis connection used by caches and limiters.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// LLMConfig provides settings for the conversational language model.
type LLMConfig interface {
	GetLLMProvider() string
	GetLLMAPIKey() string
	GetLLMBaseURL() string
	GetLLMModel() string
	GetLLMTimeout() time.Duration
}

// InsightsConfig provides settings for snapshot aggregation.
type InsightsConfig interface {
	GetSnapshotCacheTTL() time.Duration
	GetSnapshotBuildTimeout() time.Duration
	GetSnapshotStore() string
}

// AssistantConfig provides settings for the chat surface.
type AssistantConfig interface {
	GetRateLimitWindow() time.Duration
	GetRateLimitMax() int
	GetRateLimitStore() string
	GetSessionIdleTTL() time.Duration
}

// DeepLinkConfig provides the base URL used to build entity links.
type DeepLinkConfig interface {
	GetAppBaseURL() string
}

// SMTPConfig provides settings for outbound email delivery.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsSMTPEnabled() bool
}

// WhatsAppConfig provides settings for the WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                  string
	HTTPAddr             string
	DatabaseURL          string
	JWTAccessSecret      string
	CORSAllowAll         bool
	CORSOrigins          []string
	CORSAllowCreds       bool
	AppBaseURL           string
	RedisURL             string
	RedisTLSInsecure     bool
	AsynqQueueName       string
	AsynqConcurrency     int
	LLMProvider          string
	LLMAPIKey            string
	LLMBaseURL           string
	LLMModel             string
	LLMTimeout           time.Duration
	SnapshotCacheTTL     time.Duration
	SnapshotBuildTimeout time.Duration
	SnapshotStore        string
	RateLimitWindow      time.Duration
	RateLimitMax         int
	RateLimitStore       string
	SessionIdleTTL       time.Duration
	SMTPHost             string
	SMTPPort             int
	SMTPUsername         string
	SMTPPassword         string
	EmailFromName        string
	EmailFromAddress     string
	WhatsAppURL          string
	WhatsAppKey          string
	WhatsAppDeviceID     string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// LLMConfig implementation
func (c *Config) GetLLMProvider() string       { return c.LLMProvider }
func (c *Config) GetLLMAPIKey() string         { return c.LLMAPIKey }
func (c *Config) GetLLMBaseURL() string        { return c.LLMBaseURL }
func (c *Config) GetLLMModel() string          { return c.LLMModel }
func (c *Config) GetLLMTimeout() time.Duration { return c.LLMTimeout }

// InsightsConfig implementation
func (c *Config) GetSnapshotCacheTTL() time.Duration     { return c.SnapshotCacheTTL }
func (c *Config) GetSnapshotBuildTimeout() time.Duration { return c.SnapshotBuildTimeout }
func (c *Config) GetSnapshotStore() string               { return c.SnapshotStore }

// AssistantConfig implementation
func (c *Config) GetRateLimitWindow() time.Duration { return c.RateLimitWindow }
func (c *Config) GetRateLimitMax() int              { return c.RateLimitMax }
func (c *Config) GetRateLimitStore() string         { return c.RateLimitStore }
func (c *Config) GetSessionIdleTTL() time.Duration  { return c.SessionIdleTTL }

// DeepLinkConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsSMTPEnabled() bool         { return c.SMTPHost != "" && c.EmailFromAddress != "" }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string      { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string { return c.WhatsAppDeviceID }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                  getEnv("APP_ENV", "development"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		JWTAccessSecret:      getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:         corsAllowAll,
		CORSOrigins:          corsOrigins,
		CORSAllowCreds:       strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:           getEnv("APP_BASE_URL", "http://localhost:4200"),
		RedisURL:             getEnv("REDIS_URL", ""),
		RedisTLSInsecure:     strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:       getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:     mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		LLMProvider:          strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		LLMBaseURL:           getEnv("LLM_BASE_URL", ""),
		LLMModel:             getEnv("LLM_MODEL", ""),
		LLMTimeout:           mustDuration(getEnv("LLM_TIMEOUT", "30s")),
		SnapshotCacheTTL:     mustDuration(getEnv("SNAPSHOT_CACHE_TTL", "10m")),
		SnapshotBuildTimeout: mustDuration(getEnv("SNAPSHOT_BUILD_TIMEOUT", "0s")),
		SnapshotStore:        strings.ToLower(getEnv("SNAPSHOT_STORE", "memory")),
		RateLimitWindow:      mustDuration(getEnv("RATE_LIMIT_WINDOW", "60s")),
		RateLimitMax:         mustInt(getEnv("RATE_LIMIT_MAX", "10")),
		RateLimitStore:       strings.ToLower(getEnv("RATE_LIMIT_STORE", "memory")),
		SessionIdleTTL:       mustDuration(getEnv("SESSION_IDLE_TTL", "24h")),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:         getEnv("SMTP_USERNAME", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "Portal"),
		EmailFromAddress:     getEnv("EMAIL_FROM_ADDRESS", ""),
		WhatsAppURL:          getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:          getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:     getEnv("WHATSAPP_DEVICE_ID", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.LLMProvider != "openai" && cfg.LLMProvider != "gemini" {
		return nil, fmt.Errorf("LLM_PROVIDER must be openai or gemini")
	}
	if (cfg.SnapshotStore == "redis" || cfg.RateLimitStore == "redis") && cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required when a redis store is selected")
	}
	if cfg.RateLimitMax < 1 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
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
