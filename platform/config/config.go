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

// JWTConfig provides JWT validation settings for the admin routes.
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

// WhatsAppConfig provides settings for the messaging gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetWhatsAppWebhookSecret() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketServicePhotos() string
	GetMinioBucketPaymentProofs() string
	IsMinIOEnabled() bool
}

// SchedulerConfig provides settings for the asynq reminder queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetReminderLeadTime() time.Duration
}

// DedupConfig provides settings for inbound event deduplication.
type DedupConfig interface {
	GetRedisURL() string
	GetDedupTTL() time.Duration
}

// RoutingConfig provides settings for the directions adapter.
type RoutingConfig interface {
	GetGoogleMapsAPIKey() string
}

// CalendarConfig provides settings for the calendar adapter.
type CalendarConfig interface {
	GetCalendarID() string
	GetCalendarCredentialsFile() string
	GetCalendarTimeZone() string
	IsCalendarEnabled() bool
}

// SMTPConfig provides settings for the finance mailbox copies.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetFinanceEmail() string
	IsSMTPEnabled() bool
}

// SessionConfig provides settings for the in-memory session store.
type SessionConfig interface {
	GetSessionIdleTTL() time.Duration
	GetSessionLockTimeout() time.Duration
	GetEventTimeout() time.Duration
}

// CatalogConfig provides the services catalog location.
type CatalogConfig interface {
	GetCatalogPath() string
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                      string
	HTTPAddr                 string
	DatabaseURL              string
	MigrationsEnabled        bool
	LogFile                  string
	JWTAccessSecret          string
	CORSAllowAll             bool
	CORSOrigins              []string
	CORSAllowCreds           bool
	WhatsAppURL              string
	WhatsAppKey              string
	WhatsAppDeviceID         string
	WhatsAppWebhookSecret    string
	MinIOEndpoint            string
	MinIOAccessKey           string
	MinIOSecretKey           string
	MinIOUseSSL              bool
	MinIOMaxFileSize         int64
	MinioBucketServicePhotos string
	MinioBucketPaymentProofs string
	RedisURL                 string
	RedisTLSInsecure         bool
	AsynqQueueName           string
	AsynqConcurrency         int
	ReminderLeadTime         time.Duration
	DedupTTL                 time.Duration
	GoogleMapsAPIKey         string
	CalendarID               string
	CalendarCredentialsFile  string
	CalendarTimeZone         string
	SMTPHost                 string
	SMTPPort                 int
	SMTPUsername             string
	SMTPPassword             string
	EmailFromName            string
	EmailFromAddress         string
	FinanceEmail             string
	SessionIdleTTL           time.Duration
	SessionLockTimeout       time.Duration
	EventTimeout             time.Duration
	CatalogPath              string
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

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string           { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string           { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string      { return c.WhatsAppDeviceID }
func (c *Config) GetWhatsAppWebhookSecret() string { return c.WhatsAppWebhookSecret }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string            { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string           { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string           { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool                { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64          { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketServicePhotos() string { return c.MinioBucketServicePhotos }
func (c *Config) GetMinioBucketPaymentProofs() string { return c.MinioBucketPaymentProofs }
func (c *Config) IsMinIOEnabled() bool                { return c.MinIOEndpoint != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetReminderLeadTime() time.Duration { return c.ReminderLeadTime }

// DedupConfig implementation
func (c *Config) GetDedupTTL() time.Duration { return c.DedupTTL }

// RoutingConfig implementation
func (c *Config) GetGoogleMapsAPIKey() string { return c.GoogleMapsAPIKey }

// CalendarConfig implementation
func (c *Config) GetCalendarID() string              { return c.CalendarID }
func (c *Config) GetCalendarCredentialsFile() string { return c.CalendarCredentialsFile }
func (c *Config) GetCalendarTimeZone() string        { return c.CalendarTimeZone }
func (c *Config) IsCalendarEnabled() bool {
	return c.CalendarID != "" && c.CalendarCredentialsFile != ""
}

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetFinanceEmail() string     { return c.FinanceEmail }
func (c *Config) IsSMTPEnabled() bool {
	return c.SMTPHost != "" && c.FinanceEmail != ""
}

// SessionConfig implementation
func (c *Config) GetSessionIdleTTL() time.Duration     { return c.SessionIdleTTL }
func (c *Config) GetSessionLockTimeout() time.Duration { return c.SessionLockTimeout }
func (c *Config) GetEventTimeout() time.Duration       { return c.EventTimeout }

// CatalogConfig implementation
func (c *Config) GetCatalogPath() string { return c.CatalogPath }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		MigrationsEnabled:        strings.EqualFold(getEnv("MIGRATIONS_ENABLED", "true"), "true"),
		LogFile:                  getEnv("LOG_FILE", ""),
		JWTAccessSecret:          getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:             corsAllowAll,
		CORSOrigins:              corsOrigins,
		CORSAllowCreds:           strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		WhatsAppURL:              getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:              getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:         getEnv("WHATSAPP_DEVICE_ID", ""),
		WhatsAppWebhookSecret:    getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		MinIOEndpoint:            getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:           getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:           getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:              strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:         mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "16777216")),
		MinioBucketServicePhotos: getEnv("MINIO_BUCKET_SERVICE_PHOTOS", "service-photos"),
		MinioBucketPaymentProofs: getEnv("MINIO_BUCKET_PAYMENT_PROOFS", "payment-proofs"),
		RedisURL:                 getEnv("REDIS_URL", ""),
		RedisTLSInsecure:         strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:           getEnv("ASYNQ_QUEUE", "dispatch"),
		AsynqConcurrency:         int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "5"))),
		ReminderLeadTime:         mustDuration(getEnv("REMINDER_LEAD_TIME", "24h")),
		DedupTTL:                 mustDuration(getEnv("DEDUP_TTL", "10m")),
		GoogleMapsAPIKey:         getEnv("GOOGLE_MAPS_API_KEY", ""),
		CalendarID:               getEnv("CALENDAR_ID", ""),
		CalendarCredentialsFile:  getEnv("CALENDAR_CREDENTIALS_FILE", ""),
		CalendarTimeZone:         getEnv("CALENDAR_TIMEZONE", "America/Sao_Paulo"),
		SMTPHost:                 getEnv("SMTP_HOST", ""),
		SMTPPort:                 int(mustInt64(getEnv("SMTP_PORT", "587"))),
		SMTPUsername:             getEnv("SMTP_USERNAME", ""),
		SMTPPassword:             getEnv("SMTP_PASSWORD", ""),
		EmailFromName:            getEnv("EMAIL_FROM_NAME", "Atendimento"),
		EmailFromAddress:         getEnv("EMAIL_FROM_ADDRESS", ""),
		FinanceEmail:             getEnv("FINANCE_EMAIL", ""),
		SessionIdleTTL:           mustDuration(getEnv("SESSION_IDLE_TTL", "2h")),
		SessionLockTimeout:       mustDuration(getEnv("SESSION_LOCK_TIMEOUT", "10s")),
		EventTimeout:             mustDuration(getEnv("EVENT_TIMEOUT", "60s")),
		CatalogPath:              getEnv("CATALOG_PATH", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.WhatsAppURL != "" && cfg.WhatsAppWebhookSecret == "" {
		return nil, fmt.Errorf("WHATSAPP_WEBHOOK_SECRET is required when WHATSAPP_URL is set")
	}
	if cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when SMTP_HOST is set")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.SessionIdleTTL <= 0 || cfg.SessionLockTimeout <= 0 || cfg.EventTimeout <= 0 {
		return nil, fmt.Errorf("SESSION_IDLE_TTL, SESSION_LOCK_TIMEOUT and EVENT_TIMEOUT must be positive durations")
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

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
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
