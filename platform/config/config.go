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

// RedisConfig provides redis connection settings for the admin control
// state and the background job queue.
type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	IsRedisEnabled() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// WhatsAppConfig provides settings for the outbound WhatsApp gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppUser() string
	GetWhatsAppPassword() string
	IsWhatsAppEnabled() bool
}

// CalendarConfig provides settings for the external calendar bridge.
type CalendarConfig interface {
	GetCalendarURL() string
	GetCalendarAPIKey() string
	GetCalendarID() string
	IsCalendarEnabled() bool
}

// AIConfig provides settings for the AI message classifier.
type AIConfig interface {
	GetGeminiAPIKey() string
	GetGeminiModel() string
	IsAIEnabled() bool
}

// AdminConfig provides settings for the admin control module.
type AdminConfig interface {
	GetOperatorIdentity() string
	GetAdminToken() string
	GetRateLimitMax() int
	GetRateLimitWindow() time.Duration
}

// NotifyConfig provides settings for lead notification delivery.
type NotifyConfig interface {
	GetNotifyWebhookURL() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUser() string
	GetSMTPPassword() string
	GetNotifyEmailFrom() string
	GetNotifyEmailTo() string
	IsEmailEnabled() bool
}

// IntakeConfig provides the conversation and scheduling business parameters.
type IntakeConfig interface {
	GetTimezone() string
	GetBusinessStartHour() int
	GetBusinessEndHour() int
	GetSlotDuration() time.Duration
	GetHoldTTL() time.Duration
	GetDedupWindow() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env               string
	HTTPAddr          string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CORSAllowAll      bool
	CORSOrigins       []string
	CORSAllowCreds    bool
	WhatsAppURL       string
	WhatsAppUser      string
	WhatsAppPassword  string
	CalendarURL       string
	CalendarAPIKey    string
	CalendarID        string
	GeminiAPIKey      string
	GeminiModel       string
	OperatorIdentity  string
	AdminToken        string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	NotifyWebhookURL  string
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	NotifyEmailFrom   string
	NotifyEmailTo     string
	Timezone          string
	BusinessStartHour int
	BusinessEndHour   int
	SlotDuration      time.Duration
	HoldTTL           time.Duration
	DedupWindow       time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig implementation
func (c *Config) GetRedisAddr() string     { return c.RedisAddr }
func (c *Config) GetRedisPassword() string { return c.RedisPassword }
func (c *Config) GetRedisDB() int          { return c.RedisDB }
func (c *Config) IsRedisEnabled() bool     { return c.RedisAddr != "" }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string      { return c.WhatsAppURL }
func (c *Config) GetWhatsAppUser() string     { return c.WhatsAppUser }
func (c *Config) GetWhatsAppPassword() string { return c.WhatsAppPassword }
func (c *Config) IsWhatsAppEnabled() bool     { return c.WhatsAppURL != "" }

// CalendarConfig implementation
func (c *Config) GetCalendarURL() string    { return c.CalendarURL }
func (c *Config) GetCalendarAPIKey() string { return c.CalendarAPIKey }
func (c *Config) GetCalendarID() string     { return c.CalendarID }
func (c *Config) IsCalendarEnabled() bool   { return c.CalendarURL != "" }

// AIConfig implementation
func (c *Config) GetGeminiAPIKey() string { return c.GeminiAPIKey }
func (c *Config) GetGeminiModel() string  { return c.GeminiModel }
func (c *Config) IsAIEnabled() bool       { return c.GeminiAPIKey != "" }

// AdminConfig implementation
func (c *Config) GetOperatorIdentity() string       { return c.OperatorIdentity }
func (c *Config) GetAdminToken() string             { return c.AdminToken }
func (c *Config) GetRateLimitMax() int              { return c.RateLimitMax }
func (c *Config) GetRateLimitWindow() time.Duration { return c.RateLimitWindow }

// NotifyConfig implementation
func (c *Config) GetNotifyWebhookURL() string { return c.NotifyWebhookURL }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUser() string         { return c.SMTPUser }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetNotifyEmailFrom() string  { return c.NotifyEmailFrom }
func (c *Config) GetNotifyEmailTo() string    { return c.NotifyEmailTo }
func (c *Config) IsEmailEnabled() bool        { return c.SMTPHost != "" && c.NotifyEmailTo != "" }

// IntakeConfig implementation
func (c *Config) GetTimezone() string            { return c.Timezone }
func (c *Config) GetBusinessStartHour() int      { return c.BusinessStartHour }
func (c *Config) GetBusinessEndHour() int        { return c.BusinessEndHour }
func (c *Config) GetSlotDuration() time.Duration { return c.SlotDuration }
func (c *Config) GetHoldTTL() time.Duration      { return c.HoldTTL }
func (c *Config) GetDedupWindow() time.Duration  { return c.DedupWindow }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           mustInt(getEnv("REDIS_DB", "0")),
		CORSAllowAll:      corsAllowAll,
		CORSOrigins:       corsOrigins,
		CORSAllowCreds:    strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WhatsAppURL:       getEnv("WHATSAPP_API_URL", ""),
		WhatsAppUser:      getEnv("WHATSAPP_API_USER", ""),
		WhatsAppPassword:  getEnv("WHATSAPP_API_PASSWORD", ""),
		CalendarURL:       getEnv("CALENDAR_BRIDGE_URL", ""),
		CalendarAPIKey:    getEnv("CALENDAR_BRIDGE_API_KEY", ""),
		CalendarID:        getEnv("CALENDAR_ID", "primary"),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OperatorIdentity:  getEnv("ADMIN_WHATSAPP", ""),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		RateLimitMax:      mustInt(getEnv("RATE_LIMIT_MAX", "15")),
		RateLimitWindow:   mustDuration(getEnv("RATE_LIMIT_WINDOW", "1m")),
		NotifyWebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUser:          getEnv("SMTP_USER", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		NotifyEmailFrom:   getEnv("NOTIFY_EMAIL_FROM", ""),
		NotifyEmailTo:     getEnv("NOTIFY_EMAIL_TO", ""),
		Timezone:          getEnv("TIMEZONE", "America/Sao_Paulo"),
		BusinessStartHour: mustInt(getEnv("BUSINESS_START_HOUR", "9")),
		BusinessEndHour:   mustInt(getEnv("BUSINESS_END_HOUR", "18")),
		SlotDuration:      mustDuration(getEnv("SLOT_DURATION", "1h")),
		HoldTTL:           mustDuration(getEnv("HOLD_TTL", "15m")),
		DedupWindow:       mustDuration(getEnv("DEDUP_WINDOW", "2m")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.BusinessStartHour < 0 || cfg.BusinessEndHour > 24 || cfg.BusinessStartHour >= cfg.BusinessEndHour {
		return nil, fmt.Errorf("invalid business hours %d-%d", cfg.BusinessStartHour, cfg.BusinessEndHour)
	}
	if cfg.SlotDuration <= 0 || cfg.HoldTTL <= 0 {
		return nil, fmt.Errorf("SLOT_DURATION and HOLD_TTL must be positive durations")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
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
	result, err := strconv.Atoi(value)
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
