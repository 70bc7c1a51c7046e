// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"outreach_backend/platform/apperr"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SMTPConfig provides outbound mail settings for the transport sender.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUser() string
	GetSMTPPass() string
	GetFromEmail() string
	GetFromName() string
	GetSMTPTimeout() time.Duration
}

// IMAPConfig provides inbox settings for the transport poller.
type IMAPConfig interface {
	GetIMAPHost() string
	GetIMAPPort() int
	GetIMAPUser() string
	GetIMAPPass() string
	GetIMAPTimeout() time.Duration
}

// PlacesConfig provides settings for the discovery provider.
type PlacesConfig interface {
	GetPlacesAPIKey() string
	GetDiscoveryTimeout() time.Duration
	GetProspectBatchSize() int
	GetPhoneDefaultRegion() string
}

// PreviewConfig provides settings for the content renderer and preview server.
type PreviewConfig interface {
	GetPreviewHost() string
	GetPreviewDir() string
	GetPreviewAddr() string
	GetCORSOrigins() []string
}

// PipelineConfig provides batch sizes, limits and timeouts for the stages.
type PipelineConfig interface {
	GetProspectBatchSize() int
	GetOutreachDailyLimit() int
	GetSendInterval() time.Duration
	GetWebsiteCheckTimeout() time.Duration
	GetFromName() string
	GetCalendarLink() string
	GetCategoryCatalogPath() string
}

// SchedulerConfig provides settings for the periodic trigger.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDailyRunCron() string
	GetReplyPollCron() string
	GetDailyRunCategory() string
	GetDailyRunMetro() string
}

// MinIOConfig provides settings for mirroring preview artifacts to object storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketPreviews() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	LogLevel            string
	DatabaseURL         string
	PlacesAPIKey        string
	SMTPHost            string
	SMTPPort            int
	SMTPUser            string
	SMTPPass            string
	IMAPHost            string
	IMAPPort            int
	IMAPUser            string
	IMAPPass            string
	FromEmail           string
	FromName            string
	CalendarLink        string
	PreviewHost         string
	PreviewDir          string
	PreviewAddr         string
	CORSOrigins         []string
	ProspectBatchSize   int
	OutreachDailyLimit  int
	SendInterval        time.Duration
	PhoneDefaultRegion  string
	CategoryCatalogPath string
	DiscoveryTimeout    time.Duration
	WebsiteCheckTimeout time.Duration
	SMTPTimeout         time.Duration
	IMAPTimeout         time.Duration
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	DailyRunCron        string
	ReplyPollCron       string
	DailyRunCategory    string
	DailyRunMetro       string
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOUseSSL         bool
	MinioBucketPreviews string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string             { return c.SMTPHost }
func (c *Config) GetSMTPPort() int                { return c.SMTPPort }
func (c *Config) GetSMTPUser() string             { return c.SMTPUser }
func (c *Config) GetSMTPPass() string             { return c.SMTPPass }
func (c *Config) GetFromEmail() string            { return c.FromEmail }
func (c *Config) GetFromName() string             { return c.FromName }
func (c *Config) GetSMTPTimeout() time.Duration   { return c.SMTPTimeout }
func (c *Config) GetCalendarLink() string         { return c.CalendarLink }
func (c *Config) GetSendInterval() time.Duration  { return c.SendInterval }
func (c *Config) GetOutreachDailyLimit() int      { return c.OutreachDailyLimit }
func (c *Config) GetCategoryCatalogPath() string  { return c.CategoryCatalogPath }
func (c *Config) GetIMAPHost() string             { return c.IMAPHost }
func (c *Config) GetIMAPPort() int                { return c.IMAPPort }
func (c *Config) GetIMAPUser() string             { return c.IMAPUser }
func (c *Config) GetIMAPPass() string             { return c.IMAPPass }
func (c *Config) GetIMAPTimeout() time.Duration   { return c.IMAPTimeout }
func (c *Config) GetPlacesAPIKey() string         { return c.PlacesAPIKey }
func (c *Config) GetProspectBatchSize() int       { return c.ProspectBatchSize }
func (c *Config) GetPhoneDefaultRegion() string   { return c.PhoneDefaultRegion }
func (c *Config) GetDiscoveryTimeout() time.Duration {
	return c.DiscoveryTimeout
}
func (c *Config) GetWebsiteCheckTimeout() time.Duration {
	return c.WebsiteCheckTimeout
}

// PreviewConfig implementation
func (c *Config) GetPreviewHost() string   { return c.PreviewHost }
func (c *Config) GetPreviewDir() string    { return c.PreviewDir }
func (c *Config) GetPreviewAddr() string   { return c.PreviewAddr }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string         { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool   { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetDailyRunCron() string     { return c.DailyRunCron }
func (c *Config) GetReplyPollCron() string    { return c.ReplyPollCron }
func (c *Config) GetDailyRunCategory() string { return c.DailyRunCategory }
func (c *Config) GetDailyRunMetro() string    { return c.DailyRunMetro }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string       { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string      { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string      { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool           { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketPreviews() string { return c.MinioBucketPreviews }
func (c *Config) IsMinIOEnabled() bool           { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "INFO"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		PlacesAPIKey:        getEnv("GOOGLE_PLACES_API_KEY", ""),
		SMTPHost:            getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:            mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPass:            getEnv("SMTP_PASS", ""),
		IMAPHost:            getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPPort:            mustInt(getEnv("IMAP_PORT", "993"), 993),
		IMAPUser:            getEnv("IMAP_USER", ""),
		IMAPPass:            getEnv("IMAP_PASS", ""),
		FromEmail:           getEnv("FROM_EMAIL", ""),
		FromName:            getEnv("FROM_NAME", ""),
		CalendarLink:        getEnv("CALENDAR_LINK", ""),
		PreviewHost:         strings.TrimRight(getEnv("PREVIEW_HOST", ""), "/"),
		PreviewDir:          getEnv("PREVIEW_DIR", "docs"),
		PreviewAddr:         getEnv("PREVIEW_ADDR", ":8111"),
		CORSOrigins:         splitCSV(getEnv("CORS_ORIGINS", "*")),
		ProspectBatchSize:   mustInt(getEnv("PROSPECT_BATCH_SIZE", "50"), 50),
		OutreachDailyLimit:  mustInt(getEnv("OUTREACH_DAILY_LIMIT", "25"), 25),
		SendInterval:        mustDuration(getEnv("SEND_INTERVAL", "2s")),
		PhoneDefaultRegion:  getEnv("PHONE_DEFAULT_REGION", "US"),
		CategoryCatalogPath: getEnv("CATEGORY_CATALOG_PATH", ""),
		DiscoveryTimeout:    mustDuration(getEnv("DISCOVERY_TIMEOUT", "15s")),
		WebsiteCheckTimeout: mustDuration(getEnv("WEBSITE_CHECK_TIMEOUT", "8s")),
		SMTPTimeout:         mustDuration(getEnv("SMTP_TIMEOUT", "30s")),
		IMAPTimeout:         mustDuration(getEnv("IMAP_TIMEOUT", "30s")),
		RedisURL:            getEnv("REDIS_URL", ""),
		RedisTLSInsecure:    strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "outreach"),
		AsynqConcurrency:    mustInt(getEnv("ASYNQ_CONCURRENCY", "1"), 1),
		DailyRunCron:        getEnv("DAILY_RUN_CRON", "0 7 * * 1-5"),
		ReplyPollCron:       getEnv("REPLY_POLL_CRON", "*/15 * * * *"),
		DailyRunCategory:    getEnv("DAILY_RUN_CATEGORY", ""),
		DailyRunMetro:       getEnv("DAILY_RUN_METRO", ""),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:         strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketPreviews: getEnv("MINIO_BUCKET_PREVIEWS", "previews"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ProspectBatchSize < 1 {
		return nil, fmt.Errorf("PROSPECT_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

// =============================================================================
// Operator guards: validate credentials are set before they're needed
// =============================================================================

// RequireSMTP returns a configuration error listing every missing SMTP variable.
func (c *Config) RequireSMTP() error {
	var missing []string
	if c.SMTPUser == "" {
		missing = append(missing, "SMTP_USER  (e.g. your-outreach@gmail.com)")
	}
	if c.SMTPPass == "" {
		missing = append(missing, "SMTP_PASS  (app password for the mailbox)")
	}
	if c.FromEmail == "" {
		missing = append(missing, "FROM_EMAIL (e.g. your-outreach@gmail.com)")
	}
	if c.FromName == "" {
		missing = append(missing, "FROM_NAME  (e.g. John Smith)")
	}
	return missingError("SMTP", missing)
}

// RequireIMAP returns a configuration error listing every missing IMAP variable.
func (c *Config) RequireIMAP() error {
	var missing []string
	if c.IMAPUser == "" {
		missing = append(missing, "IMAP_USER  (e.g. your-outreach@gmail.com)")
	}
	if c.IMAPPass == "" {
		missing = append(missing, "IMAP_PASS  (app password for the mailbox)")
	}
	return missingError("IMAP", missing)
}

// RequirePlaces returns a configuration error when the discovery API key is missing.
func (c *Config) RequirePlaces() error {
	if c.PlacesAPIKey == "" {
		return missingError("Google Places", []string{"GOOGLE_PLACES_API_KEY"})
	}
	return nil
}

// HasSMTP is the non-failing readiness check for sending.
func (c *Config) HasSMTP() bool {
	return c.SMTPUser != "" && c.SMTPPass != "" && c.FromEmail != ""
}

// HasIMAP is the non-failing readiness check for reply polling.
func (c *Config) HasIMAP() bool {
	return c.IMAPUser != "" && c.IMAPPass != ""
}

func missingError(subject string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return apperr.Config(fmt.Sprintf("%s is not configured. Set these in .env:\n  %s", subject, strings.Join(missing, "\n  ")))
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

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
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
