package config

import (
	"github.com/customeros/dmarcwatch/internal/database"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

type AppConfig struct {
	APIPort string `env:"PORT" envDefault:"12233"`
	APIKey  string `env:"API_KEY"`
}

type IMAPConfig struct {
	Server   string `env:"DMARCWATCH_IMAP_SERVER" envDefault:"imap.gmail.com"`
	Port     int    `env:"DMARCWATCH_IMAP_PORT" envDefault:"993"`
	Username string `env:"DMARCWATCH_IMAP_USERNAME"`
	Password string `env:"DMARCWATCH_IMAP_PASSWORD"`
	Folder   string `env:"DMARCWATCH_IMAP_FOLDER" envDefault:"INBOX"`
}

type SMTPConfig struct {
	Server      string `env:"DMARCWATCH_SMTP_SERVER" envDefault:"smtp.gmail.com"`
	Port        int    `env:"DMARCWATCH_SMTP_PORT" envDefault:"587"`
	Username    string `env:"DMARCWATCH_SMTP_USERNAME"`
	Password    string `env:"DMARCWATCH_SMTP_PASSWORD"`
	FromAddress string `env:"DMARCWATCH_SMTP_FROM"`
}

type AnthropicConfig struct {
	APIKey         string `env:"ANTHROPIC_API_KEY"`
	Model          string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	MaxTokens      int    `env:"ANTHROPIC_MAX_TOKENS" envDefault:"1000"`
	TimeoutSeconds int    `env:"ANTHROPIC_TIMEOUT_SECONDS" envDefault:"30"`
	MaxRetries     int    `env:"ANTHROPIC_MAX_RETRIES" envDefault:"3"`
}

type MonitorConfig struct {
	Schedule        string `env:"DMARCWATCH_SCHEDULE" envDefault:"0 8 * * *"`
	RunOnStart      bool   `env:"DMARCWATCH_RUN_ON_START" envDefault:"false"`
	LookbackDays    int    `env:"DMARCWATCH_LOOKBACK_DAYS" envDefault:"7"`
	MaxLookbackDays int    `env:"DMARCWATCH_MAX_LOOKBACK_DAYS" envDefault:"30"`
	StateDir        string `env:"DMARCWATCH_STATE_DIR" envDefault:"data"`
}

// Thresholds gate when a report is worth waking somebody up for.
type Thresholds struct {
	MinimumMessagesForAlert int     `env:"DMARCWATCH_MIN_MESSAGES_FOR_ALERT" envDefault:"10"`
	AuthSuccessRateMin      float64 `env:"DMARCWATCH_AUTH_RATE_MIN" envDefault:"95.0"`
	AuthRateDropThreshold   float64 `env:"DMARCWATCH_AUTH_RATE_DROP" envDefault:"5.0"`
	NewSourcesThreshold     int     `env:"DMARCWATCH_NEW_SOURCES_THRESHOLD" envDefault:"3"`
}

type NotificationConfig struct {
	EmailTo         string `env:"DMARCWATCH_NOTIFY_EMAIL"`
	SubjectPrefix   string `env:"DMARCWATCH_SUBJECT_PREFIX" envDefault:"[DMARC Monitor]"`
	SendCleanStatus bool   `env:"DMARCWATCH_SEND_CLEAN_STATUS" envDefault:"false"`
	QuietMode       bool   `env:"DMARCWATCH_QUIET_MODE" envDefault:"false"`
}

type RetentionConfig struct {
	RetentionDays int `env:"DMARCWATCH_RETENTION_DAYS" envDefault:"365"`
}

type Config struct {
	AppConfig          *AppConfig
	Logger             *logger.Config
	Tracing            *tracing.JaegerConfig
	DatabaseConfig     *database.DatabaseConfig
	IMAPConfig         *IMAPConfig
	SMTPConfig         *SMTPConfig
	AnthropicConfig    *AnthropicConfig
	MonitorConfig      *MonitorConfig
	Thresholds         *Thresholds
	NotificationConfig *NotificationConfig
	RetentionConfig    *RetentionConfig
}
