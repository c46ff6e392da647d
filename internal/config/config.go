package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	Log          LogConfig          `yaml:"log"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Notification NotificationConfig `yaml:"notification"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains gRPC server settings
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST"`
	Port int    `yaml:"port" env:"SERVER_PORT"`
}

// HTTPConfig contains the health/read-only HTTP listener settings
type HTTPConfig struct {
	Port int `yaml:"port" env:"HTTP_PORT"`
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	IsolationReadCommitted = "read_committed"
	IsolationSerializable  = "serializable"
)

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Store         string `yaml:"store" env:"DB_STORE"` // "postgres" or "memory"
	Host          string `yaml:"host" env:"DB_HOST"`
	Port          int    `yaml:"port" env:"DB_PORT"`
	User          string `yaml:"user" env:"DB_USER"`
	Password      string `yaml:"password" env:"DB_PASSWORD"`
	Database      string `yaml:"database" env:"DB_NAME"`
	SSLMode       string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	Isolation     string `yaml:"isolation" env:"DB_ISOLATION"`
	LockTimeoutMs int    `yaml:"lock_timeout_ms" env:"DB_LOCK_TIMEOUT_MS"`
	MaxOpenConns  int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	AutoMigrate   bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE"`
}

// RedisConfig contains the notification stream settings
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Stream   string `yaml:"stream" env:"REDIS_STREAM"`
	Group    string `yaml:"group" env:"REDIS_GROUP"`
	Consumer string `yaml:"consumer" env:"REDIS_CONSUMER"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret" env:"JWT_SECRET"`
	Issuer            string `yaml:"issuer" env:"JWT_ISSUER"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes" env:"JWT_ACCESS_TOKEN_EXPIRY_MINUTES"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "console"
}

// WorkflowConfig tunes the approval engine
type WorkflowConfig struct {
	// AdminWaiverBelowCents skips the admin tier for requests whose budget is
	// below the threshold. Zero always requires admin approval.
	AdminWaiverBelowCents int64 `yaml:"admin_waiver_below_cents" env:"WORKFLOW_ADMIN_WAIVER_BELOW_CENTS"`
	HistoryPageSize       int   `yaml:"history_page_size" env:"WORKFLOW_HISTORY_PAGE_SIZE"`
}

// NotificationConfig contains outbox relay and email delivery settings
type NotificationConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key" env:"SENDGRID_API_KEY"`
	FromEmail      string `yaml:"from_email" env:"NOTIFY_FROM_EMAIL"`
	FromName       string `yaml:"from_name" env:"NOTIFY_FROM_NAME"`
	RelayBatchSize int    `yaml:"relay_batch_size" env:"NOTIFY_RELAY_BATCH_SIZE"`
	MaxAttempts    int    `yaml:"max_attempts" env:"NOTIFY_MAX_ATTEMPTS"`
	RetentionHours int    `yaml:"retention_hours" env:"NOTIFY_RETENTION_HOURS"`
	// Audiences maps an audience name (team_leads, admins, inventory) to mailboxes.
	Audiences map[string][]string `yaml:"audiences"`
	// UserEmails resolves requester ids to addresses.
	UserEmails map[int64]string `yaml:"user_emails"`
}

// SchedulerConfig contains cron schedule settings (with seconds)
type SchedulerConfig struct {
	RelayOutbox           string `yaml:"relay_outbox" env:"SCHEDULE_RELAY_OUTBOX"`
	DispatchNotifications string `yaml:"dispatch_notifications" env:"SCHEDULE_DISPATCH_NOTIFICATIONS"`
	PurgePublishedEvents  string `yaml:"purge_published_events" env:"SCHEDULE_PURGE_PUBLISHED_EVENTS"`
}

// Load reads configuration from a YAML file, a local .env file and the environment
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies environment overrides and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}

	if c.Database.Store == "" {
		c.Database.Store = StorePostgres
	}
	switch c.Database.Store {
	case StorePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown database store: %s", c.Database.Store)
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.Isolation == "" {
		c.Database.Isolation = IsolationReadCommitted
	}
	if c.Database.Isolation != IsolationReadCommitted && c.Database.Isolation != IsolationSerializable {
		return fmt.Errorf("unsupported isolation level: %s", c.Database.Isolation)
	}
	if c.Database.LockTimeoutMs <= 0 {
		c.Database.LockTimeoutMs = 5000
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 20
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "equiptrack"
	}
	if c.JWT.AccessTokenExpiry <= 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Redis.Stream == "" {
		c.Redis.Stream = "equiptrack:transitions"
	}
	if c.Redis.Group == "" {
		c.Redis.Group = "notifications"
	}
	if c.Redis.Consumer == "" {
		c.Redis.Consumer = "dispatcher-1"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	if c.Workflow.AdminWaiverBelowCents < 0 {
		return fmt.Errorf("admin waiver threshold must not be negative")
	}
	if c.Workflow.HistoryPageSize <= 0 {
		c.Workflow.HistoryPageSize = 100
	}

	if c.Notification.RelayBatchSize <= 0 {
		c.Notification.RelayBatchSize = 100
	}
	if c.Notification.MaxAttempts <= 0 {
		c.Notification.MaxAttempts = 5
	}
	if c.Notification.RetentionHours <= 0 {
		c.Notification.RetentionHours = 24 * 7
	}

	if c.Scheduler.RelayOutbox == "" {
		c.Scheduler.RelayOutbox = "*/10 * * * * *" // every 10 seconds
	}
	if c.Scheduler.DispatchNotifications == "" {
		c.Scheduler.DispatchNotifications = "*/15 * * * * *"
	}
	if c.Scheduler.PurgePublishedEvents == "" {
		c.Scheduler.PurgePublishedEvents = "0 0 3 * * *" // 3 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%d dbname=%s sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the gRPC server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetHTTPAddress returns the HTTP listener address, or "" when disabled
func (c *Config) GetHTTPAddress() string {
	if c.HTTP.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.HTTP.Port)
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Database.LockTimeoutMs) * time.Millisecond
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenExpiry) * time.Minute
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Notification.RetentionHours) * time.Hour
}
