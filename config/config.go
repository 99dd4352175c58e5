package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kosarica/catalog-service/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. CATS_SERVER_PORT.
const EnvPrefix = "CATS"

// Config holds the application configuration
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Worker    WorkerConfig     `mapstructure:"worker"`
	Retry     RetryConfig      `mapstructure:"retry"`
	Fetch     FetchConfig      `mapstructure:"fetch"`
	Prodo     ServiceConfig    `mapstructure:"prodo"`
	Franz     ServiceConfig    `mapstructure:"franz"`
	Tools     ToolsConfig      `mapstructure:"tools"`
	Audit     AuditConfig      `mapstructure:"audit"`
	Resolver  ResolverConfig   `mapstructure:"resolver"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Cleanup   CleanupConfig    `mapstructure:"cleanup"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Telemetry telemetry.Config `mapstructure:"telemetry"`

	// Realm is sent with every franz event.
	Realm string `mapstructure:"realm"`
	// FailureMaxLength truncates stored failure strings. The global_property
	// row of the same name takes precedence.
	FailureMaxLength int `mapstructure:"failure_max_length"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// APIKey guards the publish endpoints. Empty disables the check.
	APIKey string `mapstructure:"api_key"`
}

// RateLimitConfig holds per-IP rate limiting of the API
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WorkerConfig holds publish worker configuration
type WorkerConfig struct {
	// NodeID is recorded on claimed tasks. Defaults to the host name.
	NodeID        string        `mapstructure:"node_id"`
	Concurrency   int           `mapstructure:"concurrency"`
	PollDelay     time.Duration `mapstructure:"poll_delay"`
	OrphanTimeout time.Duration `mapstructure:"orphan_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RetryConfig is the retry policy of outbound calls
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// FetchConfig holds archive download limits
type FetchConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxArchiveSize    int64         `mapstructure:"max_archive_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ServiceConfig locates a downstream HTTP service
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ToolConfig locates one publishing tool webhook
type ToolConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
}

// ToolsConfig holds the tool webhooks
type ToolsConfig struct {
	Catool  ToolConfig    `mapstructure:"catool"`
	Coupons ToolConfig    `mapstructure:"coupons"`
	Manual  ToolConfig    `mapstructure:"manual"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuditConfig selects the audit sink
type AuditConfig struct {
	// Sink is "log" or "kafka".
	Sink         string        `mapstructure:"sink"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// ResolverConfig holds the active catalog cache configuration
type ResolverConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	// Backend is "memory" or "redis".
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// CleanupConfig holds retention of finished tasks and stale archives
type CleanupConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Interval          time.Duration `mapstructure:"interval"`
	TaskRetentionDays int           `mapstructure:"task_retention_days"`
	ArchiveRetention  time.Duration `mapstructure:"archive_retention"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// Load reads defaults, an optional config file, .env files and CATS_*
// environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg(".env file not loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Worker.NodeID == "" {
		cfg.Worker.NodeID, _ = os.Hostname()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	switch c.Audit.Sink {
	case "log":
	case "kafka":
		if len(c.Audit.Brokers) == 0 || c.Audit.Topic == "" {
			return errors.New("audit.brokers and audit.topic are required for the kafka sink")
		}
	default:
		return fmt.Errorf("audit.sink must be log or kafka, got %q", c.Audit.Sink)
	}
	switch c.Resolver.Backend {
	case "memory":
	case "redis":
		if c.Resolver.RedisAddr == "" {
			return errors.New("resolver.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("resolver.backend must be memory or redis, got %q", c.Resolver.Backend)
	}
	return nil
}

// loadEnvFile loads the first .env file found. Variables already set in the
// environment win.
func loadEnvFile() error {
	for _, dir := range []string{".", "./config"} {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return godotenv.Load(path)
	}
	return errors.New("no .env file found")
}

// bindEnvVars binds the conventional unprefixed variables.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"database.url":              {"CATS_DATABASE_URL", "DATABASE_URL"},
		"server.port":               {"CATS_SERVER_PORT", "PORT"},
		"logging.level":             {"CATS_LOGGING_LEVEL", "LOG_LEVEL"},
		"telemetry.endpoint":        {"CATS_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"},
		"telemetry.service_version": {"CATS_TELEMETRY_SERVICE_VERSION", "VERSION"},
		"telemetry.environment":     {"CATS_TELEMETRY_ENVIRONMENT", "ENVIRONMENT"},
		"server.api_key":            {"CATS_SERVER_API_KEY", "INTERNAL_API_KEY"},
		"resolver.redis_addr":       {"CATS_RESOLVER_REDIS_ADDR", "REDIS_ADDR"},
		"audit.brokers":             {"CATS_AUDIT_BROKERS", "KAFKA_BROKERS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.api_key", "")

	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("worker.node_id", "")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_delay", time.Second)
	v.SetDefault("worker.orphan_timeout", 30*time.Minute)
	v.SetDefault("worker.sweep_interval", 5*time.Minute)

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.initial_backoff", 200*time.Millisecond)
	v.SetDefault("retry.max_backoff", 5*time.Second)
	v.SetDefault("retry.attempt_timeout", 10*time.Second)

	v.SetDefault("fetch.timeout", 2*time.Minute)
	v.SetDefault("fetch.max_archive_size", 256*1024*1024)
	v.SetDefault("fetch.requests_per_second", 10)

	v.SetDefault("prodo.base_url", "http://prodo")
	v.SetDefault("prodo.timeout", 30*time.Second)
	v.SetDefault("franz.base_url", "http://franz")
	v.SetDefault("franz.timeout", 10*time.Second)

	for _, tool := range []string{"catool", "coupons", "manual"} {
		v.SetDefault("tools."+tool+".base_url", "")
		v.SetDefault("tools."+tool+".secret", "")
	}
	v.SetDefault("tools.timeout", 10*time.Second)

	v.SetDefault("audit.sink", "log")
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "catalog-audit")
	v.SetDefault("audit.write_timeout", 10*time.Second)

	v.SetDefault("resolver.ttl", 5*time.Second)
	v.SetDefault("resolver.backend", "memory")
	v.SetDefault("resolver.redis_addr", "")
	v.SetDefault("resolver.redis_password", "")
	v.SetDefault("resolver.redis_db", 0)

	v.SetDefault("storage.base_path", "./data/archives")

	v.SetDefault("cleanup.enabled", true)
	v.SetDefault("cleanup.interval", 24*time.Hour)
	v.SetDefault("cleanup.task_retention_days", 90)
	v.SetDefault("cleanup.archive_retention", 7*24*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", telemetry.DefaultServiceName)
	v.SetDefault("telemetry.service_version", "")
	v.SetDefault("telemetry.environment", "")
	v.SetDefault("telemetry.export_interval", time.Minute)

	v.SetDefault("realm", "ru")
	v.SetDefault("failure_max_length", 2048)
}
