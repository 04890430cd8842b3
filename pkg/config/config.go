package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigFile names an optional YAML file loaded before environment overrides
const EnvConfigFile = "GROUNDWORK_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	S3            S3Config            `yaml:"s3"`
	Auth          AuthConfig          `yaml:"auth"`
	Invitations   InvitationsConfig   `yaml:"invitations"`
	Observability ObservabilityConfig `yaml:"observability"`
	Notifier      NotifierConfig      `yaml:"notifier"`

	// File is the YAML file the configuration was read from, if any
	File string `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// MaxBodyBytes caps JSON request bodies; uploads carry their own limit
	MaxBodyBytes int `yaml:"max_body_bytes"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	ReplicaURLs     []string      `yaml:"replica_urls"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// RedisConfig holds Redis configuration. An empty URL disables the rate limiter.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// S3Config holds blob storage configuration
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`

	// LocalDir stores blobs on local disk instead of S3 when set
	LocalDir string `yaml:"local_dir"`
}

// AuthConfig holds OIDC settings
type AuthConfig struct {
	IssuerURL string `yaml:"issuer_url"`
	ClientID  string `yaml:"client_id"`
	// ClientSecret and RedirectURL enable the browser sign-in flow
	ClientSecret  string        `yaml:"client_secret"`
	RedirectURL   string        `yaml:"redirect_url"`
	UserCacheSize int           `yaml:"user_cache_size"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl"`
}

// InvitationsConfig holds invitation settings
type InvitationsConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// RateLimitPerHour caps invitations sent per user per hour; 0 disables the limit
	RateLimitPerHour int `yaml:"rate_limit_per_hour"`
	// AcceptURL is the link template sent to invitees; {token} is substituted
	AcceptURL string `yaml:"accept_url"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// NotifierConfig holds settings for the reminder job
type NotifierConfig struct {
	Schedule string `yaml:"schedule"`
	// ReminderWindow selects pending invitations expiring within this duration
	ReminderWindow time.Duration `yaml:"reminder_window"`
	MailFrom       string        `yaml:"mail_from"`
	// UnsubscribeURL is the opt-out link appended to emails; {token} is substituted
	UnsubscribeURL string `yaml:"unsubscribe_url"`
	// MailRelayURL receives outgoing mail as JSON; empty logs mail instead
	MailRelayURL string `yaml:"mail_relay_url"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			MigrateOnStart:  true,
		},
		Redis: RedisConfig{PoolSize: 10},
		S3: S3Config{
			Region: "us-east-1",
			Bucket: "groundwork",
		},
		Auth: AuthConfig{
			UserCacheSize: 1024,
			UserCacheTTL:  5 * time.Minute,
		},
		Invitations: InvitationsConfig{
			TTL:              7 * 24 * time.Hour,
			RateLimitPerHour: 20,
			AcceptURL:        "http://localhost:8080/invitations/{token}",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "groundwork",
			OTelServiceVersion: "dev",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
		Notifier: NotifierConfig{
			Schedule:       "0 8 * * *",
			ReminderWindow: 48 * time.Hour,
			MailFrom:       "groundwork@localhost",
			UnsubscribeURL: "http://localhost:8080/api/v1/notifications/unsubscribe?token={token}",
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named by
// GROUNDWORK_CONFIG_FILE and GROUNDWORK_* environment variables, in that order.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.File = path
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnv("GROUNDWORK_HOST", c.Server.Host)
	c.Server.Port = getEnv("GROUNDWORK_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("GROUNDWORK_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("GROUNDWORK_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("GROUNDWORK_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("GROUNDWORK_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.CORSOrigins = getEnvList("GROUNDWORK_CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.MaxBodyBytes = getEnvInt("GROUNDWORK_MAX_BODY_BYTES", c.Server.MaxBodyBytes)

	c.Database.URL = getEnv("GROUNDWORK_DATABASE_URL", c.Database.URL)
	c.Database.ReplicaURLs = getEnvList("GROUNDWORK_DATABASE_REPLICA_URLS", c.Database.ReplicaURLs)
	c.Database.MaxOpenConns = getEnvInt("GROUNDWORK_DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("GROUNDWORK_DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("GROUNDWORK_DATABASE_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.MigrateOnStart = getEnvBool("GROUNDWORK_DATABASE_MIGRATE", c.Database.MigrateOnStart)

	c.Redis.URL = getEnv("GROUNDWORK_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("GROUNDWORK_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("GROUNDWORK_REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("GROUNDWORK_REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.S3.Endpoint = getEnv("GROUNDWORK_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("GROUNDWORK_S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("GROUNDWORK_S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKey = getEnv("GROUNDWORK_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("GROUNDWORK_S3_SECRET_KEY", c.S3.SecretKey)
	c.S3.UsePathStyle = getEnvBool("GROUNDWORK_S3_USE_PATH_STYLE", c.S3.UsePathStyle)
	c.S3.LocalDir = getEnv("GROUNDWORK_BLOB_DIR", c.S3.LocalDir)

	c.Auth.IssuerURL = getEnv("GROUNDWORK_OIDC_ISSUER_URL", c.Auth.IssuerURL)
	c.Auth.ClientID = getEnv("GROUNDWORK_OIDC_CLIENT_ID", c.Auth.ClientID)
	c.Auth.ClientSecret = getEnv("GROUNDWORK_OIDC_CLIENT_SECRET", c.Auth.ClientSecret)
	c.Auth.RedirectURL = getEnv("GROUNDWORK_OIDC_REDIRECT_URL", c.Auth.RedirectURL)
	c.Auth.UserCacheSize = getEnvInt("GROUNDWORK_USER_CACHE_SIZE", c.Auth.UserCacheSize)
	c.Auth.UserCacheTTL = getEnvDuration("GROUNDWORK_USER_CACHE_TTL", c.Auth.UserCacheTTL)

	c.Invitations.TTL = getEnvDuration("GROUNDWORK_INVITATION_TTL", c.Invitations.TTL)
	c.Invitations.RateLimitPerHour = getEnvInt("GROUNDWORK_INVITATION_RATE_LIMIT", c.Invitations.RateLimitPerHour)
	c.Invitations.AcceptURL = getEnv("GROUNDWORK_INVITATION_ACCEPT_URL", c.Invitations.AcceptURL)

	c.Observability.LogLevel = getEnv("GROUNDWORK_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("GROUNDWORK_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("GROUNDWORK_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("GROUNDWORK_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("GROUNDWORK_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("GROUNDWORK_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("GROUNDWORK_OTEL_INSECURE", c.Observability.OTelInsecure)
	c.Observability.OTelSampleRatio = getEnvFloat("GROUNDWORK_OTEL_SAMPLE_RATIO", c.Observability.OTelSampleRatio)

	c.Notifier.Schedule = getEnv("GROUNDWORK_NOTIFIER_SCHEDULE", c.Notifier.Schedule)
	c.Notifier.ReminderWindow = getEnvDuration("GROUNDWORK_NOTIFIER_REMINDER_WINDOW", c.Notifier.ReminderWindow)
	c.Notifier.MailFrom = getEnv("GROUNDWORK_MAIL_FROM", c.Notifier.MailFrom)
	c.Notifier.UnsubscribeURL = getEnv("GROUNDWORK_UNSUBSCRIBE_URL", c.Notifier.UnsubscribeURL)
	c.Notifier.MailRelayURL = getEnv("GROUNDWORK_MAIL_RELAY_URL", c.Notifier.MailRelayURL)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("max body bytes must be positive"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database URL is required"))
	}
	if c.S3.Bucket == "" && c.S3.LocalDir == "" {
		errs = append(errs, errors.New("S3 bucket or local blob directory is required"))
	}
	if c.Auth.IssuerURL == "" || c.Auth.ClientID == "" {
		errs = append(errs, errors.New("OIDC issuer URL and client ID are required"))
	}
	if c.Invitations.TTL <= 0 {
		errs = append(errs, errors.New("invitation TTL must be positive"))
	}
	if c.Invitations.RateLimitPerHour < 0 {
		errs = append(errs, errors.New("invitation rate limit must not be negative"))
	}
	if !strings.Contains(c.Invitations.AcceptURL, "{token}") {
		errs = append(errs, errors.New("invitation accept URL must contain {token}"))
	}
	if _, err := cron.ParseStandard(c.Notifier.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid notifier schedule %q: %w", c.Notifier.Schedule, err))
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			errs = append(errs, errors.New("OpenTelemetry endpoint is required when OTel is enabled"))
		}
		if c.Observability.OTelServiceName == "" {
			errs = append(errs, errors.New("OpenTelemetry service name is required when OTel is enabled"))
		}
	}

	return errors.Join(errs...)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, skipping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
