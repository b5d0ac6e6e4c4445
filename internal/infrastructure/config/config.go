package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Editor    EditorConfig
	Cloud     CloudConfig
	Auth      AuthConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// StorageConfig holds local data and document root configuration.
type StorageConfig struct {
	DataDir      string   `envconfig:"DATA_DIR" default:"./data"`
	Roots        []string `envconfig:"DOCUMENT_ROOTS"`
	MaxReadBytes int64    `envconfig:"MAX_READ_BYTES" default:"2097152"`

	Watch         bool          `envconfig:"WATCH_ROOTS" default:"true"`
	WatchDebounce time.Duration `envconfig:"WATCH_DEBOUNCE" default:"250ms"`
	WatchMaxDirs  int           `envconfig:"WATCH_MAX_DIRS" default:"4096"`
}

// EditorConfig holds edit session configuration.
type EditorConfig struct {
	HistoryDepth int           `envconfig:"EDITOR_HISTORY_DEPTH" default:"50"`
	IdleTimeout  time.Duration `envconfig:"EDITOR_IDLE_TIMEOUT" default:"30m"`
	MaxSessions  int           `envconfig:"EDITOR_MAX_SESSIONS" default:"32"`
}

// CloudConfig holds object storage configuration.
type CloudConfig struct {
	Enabled   bool          `envconfig:"CLOUD_ENABLED" default:"false"`
	Endpoint  string        `envconfig:"CLOUD_ENDPOINT"`
	Region    string        `envconfig:"CLOUD_REGION" default:"auto"`
	Bucket    string        `envconfig:"CLOUD_BUCKET"`
	AccessKey string        `envconfig:"CLOUD_ACCESS_KEY"`
	SecretKey string        `envconfig:"CLOUD_SECRET_KEY"`
	Prefix    string        `envconfig:"CLOUD_PREFIX" default:"filedeck"`
	PathStyle bool          `envconfig:"CLOUD_PATH_STYLE" default:"true"`
	Compress  bool          `envconfig:"CLOUD_COMPRESS" default:"false"`
	Timeout   time.Duration `envconfig:"CLOUD_TIMEOUT" default:"60s"`
	Workers   int           `envconfig:"CLOUD_SYNC_WORKERS" default:"4"`
}

// AuthConfig holds account and session configuration.
type AuthConfig struct {
	SessionTTL time.Duration `envconfig:"AUTH_SESSION_TTL" default:"24h"`
	BcryptCost int           `envconfig:"AUTH_BCRYPT_COST" default:"10"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	ToFile      bool   `envconfig:"LOG_TO_FILE" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			DataDir:       "./data",
			MaxReadBytes:  2 << 20,
			Watch:         true,
			WatchDebounce: 250 * time.Millisecond,
			WatchMaxDirs:  4096,
		},
		Editor: EditorConfig{
			HistoryDepth: 50,
			IdleTimeout:  30 * time.Minute,
			MaxSessions:  32,
		},
		Cloud: CloudConfig{
			Region:    "auto",
			Prefix:    "filedeck",
			PathStyle: true,
			Timeout:   60 * time.Second,
			Workers:   4,
		},
		Auth: AuthConfig{
			SessionTTL: 24 * time.Hour,
			BcryptCost: 10,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate checks cross-field constraints that envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if c.Storage.MaxReadBytes <= 0 {
		errs = append(errs, errors.New("max read bytes must be positive"))
	}
	if c.Storage.Watch && (c.Storage.WatchDebounce <= 0 || c.Storage.WatchMaxDirs < 1) {
		errs = append(errs, errors.New("watch debounce and max dirs must be positive when watching"))
	}
	if c.Editor.HistoryDepth < 1 {
		errs = append(errs, errors.New("editor history depth must be at least 1"))
	}
	if c.Editor.MaxSessions < 1 {
		errs = append(errs, errors.New("editor max sessions must be at least 1"))
	}
	if c.Cloud.Enabled {
		if c.Cloud.Bucket == "" {
			errs = append(errs, errors.New("cloud bucket is required when cloud is enabled"))
		}
		if (c.Cloud.AccessKey == "") != (c.Cloud.SecretKey == "") {
			errs = append(errs, errors.New("cloud access key and secret key must be set together"))
		}
	}
	if c.Cloud.Workers < 1 || c.Cloud.Workers > 32 {
		errs = append(errs, errors.New("cloud sync workers must be between 1 and 32"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth session ttl must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("rate limit rps must be positive"))
	}
	return errors.Join(errs...)
}
