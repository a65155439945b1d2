package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/iconidentify/cardvault/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Session       SessionConfig       `yaml:"session"`
	CollectionAPI CollectionAPIConfig `yaml:"collection_api"`
	Download      DownloadConfig      `yaml:"download"`
	Preferences   PreferencesConfig   `yaml:"preferences"`
	Events        EventsConfig        `yaml:"events"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9850"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// StorageConfig selects where ordering and session data live.
type StorageConfig struct {
	Backend       string        `yaml:"backend" envconfig:"STORAGE_BACKEND" default:"file"`
	BasePath      string        `yaml:"base_path" envconfig:"STORAGE_PATH" default:"./data/state"`
	MaxValueBytes int64         `yaml:"max_value_bytes" envconfig:"STORAGE_MAX_VALUE_BYTES" default:"5242880"` // 5MB
	WatchDebounce time.Duration `yaml:"watch_debounce" envconfig:"STORAGE_WATCH_DEBOUNCE" default:"200ms"`
}

// SessionConfig holds export session expiry and auto-save timing.
type SessionConfig struct {
	TTL              time.Duration `yaml:"ttl" envconfig:"SESSION_TTL" default:"24h"`
	AutoSaveInterval time.Duration `yaml:"auto_save_interval" envconfig:"AUTO_SAVE_INTERVAL" default:"5s"`
	AutoSaveThrottle time.Duration `yaml:"auto_save_throttle" envconfig:"AUTO_SAVE_THROTTLE" default:"1s"`
}

// CollectionAPIConfig holds the remote collection backend configuration.
type CollectionAPIConfig struct {
	BaseURL       string        `yaml:"base_url" envconfig:"COLLECTION_API_URL" default:"http://localhost:8000"`
	APIKey        string        `yaml:"api_key" envconfig:"COLLECTION_API_KEY"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"COLLECTION_API_TIMEOUT" default:"2m"`
	MaxRetries    int           `yaml:"max_retries" envconfig:"COLLECTION_API_MAX_RETRIES" default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"COLLECTION_API_RETRY_DELAY" default:"1s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"COLLECTION_API_MAX_RETRY_DELAY" default:"10s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"COLLECTION_API_USER_AGENT" default:"cardvault/1.0"`
}

// DownloadConfig controls where exported files are written.
type DownloadConfig struct {
	Dir          string `yaml:"dir" envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"DOWNLOAD_MIN_FREE_BYTES" default:"104857600"` // 100MB
}

// PreferencesConfig holds user preferences that change export behaviour.
type PreferencesConfig struct {
	ClearOrderAfterExport bool   `yaml:"clear_order_after_export" envconfig:"CLEAR_ORDER_AFTER_EXPORT" default:"false"`
	DefaultFormat         string `yaml:"default_format" envconfig:"DEFAULT_EXPORT_FORMAT" default:"zip"`
}

// EventsConfig holds notification log configuration.
type EventsConfig struct {
	RingBufferSize  int    `yaml:"ring_buffer_size" envconfig:"EVENTS_BUFFER_SIZE" default:"500"`
	PersistToSQLite bool   `yaml:"persist_to_sqlite" envconfig:"EVENTS_PERSIST" default:"false"`
	SQLitePath      string `yaml:"sqlite_path" envconfig:"EVENTS_SQLITE_PATH" default:"./data/events.db"`
	RetentionDays   int    `yaml:"retention_days" envconfig:"EVENTS_RETENTION_DAYS" default:"30"`
}

// MaintenanceConfig holds periodic background task intervals.
type MaintenanceConfig struct {
	SessionSweepInterval time.Duration `yaml:"session_sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL" default:"10m"`
	EventCleanupInterval time.Duration `yaml:"event_cleanup_interval" envconfig:"EVENT_CLEANUP_INTERVAL" default:"1h"`
}

// Load reads configuration from a .env file in the working directory, the
// YAML file at configPath and environment variables, in that order.
func Load(configPath string) (*Config, error) {
	return LoadFiles(configPath, ".env")
}

// LoadFiles is Load with explicit .env files. Missing .env files are ignored.
// Values already present in the environment win over .env entries.
func LoadFiles(configPath string, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings shared by every cardvault binary.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "file", "sqlite":
		if c.Storage.BasePath == "" {
			return fmt.Errorf("STORAGE_PATH is required for the %s backend", c.Storage.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND %q is not one of file, sqlite, memory", c.Storage.Backend)
	}
	if c.CollectionAPI.BaseURL == "" {
		return fmt.Errorf("COLLECTION_API_URL is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.Session.AutoSaveInterval <= 0 {
		return fmt.Errorf("AUTO_SAVE_INTERVAL must be positive")
	}
	if c.Session.AutoSaveThrottle < 0 {
		return fmt.Errorf("AUTO_SAVE_THROTTLE must not be negative")
	}
	if c.CollectionAPI.MaxRetries < 1 {
		return fmt.Errorf("COLLECTION_API_MAX_RETRIES must be at least 1")
	}
	if c.Download.Dir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.Preferences.DefaultFormat != "" && !domain.ExportFormat(c.Preferences.DefaultFormat).Valid() {
		return fmt.Errorf("DEFAULT_EXPORT_FORMAT %q is not a known export format", c.Preferences.DefaultFormat)
	}
	if c.Events.PersistToSQLite && c.Events.SQLitePath == "" {
		return fmt.Errorf("EVENTS_SQLITE_PATH is required when EVENTS_PERSIST is set")
	}
	return nil
}

// ValidateServer adds the checks only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
