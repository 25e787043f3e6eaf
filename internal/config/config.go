package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	Project   ProjectConfig
	Remote    RemoteConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	configDir string
}

// ProjectConfig describes the local working copy being synchronized
type ProjectConfig struct {
	Root           string // Working tree root; all synced paths are relative to it
	AssetExtension string // Extension of asset metadata files (".cryasset")
	LayerExtension string // Extension of layer files (".lyr")
}

// RemoteConfig controls how the remote backend is contacted
type RemoteConfig struct {
	Name             string        // Remote name (origin)
	Branch           string        // Remote branch to sync from; empty means the current branch
	MaxRetries       int           // Fetch retries before giving up
	FetchesPerMinute int           // Rate limit for fetches; 0 disables limiting
	StatusTTL        time.Duration // How long a refreshed status stays in the in-memory cache
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := c.validateRemote(); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateProject() error {
	if c.Project.Root == "" {
		return fmt.Errorf("root cannot be empty")
	}

	if !strings.HasPrefix(c.Project.AssetExtension, ".") {
		return fmt.Errorf("asset extension must start with a dot: %q", c.Project.AssetExtension)
	}

	if !strings.HasPrefix(c.Project.LayerExtension, ".") {
		return fmt.Errorf("layer extension must start with a dot: %q", c.Project.LayerExtension)
	}

	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.Name == "" {
		return fmt.Errorf("remote name cannot be empty")
	}

	if c.Remote.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if c.Remote.FetchesPerMinute < 0 {
		return fmt.Errorf("fetches_per_minute cannot be negative")
	}

	if c.Remote.StatusTTL <= 0 {
		return fmt.Errorf("status_ttl must be positive")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.Database.Path != ":memory:" {
		dir := filepath.Dir(c.Database.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy timeout must be positive")
	}

	if c.Database.ConnMaxLife <= 0 {
		return fmt.Errorf("connection max life must be positive")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getTimeFormat converts a named time format to its layout string
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "Kitchen":
		return time.Kitchen
	case "DateTime":
		return time.DateTime
	case "DateTimeMS":
		return "2006-01-02 15:04:05.000"
	default:
		return name
	}
}
