package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory holding the .env file and the database (or empty for ~/.assetsync)
// - envFilePath: Path to a .env file (or empty for <configDir>/.env)
func LoadFromEnv(configDir string, envFilePath string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".assetsync")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	if envFilePath == "" {
		envFilePath = filepath.Join(configDir, ".env")
	}

	if custom := getEnvString("ENV_FILE_PATH", ""); custom != "" {
		if err := godotenv.Load(custom); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", custom, err)
		}
	} else if err := godotenv.Load(envFilePath); err != nil {
		// Fall back to a .env in the working directory, if any
		_ = godotenv.Load()
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg.Project = ProjectConfig{
		Root:           getEnvString("ASSETSYNC_PROJECT_ROOT", workDir),
		AssetExtension: getEnvString("ASSETSYNC_ASSET_EXTENSION", ".cryasset"),
		LayerExtension: getEnvString("ASSETSYNC_LAYER_EXTENSION", ".lyr"),
	}

	cfg.Remote = RemoteConfig{
		Name:             getEnvString("ASSETSYNC_REMOTE_NAME", "origin"),
		Branch:           getEnvString("ASSETSYNC_REMOTE_BRANCH", ""),
		MaxRetries:       getEnvInt("ASSETSYNC_REMOTE_MAX_RETRIES", 3),
		FetchesPerMinute: getEnvInt("ASSETSYNC_REMOTE_FETCHES_PER_MINUTE", 30),
		StatusTTL:        getEnvDuration("ASSETSYNC_REMOTE_STATUS_TTL", 5*time.Minute),
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("ASSETSYNC_DB_PATH", filepath.Join(configDir, "assetsync.db")),
		BusyTimeout:     getEnvInt("ASSETSYNC_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("ASSETSYNC_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("ASSETSYNC_DB_SYNCHRONOUS_MODE", "NORMAL"),
		ForeignKeys:     getEnvBool("ASSETSYNC_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("ASSETSYNC_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("ASSETSYNC_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("ASSETSYNC_LOG_LEVEL", "info"),
		Format:     getEnvString("ASSETSYNC_LOG_FORMAT", "text"),
		Output:     getEnvString("ASSETSYNC_LOG_OUTPUT", filepath.Join(configDir, "assetsync.log")),
		AddSource:  getEnvBool("ASSETSYNC_LOG_ADD_SOURCE", false),
		TimeFormat: getTimeFormat(getEnvString("ASSETSYNC_LOG_TIME_FORMAT", "RFC3339")),
	}

	return cfg, cfg.Validate()
}
