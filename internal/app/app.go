// Package app provides the application initialization and lifecycle management
package app

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/tildaslashalef/assetsync/internal/config"
	"github.com/tildaslashalef/assetsync/internal/database"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/git"
	"github.com/tildaslashalef/assetsync/internal/layer"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/synchronizer"
	"github.com/tildaslashalef/assetsync/internal/vcs"
	"github.com/urfave/cli/v2"
)

// App represents the application instance with its dependencies
type App struct {
	Config    *config.Config
	FS        billy.Filesystem
	Git       *git.Service
	Status    *vcs.Provider
	Statuses  *vcs.SQLRepository
	Sync      *synchronizer.Synchronizer
	Sessions  *synchronizer.SQLRecorder
	Layers    *layer.Manager
	LayerSync *layer.Synchronizer
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	// Initialize configuration
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
		"project_root", cfg.Project.Root,
	)

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	if err := database.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	app := initServices(cfg, db)

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices wires the sync services. A project root that is not a git
// working copy is not fatal: migrate and history still work, sync commands
// report git.ErrRepoNotInitialized.
func initServices(cfg *config.Config, db *sql.DB) *App {
	logger := loggy.GetGlobalLogger()

	statuses := vcs.NewSQLRepository(db, logger)

	gitService := git.NewService(statuses, git.Options{
		RemoteName:       cfg.Remote.Name,
		Branch:           cfg.Remote.Branch,
		MaxRetries:       cfg.Remote.MaxRetries,
		FetchesPerMinute: cfg.Remote.FetchesPerMinute,
	}, logger)

	var fs billy.Filesystem
	if err := gitService.Open(cfg.Project.Root); err != nil {
		loggy.Warn("Project root is not a git working copy", "root", cfg.Project.Root, "error", err)
		fs = osfs.New(cfg.Project.Root)
	} else if fs, err = gitService.Filesystem(); err != nil {
		loggy.Warn("Failed to open working tree", "error", err)
		fs = osfs.New(cfg.Project.Root)
	}

	provider := vcs.NewProvider(gitService, cfg.Remote.StatusTTL, logger)
	provider.SetStatusRepository(statuses)

	sessions := synchronizer.NewSQLRecorder(db, logger)
	syncer := synchronizer.New(provider, gitService, filegroup.NewAssetResolver(fs), logger)
	syncer.SetRecorder(sessions)

	layers := layer.NewManager(fs, logger)

	return &App{
		Config:    cfg,
		FS:        fs,
		Git:       gitService,
		Status:    provider,
		Statuses:  statuses,
		Sync:      syncer,
		Sessions:  sessions,
		Layers:    layers,
		LayerSync: layer.NewSynchronizer(syncer, fs, layers, cfg.Project.LayerExtension, logger),
	}
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
