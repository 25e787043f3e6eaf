package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/tildaslashalef/assetsync/internal/config"
	"github.com/tildaslashalef/assetsync/internal/database"
	"github.com/tildaslashalef/assetsync/internal/utils"
	"github.com/urfave/cli/v2"
)

// InitCommand returns the CLI command for writing a sample configuration
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a sample configuration and prepare the database",
		Description: "Writes a commented .env into the configuration directory and applies the " +
			"database migrations. An existing .env is kept unless --force is given, in which " +
			"case it is backed up first.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Back up and overwrite an existing configuration file",
			},
		},
		Action: func(c *cli.Context) error {
			utils.PrintHeading("Initializing assetsync")

			cfg, err := config.Get()
			if err != nil {
				return err
			}

			configDir := cfg.ConfigDir()
			utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

			if err := config.SetupConfigDirectory(configDir, c.Bool("force")); err != nil {
				utils.PrintError(fmt.Sprintf("Failed to write configuration file: %s", err))
				return fmt.Errorf("failed to set up configuration directory: %w", err)
			}

			if err := database.RunMigrations(); err != nil {
				utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
				return fmt.Errorf("failed to apply migrations: %w", err)
			}

			utils.PrintSuccess("assetsync initialized")
			utils.PrintInfo("Project root: " + color.YellowString("%s", cfg.Project.Root))
			utils.PrintInfo("Database location: " + color.YellowString("%s", cfg.Database.Path))
			utils.PrintInfo("Log file location: " + color.YellowString("%s", cfg.Logging.Output))
			return nil
		},
	}
}
