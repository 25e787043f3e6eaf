package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/assetsync/internal/app"
	"github.com/tildaslashalef/assetsync/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "assetsync",
		Usage: "Pull remote changes of assets and level layers into a working copy",
		Description: "assetsync checks which assets, layers and files changed on the remote, pulls them\n" +
			"together with the requested folders, and pulls again for files that only became\n" +
			"known after the first pull. Layer files that appear during a layer sync are imported.",
		Version: fmt.Sprintf("%s (%s)", Version, CommitHash),
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Before: func(c *cli.Context) error {
			application, err := app.New()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			c.App.Metadata = map[string]interface{}{
				"app": application,
			}

			return nil
		},
		After: func(c *cli.Context) error {
			if app, ok := c.App.Metadata["app"].(*app.App); ok {
				return app.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.SyncCommand(),
			commands.LayersCommand(),
			commands.StatusCommand(),
			commands.HistoryCommand(),
			commands.InitCommand(),
			commands.MigrateCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
