package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/assetsync/internal/app"
	"github.com/tildaslashalef/assetsync/internal/filegroup"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/reconcile"
	"github.com/tildaslashalef/assetsync/internal/scanner"
	"github.com/tildaslashalef/assetsync/internal/utils"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// StatusCommand returns the CLI command for showing remote status
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the remote status of assets, layers and files",
		ArgsUsage: "[PATH ...]",
		Description: "Refreshes the status of the given paths and of every asset and layer under " +
			"the folders. With --changed, lists the last known remote changes instead.",
		Flags: []cli.Flag{
			folderFlag,
			&cli.BoolFlag{
				Name:  "changed",
				Usage: "List stored statuses with a remote change or conflict without contacting the remote",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of stored statuses to list with --changed",
				Value: 100,
			},
		},
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	ctx := c.Context

	if c.Bool("changed") {
		statuses, err := application.Statuses.ListStatuses(ctx, vcs.StatusRemoteChange|vcs.StatusConflicted, c.Int("limit"))
		if err != nil {
			return fmt.Errorf("listing statuses: %w", err)
		}
		printStatuses("Stored remote changes", statuses)
		return nil
	}

	project := application.Config.Project
	paths, err := projectPaths(project.Root, c.Args().Slice())
	if err != nil {
		return err
	}
	folders, err := projectPaths(project.Root, c.StringSlice("folder"))
	if err != nil {
		return err
	}

	for _, ext := range []string{project.AssetExtension, project.LayerExtension} {
		found, err := scanner.FindLayerFiles(application.FS, folders, ext)
		if err != nil {
			return fmt.Errorf("scanning folders: %w", err)
		}
		paths = append(paths, found...)
	}

	if len(paths) == 0 {
		return fmt.Errorf("nothing to show: pass paths or --folder")
	}

	assets, files := splitByExtension(paths, project.AssetExtension)
	groups, err := filegroup.FromAssets(filegroup.NewAssetResolver(application.FS), assets)
	if err != nil {
		loggy.Warn("Some asset metadata could not be read", "error", err)
	}
	groups = append(groups, filegroup.Singles(files)...)

	if err := application.Status.RefreshStatus(ctx, groups); err != nil {
		return fmt.Errorf("refreshing status: %w", err)
	}

	var statuses []vcs.FileStatus
	for _, p := range reconcile.AllFiles(groups) {
		if st, ok := application.Status.Status(p); ok {
			statuses = append(statuses, st)
		}
	}

	printStatuses("Remote status", statuses)
	return nil
}

func printStatuses(title string, statuses []vcs.FileStatus) {
	shortHash := func(h string) string {
		if len(h) > 8 {
			return h[:8]
		}
		if h == "" {
			return "-"
		}
		return h
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{
			st.Path,
			utils.StatusText(st.Status),
			shortHash(st.LocalHash),
			shortHash(st.RemoteHash),
		})
	}

	utils.PrintTable(title, []string{"Path", "Status", "Local", "Remote"}, rows)
}
