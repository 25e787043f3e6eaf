package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/assetsync/internal/app"
	syncui "github.com/tildaslashalef/assetsync/internal/commands/sync"
	"github.com/tildaslashalef/assetsync/internal/layer"
	"github.com/tildaslashalef/assetsync/internal/loggy"
	"github.com/tildaslashalef/assetsync/internal/synchronizer"
	"github.com/tildaslashalef/assetsync/internal/utils"
)

var (
	folderFlag = &cli.StringSliceFlag{
		Name:    "folder",
		Aliases: []string{"f"},
		Usage:   "Folder to pull recursively, relative to the project root (repeatable)",
	}
	plainFlag = &cli.BoolFlag{
		Name:  "plain",
		Usage: "Print the summary without the interactive spinner",
	}
)

// SyncCommand returns the CLI command for syncing assets and folders
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Pull remote changes of assets and folders",
		ArgsUsage: "[ASSET.cryasset | FILE ...]",
		Description: "Checks the remote status of the given assets and files, pulls the ones that " +
			"changed remotely together with the folders, then pulls files that only became " +
			"known after the first pull. Locally modified files are left alone.",
		Flags:  []cli.Flag{folderFlag, plainFlag},
		Action: syncAction,
	}
}

// LayersCommand returns the CLI command for syncing layers
func LayersCommand() *cli.Command {
	return &cli.Command{
		Name:      "layers",
		Usage:     "Pull remote layer changes and import new layer files",
		ArgsUsage: "[LAYER.lyr ...]",
		Description: "Syncs the given layers, or every layer under the folders when none is given, " +
			"and imports the layer files that appeared under the folders during the sync.",
		Flags:  []cli.Flag{folderFlag, plainFlag},
		Action: layersAction,
	}
}

func syncAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	root := application.Config.Project.Root
	paths, err := projectPaths(root, c.Args().Slice())
	if err != nil {
		return err
	}
	folders, err := projectPaths(root, c.StringSlice("folder"))
	if err != nil {
		return err
	}

	if len(paths) == 0 && len(folders) == 0 {
		return fmt.Errorf("nothing to sync: pass assets, files or --folder")
	}

	assets, files := splitByExtension(paths, application.Config.Project.AssetExtension)
	ctx := c.Context

	start := func(done func(syncui.SyncCompleteMsg)) {
		onDone := func(r *synchronizer.Result) {
			done(syncui.SyncCompleteMsg{Result: r, Err: r.Err})
		}

		switch {
		case len(files) > 0:
			application.Sync.SyncPaths(ctx, assets, files, folders, onDone)
		case len(assets) > 0:
			application.Sync.SyncAssets(ctx, assets, folders, onDone)
		default:
			application.Sync.SyncFolders(ctx, folders, onDone)
		}
	}

	return runSession(ctx, c.Bool("plain"), "Sync", start)
}

func layersAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	root := application.Config.Project.Root
	paths, err := projectPaths(root, c.Args().Slice())
	if err != nil {
		return err
	}
	folders, err := projectPaths(root, c.StringSlice("folder"))
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		return fmt.Errorf("at least one --folder is required")
	}

	var layers []*layer.Layer
	if len(paths) == 0 {
		layers, err = application.Layers.LoadFolders(folders, application.Config.Project.LayerExtension)
		if err != nil {
			return fmt.Errorf("loading layers: %w", err)
		}
	} else {
		for _, p := range paths {
			l, err := application.Layers.Load(p)
			if err != nil {
				return fmt.Errorf("loading layer: %w", err)
			}
			layers = append(layers, l)
		}
	}

	ctx := c.Context
	start := func(done func(syncui.SyncCompleteMsg)) {
		application.LayerSync.Sync(ctx, layers, folders, func(r *layer.Result) {
			imported := r.Imported
			if imported == nil {
				imported = []string{}
			}
			done(syncui.SyncCompleteMsg{Result: r.Sync, Imported: imported, Err: r.Err})
		})
	}

	return runSession(ctx, c.Bool("plain"), "Layer sync", start)
}

// runSession runs one session behind the spinner, or without it when plain
// is set, and turns a failed session into a non-zero exit code
func runSession(ctx context.Context, plain bool, title string, start syncui.StartFunc) error {
	var complete *syncui.SyncCompleteMsg

	if plain {
		done := make(chan syncui.SyncCompleteMsg, 1)
		start(func(msg syncui.SyncCompleteMsg) { done <- msg })

		select {
		case msg := <-done:
			complete = &msg
		case <-ctx.Done():
			return cli.Exit("sync interrupted", 130)
		}
		printSummary(title, complete)
	} else {
		final, err := tea.NewProgram(syncui.NewModel(title, start)).Run()
		if err != nil {
			loggy.Error("Error running sync TUI", "error", err)
			return fmt.Errorf("error running sync UI: %w", err)
		}
		complete = final.(syncui.Model).Complete()
	}

	if complete == nil {
		return cli.Exit("sync interrupted", 130)
	}
	if complete.Err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func printSummary(title string, msg *syncui.SyncCompleteMsg) {
	if msg.Err == nil {
		utils.PrintSuccess(title + " complete")
	} else {
		utils.PrintWarning(title + " finished with errors")
	}

	if r := msg.Result; r != nil {
		utils.PrintKeyValue("Session", r.SessionID)
		utils.PrintKeyValue("Changed", fmt.Sprintf("%d of %d (%d deleted remotely)", r.Changed, r.Requested, r.Deleted))
		utils.PrintKeyValue("Pulls", fmt.Sprintf("%d (%d files)", len(r.Pulls), r.PulledFiles))
		utils.PrintList("Discovered", r.Discovered)
		utils.PrintList("Skipped (modified locally)", r.Skipped)
	}
	utils.PrintList("Imported", msg.Imported)

	if msg.Err != nil {
		utils.PrintError(msg.Err.Error())
	}
}
