package commands

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/assetsync/internal/app"
	"github.com/tildaslashalef/assetsync/internal/synchronizer"
	"github.com/tildaslashalef/assetsync/internal/utils"
)

// HistoryCommand returns the CLI command for listing past sync sessions
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent sync sessions",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Number of sessions to show",
				Value:   20,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show sessions of this kind (groups, assets, folders, layers)",
			},
		},
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	kind := synchronizer.Kind(c.String("kind"))
	switch kind {
	case "", synchronizer.KindGroups, synchronizer.KindAssets, synchronizer.KindFolders, synchronizer.KindLayers:
	default:
		return fmt.Errorf("unknown session kind %q", kind)
	}

	records, err := application.Sessions.ListSessions(c.Context, kind, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing sync sessions: %w", err)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			string(rec.Kind),
			fmt.Sprintf("%d/%d", rec.Kept, rec.Requested),
			strconv.Itoa(rec.Deleted),
			strconv.Itoa(rec.Pulls),
			strconv.Itoa(rec.PulledFiles),
			strconv.Itoa(rec.Discovered),
			strconv.Itoa(rec.Imported),
			utils.SuccessText(rec.Success),
			utils.Truncate(rec.ErrorMessage, 48),
			utils.FormatTime(rec.CompletedAt),
		})
	}

	utils.PrintTable("Sync sessions", []string{
		"Session", "Kind", "Kept", "Deleted", "Pulls", "Files", "Discovered", "Imported", "Status", "Error", "Completed",
	}, rows)
	return nil
}
