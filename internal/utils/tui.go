// Package utils holds terminal output helpers shared by the commands
package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tildaslashalef/assetsync/internal/vcs"
)

// Theme - exported theme colors for consistent UI
var Theme = struct {
	Success     text.Colors
	Info        text.Colors
	Warning     text.Colors
	Error       text.Colors
	Heading     text.Colors
	Subtle      text.Colors
	Title       text.Colors
	TableHeader text.Colors
	TableBorder text.Colors
	TableRow    text.Colors
	TableAltRow text.Colors
}{
	Success:     text.Colors{text.FgGreen},
	Info:        text.Colors{text.FgBlue},
	Warning:     text.Colors{text.FgYellow},
	Error:       text.Colors{text.FgRed},
	Heading:     text.Colors{text.FgHiCyan, text.Bold},
	Subtle:      text.Colors{text.FgHiBlack},
	Title:       text.Colors{text.FgHiCyan, text.Bold},
	TableHeader: text.Colors{text.FgHiBlue, text.Bold},
	TableBorder: text.Colors{text.FgBlue},
	TableRow:    text.Colors{text.FgWhite},
	TableAltRow: text.Colors{text.FgWhite, text.Faint},
}

// PrintHeading prints a formatted heading
func PrintHeading(title string) {
	fmt.Println(Theme.Heading.Sprint(title))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println(Theme.Success.Sprint("✓ ") + message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Println(Theme.Info.Sprint("ℹ ") + message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println(Theme.Warning.Sprint("⚠ ") + message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Println(Theme.Error.Sprint("✗ ") + message)
}

// PrintKeyValue prints a key-value pair
func PrintKeyValue(key, value string) {
	fmt.Printf("%s: %s\n", color.New(color.Bold).Sprint(key), value)
}

// PrintList prints paths one per line under a label, nothing when empty
func PrintList(label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Println(color.New(color.Bold).Sprint(label + ":"))
	for _, item := range items {
		fmt.Printf("  %s %s\n", color.CyanString("•"), item)
	}
}

// StatusText renders a file status with a color matching its severity
func StatusText(status vcs.Status) string {
	s := status.String()
	switch {
	case status.Has(vcs.StatusConflicted):
		return color.New(color.FgRed, color.Bold).Sprint(s)
	case status.Has(vcs.StatusDeletedRemotely):
		return color.RedString(s)
	case status.Has(vcs.StatusUpdatedRemotely):
		return color.YellowString(s)
	case status.Has(vcs.StatusModifiedLocally | vcs.StatusAddedLocally):
		return color.CyanString(s)
	case status.Has(vcs.StatusTracked):
		return color.GreenString(s)
	default:
		return color.HiBlackString(s)
	}
}

// SuccessText renders a success flag
func SuccessText(success bool) string {
	if success {
		return color.GreenString("✓ Success")
	}
	return color.RedString("✗ Failed")
}

// FormatTime formats t for tables, "-" for the zero time
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04:05")
}

// Truncate shortens s to at most maxLen runes
func Truncate(s string, maxLen int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= maxLen {
		return string(r)
	}
	return string(r[:maxLen-3]) + "..."
}

// CreateTable creates a new table with the default styling
func CreateTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	if title != "" {
		t.SetTitle(title)
	}

	style := table.StyleLight
	style.Color.Header = Theme.TableHeader
	style.Color.Border = Theme.TableBorder
	style.Color.Row = Theme.TableRow
	style.Color.RowAlternate = Theme.TableAltRow
	style.Title.Colors = Theme.Title
	style.Title.Align = text.AlignCenter
	style.Box.PaddingLeft = " "
	style.Box.PaddingRight = " "
	t.SetStyle(style)

	return t
}

// PrintTable prints a table with headers and rows to stdout
func PrintTable(title string, headers []string, rows [][]string) {
	t := CreateTable(os.Stdout, title)

	header := table.Row{}
	for _, h := range headers {
		header = append(header, h)
	}
	t.AppendHeader(header)

	for _, row := range rows {
		r := table.Row{}
		for _, cell := range row {
			r = append(r, cell)
		}
		t.AppendRow(r)
	}

	if len(rows) == 0 {
		t.AppendFooter(table.Row{"no records"})
	}

	t.Render()
}
