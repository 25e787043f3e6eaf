package sync

import (
	"fmt"
	"strings"
	"time"
)

// View renders the sync TUI.
func (m Model) View() string {
	if m.complete == nil {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), m.styles.Title.Render(m.title)))
		sb.WriteString(m.styles.Subtle.Render("Checking remote status and pulling changes..."))
		if m.showHelp {
			sb.WriteString("\n\n")
			sb.WriteString(m.help.View(m.keymap))
		}
		return sb.String()
	}

	return m.summary() + "\n"
}

func (m Model) summary() string {
	var sb strings.Builder
	msg := m.complete

	if msg.Err == nil {
		sb.WriteString(m.styles.Success.Render("✓ " + m.title + " complete"))
	} else {
		sb.WriteString(m.styles.Warning.Render("⚠ " + m.title + " finished with errors"))
	}
	sb.WriteString("\n\n")

	row := func(label string, value any) {
		sb.WriteString(m.styles.Label.Render(label))
		sb.WriteString(fmt.Sprintf("%v\n", value))
	}

	if r := msg.Result; r != nil {
		row("Requested", r.Requested)
		row("Changed", r.Changed)
		row("Deleted", r.Deleted)
		row("Pulls", len(r.Pulls))
		row("Files pulled", r.PulledFiles)
		row("Discovered", len(r.Discovered))
		if len(r.Skipped) > 0 {
			row("Skipped", strings.Join(r.Skipped, ", "))
		}
		row("Duration", r.Duration().Round(time.Millisecond))
	}
	if msg.Imported != nil {
		row("Imported", len(msg.Imported))
	}

	out := m.styles.Section.Render(strings.TrimRight(sb.String(), "\n"))
	if msg.Err != nil {
		out += "\n" + m.styles.Error.Render(msg.Err.Error())
	}
	return out
}
