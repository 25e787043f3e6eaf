package sync

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tildaslashalef/assetsync/internal/loggy"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.showHelp = !m.showHelp
		case msg.String() == "ctrl+c":
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Quit) && m.complete != nil:
			return m, tea.Quit
		}

	case SyncStartMsg:
		if !m.syncing && m.complete == nil {
			m.syncing = true
			loggy.Debug("Starting sync from TUI", "title", m.title)
			return m, m.runSync
		}

	case SyncCompleteMsg:
		m.syncing = false
		m.complete = &msg
		if msg.Err != nil {
			loggy.Warn("Sync finished with errors", "error", msg.Err)
		}
		return m, tea.Quit

	case spinner.TickMsg:
		if m.syncing {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}
