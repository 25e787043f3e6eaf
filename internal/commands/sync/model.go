package sync

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// StartFunc starts a sync session and calls done exactly once when it ends
type StartFunc func(done func(SyncCompleteMsg))

// Model is the Bubble Tea model shown while a sync session runs
type Model struct {
	title   string
	start   StartFunc
	keymap  KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles

	// UI state
	syncing  bool
	showHelp bool
	width    int
	complete *SyncCompleteMsg
}

// NewModel initializes and returns a new Model
func NewModel(title string, start StartFunc) Model {
	styles := DefaultStyles()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Spinner

	return Model{
		title:   title,
		start:   start,
		keymap:  DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		styles:  styles,
	}
}

// Init initializes the model and returns the initial command
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return SyncStartMsg{} })
}

// Complete returns the outcome once the session finished, nil before
func (m Model) Complete() *SyncCompleteMsg {
	return m.complete
}

// runSync starts the session and blocks until it reports back
func (m Model) runSync() tea.Msg {
	done := make(chan SyncCompleteMsg, 1)
	m.start(func(msg SyncCompleteMsg) { done <- msg })
	return <-done
}
