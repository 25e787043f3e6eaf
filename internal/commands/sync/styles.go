package sync

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains predefined styles for the TUI
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Subtle  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Spinner lipgloss.Style
	Section lipgloss.Style
}

// DefaultStyles returns default styles for the TUI
func DefaultStyles() Styles {
	text := lipgloss.AdaptiveColor{Light: "#3c3836", Dark: "#fbf1c7"}
	border := lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#504945"}

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(text),
		Label:   lipgloss.NewStyle().Width(14).Foreground(lipgloss.AdaptiveColor{Light: "#7c6f64", Dark: "#a89984"}),
		Subtle:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#928374", Dark: "#7c6f64"}),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#cc241d", Dark: "#fb4934"}),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#98971a", Dark: "#b8bb26"}),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#d79921", Dark: "#fabd2f"}),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#fe8019", Dark: "#fe8019"}),
		Section: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 2),
	}
}
