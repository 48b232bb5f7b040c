package tui

import "github.com/charmbracelet/lipgloss"

// Stage display statuses.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusRetrying = "retrying"
	StatusDone     = "done"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

var (
	// TitleStyle styles the header line above the stage list.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// WarningStyle styles accumulated warnings under the stage list.
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	statusStyles = map[string]lipgloss.Style{
		StatusDone:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusRunning:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusRetrying: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		StatusSkipped:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StatusPending:  lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given stage status.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
