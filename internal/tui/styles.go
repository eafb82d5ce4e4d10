package tui

import "github.com/charmbracelet/lipgloss"

// Color palette for the dashboard
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	ActiveColor  = lipgloss.Color("#43BF6D") // Green - active devices
	WarnColor    = lipgloss.Color("#FFA500") // Orange - IP changes, offline
	ErrorColor   = lipgloss.Color("#FF5555") // Red - missing devices
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(1)

	scanningStyle = lipgloss.NewStyle().
			Foreground(WarnColor).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			PaddingLeft(1)

	tableBorderStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(PrimaryColor)

	helpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(1)
)

// statusGlyph renders a colored marker for one derived status value.
func statusGlyph(status string) string {
	switch status {
	case "active":
		return lipgloss.NewStyle().Foreground(ActiveColor).Render("●")
	case "ip_changed":
		return lipgloss.NewStyle().Foreground(WarnColor).Render("◐")
	case "offline":
		return lipgloss.NewStyle().Foreground(MutedColor).Render("○")
	default:
		return lipgloss.NewStyle().Foreground(ErrorColor).Render("✗")
	}
}
