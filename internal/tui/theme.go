package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha, trimmed to the colours the board uses.
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

const (
	colorAccent  = colorPink
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorInfo    = colorTeal
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	tabStyle      = lipgloss.NewStyle().Padding(0, 1).Foreground(colorOverlay1)
	activeTab     = tabStyle.Foreground(colorText).Background(colorSurface1).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorOverlay1)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	infoStyle     = lipgloss.NewStyle().Foreground(colorInfo)
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFocus).Padding(1, 2)
	cardFailStyle = cardStyle.BorderForeground(colorError)
)
