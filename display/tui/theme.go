package tui

import (
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/display/widgets"
)

// Color palette for the dashboard.
const (
	colorPrimary   = widgets.ColorAccent       // Purple
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorRAM       = lipgloss.Color("#F472B6") // Pink
	colorDanger    = widgets.ColorCritical     // Red
	colorMuted     = widgets.ColorMuted        // Gray
	colorCardBg    = lipgloss.Color("#2D2D2D") // Card background
)

// Styles used throughout the TUI.
var (
	styleHeader      lipgloss.Style
	styleFooter      lipgloss.Style
	styleContent     lipgloss.Style
	styleTitle       lipgloss.Style
	styleCard        lipgloss.Style
	styleCardFocused lipgloss.Style
	styleValue       lipgloss.Style
	styleError       lipgloss.Style
	styleSection     lipgloss.Style
)

func init() {
	styleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorPrimary).
		Padding(0, 2)

	styleFooter = lipgloss.NewStyle().
		Foreground(colorMuted).
		MarginTop(1)

	styleContent = lipgloss.NewStyle().
		Padding(0, 1)

	styleTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSecondary)

	styleCard = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Background(colorCardBg).
		Padding(0, 1)

	styleCardFocused = styleCard.
		BorderForeground(colorPrimary)

	styleValue = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF"))

	styleError = lipgloss.NewStyle().
		Foreground(colorDanger)

	styleSection = lipgloss.NewStyle().
		Foreground(colorMuted)
}
