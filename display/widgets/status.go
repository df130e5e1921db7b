package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// StatusLevel represents the severity shown by a status dot.
type StatusLevel int

const (
	// StatusOK indicates a healthy state.
	StatusOK StatusLevel = iota
	// StatusWarning indicates a metric above threshold within its grace period.
	StatusWarning
	// StatusCritical indicates a raised alert.
	StatusCritical
	// StatusUnknown indicates no data.
	StatusUnknown
)

// StatusConfig holds the configuration for rendering a status indicator.
type StatusConfig struct {
	Level    StatusLevel
	Text     string
	ShowIcon bool
}

var statusIcons = map[StatusLevel]string{
	StatusOK:       "●",
	StatusWarning:  "●",
	StatusCritical: "●",
	StatusUnknown:  "○",
}

var statusColors = map[StatusLevel]lipgloss.Color{
	StatusOK:       ColorOK,
	StatusWarning:  ColorWarning,
	StatusCritical: ColorCritical,
	StatusUnknown:  ColorMuted,
}

// LevelColor returns the display color for a level.
func LevelColor(l StatusLevel) lipgloss.Color {
	return statusColors[l]
}

// RenderStatus renders a status indicator with an optional colored icon and text.
func RenderStatus(cfg StatusConfig) string {
	style := lipgloss.NewStyle().Foreground(statusColors[cfg.Level])
	if !cfg.ShowIcon {
		return style.Render(cfg.Text)
	}
	icon := style.Render(statusIcons[cfg.Level])
	if cfg.Text == "" {
		return icon
	}
	return icon + " " + cfg.Text
}

// RenderStatusFromString renders a dot and label for a status name.
func RenderStatusFromString(s string) string {
	return RenderStatus(StatusConfig{Level: StatusLevelFromString(s), Text: s, ShowIcon: true})
}

// StatusLevelFromString maps alert state and health level names to a
// StatusLevel, case-insensitively.
func StatusLevelFromString(s string) StatusLevel {
	switch strings.ToLower(s) {
	case "ok", "healthy", "normal":
		return StatusOK
	case "warning", "exceeding":
		return StatusWarning
	case "critical", "alerted", "error":
		return StatusCritical
	default:
		return StatusUnknown
	}
}

// FromAlert maps an alert state to a level. Metrics without data are unknown.
func FromAlert(st alert.State) StatusLevel {
	if !st.Evaluated() {
		return StatusUnknown
	}
	switch st.Status {
	case alert.StatusAlerted:
		return StatusCritical
	case alert.StatusExceeding:
		return StatusWarning
	default:
		return StatusOK
	}
}

// FromHealth maps a summary level to a status level.
func FromHealth(l status.Level) StatusLevel {
	switch l {
	case status.LevelHealthy:
		return StatusOK
	case status.LevelWarning:
		return StatusWarning
	case status.LevelCritical:
		return StatusCritical
	default:
		return StatusUnknown
	}
}
