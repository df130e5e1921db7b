package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Palette shared by the gauges, sliders and status dots.
const (
	ColorOK       = lipgloss.Color("#22C55E")
	ColorWarning  = lipgloss.Color("#EAB308")
	ColorCritical = lipgloss.Color("#EF4444")
	ColorMuted    = lipgloss.Color("#6B7280")
	ColorAccent   = lipgloss.Color("#7C3AED")
)

// GaugeConfig controls the appearance of a horizontal bar gauge.
type GaugeConfig struct {
	// Width is the total character width of the bar.
	Width int
	// Percent is the fill level from 0 to 100.
	Percent float64
	// Marker is the threshold position from 0 to 100, drawn as a tick
	// over the bar. Negative disables it.
	Marker float64
	// Label is optional text shown to the left of the bar.
	Label string
	// ShowPercent appends "XX%" to the right.
	ShowPercent bool
	// ThresholdWarning is the fill % at which the bar turns yellow.
	ThresholdWarning float64
	// ThresholdDanger is the fill % at which the bar turns red.
	ThresholdDanger float64
	// FilledChar is the character for the filled portion (default "█").
	FilledChar string
	// EmptyChar is the character for the empty portion (default "░").
	EmptyChar string
}

// DefaultGaugeConfig returns a 20-wide gauge with no marker.
func DefaultGaugeConfig() GaugeConfig {
	return GaugeConfig{
		Width:            20,
		Marker:           -1,
		ShowPercent:      true,
		ThresholdWarning: 70,
		ThresholdDanger:  90,
		FilledChar:       "█",
		EmptyChar:        "░",
	}
}

// gaugeColor picks the bar color for percent.
func gaugeColor(percent, warning, danger float64) lipgloss.Color {
	switch {
	case percent > danger:
		return ColorCritical
	case percent >= warning:
		return ColorWarning
	default:
		return ColorOK
	}
}

// cells returns how many of width cells percent fills.
func cells(percent float64, width int) int {
	n := int(math.Round(percent / 100.0 * float64(width)))
	return max(0, min(width, n))
}

// RenderGauge renders [Label] [████░░│░░] [XX%].
func RenderGauge(cfg GaugeConfig) string {
	percent := math.Max(0, math.Min(100, cfg.Percent))

	filledChar := cfg.FilledChar
	if filledChar == "" {
		filledChar = "█"
	}
	emptyChar := cfg.EmptyChar
	if emptyChar == "" {
		emptyChar = "░"
	}
	width := cfg.Width
	if width <= 0 {
		width = 20
	}

	filled := cells(percent, width)
	marker := -1
	if cfg.Marker >= 0 {
		marker = min(width-1, cells(cfg.Marker, width))
	}

	fill := lipgloss.NewStyle().Foreground(gaugeColor(percent, cfg.ThresholdWarning, cfg.ThresholdDanger))
	tick := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	var bar strings.Builder
	for i := range width {
		switch {
		case i == marker:
			bar.WriteString(tick.Render("│"))
		case i < filled:
			bar.WriteString(fill.Render(filledChar))
		default:
			bar.WriteString(emptyChar)
		}
	}

	var sb strings.Builder
	if cfg.Label != "" {
		sb.WriteString(cfg.Label)
		sb.WriteString(" ")
	}
	sb.WriteString(bar.String())
	if cfg.ShowPercent {
		sb.WriteString(fmt.Sprintf(" %3.0f%%", percent))
	}
	return sb.String()
}

// RenderMiniGauge renders a compact gauge bar with no label or percentage.
func RenderMiniGauge(percent float64, width int) string {
	cfg := DefaultGaugeConfig()
	cfg.Width = width
	cfg.Percent = percent
	cfg.ShowPercent = false
	return RenderGauge(cfg)
}

// FillPercent maps a reading onto a 0-100 bar. Percentages fill directly;
// temperature fills relative to its threshold, so the bar is full exactly
// when the threshold is reached.
func FillPercent(m collectors.Metric, value, threshold float64) float64 {
	if m.IsPercent() {
		return math.Max(0, math.Min(100, value))
	}
	if threshold <= 0 {
		return 100
	}
	return math.Max(0, math.Min(100, value/threshold*100))
}

// MetricGauge renders the bar for one metric card. The threshold is marked
// on percentage bars and the bar turns red once the value passes it.
func MetricGauge(m collectors.Metric, value, threshold float64, width int) string {
	cfg := DefaultGaugeConfig()
	cfg.Width = width
	cfg.ShowPercent = false
	cfg.Percent = FillPercent(m, value, threshold)
	cfg.ThresholdDanger = FillPercent(m, threshold, threshold)
	cfg.ThresholdWarning = cfg.ThresholdDanger * 0.85
	if m.IsPercent() {
		cfg.Marker = threshold
	}
	return RenderGauge(cfg)
}
