package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SliderConfig describes a horizontal value slider.
type SliderConfig struct {
	Label string
	// LabelWidth pads the label so stacked sliders line up.
	LabelWidth int
	Value      float64
	Min        float64
	Max        float64
	Unit       string
	Width      int
	Focused    bool
}

// RenderSlider renders "Label  ━━━━━●──────  80%". The knob is highlighted
// when the slider has focus.
func RenderSlider(cfg SliderConfig) string {
	width := cfg.Width
	if width < 3 {
		width = 3
	}
	span := cfg.Max - cfg.Min
	frac := 0.0
	if span > 0 {
		frac = math.Max(0, math.Min(1, (cfg.Value-cfg.Min)/span))
	}
	knob := int(math.Round(frac * float64(width-1)))

	trackColor := ColorMuted
	knobStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	if cfg.Focused {
		trackColor = ColorAccent
		knobStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	}
	done := lipgloss.NewStyle().Foreground(trackColor)

	var sb strings.Builder
	label := cfg.Label
	if pad := cfg.LabelWidth - lipgloss.Width(label); pad > 0 {
		label += strings.Repeat(" ", pad)
	}
	if label != "" {
		sb.WriteString(label)
		sb.WriteString(" ")
	}
	sb.WriteString(done.Render(strings.Repeat("━", knob)))
	sb.WriteString(knobStyle.Render("●"))
	sb.WriteString(strings.Repeat("─", width-knob-1))
	sb.WriteString(fmt.Sprintf(" %3.0f%s", cfg.Value, cfg.Unit))
	return sb.String()
}
