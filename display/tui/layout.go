package tui

import "strings"

// LayoutSize represents a responsive breakpoint for terminal width.
type LayoutSize int

const (
	// LayoutCompact is used for terminals narrower than 60 characters.
	LayoutCompact LayoutSize = iota
	// LayoutNormal is used for terminals between 60 and 120 characters wide.
	LayoutNormal
	// LayoutWide is used for terminals wider than 120 characters.
	LayoutWide
)

// DetectLayout returns the appropriate LayoutSize for the given terminal width.
func DetectLayout(width int) LayoutSize {
	switch {
	case width < 60:
		return LayoutCompact
	case width <= 120:
		return LayoutNormal
	default:
		return LayoutWide
	}
}

// LayoutConfig holds the sizes that adapt to terminal width.
type LayoutConfig struct {
	// CardsPerRow is how many metric cards share a row.
	CardsPerRow int
	// CardWidth is the inner width of one card.
	CardWidth int
	// ChartHeight is the number of plot rows in the CPU/RAM chart.
	ChartHeight int
	// SliderWidth is the track width of a threshold slider.
	SliderWidth int
	// EventRows is the number of alert events listed.
	EventRows int
}

// LayoutForSize returns a LayoutConfig for the given size and width.
func LayoutForSize(size LayoutSize, width int) LayoutConfig {
	var cfg LayoutConfig
	switch size {
	case LayoutCompact:
		cfg = LayoutConfig{CardsPerRow: 1, ChartHeight: 4, EventRows: 3}
	case LayoutWide:
		cfg = LayoutConfig{CardsPerRow: 4, ChartHeight: 10, EventRows: 8}
	default:
		cfg = LayoutConfig{CardsPerRow: 2, ChartHeight: 6, EventRows: 5}
	}
	// Each card adds a 2-cell border and 2 cells of padding.
	cfg.CardWidth = max(12, (width-2)/cfg.CardsPerRow-4)
	cfg.SliderWidth = max(10, min(50, width-24))
	return cfg
}

// sectionTitle renders a centered title with horizontal rules on either side.
// Format: "---- Title ----"
func sectionTitle(title string, width int) string {
	titleLen := len([]rune(title))
	decorLen := titleLen + 2
	if width <= 0 || decorLen >= width {
		return title
	}
	remaining := width - decorLen
	left := remaining / 2
	return strings.Repeat("─", left) + " " + title + " " + strings.Repeat("─", remaining-left)
}
