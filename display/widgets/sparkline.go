package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sparkBlocks holds the 8 block heights used by sparklines, lowest first.
var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SparklineConfig controls a single-row sparkline.
type SparklineConfig struct {
	// Data points to render, most recent last.
	Data []float64
	// Width is the number of characters to render. If 0, uses len(Data).
	Width int
	// Min and Max fix the scale. If Min == Max the data is auto-scaled.
	Min float64
	Max float64
	// Label is optional text shown before the sparkline.
	Label string
	// Color is the foreground of the sparkline characters.
	Color lipgloss.Color
}

// dataRange returns the smallest and largest value in data.
func dataRange(data []float64) (lo, hi float64) {
	lo, hi = data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// RenderSparkline renders a unicode sparkline. Short data is left-padded so
// the newest point is always in the last column.
func RenderSparkline(cfg SparklineConfig) string {
	if len(cfg.Data) == 0 {
		return ""
	}

	data := cfg.Data
	width := cfg.Width
	if width <= 0 {
		width = len(data)
	}
	if width < len(data) {
		data = data[len(data)-width:]
	}

	lo, hi := cfg.Min, cfg.Max
	if lo == hi {
		lo, hi = dataRange(data)
	}

	runes := make([]rune, 0, len(data))
	for _, v := range data {
		if lo == hi {
			runes = append(runes, sparkBlocks[len(sparkBlocks)/2])
			continue
		}
		norm := math.Max(0, math.Min(1, (v-lo)/(hi-lo)))
		idx := min(len(sparkBlocks)-1, int(norm*float64(len(sparkBlocks)-1)))
		runes = append(runes, sparkBlocks[idx])
	}

	out := string(runes)
	if width > len(data) {
		out = strings.Repeat(" ", width-len(data)) + out
	}
	if cfg.Color != "" {
		out = lipgloss.NewStyle().Foreground(cfg.Color).Render(out)
	}
	if cfg.Label != "" {
		out = cfg.Label + " " + out
	}
	return out
}

// RenderSparklineWithRange renders an auto-scaled sparkline framed by its
// minimum and maximum: min▁▂▃▄▅▆▇█max.
func RenderSparklineWithRange(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	lo, hi := dataRange(data)
	return fmt.Sprintf("%.0f%s%.0f", lo, RenderSparkline(SparklineConfig{Data: data, Width: width}), hi)
}

// Series is one line of a Chart.
type Series struct {
	Label string
	Data  []float64
	Color lipgloss.Color
	// Glyph marks the series' points (default "•").
	Glyph string
}

// ChartConfig describes a multi-row line chart on a fixed 0-Max scale.
type ChartConfig struct {
	Series []Series
	Width  int
	Height int
	// Max is the top of the y axis (default 100).
	Max float64
}

// RenderChart plots each series as one glyph per column, newest point on
// the right, with a y-axis gutter and a legend. Later series are drawn over
// earlier ones where they share a cell.
func RenderChart(cfg ChartConfig) string {
	width := max(cfg.Width, 1)
	height := max(cfg.Height, 2)
	top := cfg.Max
	if top <= 0 {
		top = 100
	}

	grid := make([][]string, height)
	for r := range grid {
		grid[r] = make([]string, width)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for _, s := range cfg.Series {
		glyph := s.Glyph
		if glyph == "" {
			glyph = "•"
		}
		style := lipgloss.NewStyle().Foreground(s.Color)
		data := s.Data
		if len(data) > width {
			data = data[len(data)-width:]
		}
		offset := width - len(data)
		for i, v := range data {
			norm := math.Max(0, math.Min(1, v/top))
			row := height - 1 - int(math.Round(norm*float64(height-1)))
			grid[row][offset+i] = style.Render(glyph)
		}
	}

	axis := lipgloss.NewStyle().Foreground(ColorMuted)
	var sb strings.Builder
	for r, row := range grid {
		label := "    "
		switch r {
		case 0:
			label = fmt.Sprintf("%3.0f ", top)
		case height / 2:
			label = fmt.Sprintf("%3.0f ", top/2)
		case height - 1:
			label = "  0 "
		}
		sb.WriteString(axis.Render(label + "┤"))
		sb.WriteString(strings.Join(row, ""))
		sb.WriteString("\n")
	}

	legend := make([]string, 0, len(cfg.Series))
	for _, s := range cfg.Series {
		glyph := s.Glyph
		if glyph == "" {
			glyph = "•"
		}
		legend = append(legend, lipgloss.NewStyle().Foreground(s.Color).Render(glyph)+" "+s.Label)
	}
	sb.WriteString(axis.Render("     " + strings.Join(legend, "   ")))
	return sb.String()
}
