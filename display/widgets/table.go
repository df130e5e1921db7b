package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/host-pulse/alert"
)

// Alignment controls text alignment within a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Column defines a single table column.
type Column struct {
	Title string
	// Width is the fixed character width. If 0, it fits the content.
	Width int
	Align Alignment
}

// TableConfig holds the configuration for rendering a table.
type TableConfig struct {
	Columns []Column
	Rows    [][]string
	// RowStyles optionally styles individual rows by index.
	RowStyles   map[int]lipgloss.Style
	HeaderStyle lipgloss.Style
	Separator   string
}

// RenderTable renders a plain text table with a header rule.
func RenderTable(cfg TableConfig) string {
	if len(cfg.Columns) == 0 {
		return ""
	}
	sep := cfg.Separator
	if sep == "" {
		sep = "  "
	}
	widths := columnWidths(cfg.Columns, cfg.Rows)

	lines := make([]string, 0, len(cfg.Rows)+2)
	header := make([]string, len(cfg.Columns))
	rule := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		header[i] = fit(col.Title, widths[i], col.Align)
		rule[i] = strings.Repeat("─", widths[i])
	}
	lines = append(lines, cfg.HeaderStyle.Render(strings.Join(header, sep)), strings.Join(rule, sep))

	for r, row := range cfg.Rows {
		out := make([]string, len(cfg.Columns))
		for i, col := range cfg.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			out[i] = fit(cell, widths[i], col.Align)
		}
		line := strings.Join(out, sep)
		if style, ok := cfg.RowStyles[r]; ok {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// fit pads or truncates s to width runes.
func fit(s string, width int, align Alignment) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) > width {
		if width == 1 {
			return string(r[:1])
		}
		return string(r[:width-1]) + "…"
	}
	pad := strings.Repeat(" ", width-len(r))
	if align == AlignRight {
		return pad + s
	}
	return s + pad
}

func columnWidths(cols []Column, rows [][]string) []int {
	widths := make([]int, len(cols))
	for i, col := range cols {
		if col.Width > 0 {
			widths[i] = col.Width
			continue
		}
		w := len([]rune(col.Title))
		for _, row := range rows {
			if i < len(row) {
				w = max(w, len([]rune(row[i])))
			}
		}
		widths[i] = max(w, 1)
	}
	return widths
}

// EventTable renders alert events newest first, limited to limit rows.
// RAISED rows are red and CLEARED rows green.
func EventTable(events []alert.Event, limit int) string {
	if len(events) == 0 {
		return lipgloss.NewStyle().Foreground(ColorMuted).Render("no alerts yet")
	}
	cfg := TableConfig{
		Columns: []Column{
			{Title: "Time", Width: 8},
			{Title: "Metric", Width: 11},
			{Title: "Event", Width: 7},
			{Title: "Value", Width: 8, Align: AlignRight},
			{Title: "Limit", Width: 6, Align: AlignRight},
			{Title: "For", Width: 7, Align: AlignRight},
		},
		HeaderStyle: lipgloss.NewStyle().Bold(true),
		RowStyles:   make(map[int]lipgloss.Style),
	}
	for i := len(events) - 1; i >= 0 && len(cfg.Rows) < limit; i-- {
		ev := events[i]
		unit := ev.Metric.Unit()
		cfg.Rows = append(cfg.Rows, []string{
			ev.Timestamp.Format(time.TimeOnly),
			ev.Metric.Label(),
			ev.Kind.String(),
			fmt.Sprintf("%.1f%s", ev.Value, unit),
			fmt.Sprintf("%g%s", ev.Threshold, unit),
			ev.Duration().Round(time.Second).String(),
		})
		color := ColorOK
		if ev.Kind == alert.KindRaised {
			color = ColorCritical
		}
		cfg.RowStyles[len(cfg.Rows)-1] = lipgloss.NewStyle().Foreground(color)
	}
	return RenderTable(cfg)
}
