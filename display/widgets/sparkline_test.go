package widgets

import (
	"strings"
	"testing"
)

func TestRenderSparkline_BasicData(t *testing.T) {
	result := RenderSparkline(SparklineConfig{Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}})

	runes := []rune(result)
	if len(runes) != 8 {
		t.Fatalf("expected 8 runes, got %d", len(runes))
	}
	if runes[0] != '▁' || runes[7] != '█' {
		t.Errorf("expected ▁...█, got %q", result)
	}
	for i := 1; i < len(runes); i++ {
		if runes[i] < runes[i-1] {
			t.Errorf("expected ascending blocks at %d in %q", i, result)
		}
	}
}

func TestRenderSparkline_EmptyData(t *testing.T) {
	if got := RenderSparkline(SparklineConfig{}); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestRenderSparkline_AllEqual(t *testing.T) {
	result := RenderSparkline(SparklineConfig{Data: []float64{5, 5, 5}})
	if result != "▅▅▅" {
		t.Errorf("expected mid blocks, got %q", result)
	}
}

func TestRenderSparkline_FixedScale(t *testing.T) {
	// 0-100 scale: 50 sits in the middle rather than at the top.
	result := []rune(RenderSparkline(SparklineConfig{Data: []float64{0, 50}, Min: 0, Max: 100}))
	if result[0] != '▁' || result[1] != '▄' {
		t.Errorf("fixed scale = %q", string(result))
	}
}

func TestRenderSparkline_WidthTruncatesAndPads(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	if got := []rune(RenderSparkline(SparklineConfig{Data: data, Width: 3})); len(got) != 3 {
		t.Errorf("truncated width = %d, want 3", len(got))
	}
	padded := RenderSparkline(SparklineConfig{Data: data, Width: 8})
	if !strings.HasPrefix(padded, "   ") || len([]rune(padded)) != 8 {
		t.Errorf("padded = %q", padded)
	}
}

func TestRenderSparkline_WithLabel(t *testing.T) {
	result := RenderSparkline(SparklineConfig{Data: []float64{1, 2}, Label: "CPU"})
	if !strings.HasPrefix(result, "CPU ") {
		t.Errorf("expected label prefix, got %q", result)
	}
}

func TestRenderSparklineWithRange(t *testing.T) {
	result := RenderSparklineWithRange([]float64{10, 50, 90}, 0)
	if !strings.HasPrefix(result, "10") || !strings.HasSuffix(result, "90") {
		t.Errorf("expected 10...90, got %q", result)
	}
	if RenderSparklineWithRange(nil, 5) != "" {
		t.Error("expected empty string for no data")
	}
}

func TestRenderChart(t *testing.T) {
	out := RenderChart(ChartConfig{
		Series: []Series{
			{Label: "CPU", Data: []float64{0, 100}, Glyph: "c"},
			{Label: "RAM", Data: []float64{50}, Glyph: "r"},
		},
		Width:  4,
		Height: 5,
	})
	lines := strings.Split(out, "\n")
	if len(lines) != 6 {
		t.Fatalf("expected 5 rows plus legend, got %d:\n%s", len(lines), out)
	}

	plot := func(row int) string {
		_, after, _ := strings.Cut(lines[row], "┤")
		return after
	}
	// Newest points are right-aligned.
	if plot(0) != "   c" {
		t.Errorf("top row = %q", plot(0))
	}
	if plot(2) != "   r" {
		t.Errorf("middle row = %q", plot(2))
	}
	if plot(4) != "  c " {
		t.Errorf("bottom row = %q", plot(4))
	}
	if !strings.HasPrefix(lines[0], "100 ") || !strings.HasPrefix(lines[4], "  0 ") {
		t.Errorf("axis labels wrong:\n%s", out)
	}
	if !strings.Contains(lines[5], "c CPU") || !strings.Contains(lines[5], "r RAM") {
		t.Errorf("legend = %q", lines[5])
	}
}

func TestRenderChart_MoreDataThanWidth(t *testing.T) {
	out := RenderChart(ChartConfig{
		Series: []Series{{Label: "CPU", Data: []float64{100, 100, 100, 0, 0}, Glyph: "x"}},
		Width:  2,
		Height: 2,
	})
	_, top, _ := strings.Cut(strings.Split(out, "\n")[0], "┤")
	if top != "  " {
		t.Errorf("old points should scroll off, top row = %q", top)
	}
}
