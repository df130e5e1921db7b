package widgets

import (
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

func TestRenderGauge_Fill(t *testing.T) {
	tests := []struct {
		name       string
		percent    float64
		wantFilled int
		wantText   string
	}{
		{"half", 50, 10, "50%"},
		{"zero", 0, 0, "0%"},
		{"full", 100, 20, "100%"},
		{"clamped high", 150, 20, "100%"},
		{"clamped low", -25, 0, "0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGaugeConfig()
			cfg.Percent = tt.percent
			result := RenderGauge(cfg)

			if got := strings.Count(result, "█"); got != tt.wantFilled {
				t.Errorf("filled = %d, want %d in %q", got, tt.wantFilled, result)
			}
			if got := strings.Count(result, "░"); got != 20-tt.wantFilled {
				t.Errorf("empty = %d, want %d", got, 20-tt.wantFilled)
			}
			if !strings.Contains(result, tt.wantText) {
				t.Errorf("expected %q in %q", tt.wantText, result)
			}
		})
	}
}

func TestRenderGauge_LabelAndPercent(t *testing.T) {
	cfg := DefaultGaugeConfig()
	cfg.Percent = 50
	cfg.Label = "CPU"
	cfg.ShowPercent = false

	result := RenderGauge(cfg)
	if !strings.HasPrefix(result, "CPU ") {
		t.Errorf("expected output to start with 'CPU ', got: %q", result)
	}
	if strings.Contains(result, "%") {
		t.Errorf("expected no percentage text when ShowPercent=false, got: %q", result)
	}
}

func TestRenderGauge_CustomChars(t *testing.T) {
	cfg := DefaultGaugeConfig()
	cfg.Percent = 50
	cfg.FilledChar = "#"
	cfg.EmptyChar = "-"
	cfg.ShowPercent = false

	result := RenderGauge(cfg)
	if strings.Count(result, "#") != 10 || strings.Count(result, "-") != 10 {
		t.Errorf("expected 10 '#' and 10 '-', got %q", result)
	}
}

func TestRenderGauge_Marker(t *testing.T) {
	cfg := DefaultGaugeConfig()
	cfg.Width = 10
	cfg.Percent = 90
	cfg.Marker = 50
	cfg.ShowPercent = false

	result := RenderGauge(cfg)
	if strings.Count(result, "│") != 1 {
		t.Fatalf("expected one marker in %q", result)
	}
	// The marker replaces one filled cell.
	if got := strings.Count(result, "█"); got != 8 {
		t.Errorf("filled = %d, want 8", got)
	}

	// A marker at 100 stays inside the bar.
	cfg.Marker = 100
	if got := []rune(RenderGauge(cfg)); len(got) != 10 || got[9] != '│' {
		t.Errorf("marker at 100 = %q", string(got))
	}
}

func TestGaugeColor(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{10, string(ColorOK)},
		{70, string(ColorWarning)},
		{90, string(ColorWarning)},
		{90.1, string(ColorCritical)},
	}
	for _, tt := range tests {
		if got := gaugeColor(tt.percent, 70, 90); string(got) != tt.want {
			t.Errorf("gaugeColor(%v) = %v, want %v", tt.percent, got, tt.want)
		}
	}
}

func TestFillPercent(t *testing.T) {
	tests := []struct {
		name      string
		metric    collectors.Metric
		value     float64
		threshold float64
		want      float64
	}{
		{"cpu direct", collectors.MetricCPU, 42, 80, 42},
		{"ram clamped", collectors.MetricRAM, 120, 80, 100},
		{"temp scaled to threshold", collectors.MetricTemp, 35, 70, 50},
		{"temp at threshold", collectors.MetricTemp, 70, 70, 100},
		{"temp above threshold", collectors.MetricTemp, 90, 70, 100},
		{"temp zero threshold", collectors.MetricTemp, 10, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FillPercent(tt.metric, tt.value, tt.threshold); got != tt.want {
				t.Errorf("FillPercent = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetricGauge(t *testing.T) {
	bar := MetricGauge(collectors.MetricCPU, 50, 80, 20)
	if strings.Count(bar, "│") != 1 {
		t.Errorf("percent gauge should mark the threshold: %q", bar)
	}
	if len([]rune(bar)) != 20 {
		t.Errorf("width = %d, want 20", len([]rune(bar)))
	}

	temp := MetricGauge(collectors.MetricTemp, 35, 70, 20)
	if strings.Contains(temp, "│") {
		t.Errorf("temperature gauge has no marker: %q", temp)
	}
	if got := strings.Count(temp, "█"); got != 10 {
		t.Errorf("temperature at half threshold filled %d, want 10", got)
	}
}

func TestRenderMiniGauge(t *testing.T) {
	result := RenderMiniGauge(25, 8)
	if strings.Count(result, "█") != 2 || strings.Contains(result, "%") {
		t.Errorf("RenderMiniGauge = %q", result)
	}
}
