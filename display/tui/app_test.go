package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

// isQuitCmd checks whether a tea.Cmd produces a tea.QuitMsg.
func isQuitCmd(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	msg := cmd()
	_, ok := msg.(tea.QuitMsg)
	return ok
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, presses ...string) Model {
	t.Helper()
	for _, k := range presses {
		next, _ := m.Update(keyMsg(k))
		m = next.(Model)
	}
	return m
}

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func testDeps() Deps {
	return Deps{
		History: history.New(10),
		Policy:  threshold.NewDefaultPolicy(),
		Engine:  alert.NewEngine(),
		Now:     func() time.Time { return t0 },
	}
}

func sized(m Model, width int) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: width, Height: 50})
	return next.(Model)
}

func TestNewModel(t *testing.T) {
	m := NewModel(testDeps())

	if m.focus != int(collectors.MetricCPU) {
		t.Errorf("expected CPU slider focused, got row %d", m.focus)
	}
	if m.ready {
		t.Error("expected model not ready before WindowSizeMsg")
	}
	if got := m.View(); got != "Initializing..." {
		t.Errorf("expected 'Initializing...', got %q", got)
	}
	if m.values.Threshold(collectors.MetricCPU) != threshold.DefaultPercent {
		t.Errorf("expected default CPU threshold, got %v", m.values.Threshold(collectors.MetricCPU))
	}
}

func TestNewModel_FillsDefaults(t *testing.T) {
	m := NewModel(Deps{})
	if m.deps.History == nil || m.deps.Policy == nil || m.deps.Engine == nil {
		t.Fatal("expected nil collaborators to be replaced")
	}
	if m.deps.Refresh != time.Second {
		t.Errorf("Refresh = %v, want 1s", m.deps.Refresh)
	}
	if m.deps.Step != 5 {
		t.Errorf("Step = %v, want 5", m.deps.Step)
	}
}

func TestInit(t *testing.T) {
	m := NewModel(testDeps())
	if m.Init() == nil {
		t.Error("expected Init to return a command")
	}
}

func TestQuitKeys(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		m := NewModel(testDeps())
		_, cmd := m.Update(keyMsg(k))
		if !isQuitCmd(cmd) {
			t.Errorf("%q did not quit", k)
		}
	}
}

func TestFocusWraps(t *testing.T) {
	m := NewModel(testDeps())

	m = press(t, m, "up")
	if m.focus != rowGrace {
		t.Errorf("up from first row: focus = %d, want %d", m.focus, rowGrace)
	}
	m = press(t, m, "down")
	if m.focus != 0 {
		t.Errorf("down from last row: focus = %d, want 0", m.focus)
	}
	m = press(t, m, "tab", "j")
	if m.focus != int(collectors.MetricDisk) {
		t.Errorf("focus = %d, want disk", m.focus)
	}
}

func TestAdjustThreshold(t *testing.T) {
	deps := testDeps()
	var changes []threshold.Values
	deps.OnChange = func(v threshold.Values) { changes = append(changes, v) }
	m := NewModel(deps)

	m = press(t, m, "l", "+")
	if got := deps.Policy.Get(collectors.MetricCPU); got != 90 {
		t.Errorf("CPU threshold = %v, want 90", got)
	}
	if m.values.Threshold(collectors.MetricCPU) != 90 {
		t.Error("model snapshot not refreshed after adjust")
	}
	if len(changes) != 2 {
		t.Fatalf("OnChange called %d times, want 2", len(changes))
	}

	_ = press(t, m, "down", "h")
	if got := deps.Policy.Get(collectors.MetricRAM); got != 75 {
		t.Errorf("RAM threshold = %v, want 75", got)
	}
}

func TestAdjustClampsToBounds(t *testing.T) {
	deps := testDeps()
	if err := deps.Policy.Set(collectors.MetricRAM, 98); err != nil {
		t.Fatal(err)
	}
	m := NewModel(deps)
	m = press(t, m, "j", "l")
	if got := deps.Policy.Get(collectors.MetricRAM); got != 100 {
		t.Errorf("RAM threshold = %v, want clamp at 100", got)
	}
	if m.err != "" {
		t.Errorf("unexpected error %q", m.err)
	}
}

func TestAdjustGracePeriod(t *testing.T) {
	deps := testDeps()
	m := NewModel(deps)
	m = press(t, m, "up", "-")
	if got := deps.Policy.GracePeriod(); got != 4*time.Minute+30*time.Second {
		t.Errorf("grace = %v, want 4m30s", got)
	}

	if err := deps.Policy.SetGracePeriod(10 * time.Second); err != nil {
		t.Fatal(err)
	}
	m = press(t, m, "-")
	if got := deps.Policy.GracePeriod(); got != 0 {
		t.Errorf("grace = %v, want clamp at 0", got)
	}
	_ = press(t, m, "+")
	if got := deps.Policy.GracePeriod(); got != 30*time.Second {
		t.Errorf("grace = %v, want 30s", got)
	}
}

func TestReset(t *testing.T) {
	deps := testDeps()
	if err := deps.Policy.Set(collectors.MetricDisk, 20); err != nil {
		t.Fatal(err)
	}
	if err := deps.Policy.SetGracePeriod(time.Second); err != nil {
		t.Fatal(err)
	}
	m := NewModel(deps)

	m = press(t, m, "j", "j", "r")
	if got := deps.Policy.Get(collectors.MetricDisk); got != threshold.DefaultPercent {
		t.Errorf("disk threshold = %v, want default", got)
	}
	if got := deps.Policy.GracePeriod(); got != time.Second {
		t.Error("reset touched the grace period")
	}

	_ = press(t, m, "up", "up", "up", "r")
	if got := deps.Policy.GracePeriod(); got != threshold.DefaultGrace {
		t.Errorf("grace = %v, want default", got)
	}
}

func TestHelpToggle(t *testing.T) {
	m := NewModel(testDeps())
	m = press(t, m, "?")
	if !m.help.ShowAll {
		t.Error("expected full help after ?")
	}
	m = press(t, m, "?")
	if m.help.ShowAll {
		t.Error("expected short help after second ?")
	}
}

func TestHandleZone(t *testing.T) {
	deps := testDeps()
	m := NewModel(deps)

	m.handleZone(sliderZone(int(collectors.MetricRAM)), tea.MouseButtonWheelUp)
	if m.focus != int(collectors.MetricRAM) {
		t.Errorf("focus = %d, want RAM", m.focus)
	}
	if got := deps.Policy.Get(collectors.MetricRAM); got != 85 {
		t.Errorf("RAM threshold = %v, want 85", got)
	}

	m.handleZone(cardZone(collectors.MetricDisk), tea.MouseButtonWheelUp)
	if m.focus != int(collectors.MetricDisk) {
		t.Errorf("focus = %d, want disk", m.focus)
	}
	if got := deps.Policy.Get(collectors.MetricDisk); got != threshold.DefaultPercent {
		t.Error("card click should not adjust")
	}

	m.handleZone(sliderZone(rowGrace), tea.MouseButtonLeft)
	if m.focus != rowGrace {
		t.Errorf("focus = %d, want grace row", m.focus)
	}
	m.handleZone(sliderZone(rowGrace), tea.MouseButtonWheelDown)
	if got := deps.Policy.GracePeriod(); got != threshold.DefaultGrace-graceStep {
		t.Errorf("grace = %v", got)
	}
}

func TestEventMsgAppendsAndRearms(t *testing.T) {
	ch := make(chan alert.Event, 1)
	deps := testDeps()
	deps.Events = ch
	m := NewModel(deps)

	ev := alert.Event{Metric: collectors.MetricCPU, Kind: alert.KindRaised, Value: 91, Threshold: 80, Timestamp: t0}
	next, cmd := m.Update(eventMsg(ev))
	m = next.(Model)
	if len(m.events) != 1 || m.events[0].Value != 91 {
		t.Fatalf("events = %+v", m.events)
	}
	if cmd == nil {
		t.Fatal("expected the event wait to be re-armed")
	}

	ch <- alert.Event{Metric: collectors.MetricRAM, Kind: alert.KindCleared}
	msg, ok := cmd().(eventMsg)
	if !ok || msg.Metric != collectors.MetricRAM {
		t.Errorf("re-armed command returned %v", msg)
	}
}

func TestEventsCapped(t *testing.T) {
	m := NewModel(testDeps())
	for i := range maxEvents + 5 {
		next, _ := m.Update(eventMsg(alert.Event{Value: float64(i)}))
		m = next.(Model)
	}
	if len(m.events) != maxEvents {
		t.Fatalf("len(events) = %d, want %d", len(m.events), maxEvents)
	}
	if m.events[0].Value != 5 {
		t.Errorf("oldest kept event = %v, want 5", m.events[0].Value)
	}
}

func TestWaitEventNilChannel(t *testing.T) {
	m := NewModel(testDeps())
	if m.waitEvent() != nil {
		t.Error("expected no event pump without a channel")
	}
}

func TestTickRefreshes(t *testing.T) {
	deps := testDeps()
	m := NewModel(deps)
	if err := deps.Policy.Set(collectors.MetricTemp, 90); err != nil {
		t.Fatal(err)
	}
	next, cmd := m.Update(tickMsg(t0))
	m = next.(Model)
	if m.values.Threshold(collectors.MetricTemp) != 90 {
		t.Error("tick did not pick up the external threshold change")
	}
	if cmd == nil {
		t.Error("expected the tick to be rescheduled")
	}
}

func TestRefreshAlignsChartSeries(t *testing.T) {
	deps := testDeps()
	for i := range 4 {
		deps.History.Append(history.Point{
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			CPU:       collectors.Present(float64(10 * i)),
			RAM:       collectors.Present(float64(5 * i)),
		})
	}
	m := NewModel(deps)
	if len(m.cpu) != 4 || len(m.ram) != 4 {
		t.Fatalf("series lengths = %d, %d, want 4, 4", len(m.cpu), len(m.ram))
	}
	if m.cpu[3] != 30 || m.ram[3] != 15 {
		t.Errorf("last points = %v, %v", m.cpu[3], m.ram[3])
	}
}

func TestView_WaitingForSample(t *testing.T) {
	m := sized(NewModel(testDeps()), 100)
	out := m.View()
	for _, want := range []string{"host-pulse", "waiting for first sample", "Thresholds", "Grace", "no alerts yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestView_HidesAbsentMetrics(t *testing.T) {
	withTemp := collectors.NewSample(t0, collectors.Present(12), collectors.Present(34),
		collectors.Present(56), collectors.Present(55.5))
	noTemp := collectors.NewSample(t0, collectors.Present(12), collectors.Present(34),
		collectors.Present(56), collectors.Absent, "temp: sensor missing")

	tests := []struct {
		name   string
		sample collectors.Sample
		want   int
	}{
		{"present", withTemp, 2},
		{"absent", noTemp, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps()
			deps.Latest = func() (collectors.Sample, bool) { return tt.sample, true }
			m := sized(NewModel(deps), 100)
			out := m.View()
			// One label on the slider, one more on the card when present.
			if got := strings.Count(out, "Temperature"); got != tt.want {
				t.Errorf("Temperature appears %d times, want %d:\n%s", got, tt.want, out)
			}
			if !strings.Contains(out, "12.0%") {
				t.Error("CPU card missing")
			}
		})
	}
}

func TestView_DiskPathLabel(t *testing.T) {
	deps := testDeps()
	deps.DiskPath = "/srv"
	m := sized(NewModel(deps), 100)
	if !strings.Contains(m.View(), "Disk (/srv)") {
		t.Error("expected disk label to carry the mount path")
	}
}

func TestView_ShowsRejectedEdit(t *testing.T) {
	m := sized(NewModel(testDeps()), 100)
	m.applied(threshold.ErrInvalidThreshold)
	if !strings.Contains(m.View(), threshold.ErrInvalidThreshold.Error()) {
		t.Error("expected the rejected edit in the footer")
	}
	m.applied(nil)
	if m.err != "" {
		t.Error("expected error cleared after a successful edit")
	}
}

func TestView_ChartAfterHistory(t *testing.T) {
	deps := testDeps()
	for i := range 5 {
		deps.History.AppendSample(collectors.NewSample(t0.Add(time.Duration(i)*time.Second),
			collectors.Present(float64(i*20)), collectors.Present(50), collectors.Absent, collectors.Absent))
	}
	m := sized(NewModel(deps), 100)
	out := m.View()
	if strings.Contains(out, "no history yet") {
		t.Error("expected a chart once history exists")
	}
	if !strings.Contains(out, "100 ┤") {
		t.Error("expected the chart y axis")
	}
}
