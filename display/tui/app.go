// Package tui is the interactive dashboard: one card per available metric,
// a CPU/RAM history chart, threshold sliders and the recent alert log.
// It only reads snapshots from the core and writes threshold updates
// through the policy.
package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/display/widgets"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/internal/format"
	"gitlab.com/tinyland/lab/host-pulse/status"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

const (
	maxEvents = 50
	graceStep = 30 * time.Second

	// rowGrace is the focus index of the grace period slider; indexes below
	// it are metrics.
	rowGrace = collectors.MetricCount
	rowCount = rowGrace + 1
)

// Deps are the core collaborators the dashboard reads from and writes to.
type Deps struct {
	History *history.Buffer
	Policy  *threshold.Policy
	Engine  *alert.Engine

	// Events delivers alert events as they are raised and cleared.
	Events <-chan alert.Event
	// Latest returns the most recent sample, or false before the first.
	Latest func() (collectors.Sample, bool)
	// SourceHealthy reports whether the latest sampling attempt succeeded.
	SourceHealthy func() bool
	// OnChange is called after every accepted threshold edit.
	OnChange func(threshold.Values)

	Source   string
	DiskPath string
	Refresh  time.Duration
	// Step is how far one key press moves a threshold.
	Step float64
	Now  func() time.Time
}

type tickMsg time.Time

type eventMsg alert.Event

// Model is the top-level Bubbletea model for the dashboard.
type Model struct {
	deps  Deps
	zones *zone.Manager
	help  help.Model

	width  int
	height int
	ready  bool
	focus  int

	sample    collectors.Sample
	hasSample bool
	healthy   bool
	states    []alert.State
	values    threshold.Values
	cpu       []float64
	ram       []float64
	events    []alert.Event

	err     string
	updated time.Time
}

// NewModel returns a Model with the CPU slider focused. Nil collaborators
// are replaced with fresh defaults.
func NewModel(deps Deps) Model {
	if deps.History == nil {
		deps.History = history.New(history.DefaultCapacity)
	}
	if deps.Policy == nil {
		deps.Policy = threshold.NewDefaultPolicy()
	}
	if deps.Engine == nil {
		deps.Engine = alert.NewEngine()
	}
	if deps.Refresh <= 0 {
		deps.Refresh = time.Second
	}
	if deps.Step <= 0 {
		deps.Step = 5
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	m := Model{
		deps:  deps,
		zones: zone.New(),
		help:  help.New(),
	}
	m.refresh()
	return m
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(NewModel(deps),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init implements tea.Model. It starts the refresh tick and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitEvent())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.deps.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitEvent blocks on the event channel and delivers one event.
func (m Model) waitEvent() tea.Cmd {
	ch := m.deps.Events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, keys.Up):
			m.focus = (m.focus - 1 + rowCount) % rowCount
		case key.Matches(msg, keys.Down):
			m.focus = (m.focus + 1) % rowCount
		case key.Matches(msg, keys.Increase):
			m.adjust(1)
		case key.Matches(msg, keys.Decrease):
			m.adjust(-1)
		case key.Matches(msg, keys.Reset):
			m.reset()
		}

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		for _, id := range m.zoneIDs() {
			if z := m.zones.Get(id); z != nil && z.InBounds(msg) {
				m.handleZone(id, msg.Button)
				break
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case tickMsg:
		m.refresh()
		return m, m.tick()

	case eventMsg:
		m.events = append(m.events, alert.Event(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
		m.refresh()
		return m, m.waitEvent()
	}

	return m, nil
}

// refresh pulls fresh snapshots from the core.
func (m *Model) refresh() {
	m.values = m.deps.Policy.Values()
	m.states = m.deps.Engine.States()
	if m.deps.Latest != nil {
		m.sample, m.hasSample = m.deps.Latest()
	}
	m.healthy = m.deps.SourceHealthy == nil || m.deps.SourceHealthy()
	pts := m.deps.History.Snapshot()
	m.cpu = history.SeriesOf(pts, collectors.MetricCPU)
	m.ram = history.SeriesOf(pts, collectors.MetricRAM)
	m.updated = m.deps.Now()
}

// adjust moves the focused slider dir steps.
func (m *Model) adjust(dir float64) {
	var err error
	if m.focus == rowGrace {
		next := max(0, m.deps.Policy.GracePeriod()+time.Duration(dir)*graceStep)
		err = m.deps.Policy.SetGracePeriod(next)
	} else {
		_, err = m.deps.Policy.Adjust(collectors.Metric(m.focus), dir*m.deps.Step)
	}
	m.applied(err)
}

// reset restores the focused slider's default.
func (m *Model) reset() {
	def := threshold.DefaultValues()
	var err error
	if m.focus == rowGrace {
		err = m.deps.Policy.SetGracePeriod(def.Grace())
	} else {
		mt := collectors.Metric(m.focus)
		err = m.deps.Policy.Set(mt, def.Threshold(mt))
	}
	m.applied(err)
}

// applied records the outcome of a policy write. Rejected writes are shown
// in the footer and leave the policy unchanged.
func (m *Model) applied(err error) {
	if err != nil {
		m.err = err.Error()
		return
	}
	m.err = ""
	m.refresh()
	if m.deps.OnChange != nil {
		m.deps.OnChange(m.values)
	}
}

func cardZone(mt collectors.Metric) string { return "card-" + mt.String() }

func sliderZone(row int) string {
	if row == rowGrace {
		return "slider-grace"
	}
	return "slider-" + collectors.Metric(row).String()
}

func (m Model) zoneIDs() []string {
	ids := make([]string, 0, 2*rowCount)
	for _, mt := range collectors.AllMetrics() {
		ids = append(ids, cardZone(mt))
	}
	for row := range rowCount {
		ids = append(ids, sliderZone(row))
	}
	return ids
}

// handleZone reacts to a press inside a marked zone: a click focuses the
// card or slider and the wheel moves the slider under the pointer.
func (m *Model) handleZone(id string, button tea.MouseButton) {
	for row := range rowCount {
		if row < rowGrace && id == cardZone(collectors.Metric(row)) {
			m.focus = row
			return
		}
		if id != sliderZone(row) {
			continue
		}
		m.focus = row
		switch button {
		case tea.MouseButtonWheelUp:
			m.adjust(1)
		case tea.MouseButtonWheelDown:
			m.adjust(-1)
		}
		return
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	layout := LayoutForSize(DetectLayout(m.width), m.width)
	inner := max(m.width-2, 10)

	sections := []string{
		m.renderHeader(),
		m.renderCards(layout),
		styleSection.Render(sectionTitle("CPU / RAM", inner)),
		m.renderChart(layout, inner),
		styleSection.Render(sectionTitle("Thresholds", inner)),
		m.renderSliders(layout),
		styleSection.Render(sectionTitle("Alerts", inner)),
		widgets.EventTable(m.events, layout.EventRows),
		m.renderFooter(),
	}
	body := styleContent.Width(m.width).Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
	return m.zones.Scan(body)
}

func (m Model) renderHeader() string {
	summary := status.Summarize(m.states, m.healthy)
	title := styleHeader.Render("host-pulse")
	overall := widgets.RenderStatus(widgets.StatusConfig{
		Level:    widgets.FromHealth(summary.Overall),
		Text:     summary.Overall.String(),
		ShowIcon: true,
	})
	source := ""
	if m.deps.Source != "" {
		source = styleSection.Render("source " + m.deps.Source)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", overall, "  ", source)
}

func (m Model) label(mt collectors.Metric) string {
	if mt == collectors.MetricDisk && m.deps.DiskPath != "" {
		return fmt.Sprintf("Disk (%s)", m.deps.DiskPath)
	}
	return mt.Label()
}

// renderCards renders one card per metric that has a reading in the latest
// sample. Metrics without a reading are omitted.
func (m Model) renderCards(layout LayoutConfig) string {
	if !m.hasSample {
		return styleSection.Render("waiting for first sample...")
	}

	var cards []string
	for _, mt := range collectors.AllMetrics() {
		r := m.sample.Reading(mt)
		if !r.Valid {
			continue
		}
		cards = append(cards, m.zones.Mark(cardZone(mt), m.renderCard(mt, r, layout.CardWidth)))
	}
	if len(cards) == 0 {
		return styleSection.Render("no metrics available")
	}

	var rows []string
	for i := 0; i < len(cards); i += layout.CardsPerRow {
		end := min(i+layout.CardsPerRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderCard(mt collectors.Metric, r collectors.Reading, width int) string {
	st := m.states[mt]
	limit := m.values.Threshold(mt)

	title := widgets.RenderStatus(widgets.StatusConfig{
		Level:    widgets.FromAlert(st),
		Text:     styleTitle.Render(m.label(mt)),
		ShowIcon: true,
	})
	value := styleValue.Render(fmt.Sprintf("%.1f%s", r.Value, mt.Unit()))
	bar := widgets.MetricGauge(mt, r.Value, limit, width)

	detail := fmt.Sprintf("limit %g%s", limit, mt.Unit())
	switch st.Status {
	case alert.StatusExceeding:
		detail += " · above for " + format.FormatDuration(m.sample.Timestamp().Sub(st.FirstExceededAt))
	case alert.StatusAlerted:
		detail += " · ALERT " + format.FormatDuration(m.sample.Timestamp().Sub(st.FirstExceededAt))
	}

	style := styleCard
	if m.focus == int(mt) {
		style = styleCardFocused
	}
	content := strings.Join([]string{title, value, bar, styleSection.Render(detail)}, "\n")
	return style.Width(width + 2).Render(content)
}

func (m Model) renderChart(layout LayoutConfig, width int) string {
	if len(m.cpu) == 0 && len(m.ram) == 0 {
		return styleSection.Render("no history yet")
	}
	return widgets.RenderChart(widgets.ChartConfig{
		Series: []widgets.Series{
			{Label: "CPU", Data: m.cpu, Color: colorSecondary},
			{Label: "RAM", Data: m.ram, Color: colorRAM, Glyph: "◦"},
		},
		Width:  max(10, width-6),
		Height: layout.ChartHeight,
		Max:    100,
	})
}

func (m Model) renderSliders(layout LayoutConfig) string {
	lines := make([]string, 0, rowCount)
	for _, mt := range collectors.AllMetrics() {
		lo, hi := threshold.Bounds(mt)
		value := m.values.Threshold(mt)
		if math.IsInf(hi, 1) {
			hi = math.Max(100, value)
		}
		slider := widgets.RenderSlider(widgets.SliderConfig{
			Label:      m.label(mt),
			LabelWidth: 12,
			Value:      value,
			Min:        lo,
			Max:        hi,
			Unit:       mt.Unit(),
			Width:      layout.SliderWidth,
			Focused:    m.focus == int(mt),
		})
		lines = append(lines, m.zones.Mark(sliderZone(int(mt)), m.cursor(int(mt))+slider))
	}

	grace := fmt.Sprintf("%-12s %s", "Grace", format.FormatDuration(m.values.Grace()))
	if m.focus == rowGrace {
		grace = styleTitle.Render(grace) + styleSection.Render("  ±30s")
	}
	lines = append(lines, m.zones.Mark(sliderZone(rowGrace), m.cursor(rowGrace)+grace))
	return strings.Join(lines, "\n")
}

func (m Model) cursor(row int) string {
	if m.focus == row {
		return styleTitle.Render("› ")
	}
	return "  "
}

func (m Model) renderFooter() string {
	line := m.help.View(keys)
	if !m.updated.IsZero() {
		line += styleSection.Render("  updated " + m.updated.Format(time.TimeOnly))
	}
	if m.err != "" {
		line += "\n" + styleError.Render(m.err)
	}
	return styleFooter.Render(line)
}
