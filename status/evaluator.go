package status

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Level represents system health.
type Level int

const (
	LevelHealthy  Level = iota // Everything normal
	LevelWarning               // Something needs attention
	LevelCritical              // Immediate attention needed
	LevelUnknown               // Insufficient data
)

// String returns the human-readable name for a Level.
func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelWarning:
		return "warning"
	case LevelCritical:
		return "critical"
	case LevelUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name. Unrecognised names map to
// LevelUnknown.
func (l *Level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "healthy":
		*l = LevelHealthy
	case "warning":
		*l = LevelWarning
	case "critical":
		*l = LevelCritical
	default:
		*l = LevelUnknown
	}
	return nil
}

// levelSeverity returns the sort order for levels. Higher is worse.
// Critical > Warning > Unknown > Healthy.
func levelSeverity(l Level) int {
	switch l {
	case LevelHealthy:
		return 0
	case LevelUnknown:
		return 1
	case LevelWarning:
		return 2
	case LevelCritical:
		return 3
	default:
		return 0
	}
}

// worstLevel returns whichever Level is more severe.
func worstLevel(a, b Level) Level {
	if levelSeverity(a) >= levelSeverity(b) {
		return a
	}
	return b
}

// ComponentStatus holds the evaluation result for a single component.
type ComponentStatus struct {
	Component string `json:"component"` // "cpu", "ram", "disk", "temp", "source"
	Level     Level  `json:"level"`
	Reason    string `json:"reason"` // Human-readable reason
}

// SystemStatus is the aggregate evaluation result.
type SystemStatus struct {
	Overall     Level             `json:"overall"` // Worst of all components
	Components  []ComponentStatus `json:"components"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// Component returns the named component's status.
func (s SystemStatus) Component(name string) (ComponentStatus, bool) {
	for _, c := range s.Components {
		if c.Component == name {
			return c, true
		}
	}
	return ComponentStatus{}, false
}

// Summarize maps alert states onto health levels: NORMAL is healthy,
// EXCEEDING a warning and ALERTED critical. A metric that has never had a
// reading is unknown. sourceHealthy reports whether the latest sampling
// attempt succeeded.
func Summarize(states []alert.State, sourceHealthy bool) SystemStatus {
	components := make([]ComponentStatus, 0, len(states)+1)
	var evaluatedAt time.Time

	for _, st := range states {
		components = append(components, evaluateMetric(st))
		if st.LastEvaluated.After(evaluatedAt) {
			evaluatedAt = st.LastEvaluated
		}
	}

	src := ComponentStatus{Component: "source", Level: LevelHealthy, Reason: "sampling ok"}
	if !sourceHealthy {
		src.Level = LevelUnknown
		src.Reason = "latest sample failed"
	}
	components = append(components, src)

	overall := components[0].Level
	for _, c := range components[1:] {
		overall = worstLevel(overall, c.Level)
	}

	return SystemStatus{
		Overall:     overall,
		Components:  components,
		EvaluatedAt: evaluatedAt,
	}
}

// evaluateMetric converts one alert state.
func evaluateMetric(st alert.State) ComponentStatus {
	cs := ComponentStatus{Component: st.Metric.String()}
	if !st.Evaluated() {
		cs.Level = LevelUnknown
		cs.Reason = "no data"
		return cs
	}

	value := formatValue(st.Metric, st.LastValue)
	switch st.Status {
	case alert.StatusAlerted:
		cs.Level = LevelCritical
		cs.Reason = fmt.Sprintf("%s at %s, alerted since %s",
			st.Metric.Label(), value, st.FirstExceededAt.Format(time.TimeOnly))
	case alert.StatusExceeding:
		cs.Level = LevelWarning
		cs.Reason = fmt.Sprintf("%s at %s, above threshold since %s",
			st.Metric.Label(), value, st.FirstExceededAt.Format(time.TimeOnly))
	default:
		cs.Level = LevelHealthy
		cs.Reason = fmt.Sprintf("%s at %s", st.Metric.Label(), value)
	}
	return cs
}

func formatValue(m collectors.Metric, r collectors.Reading) string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", r.Value, m.Unit())
}
