// Package alert implements the per-metric debounce state machine that turns
// a stream of samples into RAISED and CLEARED events.
//
// Each metric moves between three states:
//
//	NORMAL     value <= threshold
//	EXCEEDING  value > threshold, grace period not yet elapsed
//	ALERTED    value > threshold for at least the grace period
//
// Entering ALERTED emits exactly one RAISED event. Returning to NORMAL from
// ALERTED emits exactly one CLEARED event; returning from EXCEEDING emits
// nothing. Elapsed time is measured between sample timestamps, never by
// counting ticks, so the outcome does not depend on the sampling interval.
package alert

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

// Status is a metric's position in the state machine.
type Status int

const (
	StatusNormal    Status = iota // At or below threshold
	StatusExceeding               // Above threshold, within grace
	StatusAlerted                 // Above threshold past grace
)

// String returns the human-readable name for a Status.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusExceeding:
		return "exceeding"
	case StatusAlerted:
		return "alerted"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// MarshalText encodes the status name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a name written by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	for _, c := range []Status{StatusNormal, StatusExceeding, StatusAlerted} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown alert status %q", text)
}

// Kind distinguishes the two event types.
type Kind int

const (
	KindRaised Kind = iota
	KindCleared
)

// String returns "raised" or "cleared".
func (k Kind) String() string {
	switch k {
	case KindRaised:
		return "raised"
	case KindCleared:
		return "cleared"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes "raised" or "cleared".
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "raised":
		*k = KindRaised
	case "cleared":
		*k = KindCleared
	default:
		return fmt.Errorf("unknown event kind %q", text)
	}
	return nil
}

// Event is a state-change notification. The RAISED and CLEARED events of
// one episode carry the same ID.
type Event struct {
	ID            uuid.UUID         `json:"id"`
	Metric        collectors.Metric `json:"metric"`
	Kind          Kind              `json:"kind"`
	Value         float64           `json:"value"`
	Threshold     float64           `json:"threshold"`
	Timestamp     time.Time         `json:"timestamp"`
	ExceededSince time.Time         `json:"exceeded_since"`
}

// Duration returns how long the metric had been above threshold when the
// event fired.
func (e Event) Duration() time.Duration {
	return e.Timestamp.Sub(e.ExceededSince)
}

// Message returns a one-line human description, e.g.
// "CPU above threshold: 91.2% > 80% for 5m0s".
func (e Event) Message() string {
	unit := e.Metric.Unit()
	switch e.Kind {
	case KindRaised:
		return fmt.Sprintf("%s above threshold: %.1f%s > %g%s for %s",
			e.Metric.Label(), e.Value, unit, e.Threshold, unit, e.Duration().Round(time.Second))
	default:
		return fmt.Sprintf("%s back to normal: %.1f%s <= %g%s",
			e.Metric.Label(), e.Value, unit, e.Threshold, unit)
	}
}

// LogAttrs returns structured attributes for slog.
func (e Event) LogAttrs() []any {
	return []any{
		"episode", e.ID.String(),
		"metric", e.Metric.String(),
		"kind", e.Kind.String(),
		"value", math.Round(e.Value*10) / 10,
		"threshold", e.Threshold,
		"exceeded_for", e.Duration().Round(time.Second),
	}
}

// String implements fmt.Stringer.
func (e Event) String() string {
	return e.Message()
}

// State is a read-only copy of one metric's machine.
type State struct {
	Metric          collectors.Metric  `json:"metric"`
	Status          Status             `json:"status"`
	FirstExceededAt time.Time          `json:"first_exceeded_at,omitzero"`
	Episode         uuid.UUID          `json:"episode,omitzero"`
	LastValue       collectors.Reading `json:"last_value"`
	LastEvaluated   time.Time          `json:"last_evaluated,omitzero"`
}

// Evaluated reports whether the metric has ever had a present reading.
func (s State) Evaluated() bool {
	return !s.LastEvaluated.IsZero()
}

// Engine owns the per-metric states. Evaluate is called by the sampler;
// States and State may be called from any goroutine.
type Engine struct {
	mu     sync.Mutex
	states [collectors.MetricCount]State
	newID  func() uuid.UUID
}

// NewEngine returns an engine with every metric NORMAL.
func NewEngine() *Engine {
	e := &Engine{newID: uuid.New}
	for _, m := range collectors.AllMetrics() {
		e.states[m].Metric = m
	}
	return e
}

// Evaluate advances every metric with a present reading in s against the
// thresholds in v and returns the resulting events in metric order (CPU,
// RAM, disk, temperature). Absent readings leave their metric untouched.
func (e *Engine) Evaluate(s collectors.Sample, v threshold.Values) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := s.Timestamp()
	grace := v.Grace()

	var events []Event
	for _, m := range collectors.AllMetrics() {
		r := s.Reading(m)
		if !r.Valid || math.IsNaN(r.Value) {
			continue
		}
		limit := v.Threshold(m)
		st := &e.states[m]
		st.LastValue = r
		st.LastEvaluated = ts

		if r.Value > limit {
			if st.Status == StatusNormal {
				st.Status = StatusExceeding
				st.FirstExceededAt = ts
				st.Episode = e.newID()
			}
			if st.Status == StatusExceeding && ts.Sub(st.FirstExceededAt) >= grace {
				st.Status = StatusAlerted
				events = append(events, e.event(st, KindRaised, r.Value, limit, ts))
			}
			continue
		}

		if st.Status == StatusAlerted {
			events = append(events, e.event(st, KindCleared, r.Value, limit, ts))
		}
		st.Status = StatusNormal
		st.FirstExceededAt = time.Time{}
		st.Episode = uuid.Nil
	}
	return events
}

func (e *Engine) event(st *State, k Kind, value, limit float64, ts time.Time) Event {
	return Event{
		ID:            st.Episode,
		Metric:        st.Metric,
		Kind:          k,
		Value:         value,
		Threshold:     limit,
		Timestamp:     ts,
		ExceededSince: st.FirstExceededAt,
	}
}

// States returns a copy of every metric's state in metric order.
func (e *Engine) States() []State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]State, len(e.states))
	copy(out, e.states[:])
	return out
}

// State returns a copy of m's state. Unknown metrics return the zero State.
func (e *Engine) State(m collectors.Metric) State {
	if !m.Valid() {
		return State{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[m]
}

// Alerted returns the metrics currently in ALERTED, in metric order.
func (e *Engine) Alerted() []collectors.Metric {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []collectors.Metric
	for _, st := range e.states {
		if st.Status == StatusAlerted {
			out = append(out, st.Metric)
		}
	}
	return out
}
