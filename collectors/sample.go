package collectors

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Metric identifies one tracked host metric. The numeric order is the
// order in which per-tick alert events are emitted.
type Metric int

const (
	MetricCPU Metric = iota
	MetricRAM
	MetricDisk
	MetricTemp

	// MetricCount is the number of tracked metrics.
	MetricCount = 4
)

// metricNames maps each Metric to its stable config/JSON name.
var metricNames = [MetricCount]string{"cpu", "ram", "disk", "temp"}

// AllMetrics returns every tracked metric in evaluation order
// (CPU, RAM, Disk, Temp).
func AllMetrics() []Metric {
	return []Metric{MetricCPU, MetricRAM, MetricDisk, MetricTemp}
}

// Valid reports whether m is one of the tracked metrics.
func (m Metric) Valid() bool {
	return m >= 0 && int(m) < MetricCount
}

// String returns the lowercase metric name ("cpu", "ram", "disk", "temp").
func (m Metric) String() string {
	if !m.Valid() {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return metricNames[m]
}

// Label returns the display label used in cards and notifications.
func (m Metric) Label() string {
	switch m {
	case MetricCPU:
		return "CPU"
	case MetricRAM:
		return "RAM"
	case MetricDisk:
		return "Disk"
	case MetricTemp:
		return "Temperature"
	default:
		return m.String()
	}
}

// IsPercent reports whether the metric is a 0-100 percentage.
// Temperature is the only metric measured in degrees Celsius.
func (m Metric) IsPercent() bool {
	return m != MetricTemp
}

// Unit returns the display unit suffix.
func (m Metric) Unit() string {
	if m == MetricTemp {
		return "°C"
	}
	return "%"
}

// ParseMetric converts a metric name back into a Metric.
func ParseMetric(s string) (Metric, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range metricNames {
		if n == name {
			return Metric(i), nil
		}
	}
	switch name {
	case "memory", "mem":
		return MetricRAM, nil
	case "temperature":
		return MetricTemp, nil
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

// MarshalText implements encoding.TextMarshaler so metrics can key JSON maps.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid metric %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(text []byte) error {
	parsed, err := ParseMetric(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Reading is a single metric value that may be absent. An absent reading
// (sensor missing, read failed) is distinct from a reading of zero.
type Reading struct {
	Value float64
	Valid bool
}

// Present returns a valid Reading. NaN and infinities are treated as absent.
func Present(v float64) Reading {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}
	}
	return Reading{Value: v, Valid: true}
}

// Absent is the zero Reading.
var Absent = Reading{}

// String formats the reading with one decimal, or "n/a" when absent.
func (r Reading) String() string {
	if !r.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", r.Value)
}

// MarshalJSON encodes an absent reading as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes null as an absent reading.
func (r *Reading) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reading{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Present(v)
	return nil
}

// Sample is one point-in-time reading of every tracked metric. Samples are
// values with unexported state: once built they cannot be modified, and
// copies never share mutable memory.
type Sample struct {
	timestamp time.Time
	readings  [MetricCount]Reading
	warnings  []string
}

// NewSample builds an immutable Sample. Warnings describe per-field
// failures (for example a missing temperature sensor).
func NewSample(ts time.Time, cpu, ram, disk, temp Reading, warnings ...string) Sample {
	s := Sample{
		timestamp: ts,
		readings:  [MetricCount]Reading{cpu, ram, disk, temp},
	}
	if len(warnings) > 0 {
		s.warnings = make([]string, len(warnings))
		copy(s.warnings, warnings)
	}
	return s
}

// Timestamp returns when the sample was taken.
func (s Sample) Timestamp() time.Time { return s.timestamp }

// Reading returns the reading for m. Unknown metrics are absent.
func (s Sample) Reading(m Metric) Reading {
	if !m.Valid() {
		return Reading{}
	}
	return s.readings[m]
}

// Value returns the value for m and whether it is present.
func (s Sample) Value(m Metric) (float64, bool) {
	r := s.Reading(m)
	return r.Value, r.Valid
}

// CPU returns the CPU usage reading.
func (s Sample) CPU() Reading { return s.readings[MetricCPU] }

// RAM returns the RAM usage reading.
func (s Sample) RAM() Reading { return s.readings[MetricRAM] }

// Disk returns the disk usage reading.
func (s Sample) Disk() Reading { return s.readings[MetricDisk] }

// Temp returns the CPU temperature reading.
func (s Sample) Temp() Reading { return s.readings[MetricTemp] }

// Warnings returns a copy of the per-field failure messages.
func (s Sample) Warnings() []string {
	if len(s.warnings) == 0 {
		return nil
	}
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// Available reports whether at least one metric has a value.
func (s Sample) Available() bool {
	for _, r := range s.readings {
		if r.Valid {
			return true
		}
	}
	return false
}

type sampleJSON struct {
	Timestamp time.Time `json:"timestamp"`
	CPU       Reading   `json:"cpu"`
	RAM       Reading   `json:"ram"`
	Disk      Reading   `json:"disk"`
	Temp      Reading   `json:"temp"`
	Warnings  []string  `json:"warnings,omitempty"`
}

// MarshalJSON encodes the sample with absent readings as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(sampleJSON{
		Timestamp: s.timestamp,
		CPU:       s.readings[MetricCPU],
		RAM:       s.readings[MetricRAM],
		Disk:      s.readings[MetricDisk],
		Temp:      s.readings[MetricTemp],
		Warnings:  s.warnings,
	})
}

// UnmarshalJSON decodes a sample written by MarshalJSON.
func (s *Sample) UnmarshalJSON(data []byte) error {
	var raw sampleJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSample(raw.Timestamp, raw.CPU, raw.RAM, raw.Disk, raw.Temp, raw.Warnings...)
	return nil
}
