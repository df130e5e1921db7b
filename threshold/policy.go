// Package threshold holds the user-adjustable alert thresholds and grace
// period. The current values are published as an immutable snapshot that
// is swapped atomically, so readers on any goroutine see either the old or
// the new set and never a mix.
package threshold

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Sentinel errors for rejected writes.
var (
	ErrInvalidThreshold   = errors.New("invalid threshold")
	ErrInvalidGracePeriod = errors.New("invalid grace period")
	ErrUnknownMetric      = errors.New("unknown metric")
)

// Defaults applied when no configuration overrides them.
const (
	DefaultPercent     = 80.0
	DefaultTemperature = 70.0
	DefaultGrace       = 5 * time.Minute
)

// Values is an immutable snapshot of every threshold plus the grace period.
type Values struct {
	thresholds [collectors.MetricCount]float64
	grace      time.Duration
}

// DefaultValues returns 80% for CPU, RAM and disk, 70°C for temperature and
// a 5 minute grace period.
func DefaultValues() Values {
	var v Values
	for _, m := range collectors.AllMetrics() {
		v.thresholds[m] = DefaultPercent
	}
	v.thresholds[collectors.MetricTemp] = DefaultTemperature
	v.grace = DefaultGrace
	return v
}

// NewValues builds a validated snapshot from a per-metric map. Metrics
// missing from the map keep their default.
func NewValues(thresholds map[collectors.Metric]float64, grace time.Duration) (Values, error) {
	v := DefaultValues()
	for m, t := range thresholds {
		if err := validate(m, t); err != nil {
			return Values{}, err
		}
		v.thresholds[m] = t
	}
	if err := validateGrace(grace); err != nil {
		return Values{}, err
	}
	v.grace = grace
	return v, nil
}

// Threshold returns the threshold for m, or NaN for an unknown metric.
func (v Values) Threshold(m collectors.Metric) float64 {
	if !m.Valid() {
		return math.NaN()
	}
	return v.thresholds[m]
}

// Grace returns the grace period.
func (v Values) Grace() time.Duration {
	return v.grace
}

// Map returns the thresholds keyed by metric.
func (v Values) Map() map[collectors.Metric]float64 {
	out := make(map[collectors.Metric]float64, collectors.MetricCount)
	for _, m := range collectors.AllMetrics() {
		out[m] = v.thresholds[m]
	}
	return out
}

// Bounds returns the accepted [lo, hi] range for m's threshold. Temperature
// has no upper bound.
func Bounds(m collectors.Metric) (lo, hi float64) {
	if m == collectors.MetricTemp {
		return 0, math.Inf(1)
	}
	return 0, 100
}

func validate(m collectors.Metric, value float64) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidThreshold, m)
	}
	lo, hi := Bounds(m)
	if value < lo || value > hi {
		if math.IsInf(hi, 1) {
			return fmt.Errorf("%w: %s must be >= %g, got %g", ErrInvalidThreshold, m, lo, value)
		}
		return fmt.Errorf("%w: %s must be in [%g, %g], got %g", ErrInvalidThreshold, m, lo, hi, value)
	}
	return nil
}

func validateGrace(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: must be >= 0, got %s", ErrInvalidGracePeriod, d)
	}
	return nil
}

// Policy is the shared, mutable threshold policy. Reads are lock-free;
// writes are serialised and publish a new snapshot.
type Policy struct {
	mu  sync.Mutex // serialises writers
	cur atomic.Pointer[Values]
}

// NewPolicy creates a Policy starting from v.
func NewPolicy(v Values) *Policy {
	p := &Policy{}
	p.cur.Store(&v)
	return p
}

// NewDefaultPolicy creates a Policy with DefaultValues.
func NewDefaultPolicy() *Policy {
	return NewPolicy(DefaultValues())
}

// Values returns the current snapshot.
func (p *Policy) Values() Values {
	return *p.cur.Load()
}

// Get returns the threshold for m.
func (p *Policy) Get(m collectors.Metric) float64 {
	return p.cur.Load().Threshold(m)
}

// GracePeriod returns the grace period.
func (p *Policy) GracePeriod() time.Duration {
	return p.cur.Load().grace
}

// Set changes the threshold for m. An invalid value is rejected and the
// prior value retained.
func (p *Policy) Set(m collectors.Metric, value float64) error {
	if err := validate(m, value); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := *p.cur.Load()
	next.thresholds[m] = value
	p.cur.Store(&next)
	return nil
}

// Adjust adds delta to m's threshold, clamping to the metric's bounds, and
// returns the new value.
func (p *Policy) Adjust(m collectors.Metric, delta float64) (float64, error) {
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMetric, int(m))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := *p.cur.Load()
	lo, hi := Bounds(m)
	v := math.Min(math.Max(next.thresholds[m]+delta, lo), hi)
	if err := validate(m, v); err != nil {
		return next.thresholds[m], err
	}
	next.thresholds[m] = v
	p.cur.Store(&next)
	return v, nil
}

// SetGracePeriod changes the grace period. Negative durations are rejected.
func (p *Policy) SetGracePeriod(d time.Duration) error {
	if err := validateGrace(d); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	next := *p.cur.Load()
	next.grace = d
	p.cur.Store(&next)
	return nil
}

// Apply replaces the whole snapshot after validating every field. On error
// nothing changes.
func (p *Policy) Apply(v Values) error {
	for _, m := range collectors.AllMetrics() {
		if err := validate(m, v.thresholds[m]); err != nil {
			return err
		}
	}
	if err := validateGrace(v.grace); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.Store(&v)
	return nil
}
