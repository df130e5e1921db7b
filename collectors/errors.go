package collectors

import (
	"errors"
	"fmt"
)

var (
	// ErrMetricUnavailable marks a single metric that could not be read.
	// The rest of the sample is still usable.
	ErrMetricUnavailable = errors.New("metric unavailable")

	// ErrSourceTimeout is returned when a whole sample did not complete
	// within the configured timeout.
	ErrSourceTimeout = errors.New("metric source timed out")

	// ErrNoUsableSource is returned at startup when no metric can be read
	// at all. It is the only fatal sampling error.
	ErrNoUsableSource = errors.New("no usable metric source")

	// ErrUnknownSource is returned by Registry.Resolve for unregistered names.
	ErrUnknownSource = errors.New("unknown metric source")
)

// MetricError describes a per-field read failure. It matches both
// ErrMetricUnavailable and the underlying cause with errors.Is.
type MetricError struct {
	Metric Metric
	Cause  error
}

// Unavailable wraps cause as a MetricError for m.
func Unavailable(m Metric, cause error) *MetricError {
	return &MetricError{Metric: m, Cause: cause}
}

// Error implements error.
func (e *MetricError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.Metric, ErrMetricUnavailable)
	}
	return fmt.Sprintf("%s: %v: %v", e.Metric, ErrMetricUnavailable, e.Cause)
}

// Unwrap exposes ErrMetricUnavailable and the cause.
func (e *MetricError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrMetricUnavailable}
	}
	return []error{ErrMetricUnavailable, e.Cause}
}
