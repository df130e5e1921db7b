// Package telemetry records sampler and alert activity as Prometheus
// metrics and writes them to a node-exporter textfile. Nothing is served
// over the network.
package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

const namespace = "hostpulse"

// Recorder exposes sampler metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	metricValue    *prometheus.GaugeVec
	thresholds     *prometheus.GaugeVec
	alertState     *prometheus.GaugeVec
	eventsTotal    *prometheus.CounterVec
	samplesTotal   prometheus.Counter
	failuresTotal  *prometheus.CounterVec
	sampleDuration prometheus.Histogram
	lastSample     prometheus.Gauge
}

// NewRecorder constructs a recorder and registers its collectors on a new
// registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		metricValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Latest sampled value per metric (percent, or degrees Celsius for temp)",
		}, []string{"metric"}),
		thresholds: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold",
			Help:      "Configured alert threshold per metric",
		}, []string{"metric"}),
		alertState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_state",
			Help:      "Alert state per metric: 0 normal, 1 exceeding, 2 alerted",
		}, []string{"metric"}),
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_events_total",
			Help:      "Alert events emitted, by metric and kind",
		}, []string{"metric", "kind"}),
		samplesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Successful sampling ticks",
		}),
		failuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sample_failures_total",
			Help:      "Skipped sampling ticks, by reason",
		}, []string{"reason"}),
		sampleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sample_duration_seconds",
			Help:      "Time spent acquiring a sample",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2},
		}),
		lastSample: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sample_timestamp_seconds",
			Help:      "Unix time of the latest successful sample",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSample records a successful tick. Absent readings remove the
// metric's series so stale values are not exported.
func (r *Recorder) ObserveSample(s collectors.Sample, took time.Duration) {
	r.samplesTotal.Inc()
	r.sampleDuration.Observe(took.Seconds())
	r.lastSample.Set(float64(s.Timestamp().UnixNano()) / 1e9)
	for _, m := range collectors.AllMetrics() {
		if v, ok := s.Value(m); ok {
			r.metricValue.WithLabelValues(m.String()).Set(v)
		} else {
			r.metricValue.DeleteLabelValues(m.String())
		}
	}
}

// ObserveFailure records a skipped tick.
func (r *Recorder) ObserveFailure(err error, took time.Duration) {
	reason := "error"
	if errors.Is(err, collectors.ErrSourceTimeout) {
		reason = "timeout"
	}
	r.failuresTotal.WithLabelValues(reason).Inc()
	r.sampleDuration.Observe(took.Seconds())
}

// ObserveEvents counts emitted alert events.
func (r *Recorder) ObserveEvents(events []alert.Event) {
	for _, ev := range events {
		r.eventsTotal.WithLabelValues(ev.Metric.String(), ev.Kind.String()).Inc()
	}
}

// ObserveStates publishes alert states and the thresholds they were
// evaluated against.
func (r *Recorder) ObserveStates(states []alert.State, v threshold.Values) {
	for _, st := range states {
		r.alertState.WithLabelValues(st.Metric.String()).Set(float64(st.Status))
	}
	for _, m := range collectors.AllMetrics() {
		r.thresholds.WithLabelValues(m.String()).Set(v.Threshold(m))
	}
}

// WriteTextfile atomically writes all metrics in the Prometheus text format
// to path, creating the directory if needed.
func (r *Recorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create textfile directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write textfile: %w", err)
	}
	return nil
}
