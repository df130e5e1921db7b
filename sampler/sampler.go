// Package sampler drives the periodic sampling tick. Each tick reads the
// metric source, appends the sample to the history, runs the alert engine
// against the current thresholds and publishes the resulting events.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/guard"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/logging"
	"gitlab.com/tinyland/lab/host-pulse/notify"
	"gitlab.com/tinyland/lab/host-pulse/status"
	"gitlab.com/tinyland/lab/host-pulse/telemetry"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

// DefaultInterval is the time between ticks when Options.Interval is zero.
const DefaultInterval = 2 * time.Second

// ReportKey is the cache key the latest Report is written under.
const ReportKey = "status"

var (
	// ErrRunning is returned by Start when the loop is already running.
	ErrRunning = errors.New("sampler already running")

	// ErrNoSource is returned by New when Options.Source is nil.
	ErrNoSource = errors.New("sampler: no metric source")
)

// Options wires a Scheduler. Source is required; the other collaborators
// get fresh defaults when nil.
type Options struct {
	Interval time.Duration
	Source   *guard.Guard
	History  *history.Buffer
	Policy   *threshold.Policy
	Engine   *alert.Engine
	Sinks    []notify.Sink
	Logger   *slog.Logger
	Clock    clock.WithTicker

	// Store receives the Report after every tick. Optional.
	Store *cache.Store
	// Telemetry records per-tick metrics. Optional.
	Telemetry *telemetry.Recorder
	// Textfile is rewritten from Telemetry after every tick when set.
	Textfile string
}

// Report describes the outcome of the latest tick. It is the document
// written to the status file.
type Report struct {
	Status              status.SystemStatus           `json:"status"`
	Sample              *collectors.Sample            `json:"sample,omitempty"`
	Events              []alert.Event                 `json:"events,omitempty"`
	Thresholds          map[collectors.Metric]float64 `json:"thresholds"`
	GracePeriod         string                        `json:"grace_period"`
	Source              string                        `json:"source"`
	Error               string                        `json:"error,omitempty"`
	ConsecutiveFailures int                           `json:"consecutive_failures"`
	Interval            string                        `json:"interval"`
	UpdatedAt           time.Time                     `json:"updated_at"`
}

// Scheduler owns the sampling goroutine.
type Scheduler struct {
	interval  time.Duration
	source    *guard.Guard
	history   *history.Buffer
	policy    *threshold.Policy
	engine    *alert.Engine
	sinks     notify.Multi
	logger    *slog.Logger
	clock     clock.WithTicker
	store     *cache.Store
	telemetry *telemetry.Recorder
	textfile  string

	ticks      atomic.Uint64
	last       atomic.Pointer[Report]
	lastSample atomic.Pointer[collectors.Sample]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New validates opts and returns a stopped Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Source == nil {
		return nil, ErrNoSource
	}
	if opts.Interval < 0 {
		return nil, fmt.Errorf("sampler: negative interval %s", opts.Interval)
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.History == nil {
		opts.History = history.New(history.DefaultCapacity)
	}
	if opts.Policy == nil {
		opts.Policy = threshold.NewDefaultPolicy()
	}
	if opts.Engine == nil {
		opts.Engine = alert.NewEngine()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	done := make(chan struct{})
	close(done)

	return &Scheduler{
		interval:  opts.Interval,
		source:    opts.Source,
		history:   opts.History,
		policy:    opts.Policy,
		engine:    opts.Engine,
		sinks:     notify.Multi(opts.Sinks),
		logger:    logging.OrDiscard(opts.Logger),
		clock:     opts.Clock,
		store:     opts.Store,
		telemetry: opts.Telemetry,
		textfile:  opts.Textfile,
		done:      done,
	}, nil
}

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// History returns the buffer samples are appended to.
func (s *Scheduler) History() *history.Buffer { return s.history }

// Policy returns the threshold policy read on every tick.
func (s *Scheduler) Policy() *threshold.Policy { return s.policy }

// Engine returns the alert engine.
func (s *Scheduler) Engine() *alert.Engine { return s.engine }

// Ticks returns the number of completed ticks, successful or not.
func (s *Scheduler) Ticks() uint64 { return s.ticks.Load() }

// Last returns the report of the latest tick, or nil before the first.
func (s *Scheduler) Last() *Report { return s.last.Load() }

// LastSample returns the most recent successful sample, or false before
// the first one.
func (s *Scheduler) LastSample() (collectors.Sample, bool) {
	p := s.lastSample.Load()
	if p == nil {
		return collectors.Sample{}, false
	}
	return *p, true
}

// Healthy reports whether the latest tick read the source successfully.
// A scheduler that has not ticked yet is healthy.
func (s *Scheduler) Healthy() bool {
	rep := s.last.Load()
	return rep == nil || rep.Error == ""
}

// Start launches Run on its own goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
	default:
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish. A hung
// source holds Stop for at most the guard timeout.
// Stopping a scheduler that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done returns a channel closed when the loop started by Start exits.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Run ticks once immediately and then once per interval until ctx is
// cancelled. Sampling failures never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("sampler started", "source", s.source.Name(), "interval", s.interval)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sampler stopped", "ticks", s.ticks.Load())
			return ctx.Err()
		case <-ticker.C():
			s.Tick(ctx)
		}
	}
}

// Tick performs one sampling pass and returns its report. The source call
// is bounded by the guard timeout only, so a tick under way when ctx is
// cancelled still completes.
func (s *Scheduler) Tick(ctx context.Context) Report {
	defer s.ticks.Add(1)

	start := s.clock.Now()
	sample, err := s.source.Sample(context.WithoutCancel(ctx))
	took := s.clock.Since(start)
	values := s.policy.Values()

	rep := Report{
		Source:              s.source.Name(),
		ConsecutiveFailures: s.source.ConsecutiveFailures(),
		Interval:            s.interval.String(),
	}

	if err != nil {
		s.logFailure(err)
		if s.telemetry != nil {
			s.telemetry.ObserveFailure(err, took)
		}
		rep.Error = err.Error()
		rep.Status = status.Summarize(s.engine.States(), false)
		s.publish(&rep, values)
		return rep
	}

	s.history.AppendSample(sample)
	events := s.engine.Evaluate(sample, values)
	for _, ev := range events {
		if ev.Kind == alert.KindRaised {
			s.logger.Warn(ev.Message(), ev.LogAttrs()...)
		} else {
			s.logger.Info(ev.Message(), ev.LogAttrs()...)
		}
		s.sinks.Notify(ev)
	}
	states := s.engine.States()

	if s.telemetry != nil {
		s.telemetry.ObserveSample(sample, took)
		s.telemetry.ObserveEvents(events)
		s.telemetry.ObserveStates(states, values)
	}

	s.logger.Debug("tick",
		"cpu", sample.CPU().String(),
		"ram", sample.RAM().String(),
		"disk", sample.Disk().String(),
		"temp", sample.Temp().String(),
		"took", took,
	)
	for _, w := range sample.Warnings() {
		s.logger.Debug("metric unavailable", "warning", w)
	}

	s.lastSample.Store(&sample)
	rep.Sample = &sample
	rep.Events = events
	rep.Status = status.Summarize(states, true)
	s.publish(&rep, values)
	return rep
}

func (s *Scheduler) logFailure(err error) {
	attrs := []any{
		"source", s.source.Name(),
		"consecutive", s.source.ConsecutiveFailures(),
		"error", err,
	}
	if s.source.Escalated() {
		s.logger.Error("sampling failed", attrs...)
		return
	}
	s.logger.Warn("sampling failed, skipping tick", attrs...)
}

// publish completes rep and hands it to the status store and textfile.
func (s *Scheduler) publish(rep *Report, values threshold.Values) {
	rep.Thresholds = values.Map()
	rep.GracePeriod = values.Grace().String()
	rep.UpdatedAt = s.clock.Now()
	s.last.Store(rep)

	if s.store != nil {
		if err := s.store.Set(ReportKey, rep); err != nil {
			s.logger.Warn("status write failed", "error", err)
		}
	}
	if s.telemetry != nil && s.textfile != "" {
		if err := s.telemetry.WriteTextfile(s.textfile); err != nil {
			s.logger.Warn("telemetry textfile write failed", "path", s.textfile, "error", err)
		}
	}
}
