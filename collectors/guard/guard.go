// Package guard wraps a metric source with a per-call timeout and failure
// accounting. A sampling call that hangs is abandoned after the timeout and
// reported as collectors.ErrSourceTimeout; consecutive failures past a
// threshold mark the source as escalated so callers can raise log severity.
package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// Compile-time checks: Guard is itself a primable Source.
var (
	_ collectors.Source = (*Guard)(nil)
	_ collectors.Primer = (*Guard)(nil)
)

// State represents the health of the guarded source.
type State int

const (
	// StateHealthy means the last call succeeded.
	StateHealthy State = iota
	// StateFailing means one or more consecutive calls failed.
	StateFailing
	// StateEscalated means consecutive failures reached Config.EscalateAfter.
	StateEscalated
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateFailing:
		return "failing"
	case StateEscalated:
		return "escalated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config configures the guard.
type Config struct {
	// Timeout bounds a single Sample or Prime call. Zero disables the bound.
	Timeout time.Duration
	// EscalateAfter is the number of consecutive failures after which the
	// source is considered escalated.
	EscalateAfter int
	// Clock supplies timestamps for Stats. Nil uses the real clock.
	Clock clock.PassiveClock
	// Logger for state transitions. Nil is safe (a discard logger is used).
	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		Timeout:       1 * time.Second,
		EscalateAfter: 3,
	}
}

// Stats holds failure statistics for external inspection.
type Stats struct {
	State            State
	ConsecutiveFails int
	TotalFailures    int
	TotalSuccesses   int
	TotalTimeouts    int
	LastFailure      time.Time
	LastSuccess      time.Time
	LastError        string
}

// Guard wraps a collectors.Source with timeout and failure tracking.
type Guard struct {
	source collectors.Source
	config Config
	clock  clock.PassiveClock
	logger *slog.Logger

	mu             sync.Mutex
	failures       int
	totalFailures  int
	totalSuccesses int
	totalTimeouts  int
	lastFailure    time.Time
	lastSuccess    time.Time
	lastErr        error
}

// New wraps source. If cfg.Logger is nil, a discard logger is used.
func New(source collectors.Source, cfg Config) *Guard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	if cfg.EscalateAfter <= 0 {
		cfg.EscalateAfter = DefaultConfig().EscalateAfter
	}
	return &Guard{
		source: source,
		config: cfg,
		clock:  clk,
		logger: logger,
	}
}

// Name delegates to the wrapped source.
func (g *Guard) Name() string {
	return g.source.Name()
}

// Unwrap returns the wrapped source.
func (g *Guard) Unwrap() collectors.Source {
	return g.source
}

// Prime primes the wrapped source if it supports priming. Prime outcomes do
// not count toward failure statistics.
func (g *Guard) Prime(ctx context.Context) error {
	p, ok := g.source.(collectors.Primer)
	if !ok {
		return nil
	}
	_, err := call(ctx, g.config.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.Prime(ctx)
	})
	return err
}

// Sample calls the wrapped source within the configured timeout and records
// the outcome. A call cut short by ctx is not counted as a failure.
func (g *Guard) Sample(ctx context.Context) (collectors.Sample, error) {
	s, err := call(ctx, g.config.Timeout, g.source.Sample)
	if err != nil {
		if ctx.Err() != nil && !isTimeout(err) {
			return collectors.Sample{}, err
		}
		g.recordFailure(err)
		return collectors.Sample{}, err
	}
	g.recordSuccess()
	return s, nil
}

type result[T any] struct {
	v   T
	err error
}

// call runs fn in its own goroutine and waits for it, the timeout, or ctx.
// A timed-out fn keeps running in the background; its result is discarded.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- result[T]{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return zero, fmt.Errorf("%w after %s: %v", collectors.ErrSourceTimeout, timeout, r.err)
		}
		return r.v, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", collectors.ErrSourceTimeout, timeout)
	}
}

// recordFailure increments failure counters and logs escalation once.
func (g *Guard) recordFailure(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures++
	g.totalFailures++
	g.lastFailure = g.clock.Now()
	g.lastErr = err
	if isTimeout(err) {
		g.totalTimeouts++
	}

	if g.failures == g.config.EscalateAfter {
		g.logger.Warn("source escalated after consecutive failures",
			"source", g.source.Name(),
			"failures", g.failures,
			"error", err,
		)
	}
}

// recordSuccess resets the consecutive failure counter.
func (g *Guard) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failures >= g.config.EscalateAfter {
		g.logger.Info("source recovered",
			"source", g.source.Name(),
			"failures", g.failures,
		)
	}
	g.failures = 0
	g.totalSuccesses++
	g.lastSuccess = g.clock.Now()
}

func isTimeout(err error) bool {
	return errors.Is(err, collectors.ErrSourceTimeout)
}

func (g *Guard) stateLocked() State {
	switch {
	case g.failures == 0:
		return StateHealthy
	case g.failures >= g.config.EscalateAfter:
		return StateEscalated
	default:
		return StateFailing
	}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stateLocked()
}

// Escalated reports whether consecutive failures have reached the
// escalation threshold.
func (g *Guard) Escalated() bool {
	return g.State() == StateEscalated
}

// ConsecutiveFailures returns the current run of failed calls.
func (g *Guard) ConsecutiveFailures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Stats returns a snapshot of the guard statistics.
func (g *Guard) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Stats{
		State:            g.stateLocked(),
		ConsecutiveFails: g.failures,
		TotalFailures:    g.totalFailures,
		TotalSuccesses:   g.totalSuccesses,
		TotalTimeouts:    g.totalTimeouts,
		LastFailure:      g.lastFailure,
		LastSuccess:      g.lastSuccess,
	}
	if g.lastErr != nil {
		s.LastError = g.lastErr.Error()
	}
	return s
}

// Reset clears all failure counters.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.failures = 0
	g.lastErr = nil
	g.logger.Info("source guard manually reset", "source", g.source.Name())
}
