package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"gitlab.com/tinyland/lab/host-pulse/alert"
	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/collectors/guard"
	"gitlab.com/tinyland/lab/host-pulse/collectors/psutil"
	"gitlab.com/tinyland/lab/host-pulse/collectors/sysmetrics"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/display/tui"
	"gitlab.com/tinyland/lab/host-pulse/history"
	"gitlab.com/tinyland/lab/host-pulse/notify"
	"gitlab.com/tinyland/lab/host-pulse/sampler"
	"gitlab.com/tinyland/lab/host-pulse/telemetry"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

// daemon owns the sampling pipeline for one process: the metric source,
// the shared history, policy and engine, and the status file.
type daemon struct {
	config     *config.Config
	configPath string
	logger     *slog.Logger
	store      *cache.Store
	registry   *collectors.Registry
	history    *history.Buffer
	policy     *threshold.Policy
	engine     *alert.Engine
	recorder   *telemetry.Recorder
	pidFile    string
}

// newDaemon wires the pipeline from cfg. configPath, when non-empty, is
// watched for threshold edits while running.
func newDaemon(cfg *config.Config, configPath string, logger *slog.Logger) (*daemon, error) {
	store, err := cache.NewStore(cfg.State.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: create state store: %w", err)
	}

	values, err := cfg.ThresholdValues()
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}

	registry := collectors.NewRegistry()
	registry.Register(sysmetrics.NewSource(logger, sysmetrics.WithDiskPath(cfg.Sampling.DiskPath)))
	registry.Register(psutil.NewSource(cfg.Sampling.DiskPath, logger))

	return &daemon{
		config:     cfg,
		configPath: configPath,
		logger:     logger,
		store:      store,
		registry:   registry,
		history:    history.New(cfg.Sampling.HistorySize),
		policy:     threshold.NewPolicy(values),
		engine:     alert.NewEngine(),
		recorder:   telemetry.NewRecorder(),
		pidFile:    cfg.PIDFile(),
	}, nil
}

// writePIDFile writes the current process PID to the PID file.
func (d *daemon) writePIDFile() error {
	dir := filepath.Dir(d.pidFile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create PID file directory: %w", err)
	}
	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	d.logger.Debug("wrote PID file", "path", d.pidFile, "pid", pid)
	return nil
}

// removePIDFile removes the PID file on shutdown.
func (d *daemon) removePIDFile() {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		d.logger.Error("failed to remove PID file", "path", d.pidFile, "error", err)
		return
	}
	d.logger.Debug("removed PID file", "path", d.pidFile)
}

// isRunning checks if another instance is already running by reading the
// PID file and checking if the process exists. A stale or corrupt PID file
// is cleaned up.
func (d *daemon) isRunning() (bool, int) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		d.logger.Warn("corrupt PID file, removing", "path", d.pidFile, "content", string(data))
		os.Remove(d.pidFile)
		return false, 0
	}
	if pid == os.Getpid() {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(d.pidFile)
		return false, 0
	}

	// Signal 0 probes for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		d.logger.Warn("stale PID file, removing", "path", d.pidFile, "pid", pid)
		os.Remove(d.pidFile)
		return false, 0
	}

	return true, pid
}

// candidates returns the source names to try, in order.
func (d *daemon) candidates() []string {
	if name := d.config.Sampling.Source; name != "" && name != collectors.SourceAuto {
		return []string{name}
	}
	return collectors.DefaultPreference("")
}

// selectSource primes each candidate source in turn and returns the first
// usable one wrapped in a guard.
func (d *daemon) selectSource(ctx context.Context) (*guard.Guard, error) {
	var errs []error
	for _, name := range d.candidates() {
		src, err := d.registry.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g := guard.New(src, guard.Config{
			Timeout:       d.config.Timeout(),
			EscalateAfter: d.config.Sampling.EscalateAfter,
			Logger:        d.logger,
		})
		if err := g.Prime(ctx); err != nil {
			d.logger.Warn("metric source unusable", "source", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		d.logger.Info("metric source selected", "source", name)
		return g, nil
	}
	return nil, fmt.Errorf("%w: %w", collectors.ErrNoUsableSource, errors.Join(errs...))
}

// newScheduler builds the sampler around g. Events also go to sinks.
func (d *daemon) newScheduler(g *guard.Guard, sinks ...notify.Sink) (*sampler.Scheduler, error) {
	return sampler.New(sampler.Options{
		Interval:  d.config.Interval(),
		Source:    g,
		History:   d.history,
		Policy:    d.policy,
		Engine:    d.engine,
		Sinks:     sinks,
		Logger:    d.logger,
		Store:     d.store,
		Telemetry: d.recorder,
		Textfile:  d.config.Telemetry.Textfile,
	})
}

// applyConfig pushes reloaded thresholds into the policy.
func (d *daemon) applyConfig(cfg *config.Config) {
	v, err := cfg.ThresholdValues()
	if err == nil {
		err = d.policy.Apply(v)
	}
	if err != nil {
		d.logger.Warn("config thresholds rejected", "error", err)
		return
	}
	d.logger.Info("thresholds updated", append([]any{"origin", "config"}, valuesAttrs(v)...)...)
}

func valuesAttrs(v threshold.Values) []any {
	attrs := make([]any, 0, 2*collectors.MetricCount+2)
	for _, m := range collectors.AllMetrics() {
		attrs = append(attrs, m.String(), v.Threshold(m))
	}
	return append(attrs, "grace", v.Grace())
}

// run samples until ctx is cancelled, or until the user quits the dashboard
// when ui is set. Without the dashboard it returns ctx.Err().
func (d *daemon) run(ctx context.Context, ui bool) error {
	if running, pid := d.isRunning(); running {
		return fmt.Errorf("host-pulse already running (PID %d)", pid)
	}
	if err := d.writePIDFile(); err != nil {
		return err
	}
	defer d.removePIDFile()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info("host-pulse starting", append([]any{"version", version}, psutil.HostInfo(ctx)...)...)

	g, err := d.selectSource(ctx)
	if err != nil {
		return err
	}

	var queue *notify.Queue
	var sinks []notify.Sink
	if ui {
		queue = notify.NewQueue(d.config.Notify.QueueSize)
		sinks = append(sinks, queue)
	}
	sched, err := d.newScheduler(g, sinks...)
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer d.shutdown(sched, queue)

	if d.configPath != "" {
		watchCtx, stopWatch := context.WithCancel(ctx)
		watchDone := make(chan struct{})
		go func() {
			defer close(watchDone)
			if err := config.Watch(watchCtx, d.configPath, d.logger, d.applyConfig); err != nil {
				d.logger.Warn("config watch disabled", "path", d.configPath, "error", err)
			}
		}()
		defer func() {
			stopWatch()
			<-watchDone
		}()
	}

	if !ui {
		<-ctx.Done()
		return ctx.Err()
	}
	return tui.Run(ctx, d.dashboardDeps(sched, queue, g.Name()))
}

// dashboardDeps connects the dashboard to the running pipeline.
func (d *daemon) dashboardDeps(sched *sampler.Scheduler, queue *notify.Queue, source string) tui.Deps {
	return tui.Deps{
		History:       d.history,
		Policy:        d.policy,
		Engine:        d.engine,
		Events:        queue.C(),
		Latest:        sched.LastSample,
		SourceHealthy: sched.Healthy,
		OnChange: func(v threshold.Values) {
			d.logger.Info("thresholds updated", append([]any{"origin", "dashboard"}, valuesAttrs(v)...)...)
		},
		Source:   source,
		DiskPath: d.diskPath(),
		Refresh:  d.config.Refresh(),
		Step:     d.config.Display.ThresholdStep,
	}
}

func (d *daemon) diskPath() string {
	if d.config.Sampling.DiskPath != "" {
		return d.config.Sampling.DiskPath
	}
	return psutil.DefaultDiskPath()
}

// shutdown stops the sampler and logs the final alert state.
func (d *daemon) shutdown(sched *sampler.Scheduler, queue *notify.Queue) {
	sched.Stop()
	for _, st := range d.engine.States() {
		if st.Status == alert.StatusNormal {
			continue
		}
		d.logger.Info("alert state at shutdown",
			"metric", st.Metric.String(),
			"status", st.Status.String(),
			"since", st.FirstExceededAt,
		)
	}
	if queue != nil && queue.Dropped() > 0 {
		d.logger.Debug("dashboard events dropped", "count", queue.Dropped())
	}
	d.logger.Info("host-pulse stopped", "ticks", sched.Ticks())
}
