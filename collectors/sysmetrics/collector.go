// Package sysmetrics provides the Linux metric source for host-pulse.
// It reads CPU, RAM and temperature from /proc and /sys, and disk usage
// via statfs on a configured mount point.
package sysmetrics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

const (
	// sourceName is the unique identifier for this source.
	sourceName = "procfs"

	// defaultDiskPath is the mount point measured for disk usage.
	defaultDiskPath = "/"
)

// Source implements collectors.Source on top of procfs and sysfs.
type Source struct {
	logger   *slog.Logger
	diskPath string
	now      func() time.Time

	// mu guards the CPU counters. A sample abandoned at its timeout can
	// still be running when the next one starts.
	mu        sync.Mutex
	prevIdle  uint64
	prevTotal uint64
	primed    bool

	// Overridable readers for testing.
	openProcStat    func() (io.ReadCloser, error)
	openProcMeminfo func() (io.ReadCloser, error)
	statfsFunc      func(path string) (diskStat, error)
	sysFS           fs.FS
}

// Option configures a Source.
type Option func(*Source)

// WithDiskPath sets the mount point used for disk usage.
func WithDiskPath(path string) Option {
	return func(s *Source) {
		if path != "" {
			s.diskPath = path
		}
	}
}

// WithClock overrides the timestamp function used for samples.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSource creates a procfs Source.
// If logger is nil, a no-op logger is used.
func NewSource(logger *slog.Logger, opts ...Option) *Source {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Source{
		logger:   logger,
		diskPath: defaultDiskPath,
		now:      time.Now,
		openProcStat: func() (io.ReadCloser, error) {
			return os.Open("/proc/stat")
		},
		openProcMeminfo: func() (io.ReadCloser, error) {
			return os.Open("/proc/meminfo")
		},
		statfsFunc: statfs,
		sysFS:      os.DirFS("/sys"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the source's unique identifier.
func (s *Source) Name() string {
	return sourceName
}

// DiskPath returns the mount point measured for disk usage.
func (s *Source) DiskPath() string {
	return s.diskPath
}

// Prime seeds the CPU counters so the first Sample reports a real delta,
// and verifies that at least one metric is readable.
func (s *Source) Prime(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	_, cpuErr := s.readCPU()
	s.mu.Unlock()

	_, ramErr := s.readRAM()
	_, diskErr := s.readDisk()

	if cpuErr != nil && ramErr != nil && diskErr != nil {
		return fmt.Errorf("%w: procfs: cpu: %v; ram: %v; disk: %v",
			collectors.ErrNoUsableSource, cpuErr, ramErr, diskErr)
	}

	s.logger.Debug("procfs source primed", "disk_path", s.diskPath)
	return nil
}

// Sample reads CPU, RAM, Disk and temperature. Fields that cannot be read
// are absent and reported as warnings. Sample fails only if the context is
// done or every field is unavailable.
func (s *Source) Sample(ctx context.Context) (collectors.Sample, error) {
	if err := ctx.Err(); err != nil {
		return collectors.Sample{}, err
	}

	var warnings []string
	read := func(m collectors.Metric, v float64, err error) collectors.Reading {
		if err != nil {
			warnings = append(warnings, collectors.Unavailable(m, err).Error())
			return collectors.Absent
		}
		return collectors.Present(v)
	}

	s.mu.Lock()
	cpuPct, cpuErr := s.readCPU()
	s.mu.Unlock()
	cpu := read(collectors.MetricCPU, cpuPct, cpuErr)

	ramPct, ramErr := s.readRAM()
	ram := read(collectors.MetricRAM, ramPct, ramErr)

	diskPct, diskErr := s.readDisk()
	disk := read(collectors.MetricDisk, diskPct, diskErr)

	tempC, tempErr := readTemperature(s.sysFS)
	temp := read(collectors.MetricTemp, tempC, tempErr)

	sample := collectors.NewSample(s.now(), cpu, ram, disk, temp, warnings...)
	if !sample.Available() {
		return collectors.Sample{}, fmt.Errorf("procfs: no metric readable: %s", strings.Join(warnings, "; "))
	}
	return sample, nil
}

// readCPU reads /proc/stat to compute CPU usage as a percentage.
// It calculates the delta between the current and previous readings.
// The first call seeds the counters and reports the metric unavailable.
// Callers must hold s.mu.
func (s *Source) readCPU() (float64, error) {
	f, err := s.openProcStat()
	if err != nil {
		return 0, fmt.Errorf("open /proc/stat: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return 0, fmt.Errorf("/proc/stat cpu line too short")
		}

		// Fields: cpu user nice system idle iowait irq softirq steal ...
		var total, idle uint64
		for i := 1; i < len(fields); i++ {
			val, err := strconv.ParseUint(fields[i], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse /proc/stat field %d: %w", i, err)
			}
			total += val
			if i == 4 || i == 5 { // idle + iowait
				idle += val
			}
		}

		if !s.primed {
			s.prevIdle, s.prevTotal, s.primed = idle, total, true
			return 0, fmt.Errorf("cpu counters warming up")
		}

		if total < s.prevTotal || idle < s.prevIdle {
			s.prevIdle, s.prevTotal = idle, total
			return 0, fmt.Errorf("cpu counters went backwards")
		}

		deltaTotal := total - s.prevTotal
		deltaIdle := idle - s.prevIdle
		s.prevIdle, s.prevTotal = idle, total

		if deltaTotal == 0 {
			return 0, nil
		}

		return clampPercent((1.0 - float64(deltaIdle)/float64(deltaTotal)) * 100.0), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read /proc/stat: %w", err)
	}

	return 0, fmt.Errorf("cpu line not found in /proc/stat")
}

// readRAM reads /proc/meminfo to compute RAM usage as a percentage.
// Usage = (MemTotal - MemAvailable) / MemTotal * 100
func (s *Source) readRAM() (float64, error) {
	f, err := s.openProcMeminfo()
	if err != nil {
		return 0, fmt.Errorf("open /proc/meminfo: %w", err)
	}
	defer f.Close()

	var memTotal, memAvailable uint64
	var foundTotal, foundAvailable bool

	scanner := bufio.NewScanner(f)
	for scanner.Scan() && !(foundTotal && foundAvailable) {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			if memTotal, err = parseMemInfoLine(line); err != nil {
				return 0, fmt.Errorf("parse MemTotal: %w", err)
			}
			foundTotal = true
		case strings.HasPrefix(line, "MemAvailable:"):
			if memAvailable, err = parseMemInfoLine(line); err != nil {
				return 0, fmt.Errorf("parse MemAvailable: %w", err)
			}
			foundAvailable = true
		}
	}

	if !foundTotal {
		return 0, fmt.Errorf("MemTotal not found in /proc/meminfo")
	}
	if !foundAvailable {
		return 0, fmt.Errorf("MemAvailable not found in /proc/meminfo")
	}
	if memTotal == 0 {
		return 0, fmt.Errorf("MemTotal is zero")
	}
	if memAvailable > memTotal {
		memAvailable = memTotal
	}

	return clampPercent(float64(memTotal-memAvailable) / float64(memTotal) * 100.0), nil
}

// parseMemInfoLine extracts the numeric kB value from a /proc/meminfo line.
// Format: "MemTotal:       16384000 kB"
func parseMemInfoLine(line string) (uint64, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, fmt.Errorf("too few fields: %q", line)
	}
	return strconv.ParseUint(fields[1], 10, 64)
}

// diskStat holds the block counts needed for a usage percentage.
type diskStat struct {
	Blocks uint64
	Free   uint64
	Avail  uint64
}

// readDisk computes filesystem usage of s.diskPath as a percentage,
// using the same formula as df (reserved blocks excluded from the total).
func (s *Source) readDisk() (float64, error) {
	st, err := s.statfsFunc(s.diskPath)
	if err != nil {
		return 0, fmt.Errorf("statfs %s: %w", s.diskPath, err)
	}
	if st.Blocks == 0 {
		return 0, fmt.Errorf("statfs %s: filesystem reports zero blocks", s.diskPath)
	}

	used := st.Blocks - st.Free
	total := used + st.Avail
	if total == 0 {
		return 0, nil
	}

	return clampPercent(float64(used) / float64(total) * 100.0), nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Compile-time interface compliance checks.
var (
	_ collectors.Source = (*Source)(nil)
	_ collectors.Primer = (*Source)(nil)
)
