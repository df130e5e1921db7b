// Package psutil provides a cross-platform metric source backed by gopsutil.
// It is the default outside Linux and a fallback when /proc is unusable.
package psutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

const sourceName = "psutil"

// Source implements collectors.Source with gopsutil.
type Source struct {
	logger   *slog.Logger
	diskPath string
	now      func() time.Time

	// Overridable gopsutil calls for testing.
	cpuPercent    func(ctx context.Context) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	temperatures  func(ctx context.Context) ([]sensors.TemperatureStat, error)
}

// NewSource creates a gopsutil-backed Source measuring disk usage of
// diskPath ("" selects the system drive). If logger is nil, a no-op logger
// is used.
func NewSource(diskPath string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if diskPath == "" {
		diskPath = DefaultDiskPath()
	}
	return &Source{
		logger:   logger,
		diskPath: diskPath,
		now:      time.Now,
		cpuPercent: func(ctx context.Context) ([]float64, error) {
			// Interval 0 compares against the previous call.
			return cpu.PercentWithContext(ctx, 0, false)
		},
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		temperatures:  sensors.TemperaturesWithContext,
	}
}

// DefaultDiskPath returns the system drive: %SystemDrive%\ on Windows,
// "/" elsewhere.
func DefaultDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}

// Name returns the source's unique identifier.
func (s *Source) Name() string {
	return sourceName
}

// DiskPath returns the path measured for disk usage.
func (s *Source) DiskPath() string {
	return s.diskPath
}

// Prime makes one throwaway CPU reading so the next one covers a real
// interval, and checks that something is readable.
func (s *Source) Prime(ctx context.Context) error {
	_, cpuErr := s.cpuPercent(ctx)
	_, memErr := s.virtualMemory(ctx)
	_, diskErr := s.diskUsage(ctx, s.diskPath)
	if cpuErr != nil && memErr != nil && diskErr != nil {
		return fmt.Errorf("%w: psutil: cpu: %v; ram: %v; disk: %v",
			collectors.ErrNoUsableSource, cpuErr, memErr, diskErr)
	}
	return nil
}

// Sample reads every metric through gopsutil.
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

	cpuPct, cpuErr := s.readCPU(ctx)
	ramPct, ramErr := s.readRAM(ctx)
	diskPct, diskErr := s.readDisk(ctx)
	tempC, tempErr := s.readTemperature(ctx)

	sample := collectors.NewSample(s.now(),
		read(collectors.MetricCPU, cpuPct, cpuErr),
		read(collectors.MetricRAM, ramPct, ramErr),
		read(collectors.MetricDisk, diskPct, diskErr),
		read(collectors.MetricTemp, tempC, tempErr),
		warnings...,
	)
	if err := ctx.Err(); err != nil {
		return collectors.Sample{}, err
	}
	if !sample.Available() {
		return collectors.Sample{}, fmt.Errorf("psutil: no metric readable: %s", strings.Join(warnings, "; "))
	}
	return sample, nil
}

func (s *Source) readCPU(ctx context.Context) (float64, error) {
	pct, err := s.cpuPercent(ctx)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, errors.New("cpu percent empty")
	}
	return pct[0], nil
}

func (s *Source) readRAM(ctx context.Context) (float64, error) {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (s *Source) readDisk(ctx context.Context) (float64, error) {
	du, err := s.diskUsage(ctx, s.diskPath)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", s.diskPath, err)
	}
	return du.UsedPercent, nil
}

// readTemperature picks a CPU sensor when one is labelled as such and the
// first reported sensor otherwise. gopsutil can return partial results
// together with a warnings error; partial results are used.
func (s *Source) readTemperature(ctx context.Context) (float64, error) {
	temps, err := s.temperatures(ctx)
	var valid []sensors.TemperatureStat
	for _, t := range temps {
		if t.Temperature > 0 {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		if err != nil {
			return 0, err
		}
		return 0, errors.New("no temperature sensor found")
	}
	for _, t := range valid {
		if collectors.IsCPUSensor(t.SensorKey) {
			return t.Temperature, nil
		}
	}
	return valid[0].Temperature, nil
}

// HostInfo returns a one-line host description for the startup log.
func HostInfo(ctx context.Context) []any {
	attrs := []any{"os", runtime.GOOS, "arch", runtime.GOARCH}
	if info, err := host.InfoWithContext(ctx); err == nil {
		attrs = append(attrs,
			"hostname", info.Hostname,
			"platform", info.Platform,
			"platform_version", info.PlatformVersion,
			"kernel", info.KernelVersion,
		)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		attrs = append(attrs, "mem_total_mb", vm.Total/1024/1024)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		attrs = append(attrs, "cpus", n)
	}
	return attrs
}

// Compile-time interface compliance checks.
var (
	_ collectors.Source = (*Source)(nil)
	_ collectors.Primer = (*Source)(nil)
)
