// Package config provides configuration parsing for host-pulse.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
	"gitlab.com/tinyland/lab/host-pulse/threshold"
)

// Config represents the host-pulse configuration.
type Config struct {
	// Sampling holds the metric source and scheduler settings.
	Sampling SamplingConfig `yaml:"sampling"`

	// Thresholds holds the alert thresholds and grace period.
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// Log holds log file settings.
	Log LogConfig `yaml:"log"`

	// State holds the status handoff file settings.
	State StateConfig `yaml:"state"`

	// Telemetry holds Prometheus textfile export settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Notify holds alert event delivery settings.
	Notify NotifyConfig `yaml:"notify"`

	// Display holds dashboard rendering settings.
	Display DisplayConfig `yaml:"display"`
}

// SamplingConfig holds the metric source and scheduler settings.
type SamplingConfig struct {
	// Interval is a duration string (e.g. "2s") between sampling ticks.
	Interval string `yaml:"interval"`
	// Timeout is a duration string bounding a single sampling call.
	Timeout string `yaml:"timeout"`
	// EscalateAfter is the number of consecutive failed ticks after which
	// failures are logged at error level.
	EscalateAfter int `yaml:"escalate_after"`
	// Source selects the metric source: "auto", "procfs" or "psutil".
	Source string `yaml:"source"`
	// DiskPath is the filesystem whose usage is reported. Empty selects
	// the system drive.
	DiskPath string `yaml:"disk_path"`
	// HistorySize is the number of samples kept for the chart.
	HistorySize int `yaml:"history_size"`
}

// ThresholdsConfig holds the alert thresholds and grace period.
type ThresholdsConfig struct {
	// CPU is the CPU usage threshold in percent.
	CPU float64 `yaml:"cpu"`
	// RAM is the memory usage threshold in percent.
	RAM float64 `yaml:"ram"`
	// Disk is the disk usage threshold in percent.
	Disk float64 `yaml:"disk"`
	// Temp is the CPU temperature threshold in degrees Celsius.
	Temp float64 `yaml:"temp"`
	// GracePeriod is a duration string a metric must stay above its
	// threshold before an alert is raised.
	GracePeriod string `yaml:"grace_period"`
}

// LogConfig holds log file settings.
type LogConfig struct {
	// File is the path of the rotating log file.
	File string `yaml:"file"`
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int `yaml:"max_size_mb"`
	// MaxBackups is the number of rotated log files kept. At least 1.
	MaxBackups int `yaml:"max_backups"`
	// Level is the minimum level written to the file: debug, info, warn or error.
	Level string `yaml:"level"`
}

// StateConfig holds the status handoff file settings.
type StateConfig struct {
	// Dir is the directory holding status.json and the PID file.
	Dir string `yaml:"dir"`
}

// TelemetryConfig holds Prometheus textfile export settings.
type TelemetryConfig struct {
	// Textfile is the .prom file rewritten after every tick. Empty disables export.
	Textfile string `yaml:"textfile"`
}

// NotifyConfig holds alert event delivery settings.
type NotifyConfig struct {
	// QueueSize is the number of undelivered events buffered for the dashboard.
	QueueSize int `yaml:"queue_size"`
}

// DisplayConfig holds dashboard rendering settings.
type DisplayConfig struct {
	// Refresh is a duration string between dashboard redraws.
	Refresh string `yaml:"refresh"`
	// ThresholdStep is the amount a threshold moves per key press.
	ThresholdStep float64 `yaml:"threshold_step"`
}

// DefaultPath returns ~/.config/host-pulse/config.yaml.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "host-pulse", "config.yaml")
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Sampling: SamplingConfig{
			Interval:      "2s",
			Timeout:       "1s",
			EscalateAfter: 3,
			Source:        collectors.SourceAuto,
			DiskPath:      "",
			HistorySize:   60,
		},
		Thresholds: ThresholdsConfig{
			CPU:         threshold.DefaultPercent,
			RAM:         threshold.DefaultPercent,
			Disk:        threshold.DefaultPercent,
			Temp:        threshold.DefaultTemperature,
			GracePeriod: "5m",
		},
		Log: LogConfig{
			File:       filepath.Join(home, ".local", "log", "host-pulse.log"),
			MaxSizeMB:  5,
			MaxBackups: 5,
			Level:      "debug",
		},
		State: StateConfig{
			Dir: filepath.Join(home, ".local", "state", "host-pulse"),
		},
		Telemetry: TelemetryConfig{
			Textfile: "",
		},
		Notify: NotifyConfig{
			QueueSize: 64,
		},
		Display: DisplayConfig{
			Refresh:       "1s",
			ThresholdStep: 5,
		},
	}
}

// LoadConfig loads configuration from a YAML file, merging with defaults.
// A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	config.expandHome()

	return config, nil
}

// expandHome replaces a leading "~/" in path settings.
func (c *Config) expandHome() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	for _, p := range []*string{&c.Log.File, &c.State.Dir, &c.Telemetry.Textfile, &c.Sampling.DiskPath} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}
}

func parsePositiveDuration(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return d, nil
}

// Validate checks the configuration for required fields and logical consistency.
func (c *Config) Validate() error {
	// Sampling validation
	interval, err := parsePositiveDuration("sampling.interval", c.Sampling.Interval)
	if err != nil {
		return err
	}
	timeout, err := parsePositiveDuration("sampling.timeout", c.Sampling.Timeout)
	if err != nil {
		return err
	}
	if timeout >= interval {
		return fmt.Errorf("sampling.timeout (%s) must be shorter than sampling.interval (%s)", timeout, interval)
	}
	if c.Sampling.EscalateAfter < 1 {
		return fmt.Errorf("sampling.escalate_after must be at least 1, got %d", c.Sampling.EscalateAfter)
	}
	switch c.Sampling.Source {
	case collectors.SourceAuto, "procfs", "psutil":
	default:
		return fmt.Errorf("sampling.source must be 'auto', 'procfs' or 'psutil', got %q", c.Sampling.Source)
	}
	if c.Sampling.HistorySize < 1 {
		return fmt.Errorf("sampling.history_size must be at least 1, got %d", c.Sampling.HistorySize)
	}

	// Threshold validation
	if _, err := c.ThresholdValues(); err != nil {
		return err
	}

	// Log validation
	if c.Log.File == "" {
		return fmt.Errorf("log.file is required")
	}
	if c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("log.max_size_mb must be at least 1, got %d", c.Log.MaxSizeMB)
	}
	if c.Log.MaxBackups < 1 {
		return fmt.Errorf("log.max_backups must be at least 1, got %d", c.Log.MaxBackups)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required")
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("notify.queue_size must be at least 1, got %d", c.Notify.QueueSize)
	}

	// Display validation
	if _, err := parsePositiveDuration("display.refresh", c.Display.Refresh); err != nil {
		return err
	}
	if c.Display.ThresholdStep <= 0 || c.Display.ThresholdStep > 50 {
		return fmt.Errorf("display.threshold_step must be in (0, 50], got %g", c.Display.ThresholdStep)
	}

	return nil
}

// Interval returns the parsed sampling interval. Call Validate first.
func (c *Config) Interval() time.Duration {
	d, _ := time.ParseDuration(c.Sampling.Interval)
	return d
}

// Timeout returns the parsed per-call sampling timeout. Call Validate first.
func (c *Config) Timeout() time.Duration {
	d, _ := time.ParseDuration(c.Sampling.Timeout)
	return d
}

// Refresh returns the parsed dashboard refresh interval. Call Validate first.
func (c *Config) Refresh() time.Duration {
	d, _ := time.ParseDuration(c.Display.Refresh)
	return d
}

// ThresholdValues converts the thresholds section into a validated
// threshold.Values.
func (c *Config) ThresholdValues() (threshold.Values, error) {
	grace, err := time.ParseDuration(c.Thresholds.GracePeriod)
	if err != nil {
		return threshold.Values{}, fmt.Errorf("thresholds.grace_period: invalid duration %q: %w", c.Thresholds.GracePeriod, err)
	}
	v, err := threshold.NewValues(map[collectors.Metric]float64{
		collectors.MetricCPU:  c.Thresholds.CPU,
		collectors.MetricRAM:  c.Thresholds.RAM,
		collectors.MetricDisk: c.Thresholds.Disk,
		collectors.MetricTemp: c.Thresholds.Temp,
	}, grace)
	if err != nil {
		return threshold.Values{}, fmt.Errorf("thresholds: %w", err)
	}
	return v, nil
}

// SetThresholdValues copies v into the thresholds section.
func (c *Config) SetThresholdValues(v threshold.Values) {
	c.Thresholds.CPU = v.Threshold(collectors.MetricCPU)
	c.Thresholds.RAM = v.Threshold(collectors.MetricRAM)
	c.Thresholds.Disk = v.Threshold(collectors.MetricDisk)
	c.Thresholds.Temp = v.Threshold(collectors.MetricTemp)
	c.Thresholds.GracePeriod = v.Grace().String()
}

// LogLevel parses the log level name.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return l, nil
}

// StatusFile returns the path of the status handoff file.
func (c *Config) StatusFile() string {
	return filepath.Join(c.State.Dir, "status.json")
}

// PIDFile returns the path of the PID file.
func (c *Config) PIDFile() string {
	return filepath.Join(c.State.Dir, "host-pulse.pid")
}

// SaveConfig saves configuration to a YAML file.
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
