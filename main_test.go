package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/host-pulse/config"
)

func TestLoadConfig_Missing(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Sampling.Interval != "2s" {
		t.Errorf("expected defaults, got interval %q", cfg.Sampling.Interval)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "sampling: [", "load config"},
		{"bad value", "thresholds:\n  cpu: 150\n", "invalid config"},
		{"bad duration", "sampling:\n  interval: soon\n", "sampling.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := loadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("loadConfig = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoggingConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "info"
	var console bytes.Buffer

	tests := []struct {
		name        string
		ui          bool
		verbose     bool
		wantConsole bool
		wantLevel   slog.Level
	}{
		{"headless", false, false, true, slog.LevelInfo},
		{"headless verbose", false, true, true, slog.LevelDebug},
		{"dashboard", true, false, false, 0},
		{"dashboard verbose", true, true, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := loggingConfig(cfg, tt.ui, tt.verbose, &console)
			if lc.File != cfg.Log.File {
				t.Errorf("File = %q, want %q", lc.File, cfg.Log.File)
			}
			if lc.FileLevel != slog.LevelInfo {
				t.Errorf("FileLevel = %v, want INFO", lc.FileLevel)
			}
			if lc.MaxSizeMB != 5 || lc.MaxBackups != 5 {
				t.Errorf("rotation = %d MB x %d, want 5 x 5", lc.MaxSizeMB, lc.MaxBackups)
			}
			if (lc.Console != nil) != tt.wantConsole {
				t.Errorf("Console set = %v, want %v", lc.Console != nil, tt.wantConsole)
			}
			if tt.wantConsole && lc.ConsoleLevel != tt.wantLevel {
				t.Errorf("ConsoleLevel = %v, want %v", lc.ConsoleLevel, tt.wantLevel)
			}
		})
	}
}
