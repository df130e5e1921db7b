// host-pulse samples host resource metrics and raises debounced alerts.
//
// It reads CPU, RAM, disk and CPU temperature at a fixed interval, keeps a
// short history for charting and raises an alert once a metric has stayed
// above its threshold for the grace period. Diagnostics go to a rotating
// log file. With -tui it shows an interactive dashboard whose sliders
// adjust the thresholds live.
//
// Usage:
//
//	host-pulse [flags]
//
// Flags:
//
//	-config string    Path to configuration file (default: ~/.config/host-pulse/config.yaml)
//	-tui              Launch the interactive dashboard
//	-health           Check whether a running instance is sampling
//	-json             Output health check as JSON (with -health)
//	-write-config     Write the effective configuration to -config and exit
//	-verbose          Log DEBUG records to the console as well
//	-man              Print man page to stdout in roff format
//	-version          Print version and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/x/term"

	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/config"
	"gitlab.com/tinyland/lab/host-pulse/docs/manpage"
	"gitlab.com/tinyland/lab/host-pulse/logging"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file (default: ~/.config/host-pulse/config.yaml)")
		runTUI      = flag.Bool("tui", false, "Launch the interactive dashboard")
		runHealth   = flag.Bool("health", false, "Check whether a running instance is sampling")
		healthJSON  = flag.Bool("json", false, "Output health check as JSON (with -health)")
		writeConfig = flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
		verbose     = flag.Bool("verbose", false, "Log DEBUG records to the console as well")
		showMan     = flag.Bool("man", false, "Print man page to stdout in roff format")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("host-pulse %s (%s) built %s\n", version, commit, date)
		os.Exit(0)
	}

	if *showMan {
		fmt.Print(manpage.Generate(flag.CommandLine, version, commit, date))
		os.Exit(0)
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := loadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "host-pulse: %v\n", err)
		os.Exit(1)
	}

	if *writeConfig {
		if err := config.SaveConfig(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "host-pulse: write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		os.Exit(0)
	}

	if *runHealth {
		store, err := cache.NewStore(cfg.State.Dir, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "host-pulse: %v\n", err)
			os.Exit(1)
		}
		os.Exit(checkHealth(store, cfg.Interval(), *healthJSON, os.Stdout, os.Stderr, time.Now()))
	}

	ui := *runTUI
	if ui && !term.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(os.Stderr, "host-pulse: -tui needs a terminal, running headless")
		ui = false
	}

	logger, err := logging.New(loggingConfig(cfg, ui, *verbose, os.Stderr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "host-pulse: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				if err := logger.Rotate(); err != nil {
					logger.Warn("log rotation failed", "error", err)
				}
				continue
			}
			logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		}
	}()

	d, err := newDaemon(cfg, path, logger.Logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		fmt.Fprintf(os.Stderr, "host-pulse: %v\n", err)
		os.Exit(1)
	}

	if err := d.run(ctx, ui); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("host-pulse exited", "error", err)
		logger.Close()
		fmt.Fprintf(os.Stderr, "host-pulse: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration at path. A missing file
// yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// loggingConfig maps the log section to a logging.Config. The console
// handler is only attached in headless mode, where it would otherwise be
// hidden by the dashboard.
func loggingConfig(cfg *config.Config, ui, verbose bool, console io.Writer) logging.Config {
	level, _ := cfg.LogLevel()
	lc := logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		FileLevel:  level,
	}
	if !ui {
		lc.Console = console
		lc.ConsoleLevel = slog.LevelInfo
		if verbose {
			lc.ConsoleLevel = slog.LevelDebug
		}
	}
	return lc
}
