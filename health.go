package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/cache"
	"gitlab.com/tinyland/lab/host-pulse/sampler"
	"gitlab.com/tinyland/lab/host-pulse/status"
)

// HealthStatus is the -health output.
type HealthStatus struct {
	Status     string                   `json:"status"`
	Overall    string                   `json:"overall,omitempty"`
	Source     string                   `json:"source,omitempty"`
	Error      string                   `json:"error,omitempty"`
	LastTick   time.Time                `json:"last_tick,omitzero"`
	Age        string                   `json:"age,omitempty"`
	Stale      bool                     `json:"stale"`
	Components []status.ComponentStatus `json:"components,omitempty"`
}

// readStatus loads the latest sampler report from the state directory.
func readStatus(store *cache.Store) (*sampler.Report, error) {
	// Freshness is judged by the caller from UpdatedAt, not file age.
	rep, _, err := cache.GetTyped[sampler.Report](store, sampler.ReportKey, 0)
	if err != nil {
		return nil, fmt.Errorf("read status file: %w", err)
	}
	if rep == nil {
		return nil, fmt.Errorf("no status file in %s", store.Dir())
	}
	return rep, nil
}

// evaluateHealth judges a report. A report older than twice the sampling
// interval is stale.
func evaluateHealth(rep *sampler.Report, interval time.Duration, now time.Time) HealthStatus {
	age := now.Sub(rep.UpdatedAt)
	h := HealthStatus{
		Status:     "ok",
		Overall:    rep.Status.Overall.String(),
		Source:     rep.Source,
		Error:      rep.Error,
		LastTick:   rep.UpdatedAt,
		Age:        age.Round(time.Second).String(),
		Stale:      age > 2*interval,
		Components: rep.Status.Components,
	}
	switch {
	case h.Stale:
		h.Status = "stale"
	case rep.Error != "":
		h.Status = "degraded"
	}
	return h
}

// checkHealth reports whether a running instance is sampling. Returns exit
// code 0 when the latest report is fresh and 1 when it is stale or missing.
// Alerts do not make the check fail.
func checkHealth(store *cache.Store, interval time.Duration, jsonOutput bool, stdout, stderr io.Writer, now time.Time) int {
	rep, err := readStatus(store)
	if err != nil {
		if jsonOutput {
			writeJSON(stdout, HealthStatus{Status: "missing", Error: err.Error()})
		} else {
			fmt.Fprintf(stderr, "host-pulse not running (%v)\n", err)
		}
		return 1
	}

	h := evaluateHealth(rep, interval, now)
	if jsonOutput {
		writeJSON(stdout, h)
	} else if h.Stale {
		fmt.Fprintf(stderr, "host-pulse stale (last tick %s ago, threshold %s)\n", h.Age, 2*interval)
	} else {
		fmt.Fprintf(stdout, "host-pulse %s: %s via %s (last tick %s ago)\n", h.Status, h.Overall, h.Source, h.Age)
		for _, c := range h.Components {
			fmt.Fprintf(stdout, "  %-6s %-8s %s\n", c.Component, c.Level, c.Reason)
		}
		if h.Error != "" {
			fmt.Fprintf(stdout, "  last error: %s\n", h.Error)
		}
	}

	if h.Stale {
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
