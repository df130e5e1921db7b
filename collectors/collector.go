// Package collectors defines the metric source interface and the sample
// model shared by the sampling engine. Concrete sources live in
// subpackages (sysmetrics for /proc on Linux, psutil for gopsutil).
package collectors

import (
	"context"
	"fmt"
	"runtime"
	"sort"
)

// Source is the interface that all metric sources must implement.
// A source reads instantaneous CPU, RAM, Disk and temperature values.
type Source interface {
	// Name returns the source's unique identifier (e.g., "procfs", "psutil").
	Name() string

	// Sample reads every metric once. Per-field failures are reported as
	// absent readings plus a warning on the Sample; an error return means
	// the whole sample failed and the tick should be skipped.
	// The context should be respected for cancellation.
	Sample(ctx context.Context) (Sample, error)
}

// Primer is implemented by sources that need a warm-up read before their
// first sample (for example to seed CPU tick counters). Prime returns an
// error wrapping ErrNoUsableSource if nothing can be read at all.
type Primer interface {
	Prime(ctx context.Context) error
}

// SourceAuto selects the best registered source for the running OS.
const SourceAuto = "auto"

// Registry holds registered sources and resolves the configured one.
type Registry struct {
	sources []Source
}

// NewRegistry creates a new empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make([]Source, 0),
	}
}

// Register adds a source to the registry.
// If a source with the same name already exists, it is replaced.
func (r *Registry) Register(s Source) {
	for i, existing := range r.sources {
		if existing.Name() == s.Name() {
			r.sources[i] = s
			return
		}
	}
	r.sources = append(r.sources, s)
}

// Get returns a source by name. The second return value indicates
// whether the source was found.
func (r *Registry) Get(name string) (Source, bool) {
	for _, s := range r.sources {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	sort.Strings(names)
	return names
}

// Resolve returns the source for name. SourceAuto (or "") prefers the
// first entry of preferred that is registered, falling back to the first
// registered source.
func (r *Registry) Resolve(name string, preferred ...string) (Source, error) {
	if name != "" && name != SourceAuto {
		if s, ok := r.Get(name); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownSource, name, r.Names())
	}
	for _, p := range preferred {
		if s, ok := r.Get(p); ok {
			return s, nil
		}
	}
	if len(r.sources) == 0 {
		return nil, fmt.Errorf("%w: registry is empty", ErrNoUsableSource)
	}
	return r.sources[0], nil
}

// DefaultPreference returns the auto-selection order for goos.
// The procfs reader is preferred on Linux; gopsutil everywhere else.
func DefaultPreference(goos string) []string {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos == "linux" {
		return []string{"procfs", "psutil"}
	}
	return []string{"psutil"}
}
