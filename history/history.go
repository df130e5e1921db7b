// Package history keeps a bounded, time-ordered record of recent CPU and RAM
// readings for charting. The sampler appends; any number of readers take
// independent snapshots concurrently.
package history

import (
	"sync"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// DefaultCapacity is the number of points kept when none is configured.
const DefaultCapacity = 60

// Point is one charted sample.
type Point struct {
	Timestamp time.Time          `json:"timestamp"`
	CPU       collectors.Reading `json:"cpu"`
	RAM       collectors.Reading `json:"ram"`
}

// PointFrom extracts the charted fields of s.
func PointFrom(s collectors.Sample) Point {
	return Point{Timestamp: s.Timestamp(), CPU: s.CPU(), RAM: s.RAM()}
}

// Reading returns the point's reading for m. Only CPU and RAM are charted;
// other metrics are always absent.
func (p Point) Reading(m collectors.Metric) collectors.Reading {
	switch m {
	case collectors.MetricCPU:
		return p.CPU
	case collectors.MetricRAM:
		return p.RAM
	default:
		return collectors.Absent
	}
}

// Buffer is a fixed-capacity ring of Points. The oldest point is evicted
// when a new one arrives at capacity.
type Buffer struct {
	mu    sync.Mutex
	data  []Point
	head  int // next write position
	count int
}

// New creates a Buffer holding at most capacity points. Capacity below 1 is
// treated as 1.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]Point, capacity)}
}

// Append adds p as the newest point.
func (b *Buffer) Append(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = p
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// AppendSample appends the charted fields of s.
func (b *Buffer) AppendSample(s collectors.Sample) {
	b.Append(PointFrom(s))
}

// Snapshot returns all points oldest first. The returned slice is a copy
// owned by the caller.
func (b *Buffer) Snapshot() []Point {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	out := make([]Point, b.count)
	if b.count < len(b.data) {
		copy(out, b.data[:b.count])
		return out
	}
	n := copy(out, b.data[b.head:])
	copy(out[n:], b.data[:b.head])
	return out
}

// Last returns up to n of the most recent points, oldest first.
func (b *Buffer) Last(n int) []Point {
	all := b.Snapshot()
	if n < 0 || len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// Series returns the values of m across the snapshot, oldest first, with
// absent readings skipped.
func (b *Buffer) Series(m collectors.Metric) []float64 {
	return SeriesOf(b.Snapshot(), m)
}

// SeriesOf returns the values of m in pts with absent readings skipped.
// Deriving several series from one snapshot keeps them aligned.
func SeriesOf(pts []Point, m collectors.Metric) []float64 {
	out := make([]float64, 0, len(pts))
	for _, p := range pts {
		if r := p.Reading(m); r.Valid {
			out = append(out, r.Value)
		}
	}
	return out
}

// Len returns the number of stored points.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the fixed capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}
