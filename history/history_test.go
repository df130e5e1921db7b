package history

import (
	"sync"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func point(i int) Point {
	return Point{
		Timestamp: base.Add(time.Duration(i) * time.Second),
		CPU:       collectors.Present(float64(i)),
		RAM:       collectors.Present(float64(i) / 2),
	}
}

func TestNewCoercesCapacity(t *testing.T) {
	for _, c := range []int{-5, 0} {
		if got := New(c).Cap(); got != 1 {
			t.Errorf("New(%d).Cap() = %d, want 1", c, got)
		}
	}
}

func TestSnapshotEmpty(t *testing.T) {
	b := New(3)
	if s := b.Snapshot(); s != nil {
		t.Errorf("Snapshot() = %v, want nil", s)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d", b.Len())
	}
}

func TestAppendEvictsOldest(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appends  int
		wantFrom int
	}{
		{"under capacity", 5, 3, 0},
		{"exactly full", 5, 5, 0},
		{"one over", 5, 6, 1},
		{"many over", 5, 17, 12},
		{"capacity one", 1, 4, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.capacity)
			for i := range tt.appends {
				b.Append(point(i))
			}

			snap := b.Snapshot()
			wantLen := min(tt.appends, tt.capacity)
			if len(snap) != wantLen || b.Len() != wantLen {
				t.Fatalf("len = %d / Len() = %d, want %d", len(snap), b.Len(), wantLen)
			}
			for i, p := range snap {
				want := point(tt.wantFrom + i)
				if !p.Timestamp.Equal(want.Timestamp) || p.CPU != want.CPU {
					t.Errorf("snap[%d] = %+v, want %+v", i, p, want)
				}
			}
		})
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	b := New(3)
	b.Append(point(1))
	snap := b.Snapshot()
	snap[0].CPU = collectors.Present(999)

	b.Append(point(2))
	again := b.Snapshot()
	if again[0].CPU.Value != 1 {
		t.Errorf("buffer mutated through snapshot: %v", again[0].CPU)
	}
	if len(snap) != 1 {
		t.Errorf("earlier snapshot grew to %d", len(snap))
	}
}

func TestLast(t *testing.T) {
	b := New(10)
	for i := range 6 {
		b.Append(point(i))
	}
	got := b.Last(2)
	if len(got) != 2 || got[0].CPU.Value != 4 || got[1].CPU.Value != 5 {
		t.Errorf("Last(2) = %+v", got)
	}
	if len(b.Last(100)) != 6 {
		t.Error("Last(n > len) should return everything")
	}
}

func TestSeriesSkipsAbsent(t *testing.T) {
	b := New(5)
	b.Append(point(1))
	b.Append(Point{Timestamp: base.Add(2 * time.Second), CPU: collectors.Absent, RAM: collectors.Present(7)})
	b.Append(point(3))

	cpu := b.Series(collectors.MetricCPU)
	if len(cpu) != 2 || cpu[0] != 1 || cpu[1] != 3 {
		t.Errorf("cpu series = %v", cpu)
	}
	ram := b.Series(collectors.MetricRAM)
	if len(ram) != 3 || ram[1] != 7 {
		t.Errorf("ram series = %v", ram)
	}
	if disk := b.Series(collectors.MetricDisk); len(disk) != 0 {
		t.Errorf("disk is not charted, got %v", disk)
	}
}

func TestSeriesOfSnapshot(t *testing.T) {
	b := New(3)
	for i := 1; i <= 3; i++ {
		b.Append(point(i))
	}
	pts := b.Snapshot()
	b.Append(point(4))

	cpu := SeriesOf(pts, collectors.MetricCPU)
	ram := SeriesOf(pts, collectors.MetricRAM)
	if len(cpu) != 3 || len(ram) != 3 {
		t.Fatalf("series lengths = %d, %d, want 3, 3", len(cpu), len(ram))
	}
	if cpu[0] != 1 || ram[0] != 0.5 || cpu[2] != 3 || ram[2] != 1.5 {
		t.Errorf("series = %v, %v, want points 1..3", cpu, ram)
	}
}

func TestAppendSample(t *testing.T) {
	b := New(2)
	s := collectors.NewSample(base, collectors.Present(12), collectors.Absent,
		collectors.Present(50), collectors.Present(60))
	b.AppendSample(s)

	got := b.Snapshot()[0]
	if !got.Timestamp.Equal(base) || got.CPU.Value != 12 || got.RAM.Valid {
		t.Errorf("point = %+v", got)
	}
}

// TestConcurrentSnapshotNoTearing checks that every snapshot taken while a
// writer appends is a contiguous, strictly increasing run of the written
// sequence.
func TestConcurrentSnapshotNoTearing(t *testing.T) {
	const (
		capacity = 16
		writes   = 5000
		readers  = 4
	)
	b := New(capacity)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, readers)

	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := b.Snapshot()
				if len(snap) > capacity {
					errs <- "snapshot exceeds capacity"
					return
				}
				for i := 1; i < len(snap); i++ {
					if snap[i].CPU.Value != snap[i-1].CPU.Value+1 {
						errs <- "snapshot not contiguous"
						return
					}
				}
			}
		}()
	}

	for i := range writes {
		b.Append(point(i))
	}
	close(stop)
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
	if b.Len() != capacity {
		t.Errorf("Len() = %d, want %d", b.Len(), capacity)
	}
	last := b.Snapshot()[capacity-1]
	if last.CPU.Value != writes-1 {
		t.Errorf("newest = %v, want %d", last.CPU.Value, writes-1)
	}
}
