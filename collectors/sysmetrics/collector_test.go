package sysmetrics

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// stringReadCloser wraps a strings.Reader to implement io.ReadCloser.
type stringReadCloser struct {
	*strings.Reader
}

func (s *stringReadCloser) Close() error { return nil }

func newReadCloser(content string) io.ReadCloser {
	return &stringReadCloser{strings.NewReader(content)}
}

const (
	statFirst  = "cpu  100 0 100 700 100 0 0 0\ncpu0 50 0 50 350 50 0 0 0\n"
	statSecond = "cpu  300 0 200 1100 200 0 0 0\ncpu0 150 0 100 550 100 0 0 0\n"
	meminfo    = "MemTotal:       16000000 kB\nMemFree:         1000000 kB\nMemAvailable:    4000000 kB\n"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 0.01 }

// newTestSource returns a Source whose readers serve the given /proc/stat
// contents in order, fixed meminfo, a 75% full disk and the given sysfs.
func newTestSource(t *testing.T, stats []string, sysfs fstest.MapFS) *Source {
	t.Helper()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSource(nil, WithClock(func() time.Time { return ts }), WithDiskPath("/data"))

	call := 0
	s.openProcStat = func() (io.ReadCloser, error) {
		if call >= len(stats) {
			return nil, os.ErrNotExist
		}
		c := stats[call]
		call++
		return newReadCloser(c), nil
	}
	s.openProcMeminfo = func() (io.ReadCloser, error) {
		return newReadCloser(meminfo), nil
	}
	s.statfsFunc = func(path string) (diskStat, error) {
		if path != "/data" {
			t.Errorf("statfs path = %q, want /data", path)
		}
		return diskStat{Blocks: 1000, Free: 250, Avail: 250}, nil
	}
	s.sysFS = sysfs
	return s
}

func TestReadCPU(t *testing.T) {
	s := newTestSource(t, []string{statFirst, statSecond}, nil)

	// First reading seeds the counters and reports unavailable.
	if _, err := s.readCPU(); err == nil {
		t.Fatal("expected warming-up error on first read")
	}

	// Second reading: delta total=800, delta idle(+iowait)=500 -> 37.5%.
	pct, err := s.readCPU()
	if err != nil {
		t.Fatalf("readCPU: %v", err)
	}
	if !approx(pct, 37.5) {
		t.Errorf("cpu = %.2f, want 37.5", pct)
	}
}

func TestReadCPUCountersBackwards(t *testing.T) {
	s := newTestSource(t, []string{statSecond, statFirst}, nil)
	_, _ = s.readCPU()
	if _, err := s.readCPU(); err == nil {
		t.Error("expected error when counters go backwards")
	}
}

func TestReadRAM(t *testing.T) {
	s := newTestSource(t, nil, nil)
	pct, err := s.readRAM()
	if err != nil {
		t.Fatalf("readRAM: %v", err)
	}
	if !approx(pct, 75.0) {
		t.Errorf("ram = %.2f, want 75", pct)
	}
}

func TestReadRAMMissingAvailable(t *testing.T) {
	s := newTestSource(t, nil, nil)
	s.openProcMeminfo = func() (io.ReadCloser, error) {
		return newReadCloser("MemTotal: 100 kB\n"), nil
	}
	if _, err := s.readRAM(); err == nil {
		t.Error("expected error when MemAvailable is missing")
	}
}

func TestReadDisk(t *testing.T) {
	s := newTestSource(t, nil, nil)
	pct, err := s.readDisk()
	if err != nil {
		t.Fatalf("readDisk: %v", err)
	}
	if !approx(pct, 75.0) {
		t.Errorf("disk = %.2f, want 75", pct)
	}
}

func TestSampleTemperatureUnavailableIsAbsent(t *testing.T) {
	s := newTestSource(t, []string{statFirst, statSecond}, fstest.MapFS{})

	if err := s.Prime(context.Background()); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	sample, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}

	if !sample.CPU().Valid || !approx(sample.CPU().Value, 37.5) {
		t.Errorf("cpu = %v, want 37.5", sample.CPU())
	}
	if !sample.RAM().Valid || !sample.Disk().Valid {
		t.Error("ram and disk should be present")
	}
	if sample.Temp().Valid {
		t.Error("temp should be absent without sensors")
	}
	warnings := sample.Warnings()
	if len(warnings) != 1 || !strings.HasPrefix(warnings[0], "temp: ") {
		t.Errorf("warnings = %v, want one temp warning", warnings)
	}
}

func TestSampleWithoutPrimeHasNoCPU(t *testing.T) {
	s := newTestSource(t, []string{statFirst}, fstest.MapFS{})
	sample, err := s.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if sample.CPU().Valid {
		t.Error("cpu should be absent while counters warm up")
	}
}

func TestSampleAllUnavailableFails(t *testing.T) {
	s := newTestSource(t, nil, fstest.MapFS{})
	s.openProcMeminfo = func() (io.ReadCloser, error) { return nil, os.ErrPermission }
	s.statfsFunc = func(string) (diskStat, error) { return diskStat{}, os.ErrPermission }

	if _, err := s.Sample(context.Background()); err == nil {
		t.Fatal("expected error when nothing is readable")
	}
	if err := s.Prime(context.Background()); !errors.Is(err, collectors.ErrNoUsableSource) {
		t.Errorf("Prime error = %v, want ErrNoUsableSource", err)
	}
}

func TestSampleCancelledContext(t *testing.T) {
	s := newTestSource(t, []string{statFirst}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sample(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestReadTemperature(t *testing.T) {
	tests := []struct {
		name    string
		fs      fstest.MapFS
		want    float64
		wantErr bool
	}{
		{
			name:    "no sensors",
			fs:      fstest.MapFS{},
			wantErr: true,
		},
		{
			name: "prefers cpu labelled hwmon sensor",
			fs: fstest.MapFS{
				"class/hwmon/hwmon0/name":        {Data: []byte("nvme\n")},
				"class/hwmon/hwmon0/temp1_input": {Data: []byte("38000\n")},
				"class/hwmon/hwmon1/name":        {Data: []byte("acpitz\n")},
				"class/hwmon/hwmon1/temp1_input": {Data: []byte("41000\n")},
				"class/hwmon/hwmon1/temp2_input": {Data: []byte("55500\n")},
				"class/hwmon/hwmon1/temp2_label": {Data: []byte("Package id 0\n")},
			},
			want: 55.5,
		},
		{
			name: "prefers cpu chip name",
			fs: fstest.MapFS{
				"class/hwmon/hwmon0/name":        {Data: []byte("nvme\n")},
				"class/hwmon/hwmon0/temp1_input": {Data: []byte("38000\n")},
				"class/hwmon/hwmon2/name":        {Data: []byte("k10temp\n")},
				"class/hwmon/hwmon2/temp1_input": {Data: []byte("61250\n")},
			},
			want: 61.25,
		},
		{
			name: "falls back to first hwmon sensor",
			fs: fstest.MapFS{
				"class/hwmon/hwmon0/name":        {Data: []byte("nvme\n")},
				"class/hwmon/hwmon0/temp1_input": {Data: []byte("38000\n")},
			},
			want: 38,
		},
		{
			name: "thermal zone fallback",
			fs: fstest.MapFS{
				"class/thermal/thermal_zone0/type": {Data: []byte("acpitz\n")},
				"class/thermal/thermal_zone0/temp": {Data: []byte("30000\n")},
				"class/thermal/thermal_zone1/type": {Data: []byte("x86_pkg_temp\n")},
				"class/thermal/thermal_zone1/temp": {Data: []byte("47000\n")},
			},
			want: 47,
		},
		{
			name: "unparseable sensor",
			fs: fstest.MapFS{
				"class/hwmon/hwmon0/temp1_input": {Data: []byte("garbage\n")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readTemperature(tt.fs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("readTemperature: %v", err)
			}
			if !approx(got, tt.want) {
				t.Errorf("temperature = %.2f, want %.2f", got, tt.want)
			}
		})
	}
}

func TestParseMemInfoLine(t *testing.T) {
	v, err := parseMemInfoLine("MemTotal:       16384000 kB")
	if err != nil || v != 16384000 {
		t.Errorf("parseMemInfoLine = %d, %v", v, err)
	}
	if _, err := parseMemInfoLine("MemTotal:"); err == nil {
		t.Error("expected error for short line")
	}
}
