package collectors

import (
	"context"
	"errors"
	"testing"
)

// stubSource is a minimal Source implementation for registry tests.
type stubSource struct {
	name string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Sample(_ context.Context) (Sample, error) { return Sample{}, nil }

func TestRegistry_RegisterAll(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubSource{name: "procfs"})
	reg.Register(&stubSource{name: "psutil"})

	for _, want := range []string{"procfs", "psutil"} {
		got, ok := reg.Get(want)
		if !ok {
			t.Errorf("Get(%q) returned false, want true", want)
			continue
		}
		if got.Name() != want {
			t.Errorf("Get(%q).Name() = %q, want %q", want, got.Name(), want)
		}
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "procfs" || names[1] != "psutil" {
		t.Errorf("Names() = %v, want [procfs psutil]", names)
	}
}

func TestRegistry_ReplaceSameName(t *testing.T) {
	reg := NewRegistry()
	first := &stubSource{name: "procfs"}
	second := &stubSource{name: "procfs"}
	reg.Register(first)
	reg.Register(second)

	if n := len(reg.Names()); n != 1 {
		t.Fatalf("expected 1 source after replace, got %d", n)
	}
	got, _ := reg.Get("procfs")
	if got != second {
		t.Error("expected the second registration to replace the first")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubSource{name: "psutil"})
	reg.Register(&stubSource{name: "procfs"})

	tests := []struct {
		name      string
		request   string
		preferred []string
		want      string
		wantErr   error
	}{
		{"explicit", "psutil", nil, "psutil", nil},
		{"auto linux", SourceAuto, DefaultPreference("linux"), "procfs", nil},
		{"auto darwin", SourceAuto, DefaultPreference("darwin"), "psutil", nil},
		{"empty falls back to first", "", nil, "psutil", nil},
		{"unknown", "wmi", nil, "", ErrUnknownSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Resolve(tt.request, tt.preferred...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.request, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.request, err)
			}
			if got.Name() != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.request, got.Name(), tt.want)
			}
		})
	}
}

func TestRegistry_ResolveEmpty(t *testing.T) {
	_, err := NewRegistry().Resolve(SourceAuto)
	if !errors.Is(err, ErrNoUsableSource) {
		t.Errorf("expected ErrNoUsableSource, got %v", err)
	}
}
