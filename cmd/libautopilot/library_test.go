package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/bridge"
	"github.com/wippyai/autopilot-bridge/config"
	"github.com/wippyai/autopilot-bridge/guest"
)

func TestLengthsOf(t *testing.T) {
	tests := []struct {
		name        string
		wavelengths int32
		planes      int32
		want        lengths
	}{
		{"one by one", 1, 1, lengths{state: 10, observations: 10, sync: 1}},
		{"two by three", 2, 3, lengths{state: 60, observations: 60, sync: 6}},
		{"zero planes", 2, 0, lengths{}},
		{"negative", -1, 4, lengths{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lengthsOf(tt.wavelengths, tt.planes); got != tt.want {
				t.Errorf("lengthsOf(%d, %d) = %+v, want %+v", tt.wavelengths, tt.planes, got, tt.want)
			}
		})
	}

	if imageLength(4, 3) != 12 || imageLength(0, 3) != 0 {
		t.Error("imageLength")
	}
}

func TestLibrary_BeginFromEnv(t *testing.T) {
	b, err := guest.WriteBundle(t.TempDir(), "", guest.RuntimeOptions{}, guest.ClassOptions{})
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvRuntime, b.RuntimePath)
	t.Setenv(config.EnvBundle, b.BundleDir)

	l := newLibrary()
	defer l.bridge.Close()

	if code := l.begin("", ""); code != autopilot.CodeOK {
		t.Fatalf("begin = %d (%s)", code, l.bridge.LastError())
	}
	if got := l.bridge.LastError(); got != bridge.NoError {
		t.Errorf("LastError = %q", got)
	}

	n := lengthsOf(1, 1)
	newState := make([]float64, n.state)
	status := l.bridge.L2SolveSSP(false, false, 1, 1, 0,
		make([]float64, n.state), make([]float64, n.observations), make([]bool, n.observations), newState)
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if newState[0] != 1 {
		t.Errorf("newState[0] = %v, want 1", newState[0])
	}

	if code := l.bridge.End(); code != 0 {
		t.Errorf("End = %d", code)
	}
}

func TestLibrary_BrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autopilot.yaml")
	if err := os.WriteFile(path, []byte("runtime: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvConfig, path)
	t.Setenv(config.EnvRuntime, filepath.Join(t.TempDir(), "absent.wasm"))
	t.Setenv(config.EnvBundle, "")

	l := newLibrary()
	defer l.bridge.Close()

	if code := l.begin("", ""); code != autopilot.CodeLibraryNotFound {
		t.Errorf("begin = %d, want %d", code, autopilot.CodeLibraryNotFound)
	}
	if got := l.bridge.LastError(); got != bridge.MsgLibraryNotFound {
		t.Errorf("LastError = %q", got)
	}
}
