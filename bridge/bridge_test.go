package bridge

import (
	"fmt"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/errors"
	"github.com/wippyai/autopilot-bridge/guest"
)

func writeBundle(t *testing.T, ropts guest.RuntimeOptions, copts guest.ClassOptions) guest.Bundle {
	t.Helper()
	b, err := guest.WriteBundle(t.TempDir(), autopilot.DefaultClass, ropts, copts)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func started(t *testing.T, opts ...autopilot.Option) *Bridge {
	t.Helper()
	bundle := writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{})
	b := New(nil, opts...)
	if code := b.Begin(bundle.RuntimePath, bundle.BundleDir); code != 0 {
		t.Fatalf("Begin = %d: %s", code, b.LastError())
	}
	t.Cleanup(func() { b.Close() })
	return b
}

type vectors struct {
	old, obs, maxCorr, newState []float64
	missing, sync                []bool
}

func newVectors(w, p int) vectors {
	state := autopilot.StateVectorLength(w, p)
	obs := autopilot.ObservationVectorLength(w, p)
	v := vectors{
		old:      make([]float64, state),
		obs:      make([]float64, obs),
		maxCorr:  make([]float64, state),
		newState: make([]float64, state),
		missing:  make([]bool, obs),
		sync:     make([]bool, autopilot.SyncPlaneLength(w, p)),
	}
	for i := range v.old {
		v.old[i] = float64(i) * 0.5
		v.maxCorr[i] = 2
	}
	return v
}

func TestBegin_Codes(t *testing.T) {
	tests := []struct {
		name  string
		ropts guest.RuntimeOptions
		copts guest.ClassOptions
		code  int
		msg   string
	}{
		{"ok", guest.RuntimeOptions{}, guest.ClassOptions{}, 0, NoError},
		{"no allocator", guest.RuntimeOptions{NoAllocator: true}, guest.ClassOptions{}, 2, MsgEntryPointMissing},
		{"start traps", guest.RuntimeOptions{TrapOnStart: true}, guest.ClassOptions{}, 3, MsgRuntimeCreation},
		{"own memory", guest.RuntimeOptions{}, guest.ClassOptions{OwnMemory: true}, 4, MsgClassNotFound},
		{"no qpsolve", guest.RuntimeOptions{}, guest.ClassOptions{Omit: []string{"qpsolve"}}, 5, MsgMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle := writeBundle(t, tt.ropts, tt.copts)
			b := New(nil)
			defer b.Close()

			if code := b.Begin(bundle.RuntimePath, bundle.BundleDir); code != tt.code {
				t.Fatalf("Begin = %d, want %d (%v)", code, tt.code, b.LastCause())
			}
			if got := b.LastError(); got != tt.msg {
				t.Errorf("LastError = %q, want %q", got, tt.msg)
			}
		})
	}

	b := New(nil)
	if code := b.Begin(filepath.Join(t.TempDir(), "missing.wasm"), t.TempDir()); code != 1 {
		t.Errorf("missing runtime: Begin = %d, want 1", code)
	}
	if got := b.LastError(); got != MsgLibraryNotFound {
		t.Errorf("LastError = %q", got)
	}
	if errors.KindOf(b.LastCause()) != errors.KindLibraryNotFound {
		t.Errorf("LastCause = %v", b.LastCause())
	}
}

func TestBegin_WhileRunning(t *testing.T) {
	b := started(t)
	bundle := writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{})

	if code := b.Begin(bundle.RuntimePath, bundle.BundleDir); code != autopilot.CodeRuntimeCreation {
		t.Errorf("second Begin = %d, want %d", code, autopilot.CodeRuntimeCreation)
	}
	if got := b.LastError(); got != MsgAlreadyRunning {
		t.Errorf("LastError = %q", got)
	}

	if code := b.End(); code != 0 {
		t.Fatalf("End = %d", code)
	}
	if code := b.Begin(bundle.RuntimePath, bundle.BundleDir); code != 0 {
		t.Errorf("Begin after End = %d, want 0", code)
	}
}

func TestLastError_NoError(t *testing.T) {
	b := New(nil)
	if got := b.LastError(); got != NoError {
		t.Errorf("fresh bridge: %q", got)
	}
	b = started(t)
	if got := b.LastError(); got != NoError {
		t.Errorf("started bridge: %q", got)
	}
	if _, ok := b.LastExceptionMessage(); ok {
		t.Error("no exception should be pending")
	}
}

func TestFocus(t *testing.T) {
	b := started(t)
	samples := []int16{10, 20, 30, 40}

	if got := b.DCTS16Bit(samples, 2, 2, 3); got != 75 {
		t.Errorf("DCTS16Bit = %v, want 75", got)
	}
	if got := b.Tenengrad16Bit(samples, 2, 2, 3); got != 11 {
		t.Errorf("Tenengrad16Bit = %v, want 11", got)
	}

	if got := b.DCTS16Bit(samples, 3, 2, 3); got != FocusFailure {
		t.Errorf("wrong sample count: %v, want %v", got, FocusFailure)
	}
	if got := b.LastError(); got != MsgDCTS {
		t.Errorf("LastError = %q", got)
	}

	if got := b.Tenengrad16Bit(nil, 0, 2, 3); got != FocusFailure {
		t.Errorf("zero width: %v, want %v", got, FocusFailure)
	}
	// the class raised; its message wins over the local one
	if got := b.LastError(); got != guest.WidthMessage {
		t.Errorf("LastError = %q", got)
	}
}

func TestSolvers(t *testing.T) {
	b := started(t)

	t.Run("ssp", func(t *testing.T) {
		v := newVectors(2, 1)
		if st := b.L2SolveSSP(true, false, 2, 1, 0, v.old, v.obs, v.missing, v.newState); st != 0 {
			t.Fatalf("status = %d: %s", st, b.LastError())
		}
		for i := range v.newState {
			if v.newState[i] != v.old[i]+1 {
				t.Fatalf("newState[%d] = %v", i, v.newState[i])
			}
		}
	})

	t.Run("multi", func(t *testing.T) {
		v := newVectors(2, 1)
		v.sync[0] = true
		if st := b.L2Solve(false, false, 2, 1, v.sync, v.old, v.obs, v.missing, v.newState); st != guest.MultiStatusBase+1 {
			t.Errorf("status = %d, want %d", st, guest.MultiStatusBase+1)
		}
	})

	t.Run("qp", func(t *testing.T) {
		v := newVectors(1, 1)
		v.missing[2] = true
		if st := b.QPSolve(false, true, 1, 1, v.sync, v.old, v.obs, v.missing, v.maxCorr, v.newState); st != guest.QPStatusBase+1 {
			t.Fatalf("status = %d, want %d", st, guest.QPStatusBase+1)
		}
		if v.newState[3] != v.old[3]+2 {
			t.Errorf("newState[3] = %v", v.newState[3])
		}
	})

	t.Run("remote exception", func(t *testing.T) {
		v := newVectors(0, 1)
		if st := b.L2Solve(false, false, 0, 1, v.sync, v.old, v.obs, v.missing, v.newState); st != SolveFailure {
			t.Fatalf("status = %d, want %d", st, SolveFailure)
		}
		// idempotent until the next operation
		for i := 0; i < 2; i++ {
			if got := b.LastError(); got != guest.WavelengthsMessage {
				t.Errorf("LastError #%d = %q", i, got)
			}
		}
		if msg, ok := b.LastExceptionMessage(); !ok || msg != guest.WavelengthsMessage {
			t.Errorf("LastExceptionMessage = %q, %v", msg, ok)
		}

		if got := b.Tenengrad16Bit([]int16{1}, 1, 1, 0); got != 2 {
			t.Fatalf("Tenengrad16Bit = %v", got)
		}
		if got := b.LastError(); got != NoError {
			t.Errorf("after a successful call LastError = %q", got)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		v := newVectors(2, 1)
		if st := b.QPSolve(false, false, 2, 1, v.sync, v.old, v.obs, v.missing, v.maxCorr[:3], v.newState); st != SolveFailure {
			t.Fatalf("status = %d", st)
		}
		if got := b.LastError(); got != MsgQPSolve {
			t.Errorf("LastError = %q", got)
		}
		b.ClearError()
		if got := b.LastError(); got != NoError {
			t.Errorf("after ClearError: %q", got)
		}
	})
}

func TestLastError_LocalFailureAfterRemoteException(t *testing.T) {
	b := started(t)

	v := newVectors(0, 1)
	if st := b.L2Solve(false, false, 0, 1, v.sync, v.old, v.obs, v.missing, v.newState); st != SolveFailure {
		t.Fatalf("status = %d, want %d", st, SolveFailure)
	}
	if got := b.LastError(); got != guest.WavelengthsMessage {
		t.Fatalf("LastError = %q", got)
	}

	// rejected before the class runs, so its stale exception must not show
	if got := b.DCTS16Bit([]int16{1, 2, 3}, 2, 2, 1); got != FocusFailure {
		t.Fatalf("DCTS16Bit = %v, want %v", got, FocusFailure)
	}
	if got := b.LastError(); got != MsgDCTS {
		t.Errorf("LastError = %q, want %q", got, MsgDCTS)
	}
	if errors.KindOf(b.LastCause()) != errors.KindLengthMismatch {
		t.Errorf("LastCause = %v", b.LastCause())
	}

	// the exception is still pending in the class and can be asked for
	if msg, ok := b.LastExceptionMessage(); !ok || msg != guest.WavelengthsMessage {
		t.Errorf("LastExceptionMessage = %q, %v", msg, ok)
	}

	b.SetLoggingOptions(true, false)
	if got := b.LastError(); got != guest.WavelengthsMessage {
		t.Errorf("after setLoggingOptions LastError = %q", got)
	}

	if code := b.End(); code != 0 {
		t.Fatalf("End = %d", code)
	}
	if st := b.L2SolveSSP(false, false, 1, 1, 0, v.old, v.obs, v.missing, v.newState); st != SolveFailure {
		t.Fatalf("L2SolveSSP after End = %d", st)
	}
	if got := b.LastError(); got != MsgL2Solve {
		t.Errorf("after End LastError = %q, want %q", got, MsgL2Solve)
	}
}

func TestNotStarted(t *testing.T) {
	b := New(nil)
	v := newVectors(1, 1)

	if got := b.DCTS16Bit([]int16{1}, 1, 1, 1); got != FocusFailure {
		t.Errorf("DCTS16Bit = %v", got)
	}
	if st := b.L2SolveSSP(false, false, 1, 1, 0, v.old, v.obs, v.missing, v.newState); st != SolveFailure {
		t.Errorf("L2SolveSSP = %d", st)
	}
	if got := b.LastError(); got != MsgL2Solve {
		t.Errorf("LastError = %q", got)
	}
	b.SetLoggingOptions(true, true)
	if got := b.LastError(); got != MsgLoggingOptions {
		t.Errorf("LastError = %q", got)
	}
	if errors.KindOf(b.LastCause()) != errors.KindNotStarted {
		t.Errorf("LastCause = %v", b.LastCause())
	}
	if code := b.End(); code != 0 {
		t.Errorf("End on idle bridge = %d", code)
	}
}

func TestEnd(t *testing.T) {
	for _, teardown := range []bool{false, true} {
		t.Run(fmt.Sprintf("teardown=%v", teardown), func(t *testing.T) {
			b := started(t, autopilot.WithTeardownOnStop(teardown))
			if code := b.End(); code != 0 {
				t.Fatalf("End = %d", code)
			}
			if code := b.End(); code != 0 {
				t.Fatalf("second End = %d", code)
			}
			if got := b.DCTS16Bit([]int16{1}, 1, 1, 1); got != FocusFailure {
				t.Errorf("call after End = %v", got)
			}
		})
	}
}

func TestCatch(t *testing.T) {
	b := New(nil)
	var out float64
	func() {
		defer catch(b, MsgDCTS, &out, FocusFailure)
		panic("boom")
	}()
	if out != FocusFailure {
		t.Errorf("out = %v", out)
	}
	if b.lastErr != MsgDCTS || b.lastCause == nil {
		t.Errorf("lastErr = %q, cause = %v", b.lastErr, b.lastCause)
	}
}

func TestConcurrentOperations(t *testing.T) {
	b := started(t)

	var g errgroup.Group
	for i := 0; i < 6; i++ {
		g.Go(func() error {
			for j := 0; j < 25; j++ {
				if i%2 == 0 {
					if got := b.DCTS16Bit([]int16{2, 2}, 2, 1, 1); got != 2 {
						return fmt.Errorf("DCTS16Bit = %v", got)
					}
					continue
				}
				v := newVectors(1, 1)
				if st := b.L2SolveSSP(false, false, 1, 1, 4, v.old, v.obs, v.missing, v.newState); st != 4 {
					return fmt.Errorf("L2SolveSSP = %d: %s", st, b.LastError())
				}
				_ = b.LastError()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
