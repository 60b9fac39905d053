package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseLower,
				Kind:    KindTypeMismatch,
				Op:      "qpsolve(ZZII[Z[D[D[Z[D[D)I",
				Path:    []string{"arg8"},
				GoType:  "[]float32",
				WitType: "list<f64>",
				Detail:  "cannot lower",
			},
			contains: []string{"[lower]", "type_mismatch", "qpsolve", "arg8", "[]float32", "list<f64>", "cannot lower"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseLift,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[lift]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseInvoke,
				Kind:   KindTrap,
				Detail: "remote operation failed",
				Cause:  errors.New("wasm error: unreachable"),
			},
			contains: []string{"[invoke]", "trap", "remote operation failed", "caused by", "unreachable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseStart,
		Kind:  KindRuntimeCreation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseInvoke,
		Kind:  KindTrap,
		Op:    "l2solve",
	}

	if !err.Is(&Error{Phase: PhaseInvoke, Kind: KindTrap}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseLift, Kind: KindTrap}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseInvoke, Kind: KindAllocation}) {
		t.Error("Is should not match different kind")
	}
	if !err.Is(&Error{Kind: KindTrap}) {
		t.Error("Is should match on kind when target phase is empty")
	}
	if !errors.Is(err, &Error{Phase: PhaseInvoke, Kind: KindTrap}) {
		t.Error("errors.Is should match")
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(nil); got != "" {
		t.Errorf("KindOf(nil) = %q, want empty", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}

	wrapped := Wrap(PhaseSession, KindNotStarted, errors.New("x"), "outer")
	if got := KindOf(wrapped); got != KindNotStarted {
		t.Errorf("KindOf = %q, want %q", got, KindNotStarted)
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseLower, KindTypeMismatch).
		Op("dcts16bit(Ljava/nio/ByteBuffer;IID)D").
		Path("arg0").
		GoType("[]float64").
		WitType("list<u8>").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "[]int16", "[]float64").
		Build()

	if err.Phase != PhaseLower {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseLower)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if err.Op != "dcts16bit(Ljava/nio/ByteBuffer;IID)D" {
		t.Errorf("Op = %q", err.Op)
	}
	if len(err.Path) != 1 || err.Path[0] != "arg0" {
		t.Errorf("Path = %v, want [arg0]", err.Path)
	}
	if err.GoType != "[]float64" || err.WitType != "list<u8>" {
		t.Errorf("GoType=%v WitType=%v", err.GoType, err.WitType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected []int16, got []float64" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestStartConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
		text string
	}{
		{"library", LibraryNotFound("/opt/rt.wasm", errors.New("no such file")), KindLibraryNotFound, "/opt/rt.wasm"},
		{"entry points", EntryPointMissing([]string{"memory", "malloc"}), KindEntryPointMissing, "memory, malloc"},
		{"runtime", RuntimeCreation(errors.New("boom")), KindRuntimeCreation, "boom"},
		{"type", TypeNotFound("autopilot/interfaces/AutoPilotC", nil), KindTypeNotFound, "AutoPilotC"},
		{"method", MethodNotFound([]string{"qpsolve(ZZII[Z[D[D[Z[D[D)I"}, nil), KindMethodNotFound, "qpsolve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if !strings.Contains(tt.err.Error(), tt.text) {
				t.Errorf("message %q should contain %q", tt.err.Error(), tt.text)
			}
		})
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("LengthMismatch", func(t *testing.T) {
		err := LengthMismatch("l2solve", []string{"oldState"}, 3, 20)
		if err.Kind != KindLengthMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindLengthMismatch)
		}
		if !strings.Contains(err.Detail, "3") || !strings.Contains(err.Detail, "20") {
			t.Errorf("Detail = %q should contain both lengths", err.Detail)
		}
	})

	t.Run("AllocationFailed", func(t *testing.T) {
		err := AllocationFailed(PhaseLower, 1024, 8)
		if err.Kind != KindAllocation {
			t.Errorf("Kind = %v, want %v", err.Kind, KindAllocation)
		}
		if !strings.Contains(err.Detail, "1024") {
			t.Errorf("Detail = %v, should contain size", err.Detail)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseLift, 70000, 16)
		if err.Kind != KindOutOfBounds {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOutOfBounds)
		}
		if err.Value != uint32(70000) {
			t.Errorf("Value = %v, want 70000", err.Value)
		}
	})

	t.Run("InvalidDescriptor", func(t *testing.T) {
		err := InvalidDescriptor("(Q)V", 1, "unknown type")
		if err.Kind != KindInvalidDescriptor || err.Phase != PhaseParse {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if err.Value != 1 {
			t.Errorf("Value = %v, want 1", err.Value)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		cause := errors.New("wasm error: unreachable")
		err := Trap("l2solve", cause)
		if !errors.Is(err, cause) {
			t.Error("Trap should wrap its cause")
		}
	})

	t.Run("NotStarted", func(t *testing.T) {
		err := NotStarted("setLoggingOptions")
		if err.Kind != KindNotStarted || err.Op != "setLoggingOptions" {
			t.Errorf("got %v %q", err.Kind, err.Op)
		}
	})
}
