package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/autopilot-bridge/errors"
	"github.com/wippyai/autopilot-bridge/guest"
)

const testClass = guest.DefaultClass

func writeBundle(t *testing.T, ropts guest.RuntimeOptions, copts guest.ClassOptions) guest.Bundle {
	t.Helper()
	b, err := guest.WriteBundle(t.TempDir(), testClass, ropts, copts)
	if err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	return b
}

func startLibrary(t *testing.T, b guest.Bundle) (*Engine, *Library) {
	t.Helper()
	ctx := context.Background()

	e, err := New(ctx, &Config{BundleDir: b.BundleDir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close(ctx) })

	compiled, err := e.CompileLibrary(ctx, b.RuntimePath)
	if err != nil {
		t.Fatalf("CompileLibrary: %v", err)
	}
	lib, err := e.InstantiateLibrary(ctx, compiled)
	if err != nil {
		t.Fatalf("InstantiateLibrary: %v", err)
	}
	return e, lib
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CompilationCacheDir: t.TempDir()}, "compilation cache"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer e.Close(ctx)

			if e.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestEngine_InitWASIIdempotent(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	for i := 0; i < 3; i++ {
		if err := e.InitWASI(ctx); err != nil {
			t.Fatalf("InitWASI #%d: %v", i, err)
		}
	}
	if e.runtime.Module(wasiModuleName) == nil {
		t.Error("WASI module not instantiated")
	}
}

func TestCompileLibrary_Errors(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	dir := t.TempDir()
	text := filepath.Join(dir, "text.wasm")
	if err := os.WriteFile(text, []byte("not a module"), 0o644); err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.wasm")
	if err := os.WriteFile(truncated, []byte("\x00asm\x01\x00\x00\x00\x01"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.wasm"), text, truncated} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := e.CompileLibrary(ctx, path)
			if errors.KindOf(err) != errors.KindLibraryNotFound {
				t.Errorf("expected library_not_found, got %v", err)
			}
		})
	}
}

func TestCompiledLibrary_MissingEntryPoints(t *testing.T) {
	ctx := context.Background()
	e, err := New(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	tests := []struct {
		name string
		opts guest.RuntimeOptions
		want []string
	}{
		{"complete", guest.RuntimeOptions{}, nil},
		{"realloc", guest.RuntimeOptions{Realloc: true}, nil},
		{"no free", guest.RuntimeOptions{NoFree: true}, nil},
		{"no memory", guest.RuntimeOptions{NoMemoryExport: true}, []string{MemoryExport}},
		{"no allocator", guest.RuntimeOptions{NoAllocator: true}, []string{CabiRealloc + "|" + simpleMalloc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rt.wasm")
			if err := os.WriteFile(path, guest.Runtime(tt.opts), 0o644); err != nil {
				t.Fatal(err)
			}
			c, err := e.CompileLibrary(ctx, path)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Close(ctx)

			got := c.MissingEntryPoints()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("MissingEntryPoints = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInstantiateLibrary_TrapOnStart(t *testing.T) {
	ctx := context.Background()
	b := writeBundle(t, guest.RuntimeOptions{TrapOnStart: true}, guest.ClassOptions{})

	e, err := New(ctx, &Config{BundleDir: b.BundleDir})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	c, err := e.CompileLibrary(ctx, b.RuntimePath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.InstantiateLibrary(ctx, c)
	if errors.KindOf(err) != errors.KindRuntimeCreation {
		t.Errorf("expected runtime_creation, got %v", err)
	}
}

func TestLibrary_LoadClass(t *testing.T) {
	ctx := context.Background()
	_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{}))

	cls, err := lib.LoadClass(ctx, testClass)
	if err != nil {
		t.Fatalf("LoadClass: %v", err)
	}
	defer cls.Close(ctx)

	if cls.Name() != testClass {
		t.Errorf("Name = %q", cls.Name())
	}
	if n := len(cls.Methods()); n != 7 {
		t.Errorf("expected 7 methods, got %d: %v", n, cls.Methods())
	}
}

func TestLibrary_LoadClassErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing class", func(t *testing.T) {
		_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{}))
		_, err := lib.LoadClass(ctx, "autopilot/interfaces/Missing")
		if errors.KindOf(err) != errors.KindTypeNotFound {
			t.Errorf("expected type_not_found, got %v", err)
		}
	})

	t.Run("own memory", func(t *testing.T) {
		_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{OwnMemory: true}))
		_, err := lib.LoadClass(ctx, testClass)
		if errors.KindOf(err) != errors.KindTypeNotFound {
			t.Errorf("expected type_not_found, got %v", err)
		}
	})

	t.Run("not wasm", func(t *testing.T) {
		b := writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{})
		if err := os.WriteFile(b.ClassPath, []byte("class file"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, lib := startLibrary(t, b)
		_, err := lib.LoadClass(ctx, testClass)
		if errors.KindOf(err) != errors.KindTypeNotFound {
			t.Errorf("expected type_not_found, got %v", err)
		}
	})
}

func TestClass_Method(t *testing.T) {
	ctx := context.Background()
	mismatch := testClass + ".qpsolve" + guest.DescQPSolve
	_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{
		Omit:     []string{"tenengrad16bit"},
		Mismatch: []string{mismatch},
	}))

	cls, err := lib.LoadClass(ctx, testClass)
	if err != nil {
		t.Fatal(err)
	}
	defer cls.Close(ctx)

	tests := []struct {
		name, method, desc string
		wantErr            bool
	}{
		{"focus", "dcts16bit", guest.DescFocusMeasure, false},
		{"single", "l2solve", guest.DescL2SolveSingle, false},
		{"multi", "l2solve", guest.DescL2SolveMulti, false},
		{"omitted", "tenengrad16bit", guest.DescFocusMeasure, true},
		{"core type mismatch", "qpsolve", guest.DescQPSolve, true},
		{"wrong descriptor", "dcts16bit", "(Ljava/nio/ByteBuffer;II)D", true},
		{"bad descriptor", "dcts16bit", "(Q)V", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := cls.Method(tt.method, tt.desc)
			if tt.wantErr {
				if errors.KindOf(err) != errors.KindMethodNotFound {
					t.Errorf("expected method_not_found, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Method: %v", err)
			}
			if m.Key != testClass+"."+tt.method+tt.desc {
				t.Errorf("Key = %q", m.Key)
			}
		})
	}
}

func TestMethod_CallTrap(t *testing.T) {
	ctx := context.Background()
	_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{}))

	cls, err := lib.LoadClass(ctx, testClass)
	if err != nil {
		t.Fatal(err)
	}
	m, err := cls.Method("l2solve", guest.DescL2SolveSingle)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Call(ctx, make([]uint64, 13)...)
	if errors.KindOf(err) != errors.KindTrap {
		t.Fatalf("expected trap, got %v", err)
	}
	if !strings.Contains(err.Error(), "l2solve") {
		t.Errorf("trap should name the method: %v", err)
	}
}

func TestMemory_BulkTransfer(t *testing.T) {
	ctx := context.Background()
	_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{}))
	mem := lib.Memory()

	ptr, err := lib.Allocator().Alloc(ctx, 64, 8)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{1.5, -2, 3.25, 0}
	if err := mem.WriteFloat64s(ptr, in); err != nil {
		t.Fatal(err)
	}
	out := make([]float64, len(in))
	if err := mem.ReadFloat64s(ptr, out); err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}

	if err := mem.WriteBools(ptr, []bool{true, false, true}); err != nil {
		t.Fatal(err)
	}
	raw, err := mem.Read(ptr, 3)
	if err != nil {
		t.Fatal(err)
	}
	if raw[0] != 1 || raw[1] != 0 || raw[2] != 1 {
		t.Errorf("bools = %v", raw)
	}

	if err := mem.WriteInt16s(ptr, []int16{-1, 258}); err != nil {
		t.Fatal(err)
	}
	raw, _ = mem.Read(ptr, 4)
	if raw[0] != 0xff || raw[1] != 0xff || raw[2] != 0x02 || raw[3] != 0x01 {
		t.Errorf("int16s = %x", raw)
	}

	if err := mem.WriteU32(ptr, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	if v, err := mem.ReadU32(ptr); err != nil || v != 0xdeadbeef {
		t.Errorf("ReadU32 = %x, %v", v, err)
	}
}

func TestMemory_OutOfBounds(t *testing.T) {
	_, lib := startLibrary(t, writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{}))
	mem := lib.Memory()
	end := mem.Size()

	if err := mem.WriteFloat64s(end-8, []float64{1, 2}); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("WriteFloat64s: expected out_of_bounds, got %v", err)
	}
	if err := mem.ReadFloat64s(end, make([]float64, 1)); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("ReadFloat64s: expected out_of_bounds, got %v", err)
	}
	if _, err := mem.ReadString(end-1, 2); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("ReadString: expected out_of_bounds, got %v", err)
	}
	if err := mem.Write(end, []byte{1}); errors.KindOf(err) != errors.KindOutOfBounds {
		t.Errorf("Write: expected out_of_bounds, got %v", err)
	}
}

func TestAllocator_Conventions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		opts    guest.RuntimeOptions
		conv    string
		canFree bool
	}{
		{"malloc", guest.RuntimeOptions{}, simpleMalloc, true},
		{"malloc without free", guest.RuntimeOptions{NoFree: true}, simpleMalloc, false},
		{"cabi_realloc", guest.RuntimeOptions{Realloc: true}, CabiRealloc, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, lib := startLibrary(t, writeBundle(t, tt.opts, guest.ClassOptions{}))
			a := lib.Allocator()
			if a.convention() != tt.conv {
				t.Errorf("convention = %s, want %s", a.convention(), tt.conv)
			}
			if a.CanFree() != tt.canFree {
				t.Errorf("CanFree = %v, want %v", a.CanFree(), tt.canFree)
			}

			p1, err := a.Alloc(ctx, 10, 8)
			if err != nil {
				t.Fatal(err)
			}
			p2, err := a.Alloc(ctx, 10, 8)
			if err != nil {
				t.Fatal(err)
			}
			if p1%8 != 0 || p2%8 != 0 || p2 < p1+10 {
				t.Errorf("blocks %d and %d overlap or are misaligned", p1, p2)
			}
			a.Free(ctx, p1, 10, 8)
			a.Free(ctx, 0, 0, 0)
		})
	}
}

func TestLibrary_ClassPath(t *testing.T) {
	b := writeBundle(t, guest.RuntimeOptions{}, guest.ClassOptions{})
	_, lib := startLibrary(t, b)
	if got := lib.ClassPath(testClass); got != b.ClassPath {
		t.Errorf("ClassPath = %s, want %s", got, b.ClassPath)
	}
}
