package guest

import (
	"github.com/wippyai/autopilot-bridge/wasm"
)

// HeapBase is where the reference allocator starts handing out memory.
// Everything below it is reserved for class-module statics.
const HeapBase = 4096

// RuntimeOptions selects which exports the reference runtime image has.
// The zero value builds a complete image with malloc and free.
type RuntimeOptions struct {
	// Realloc exports cabi_realloc(old, old_size, align, size) instead of malloc.
	Realloc bool
	// NoFree omits the deallocator.
	NoFree bool
	// NoMemoryExport keeps the memory private.
	NoMemoryExport bool
	// NoAllocator omits every allocator export.
	NoAllocator bool
	// TrapOnStart adds an _initialize that traps, so instantiation fails.
	TrapOnStart bool
	// InitialPages is the initial memory size; 0 means 2.
	InitialPages uint32
}

// Runtime builds the reference runtime image: one linear memory and a bump
// allocator that grows memory on demand. free is a no-op.
func Runtime(opts RuntimeOptions) []byte {
	pages := opts.InitialPages
	if pages == 0 {
		pages = 2
	}

	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: pages}}},
		Globals: []wasm.Global{{
			Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true},
			Init: wasm.ConstExpr(wasm.I32Const(HeapBase)),
		}},
	}
	if !opts.NoMemoryExport {
		m.Exports = append(m.Exports, wasm.Export{Name: "memory", Kind: wasm.KindMemory, Idx: 0})
	}

	if !opts.NoAllocator {
		if opts.Realloc {
			// cabi_realloc(old, old_size, align, size): locals 0..3, ptr in 4
			idx := m.AddFunc(
				wasm.FuncType{Params: i32s(4), Results: i32s(1)},
				wasm.FuncBody{
					Locals: []wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}},
					Code:   bump(3, 2, 4),
				},
			)
			m.ExportFunc("cabi_realloc", idx)
		} else {
			// malloc(size): local 0, align local 1 (always 8), ptr in 2
			body := append([]wasm.Instruction{wasm.I32Const(8), wasm.LocalSet(1)}, bumpInstrs(0, 1, 2)...)
			idx := m.AddFunc(
				wasm.FuncType{Params: i32s(1), Results: i32s(1)},
				wasm.FuncBody{
					Locals: []wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}},
					Code:   wasm.EncodeInstructions(body),
				},
			)
			m.ExportFunc("malloc", idx)
		}
	}

	if !opts.NoFree && !opts.NoAllocator {
		idx := m.AddFunc(
			wasm.FuncType{Params: i32s(1)},
			wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{wasm.Op(wasm.OpEnd)})},
		)
		m.ExportFunc("free", idx)
	}

	if opts.TrapOnStart {
		idx := m.AddFunc(wasm.FuncType{}, wasm.FuncBody{Code: wasm.EncodeInstructions([]wasm.Instruction{
			wasm.Op(wasm.OpUnreachable),
			wasm.Op(wasm.OpEnd),
		})})
		m.ExportFunc("_initialize", idx)
	}

	return m.Encode()
}

func bump(sizeLocal, alignLocal, ptrLocal uint32) []byte {
	return wasm.EncodeInstructions(bumpInstrs(sizeLocal, alignLocal, ptrLocal))
}

// bumpInstrs aligns the heap pointer, advances it by size and grows memory
// until the new heap top is addressable. The aligned pointer is returned.
func bumpInstrs(sizeLocal, alignLocal, ptrLocal uint32) []wasm.Instruction {
	return []wasm.Instruction{
		// ptr = (heap + align - 1) & -align
		wasm.GlobalGet(0),
		wasm.LocalGet(alignLocal),
		wasm.Op(wasm.OpI32Add),
		wasm.I32Const(1),
		wasm.Op(wasm.OpI32Sub),
		wasm.I32Const(0),
		wasm.LocalGet(alignLocal),
		wasm.Op(wasm.OpI32Sub),
		wasm.Op(wasm.OpI32And),
		wasm.LocalSet(ptrLocal),

		// heap = ptr + size
		wasm.LocalGet(ptrLocal),
		wasm.LocalGet(sizeLocal),
		wasm.Op(wasm.OpI32Add),
		wasm.GlobalSet(0),

		wasm.Block(wasm.BlockTypeEmpty),
		wasm.Loop(wasm.BlockTypeEmpty),
		wasm.GlobalGet(0),
		wasm.Op(wasm.OpMemorySize),
		wasm.I32Const(16),
		wasm.Op(wasm.OpI32Shl),
		wasm.Op(wasm.OpI32LeU),
		wasm.BrIf(1),
		wasm.I32Const(1),
		wasm.Op(wasm.OpMemoryGrow),
		wasm.I32Const(-1),
		wasm.Op(wasm.OpI32Eq),
		wasm.If(wasm.BlockTypeEmpty),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
		wasm.Br(0),
		wasm.Op(wasm.OpEnd),
		wasm.Op(wasm.OpEnd),

		wasm.LocalGet(ptrLocal),
		wasm.Op(wasm.OpEnd),
	}
}

func i32s(n int) []wasm.ValType {
	out := make([]wasm.ValType, n)
	for i := range out {
		out[i] = wasm.ValI32
	}
	return out
}
