package guest

import (
	"slices"

	"github.com/wippyai/autopilot-bridge/descriptor"
	"github.com/wippyai/autopilot-bridge/wasm"
)

// Static layout of the reference class inside the shared memory. All of it
// sits below HeapBase.
const (
	// ExceptionSlot holds (ptr u32, len u32) of the pending exception
	// message. ptr == 0 means no exception.
	ExceptionSlot = 16
	// LoggingFlagsOffset holds the stdout and file logging flags as two u32.
	LoggingFlagsOffset = 32

	messagesOffset = 64
)

// Exception messages raised by the reference class.
const (
	WavelengthsMessage = "java.lang.IllegalArgumentException: number of wavelengths must be positive"
	WidthMessage       = "java.lang.IllegalArgumentException: image width must be positive"
)

// Method descriptors published by the reference class.
const (
	DescGetLastExceptionMessage = "()Ljava/lang/String;"
	DescSetLoggingOptions       = "(ZZ)V"
	DescFocusMeasure            = "(Ljava/nio/ByteBuffer;IID)D"
	DescL2SolveSingle           = "(ZZIII[D[D[Z[D)I"
	DescL2SolveMulti            = "(ZZII[Z[D[D[Z[D)I"
	DescQPSolve                 = "(ZZII[Z[D[D[Z[D[D)I"
)

// Status offsets returned by the reference solvers.
const (
	MultiStatusBase = 100
	QPStatusBase    = 200
)

// ClassOptions alters the reference class to exercise failure paths.
type ClassOptions struct {
	// Omit lists method names ("l2solve", "qpsolve", ...) or full export
	// keys that are left out.
	Omit []string
	// Mismatch lists export keys published with a wrong core type.
	Mismatch []string
	// OwnMemory defines a private memory instead of importing env.memory.
	OwnMemory bool
}

// Class builds the reference module for a binary class name.
//
// The methods have simple, checkable semantics:
//
//	dcts16bit        mean(samples) * psf
//	tenengrad16bit   byte length + psf
//	l2solve (single) new[i] = old[i] + 1, returns the sync plane index
//	l2solve (multi)  new[i] = old[i] + 1, returns 100 + count(sync planes)
//	qpsolve          new[i] = old[i] + maxCorr[i], returns 200 + count(missing)
//
// A non-positive width or wavelength count stores an exception message in
// the exception slot and traps.
func Class(class string, opts ClassOptions) []byte {
	m := &wasm.Module{}
	if opts.OwnMemory {
		m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}
	} else {
		m.Imports = []wasm.Import{{
			Module: "env",
			Name:   "memory",
			Desc:   wasm.ImportDesc{Kind: wasm.KindMemory, Memory: &wasm.MemoryType{Limits: wasm.Limits{Min: 1}}},
		}}
	}

	m.Data = []wasm.DataSegment{{
		Offset: wasm.ConstExpr(wasm.I32Const(messagesOffset)),
		Init:   []byte(WavelengthsMessage + WidthMessage),
	}}
	wavelengthsMsg := message{messagesOffset, int32(len(WavelengthsMessage))}
	widthMsg := message{messagesOffset + int32(len(WavelengthsMessage)), int32(len(WidthMessage))}

	b := &classBuilder{m: m, class: class, opts: opts}

	b.add("getLastExceptionMessage", DescGetLastExceptionMessage,
		wasm.FuncType{Results: i32s(1)},
		nil,
		[]wasm.Instruction{wasm.I32Const(ExceptionSlot)})

	b.add("setLoggingOptions", DescSetLoggingOptions,
		wasm.FuncType{Params: i32s(2)},
		nil,
		[]wasm.Instruction{
			wasm.I32Const(0), wasm.LocalGet(0), wasm.Mem(wasm.OpI32Store, 2, LoggingFlagsOffset),
			wasm.I32Const(0), wasm.LocalGet(1), wasm.Mem(wasm.OpI32Store, 2, LoggingFlagsOffset+4),
		})

	focusType := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValI32, wasm.ValF64},
		Results: []wasm.ValType{wasm.ValF64},
	}

	// dcts16bit(ptr 0, len 1, w 2, h 3, psf 4); i 5, n 6, sum 7
	dcts := concat(
		clearException(),
		guardPositive(2, widthMsg),
		[]wasm.Instruction{
			wasm.LocalGet(1), wasm.I32Const(1), wasm.Op(wasm.OpI32ShrU), wasm.LocalSet(6),
			wasm.Block(wasm.BlockTypeEmpty), wasm.Loop(wasm.BlockTypeEmpty),
			wasm.LocalGet(5), wasm.LocalGet(6), wasm.Op(wasm.OpI32GeU), wasm.BrIf(1),
			wasm.LocalGet(7),
			wasm.LocalGet(0), wasm.LocalGet(5), wasm.I32Const(1), wasm.Op(wasm.OpI32Shl), wasm.Op(wasm.OpI32Add),
			wasm.Mem(wasm.OpI32Load16S, 1, 0),
			wasm.Op(wasm.OpF64ConvertI32S), wasm.Op(wasm.OpF64Add), wasm.LocalSet(7),
			wasm.LocalGet(5), wasm.I32Const(1), wasm.Op(wasm.OpI32Add), wasm.LocalSet(5),
			wasm.Br(0),
			wasm.Op(wasm.OpEnd), wasm.Op(wasm.OpEnd),
			wasm.LocalGet(7), wasm.LocalGet(6), wasm.Op(wasm.OpF64ConvertI32S), wasm.Op(wasm.OpF64Div),
			wasm.LocalGet(4), wasm.Op(wasm.OpF64Mul),
		},
	)
	b.add("dcts16bit", DescFocusMeasure, focusType,
		[]wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}, {Count: 1, ValType: wasm.ValF64}},
		dcts)

	tenengrad := concat(
		clearException(),
		guardPositive(2, widthMsg),
		[]wasm.Instruction{
			wasm.LocalGet(1), wasm.Op(wasm.OpF64ConvertI32S), wasm.LocalGet(4), wasm.Op(wasm.OpF64Add),
		},
	)
	b.add("tenengrad16bit", DescFocusMeasure, focusType, nil, tenengrad)

	// l2solve single: flags 0,1 wl 2 planes 3 sync 4 old 5,6 obs 7,8 miss 9,10 new 11,12; i 13
	single := concat(
		clearException(),
		guardPositive(2, wavelengthsMsg),
		addInto(13, 11, 12, 5, -1),
		[]wasm.Instruction{wasm.LocalGet(4)},
	)
	b.add("l2solve", DescL2SolveSingle,
		wasm.FuncType{Params: i32s(13), Results: i32s(1)},
		[]wasm.LocalEntry{{Count: 1, ValType: wasm.ValI32}},
		single)

	// l2solve multi: sync 4,5 old 6,7 obs 8,9 miss 10,11 new 12,13; i 14, cnt 15
	multi := concat(
		clearException(),
		guardPositive(2, wavelengthsMsg),
		addInto(14, 12, 13, 6, -1),
		[]wasm.Instruction{wasm.I32Const(MultiStatusBase), wasm.LocalSet(15)},
		countTrue(14, 15, 4, 5),
		[]wasm.Instruction{wasm.LocalGet(15)},
	)
	b.add("l2solve", DescL2SolveMulti,
		wasm.FuncType{Params: i32s(14), Results: i32s(1)},
		[]wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}},
		multi)

	// qpsolve: sync 4,5 old 6,7 obs 8,9 miss 10,11 max 12,13 new 14,15; i 16, cnt 17
	qp := concat(
		clearException(),
		guardPositive(2, wavelengthsMsg),
		addInto(16, 14, 15, 6, 12),
		[]wasm.Instruction{wasm.I32Const(QPStatusBase), wasm.LocalSet(17)},
		countTrue(16, 17, 10, 11),
		[]wasm.Instruction{wasm.LocalGet(17)},
	)
	b.add("qpsolve", DescQPSolve,
		wasm.FuncType{Params: i32s(16), Results: i32s(1)},
		[]wasm.LocalEntry{{Count: 2, ValType: wasm.ValI32}},
		qp)

	return m.Encode()
}

type classBuilder struct {
	m     *wasm.Module
	class string
	opts  ClassOptions
}

func (b *classBuilder) add(name, desc string, ft wasm.FuncType, locals []wasm.LocalEntry, body []wasm.Instruction) {
	key := descriptor.Key(b.class, name, desc)
	if slices.Contains(b.opts.Omit, name) || slices.Contains(b.opts.Omit, key) {
		return
	}
	if slices.Contains(b.opts.Mismatch, key) {
		// same name, takes nothing and returns nothing
		ft = wasm.FuncType{}
		locals = nil
		body = nil
	}
	code := wasm.EncodeInstructions(append(body, wasm.Op(wasm.OpEnd)))
	idx := b.m.AddFunc(ft, wasm.FuncBody{Locals: locals, Code: code})
	b.m.ExportFunc(key, idx)
}

type message struct {
	offset int32
	length int32
}

func clearException() []wasm.Instruction {
	return []wasm.Instruction{
		wasm.I32Const(0), wasm.I32Const(0), wasm.Mem(wasm.OpI32Store, 2, ExceptionSlot),
		wasm.I32Const(0), wasm.I32Const(0), wasm.Mem(wasm.OpI32Store, 2, ExceptionSlot+4),
	}
}

// guardPositive raises msg when the i32 local is <= 0.
func guardPositive(local uint32, msg message) []wasm.Instruction {
	return []wasm.Instruction{
		wasm.LocalGet(local), wasm.I32Const(0), wasm.Op(wasm.OpI32LeS),
		wasm.If(wasm.BlockTypeEmpty),
		wasm.I32Const(0), wasm.I32Const(msg.offset), wasm.Mem(wasm.OpI32Store, 2, ExceptionSlot),
		wasm.I32Const(0), wasm.I32Const(msg.length), wasm.Mem(wasm.OpI32Store, 2, ExceptionSlot+4),
		wasm.Op(wasm.OpUnreachable),
		wasm.Op(wasm.OpEnd),
	}
}

// addInto computes dst[i] = old[i] + (add < 0 ? 1 : addend[i]) for every
// f64 element of dst.
func addInto(i, dstPtr, dstLen, oldPtr uint32, addPtr int) []wasm.Instruction {
	elemAddr := func(ptr uint32) []wasm.Instruction {
		return []wasm.Instruction{
			wasm.LocalGet(ptr), wasm.LocalGet(i), wasm.I32Const(3), wasm.Op(wasm.OpI32Shl), wasm.Op(wasm.OpI32Add),
		}
	}

	var addend []wasm.Instruction
	if addPtr < 0 {
		addend = []wasm.Instruction{wasm.F64Const(1)}
	} else {
		addend = append(elemAddr(uint32(addPtr)), wasm.Mem(wasm.OpF64Load, 3, 0))
	}

	return concat(
		[]wasm.Instruction{
			wasm.I32Const(0), wasm.LocalSet(i),
			wasm.Block(wasm.BlockTypeEmpty), wasm.Loop(wasm.BlockTypeEmpty),
			wasm.LocalGet(i), wasm.LocalGet(dstLen), wasm.Op(wasm.OpI32GeU), wasm.BrIf(1),
		},
		elemAddr(dstPtr),
		elemAddr(oldPtr),
		[]wasm.Instruction{wasm.Mem(wasm.OpF64Load, 3, 0)},
		addend,
		[]wasm.Instruction{
			wasm.Op(wasm.OpF64Add),
			wasm.Mem(wasm.OpF64Store, 3, 0),
			wasm.LocalGet(i), wasm.I32Const(1), wasm.Op(wasm.OpI32Add), wasm.LocalSet(i),
			wasm.Br(0),
			wasm.Op(wasm.OpEnd), wasm.Op(wasm.OpEnd),
		},
	)
}

// countTrue adds the number of non-zero bytes in [ptr, ptr+len) to cnt.
func countTrue(i, cnt, ptr, length uint32) []wasm.Instruction {
	return []wasm.Instruction{
		wasm.I32Const(0), wasm.LocalSet(i),
		wasm.Block(wasm.BlockTypeEmpty), wasm.Loop(wasm.BlockTypeEmpty),
		wasm.LocalGet(i), wasm.LocalGet(length), wasm.Op(wasm.OpI32GeU), wasm.BrIf(1),
		wasm.LocalGet(cnt),
		wasm.LocalGet(ptr), wasm.LocalGet(i), wasm.Op(wasm.OpI32Add), wasm.Mem(wasm.OpI32Load8U, 0, 0),
		wasm.Op(wasm.OpI32Add), wasm.LocalSet(cnt),
		wasm.LocalGet(i), wasm.I32Const(1), wasm.Op(wasm.OpI32Add), wasm.LocalSet(i),
		wasm.Br(0),
		wasm.Op(wasm.OpEnd), wasm.Op(wasm.OpEnd),
	}
}

func concat(parts ...[]wasm.Instruction) []wasm.Instruction {
	var out []wasm.Instruction
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
