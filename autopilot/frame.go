package autopilot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	autopilotbridge "github.com/wippyai/autopilot-bridge"
	"github.com/wippyai/autopilot-bridge/abi"
	"github.com/wippyai/autopilot-bridge/engine"
	"github.com/wippyai/autopilot-bridge/errors"
)

type block struct {
	ptr, size, align uint32
}

// frame holds the guest allocations of one call. Arguments are lowered in
// declaration order, each array with a single bulk write, and release frees
// everything the frame allocated.
type frame struct {
	ctx    context.Context
	mem    autopilotbridge.Memory
	alloc  autopilotbridge.Allocator
	blocks []block
	// regions maps argument index to the guest address of its array.
	regions map[int]block
}

func newFrame(ctx context.Context, lib *engine.Library) *frame {
	return &frame{
		ctx:     ctx,
		mem:     lib.Memory(),
		alloc:   lib.Allocator(),
		regions: make(map[int]block),
	}
}

func (f *frame) release() {
	for _, b := range f.blocks {
		f.alloc.Free(f.ctx, b.ptr, b.size, b.align)
	}
	f.blocks = f.blocks[:0]
}

// reserve allocates count elements of elem. Empty arrays get no block and
// a null pointer.
func (f *frame) reserve(elem wit.Type, count int) (block, error) {
	size, align := abi.ElemLayout(elem)
	total := uint64(size) * uint64(count)
	if count == 0 {
		return block{align: align}, nil
	}
	if total > uint64(^uint32(0)) {
		return block{}, errors.AllocationFailed(errors.PhaseLower, ^uint32(0), align)
	}
	ptr, err := f.alloc.Alloc(f.ctx, uint32(total), align)
	if err != nil {
		return block{}, err
	}
	b := block{ptr: ptr, size: uint32(total), align: align}
	f.blocks = append(f.blocks, b)
	return b, nil
}

// lower converts Go arguments to flat core values following sig.
func (f *frame) lower(sig *abi.Signature, args ...any) ([]uint64, error) {
	if len(args) != len(sig.Params) {
		return nil, errors.InvalidInput(errors.PhaseLower,
			fmt.Sprintf("expected %d arguments, got %d", len(sig.Params), len(args)))
	}

	flat := make([]uint64, 0, len(sig.FlatParams))
	for i, arg := range args {
		want := sig.Params[i]
		path := []string{"param", strconv.Itoa(i)}
		mismatch := errors.TypeMismatch(errors.PhaseLower, path, fmt.Sprintf("%T", arg), abi.TypeName(want))

		switch v := arg.(type) {
		case bool:
			if _, ok := want.(wit.Bool); !ok {
				return nil, mismatch
			}
			var b uint64
			if v {
				b = 1
			}
			flat = append(flat, b)

		case int32:
			if _, ok := want.(wit.S32); !ok {
				return nil, mismatch
			}
			flat = append(flat, api.EncodeI32(v))

		case float64:
			if _, ok := want.(wit.F64); !ok {
				return nil, mismatch
			}
			flat = append(flat, api.EncodeF64(v))

		case []float64:
			if _, ok := abi.ListElem(want).(wit.F64); !ok {
				return nil, mismatch
			}
			b, err := f.reserve(wit.F64{}, len(v))
			if err != nil {
				return nil, err
			}
			if err := f.mem.WriteFloat64s(b.ptr, v); err != nil {
				return nil, err
			}
			f.regions[i] = b
			flat = append(flat, uint64(b.ptr), uint64(len(v)))

		case []bool:
			if _, ok := abi.ListElem(want).(wit.Bool); !ok {
				return nil, mismatch
			}
			b, err := f.reserve(wit.Bool{}, len(v))
			if err != nil {
				return nil, err
			}
			if err := f.mem.WriteBools(b.ptr, v); err != nil {
				return nil, err
			}
			f.regions[i] = b
			flat = append(flat, uint64(b.ptr), uint64(len(v)))

		case []int16:
			// 16-bit samples travel as the bytes of a ByteBuffer
			if _, ok := abi.ListElem(want).(wit.U8); !ok {
				return nil, mismatch
			}
			b, err := f.reserve(wit.U8{}, 2*len(v))
			if err != nil {
				return nil, err
			}
			if err := f.mem.WriteInt16s(b.ptr, v); err != nil {
				return nil, err
			}
			f.regions[i] = b
			flat = append(flat, uint64(b.ptr), uint64(2*len(v)))

		default:
			return nil, errors.Unsupported(errors.PhaseLower, fmt.Sprintf("argument %d of type %T", i, arg))
		}
	}
	return flat, nil
}

// liftFloat64s copies the array lowered for argument i back into dst.
func (f *frame) liftFloat64s(i int, dst []float64) error {
	b, ok := f.regions[i]
	if !ok {
		if len(dst) == 0 {
			return nil
		}
		return errors.InvalidInput(errors.PhaseLift, fmt.Sprintf("argument %d was not lowered as an array", i))
	}
	return f.mem.ReadFloat64s(b.ptr, dst)
}

// liftString reads the (ptr, len) pair a string-returning method left at
// retptr. A null pointer is reported as ok == false.
func (f *frame) liftString(retptr uint32) (s string, ok bool, err error) {
	ptr, err := f.mem.ReadU32(retptr)
	if err != nil {
		return "", false, err
	}
	n, err := f.mem.ReadU32(retptr + 4)
	if err != nil {
		return "", false, err
	}
	if ptr == 0 {
		return "", false, nil
	}
	s, err = f.mem.ReadString(ptr, n)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func liftInt32(op string, results []uint64) (int32, error) {
	if len(results) != 1 {
		return 0, errors.New(errors.PhaseLift, errors.KindSignatureMismatch).
			Op(op).
			Detail("expected 1 result, got %d", len(results)).
			Build()
	}
	return api.DecodeI32(results[0]), nil
}

func liftFloat64(op string, results []uint64) (float64, error) {
	if len(results) != 1 {
		return 0, errors.New(errors.PhaseLift, errors.KindSignatureMismatch).
			Op(op).
			Detail("expected 1 result, got %d", len(results)).
			Build()
	}
	return api.DecodeF64(results[0]), nil
}
