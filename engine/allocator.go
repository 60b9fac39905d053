package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	autopilotbridge "github.com/wippyai/autopilot-bridge"
	"github.com/wippyai/autopilot-bridge/errors"
)

var _ autopilotbridge.Allocator = (*Allocator)(nil)

// Allocator calls the guest's exported allocator.
//
// Supported conventions, picked by parameter count:
//
//	cabi_realloc(old, old_size, align, size) -> ptr
//	malloc(size) -> ptr / alloc(size) -> ptr
//	cabi_free(ptr, size, align) / free(ptr, size) / free(ptr)
type Allocator struct {
	allocFn    api.Function
	freeFn     api.Function
	allocName  string
	stackBuf   []uint64
	stackMutex sync.Mutex
	freeArity  int
	isRealloc  bool
}

func newAllocator(mod api.Module) *Allocator {
	a := &Allocator{stackBuf: make([]uint64, 4)}

	defs := mod.ExportedFunctionDefinitions()
	for _, name := range allocNames {
		if def, ok := defs[name]; ok {
			a.allocFn = mod.ExportedFunction(name)
			a.allocName = name
			a.isRealloc = len(def.ParamTypes()) >= 4
			break
		}
	}

	for _, name := range freeNames {
		if def, ok := defs[name]; ok {
			a.freeFn = mod.ExportedFunction(name)
			a.freeArity = len(def.ParamTypes())
			break
		}
	}
	return a
}

func (a *Allocator) convention() string {
	if a.allocFn == nil {
		return "none"
	}
	return a.allocName
}

// CanFree reports whether the guest exports a deallocator.
func (a *Allocator) CanFree() bool { return a.freeFn != nil }

// Alloc reserves size bytes aligned to align in guest memory.
func (a *Allocator) Alloc(ctx context.Context, size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.New(errors.PhaseLower, errors.KindAllocation).
			Detail("no allocator available").
			Build()
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	var stack []uint64
	if a.isRealloc {
		a.stackBuf[0] = 0
		a.stackBuf[1] = 0
		a.stackBuf[2] = uint64(align)
		a.stackBuf[3] = uint64(size)
		stack = a.stackBuf[:4]
	} else {
		a.stackBuf[0] = uint64(size)
		stack = a.stackBuf[:1]
	}

	if err := a.allocFn.CallWithStack(ctx, stack); err != nil {
		return 0, errors.New(errors.PhaseLower, errors.KindAllocation).
			Detail("%s(%d) trapped", a.allocName, size).
			Cause(err).
			Build()
	}

	ptr := api.DecodeU32(stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseLower, size, align)
	}
	if align > 1 && ptr%align != 0 {
		return 0, errors.New(errors.PhaseLower, errors.KindAllocation).
			Detail("%s returned misaligned pointer %d (align %d)", a.allocName, ptr, align).
			Build()
	}
	return ptr, nil
}

// Free returns a block to the guest. It is a no-op when the guest has no
// deallocator.
func (a *Allocator) Free(ctx context.Context, ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	a.stackBuf[0] = uint64(ptr)
	a.stackBuf[1] = uint64(size)
	a.stackBuf[2] = uint64(align)
	n := a.freeArity
	if n < 1 {
		n = 1
	}
	if err := a.freeFn.CallWithStack(ctx, a.stackBuf[:n]); err != nil {
		Logger().Warn("Free: guest deallocator failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

func (a *Allocator) String() string {
	return fmt.Sprintf("allocator(%s, free=%v)", a.convention(), a.CanFree())
}
