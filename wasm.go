package autopilotbridge

import "context"

// Memory is the guest linear memory as seen by the marshaling layer.
// Arrays move with one bulk call each.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset, value uint32) error
	ReadString(offset, length uint32) (string, error)
	ReadFloat64s(offset uint32, dst []float64) error
	WriteFloat64s(offset uint32, src []float64) error
	WriteBools(offset uint32, src []bool) error
	WriteInt16s(offset uint32, src []int16) error
}

// Allocator allocates in guest memory through the runtime's exports.
// Free is a no-op when the runtime exports no release function.
type Allocator interface {
	Alloc(ctx context.Context, size, align uint32) (uint32, error)
	Free(ctx context.Context, ptr, size, align uint32)
}
