package engine

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/tetratelabs/wazero/api"

	autopilotbridge "github.com/wippyai/autopilot-bridge"
	"github.com/wippyai/autopilot-bridge/errors"
)

var _ autopilotbridge.Memory = (*Memory)(nil)

// hostLittleEndian is true when Go values share the guest byte order, so
// typed slices can be copied into linear memory without conversion.
var hostLittleEndian = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 1
}()

// Memory wraps wazero memory with bounds-checked bulk transfers.
//
// Every transfer is a single bounded region: the (offset, element size,
// length) triple is checked once and the data is copied in one pass.
type Memory struct {
	mem api.Memory
}

// Size returns the current linear memory size in bytes.
func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// view returns the guest bytes [offset, offset+length) without copying.
func (m *Memory) view(phase errors.Phase, offset, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(phase, offset, length)
	}
	return data, nil
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	data, err := m.view(errors.PhaseLift, offset, length)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Write copies data to offset.
func (m *Memory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseLower, offset, uint32(len(data)))
	}
	return nil
}

// ReadU32 reads a little-endian uint32.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseLift, offset, 4)
	}
	return val, nil
}

// WriteU32 writes a little-endian uint32.
func (m *Memory) WriteU32(offset, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseLower, offset, 4)
	}
	return nil
}

// WriteFloat64s copies src into guest memory as consecutive f64 values.
func (m *Memory) WriteFloat64s(offset uint32, src []float64) error {
	dst, err := m.view(errors.PhaseLower, offset, uint32(len(src))*8)
	if err != nil || len(src) == 0 {
		return err
	}
	if hostLittleEndian {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*8))
		return nil
	}
	for i, v := range src {
		binary.LittleEndian.PutUint64(dst[i*8:], math.Float64bits(v))
	}
	return nil
}

// ReadFloat64s fills dst with consecutive f64 values from guest memory.
func (m *Memory) ReadFloat64s(offset uint32, dst []float64) error {
	src, err := m.view(errors.PhaseLift, offset, uint32(len(dst))*8)
	if err != nil || len(dst) == 0 {
		return err
	}
	if hostLittleEndian {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&dst[0])), len(dst)*8), src)
		return nil
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[i*8:]))
	}
	return nil
}

// WriteBools copies src into guest memory as one byte per value (0 or 1).
func (m *Memory) WriteBools(offset uint32, src []bool) error {
	dst, err := m.view(errors.PhaseLower, offset, uint32(len(src)))
	if err != nil || len(src) == 0 {
		return err
	}
	// Go stores bool as a single 0/1 byte.
	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)))
	return nil
}

// WriteInt16s copies src into guest memory as consecutive little-endian i16
// values.
func (m *Memory) WriteInt16s(offset uint32, src []int16) error {
	dst, err := m.view(errors.PhaseLower, offset, uint32(len(src))*2)
	if err != nil || len(src) == 0 {
		return err
	}
	if hostLittleEndian {
		copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*2))
		return nil
	}
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(v))
	}
	return nil
}

// ReadString reads a UTF-8 string of length bytes.
func (m *Memory) ReadString(offset, length uint32) (string, error) {
	data, err := m.view(errors.PhaseLift, offset, length)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
