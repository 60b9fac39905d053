package wasm

import (
	"bytes"
	"encoding/binary"
	"math"
)

// WriteLEB128u appends v as unsigned LEB128.
func WriteLEB128u(w *bytes.Buffer, v uint32) {
	for v >= 0x80 {
		w.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	w.WriteByte(byte(v))
}

// WriteLEB128s appends v as signed LEB128. Block types and i32.const
// immediates use this form.
func WriteLEB128s(w *bytes.Buffer, v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		w.WriteByte(b)
		if done {
			return
		}
	}
}

// WriteFloat64 appends v as a little-endian IEEE 754 double.
func WriteFloat64(w *bytes.Buffer, v float64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	w.Write(buf[:])
}
