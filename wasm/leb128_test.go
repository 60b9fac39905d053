package wasm_test

import (
	"bytes"
	"testing"

	"github.com/wippyai/autopilot-bridge/wasm"
)

func TestWriteLEB128u(t *testing.T) {
	tests := []struct {
		want  []byte
		value uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0x80, 0x20}, 4096},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		wasm.WriteLEB128u(&buf, tt.value)
		if !bytes.Equal(buf.Bytes(), tt.want) {
			t.Errorf("%d: got %x, want %x", tt.value, buf.Bytes(), tt.want)
		}
	}
}

func TestWriteLEB128s(t *testing.T) {
	tests := []struct {
		want  []byte
		value int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0x40}, -64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0xe4, 0x00}, 100},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, -2147483648},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		wasm.WriteLEB128s(&buf, tt.value)
		if !bytes.Equal(buf.Bytes(), tt.want) {
			t.Errorf("%d: got %x, want %x", tt.value, buf.Bytes(), tt.want)
		}
	}
}

func TestWriteFloat64(t *testing.T) {
	var buf bytes.Buffer
	wasm.WriteFloat64(&buf, 1.5)
	want := []byte{0, 0, 0, 0, 0, 0, 0xf8, 0x3f}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %v, want %v", buf.Bytes(), want)
	}
}
