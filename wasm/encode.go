package wasm

import (
	"bytes"
	"encoding/binary"
)

// Encode encodes the module to WebAssembly binary format
func (m *Module) Encode() []byte {
	var w bytes.Buffer

	var header [8]byte
	binary.LittleEndian.PutUint32(header[:4], Magic)
	binary.LittleEndian.PutUint32(header[4:], Version)
	w.Write(header[:])

	if len(m.Types) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.WriteByte(FuncTypeByte)
			writeValTypes(&sec, ft.Params)
			writeValTypes(&sec, ft.Results)
		}
		writeSection(&w, SectionType, sec.Bytes())
	}

	if len(m.Imports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			writeName(&sec, imp.Module)
			writeName(&sec, imp.Name)
			sec.WriteByte(imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				WriteLEB128u(&sec, imp.Desc.TypeIdx)
			case KindMemory:
				if imp.Desc.Memory != nil {
					writeLimits(&sec, imp.Desc.Memory.Limits)
				}
			case KindGlobal:
				if imp.Desc.Global != nil {
					writeGlobalType(&sec, *imp.Desc.Global)
				}
			}
		}
		writeSection(&w, SectionImport, sec.Bytes())
	}

	if len(m.Funcs) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			WriteLEB128u(&sec, typeIdx)
		}
		writeSection(&w, SectionFunction, sec.Bytes())
	}

	if len(m.Memories) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(&sec, mem.Limits)
		}
		writeSection(&w, SectionMemory, sec.Bytes())
	}

	if len(m.Globals) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			writeGlobalType(&sec, g.Type)
			sec.Write(g.Init)
		}
		writeSection(&w, SectionGlobal, sec.Bytes())
	}

	if len(m.Exports) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			writeName(&sec, exp.Name)
			sec.WriteByte(exp.Kind)
			WriteLEB128u(&sec, exp.Idx)
		}
		writeSection(&w, SectionExport, sec.Bytes())
	}

	if len(m.Code) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Code)))
		for _, body := range m.Code {
			var bodyBuf bytes.Buffer
			WriteLEB128u(&bodyBuf, uint32(len(body.Locals)))
			for _, local := range body.Locals {
				WriteLEB128u(&bodyBuf, local.Count)
				bodyBuf.WriteByte(byte(local.ValType))
			}
			bodyBuf.Write(body.Code)
			WriteLEB128u(&sec, uint32(bodyBuf.Len()))
			sec.Write(bodyBuf.Bytes())
		}
		writeSection(&w, SectionCode, sec.Bytes())
	}

	if len(m.Data) > 0 {
		var sec bytes.Buffer
		WriteLEB128u(&sec, uint32(len(m.Data)))
		for _, d := range m.Data {
			WriteLEB128u(&sec, 0) // active, memory 0
			sec.Write(d.Offset)
			WriteLEB128u(&sec, uint32(len(d.Init)))
			sec.Write(d.Init)
		}
		writeSection(&w, SectionData, sec.Bytes())
	}

	return w.Bytes()
}

// HasMagic reports whether data starts with the wasm magic and version.
func HasMagic(data []byte) bool {
	return len(data) >= 8 &&
		binary.LittleEndian.Uint32(data[:4]) == Magic &&
		binary.LittleEndian.Uint32(data[4:8]) == Version
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	WriteLEB128u(w, uint32(len(data)))
	w.Write(data)
}

func writeName(w *bytes.Buffer, s string) {
	WriteLEB128u(w, uint32(len(s)))
	w.WriteString(s)
}

func writeValTypes(w *bytes.Buffer, types []ValType) {
	WriteLEB128u(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(byte(t))
	}
}

func writeLimits(w *bytes.Buffer, l Limits) {
	if l.Max != nil {
		w.WriteByte(LimitsHasMax)
		WriteLEB128u(w, l.Min)
		WriteLEB128u(w, *l.Max)
		return
	}
	w.WriteByte(0)
	WriteLEB128u(w, l.Min)
}

func writeGlobalType(w *bytes.Buffer, g GlobalType) {
	w.WriteByte(byte(g.ValType))
	if g.Mutable {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
}
