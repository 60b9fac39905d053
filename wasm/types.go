package wasm

// Module is an MVP WebAssembly module ready to be encoded.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Memories []MemoryType
	Globals  []Global
	Exports  []Export
	Code     []FuncBody
	Data     []DataSegment
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "unknown"
	}
}

// Import represents an imported function, memory or global.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item.
// Kind uses KindFunc, KindMemory or KindGlobal.
type ImportDesc struct {
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32
	Kind    byte
}

// MemoryType describes a linear memory with size limits.
type MemoryType struct {
	Limits Limits
}

// Limits describes size constraints for memories.
type Limits struct {
	Max *uint32
	Min uint32
}

// GlobalType describes a global variable's type and mutability.
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Global represents a global variable with type and initialization.
type Global struct {
	Type GlobalType
	Init []byte // Encoded constant expression including end opcode
}

// Export describes an exported item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody represents a function's local declarations and bytecode.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // Raw code bytes including end opcode
}

// LocalEntry represents a group of local variables with the same type.
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// DataSegment is an active data segment for memory 0.
type DataSegment struct {
	Offset []byte // Encoded constant expression including end opcode
	Init   []byte
}

// NumImportedFuncs returns the number of imported functions
func (m *Module) NumImportedFuncs() int {
	count := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			count++
		}
	}
	return count
}

// AddType adds a function type and returns its index, reusing existing if equal
func (m *Module) AddType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if typesEqual(t, ft) {
			return uint32(i)
		}
	}
	idx := uint32(len(m.Types))
	m.Types = append(m.Types, ft)
	return idx
}

// AddFunc declares a function with its body and returns its function index.
func (m *Module) AddFunc(ft FuncType, body FuncBody) uint32 {
	typeIdx := m.AddType(ft)
	idx := uint32(m.NumImportedFuncs() + len(m.Funcs))
	m.Funcs = append(m.Funcs, typeIdx)
	m.Code = append(m.Code, body)
	return idx
}

// ExportFunc exports the function at funcIdx under name.
func (m *Module) ExportFunc(name string, funcIdx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Idx: funcIdx})
}

func typesEqual(a, b FuncType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
