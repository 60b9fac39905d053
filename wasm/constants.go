package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs, in the order they must appear.
const (
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionCode     byte = 10
	SectionData     byte = 11
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

// Value type encodings.
const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

// Type section and limits markers.
const (
	FuncTypeByte byte = 0x60
	LimitsHasMax byte = 0x01
)

// Block types for block, loop and if.
const (
	BlockTypeEmpty int32 = -64 // 0x40
	BlockTypeI32   int32 = -1  // 0x7F
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

// Control instructions
const (
	OpUnreachable byte = 0x00
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpEnd         byte = 0x0B
	OpBr          byte = 0x0C
	OpBrIf        byte = 0x0D
	OpCall        byte = 0x10
)

// Variable instructions
const (
	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24
)

// Memory instructions
const (
	OpI32Load    byte = 0x28
	OpF64Load    byte = 0x2B
	OpI32Load8U  byte = 0x2D
	OpI32Load16S byte = 0x2E
	OpI32Store   byte = 0x36
	OpF64Store   byte = 0x39
	OpI32Store8  byte = 0x3A
	OpMemorySize byte = 0x3F
	OpMemoryGrow byte = 0x40
)

// Numeric instructions
const (
	OpI32Const byte = 0x41
	OpF64Const byte = 0x44

	OpI32Eq  byte = 0x46
	OpI32LeS byte = 0x4C
	OpI32LeU byte = 0x4D
	OpI32GeU byte = 0x4F

	OpI32Add  byte = 0x6A
	OpI32Sub  byte = 0x6B
	OpI32And  byte = 0x71
	OpI32Shl  byte = 0x74
	OpI32ShrU byte = 0x76

	OpF64Add byte = 0xA0
	OpF64Mul byte = 0xA2
	OpF64Div byte = 0xA3

	OpF64ConvertI32S byte = 0xB7
)
