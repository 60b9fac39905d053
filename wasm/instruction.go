package wasm

import (
	"bytes"
)

// Instruction is a single WebAssembly instruction with its immediate.
type Instruction struct {
	Imm    interface{}
	Opcode byte
}

// BlockImm holds the block type for block, loop and if instructions.
type BlockImm struct {
	Type int32 // Block type: -64=void, -1=i32, -4=f64, >=0=type index
}

// BranchImm holds the label index for br and br_if instructions.
type BranchImm struct {
	LabelIdx uint32
}

// CallImm holds the function index for call instruction.
type CallImm struct {
	FuncIdx uint32
}

// LocalImm holds the local index for local.get, local.set, local.tee.
type LocalImm struct {
	LocalIdx uint32
}

// GlobalImm holds the global index for global.get and global.set.
type GlobalImm struct {
	GlobalIdx uint32
}

// MemoryImm holds memory access parameters for load and store instructions.
type MemoryImm struct {
	Offset uint32
	Align  uint32 // log2 of the alignment
}

// I32Imm holds the constant value for i32.const instruction.
type I32Imm struct {
	Value int32
}

// F64Imm holds the constant value for f64.const instruction.
type F64Imm struct {
	Value float64
}

// EncodeInstructionTo writes a single instruction to the provided buffer.
func EncodeInstructionTo(buf *bytes.Buffer, instr *Instruction) {
	buf.WriteByte(instr.Opcode)

	switch instr.Opcode {
	case OpBlock, OpLoop, OpIf:
		imm := instr.Imm.(BlockImm)
		WriteLEB128s(buf, imm.Type)

	case OpBr, OpBrIf:
		imm := instr.Imm.(BranchImm)
		WriteLEB128u(buf, imm.LabelIdx)

	case OpCall:
		imm := instr.Imm.(CallImm)
		WriteLEB128u(buf, imm.FuncIdx)

	case OpLocalGet, OpLocalSet:
		imm := instr.Imm.(LocalImm)
		WriteLEB128u(buf, imm.LocalIdx)

	case OpGlobalGet, OpGlobalSet:
		imm := instr.Imm.(GlobalImm)
		WriteLEB128u(buf, imm.GlobalIdx)

	case OpI32Load, OpF64Load, OpI32Load8U, OpI32Load16S,
		OpI32Store, OpF64Store, OpI32Store8:
		imm := instr.Imm.(MemoryImm)
		WriteLEB128u(buf, imm.Align)
		WriteLEB128u(buf, imm.Offset)

	case OpMemorySize, OpMemoryGrow:
		buf.WriteByte(0x00)

	case OpI32Const:
		imm := instr.Imm.(I32Imm)
		WriteLEB128s(buf, imm.Value)

	case OpF64Const:
		imm := instr.Imm.(F64Imm)
		WriteFloat64(buf, imm.Value)
	}
}

// EncodeInstructionsTo writes multiple instructions to the provided buffer.
func EncodeInstructionsTo(buf *bytes.Buffer, instrs []Instruction) {
	for i := range instrs {
		EncodeInstructionTo(buf, &instrs[i])
	}
}

// EncodeInstructions encodes instructions to bytes
func EncodeInstructions(instrs []Instruction) []byte {
	var buf bytes.Buffer
	buf.Grow(len(instrs) * 3)
	EncodeInstructionsTo(&buf, instrs)
	return buf.Bytes()
}

// ConstExpr encodes a constant expression (instructions followed by end).
func ConstExpr(instrs ...Instruction) []byte {
	return EncodeInstructions(append(instrs, Op(OpEnd)))
}

// Op returns an instruction without immediates.
func Op(opcode byte) Instruction { return Instruction{Opcode: opcode} }

// Instruction constructors.

func I32Const(v int32) Instruction {
	return Instruction{Opcode: OpI32Const, Imm: I32Imm{Value: v}}
}

func F64Const(v float64) Instruction {
	return Instruction{Opcode: OpF64Const, Imm: F64Imm{Value: v}}
}

func LocalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalGet, Imm: LocalImm{LocalIdx: idx}}
}

func LocalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpLocalSet, Imm: LocalImm{LocalIdx: idx}}
}

func GlobalGet(idx uint32) Instruction {
	return Instruction{Opcode: OpGlobalGet, Imm: GlobalImm{GlobalIdx: idx}}
}

func GlobalSet(idx uint32) Instruction {
	return Instruction{Opcode: OpGlobalSet, Imm: GlobalImm{GlobalIdx: idx}}
}

func Block(blockType int32) Instruction {
	return Instruction{Opcode: OpBlock, Imm: BlockImm{Type: blockType}}
}

func Loop(blockType int32) Instruction {
	return Instruction{Opcode: OpLoop, Imm: BlockImm{Type: blockType}}
}

func If(blockType int32) Instruction {
	return Instruction{Opcode: OpIf, Imm: BlockImm{Type: blockType}}
}

func Br(label uint32) Instruction {
	return Instruction{Opcode: OpBr, Imm: BranchImm{LabelIdx: label}}
}

func BrIf(label uint32) Instruction {
	return Instruction{Opcode: OpBrIf, Imm: BranchImm{LabelIdx: label}}
}

func Call(funcIdx uint32) Instruction {
	return Instruction{Opcode: OpCall, Imm: CallImm{FuncIdx: funcIdx}}
}

// Mem returns a load or store instruction with the given log2 alignment and offset.
func Mem(opcode byte, align, offset uint32) Instruction {
	return Instruction{Opcode: opcode, Imm: MemoryImm{Align: align, Offset: offset}}
}
