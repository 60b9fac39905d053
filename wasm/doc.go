// Package wasm encodes MVP WebAssembly modules.
//
// It covers the subset of the binary format needed to assemble small
// reactor modules programmatically: function types, memory and global
// imports, functions, memories, mutable globals, exports, code and active
// data segments.
//
// # Encoding
//
//	m := &wasm.Module{}
//	m.Memories = append(m.Memories, wasm.MemoryType{Limits: wasm.Limits{Min: 1}})
//	idx := m.AddFunc(wasm.FuncType{Results: []wasm.ValType{wasm.ValI32}}, wasm.FuncBody{
//	    Code: wasm.EncodeInstructions([]wasm.Instruction{
//	        wasm.I32Const(42),
//	        wasm.Op(wasm.OpEnd),
//	    }),
//	})
//	m.ExportFunc("answer", idx)
//	data := m.Encode()
//
// Instructions carry typed immediates (BlockImm, LocalImm, MemoryImm, ...)
// and are encoded with EncodeInstructions. Constant expressions for global
// initializers and data offsets are built with ConstExpr.
package wasm
