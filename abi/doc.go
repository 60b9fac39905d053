// Package abi lowers method descriptors to core WebAssembly function types.
//
// Descriptor types are first mapped to WIT types and then flattened with the
// Canonical ABI rules:
//
//	Descriptor          WIT          Core
//	──────────────────────────────────────────────
//	Z B C S I           bool..s32    i32
//	J                   s64          i64
//	F / D               f32 / f64    f32 / f64
//	[T                  list<T>      (ptr i32, len i32)
//	Ljava/lang/String;  string       (ptr i32, len i32)
//	Ljava/nio/ByteBuffer; list<u8>   (ptr i32, len i32)
//
// When the flat result count exceeds MaxFlatResults the export returns a
// single i32 pointing at the flat result tuple in linear memory.
package abi
