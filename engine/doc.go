// Package engine embeds the guest runtime in the Go process using wazero.
//
// Start-up is staged so every failure point can be told apart:
//
//	Engine.CompileLibrary      - read and compile the runtime image
//	CompiledLibrary.MissingEntryPoints - memory and allocator exports present?
//	Engine.InstantiateLibrary  - start the image as module "env" with WASI
//	Library.LoadClass          - load <bundle>/<class>.wasm importing env.memory
//	Class.Method               - resolve "<class>.<name><descriptor>" exports
//
// Each step returns an *errors.Error with its own Kind (library_not_found,
// entry_point_missing, runtime_creation, type_not_found, method_not_found).
//
// # Memory
//
// Class modules share the library's linear memory. Memory performs bounded
// bulk transfers of typed slices (f64, i16, bool) and Allocator calls the
// guest allocator (cabi_realloc or malloc, with cabi_free or free).
//
// # Thread Safety
//
// Engine is safe for concurrent use. Library, Class and Method are NOT and
// must be used from one goroutine at a time.
package engine
