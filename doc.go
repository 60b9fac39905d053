// Package autopilotbridge calls the AutoPilot focus measures and solvers
// hosted in an embedded WebAssembly runtime.
//
// A runtime image (memory plus an allocator) is instantiated once, the
// AutoPilotC class module is loaded from a bundle directory against that
// memory, and its methods are resolved by name and type descriptor. Go
// buffers are copied into guest memory for each call and results are
// copied back.
//
// # Packages
//
//	autopilotbridge/    Guest Memory and Allocator interfaces
//	├── autopilot/      Session: start-up, method table, typed calls
//	├── bridge/         Status-code surface with last-error side channel
//	├── engine/         wazero integration: library, class, methods, memory
//	├── abi/            Descriptor to core signature lowering
//	├── descriptor/     Method type descriptor parser
//	├── errors/         Structured error types
//	├── config/         YAML configuration
//	├── guest/          Reference runtime image and AutoPilotC class
//	├── wasm/           WebAssembly binary encoder used by guest
//	└── cmd/
//	    ├── autopilot/      CLI: probe, focus, solve, stub, interactive
//	    └── libautopilot/   C shared library with the native exports
//
// # Quick Start
//
//	s, err := autopilot.Open(ctx, "runtime.wasm", "bundle")
//	if err != nil {
//	    log.Fatalf("start code %d: %v", autopilot.StartCode(err), err)
//	}
//	defer s.Close(ctx)
//
//	m, err := s.DCTS16(ctx, samples, width, height, 3)
//
// # Start Codes
//
//	0    started
//	1    runtime image not found or not a module
//	2    runtime image lacks memory or allocator exports
//	3    runtime instantiation failed
//	4    class not found in the bundle
//	5    a method did not resolve or has the wrong type
//	100  anything else
package autopilotbridge
