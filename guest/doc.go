// Package guest generates the reference runtime image and AutoPilotC class
// module used by tests and the "stub" command.
//
// The runtime image exports a linear memory and a bump allocator. The class
// module imports that memory as env.memory and exports one function per
// method, named "<class>.<method><descriptor>". The method bodies are not
// the real solvers; they compute simple values that make marshaling
// mistakes visible (see Class).
//
// RuntimeOptions and ClassOptions remove or break individual pieces so each
// start-up failure can be produced on demand.
package guest
