// Package autopilot is the typed call session over an AutoPilotC class
// running in the embedded runtime.
//
// Open performs the staged start-up and resolves every remote operation
// once:
//
//	s, err := autopilot.Open(ctx, "runtime.wasm", "bundle")
//	if err != nil {
//		code := autopilot.StartCode(err) // 1..5, or 100
//	}
//	defer s.Stop(ctx)
//
//	status, err := s.L2SolveSingle(ctx, req, newState)
//
// Every operation returns (value, error). A guest trap is an error of kind
// trap; the message the class recorded for it is fetched separately with
// LastException.
//
// Arrays cross the boundary in one bulk copy per array. Their lengths are
// fixed by (wavelengths, planes), see StateVectorLength and friends, and are
// checked before anything is written to guest memory.
//
// # Thread Safety
//
// Session is safe for concurrent use. Calls are serialized on one lock
// because the guest instance is single-threaded.
package autopilot
