// Package bridge exposes the AutoPilot call surface with status codes and
// sentinel values instead of Go errors.
//
// It is the layer the C library wraps. Every operation clears the last
// error on entry, recovers from any panic, and reports failure through its
// return value:
//
//	Begin           start code (0 ok, 1..5 per stage, 100 otherwise)
//	End             0, or 1 on failure
//	DCTS16Bit       focus measure, or -1
//	Tenengrad16Bit  focus measure, or -1
//	L2SolveSSP      solver status, or -2
//	L2Solve         solver status, or -2
//	QPSolve         solver status, or -2
//
// LastError returns the pending exception message of the class when the last
// operation reached the class, then the bridge's own last error, then NoError.
package bridge
