// Package errors provides structured error types for the autopilot bridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the remote operation, argument path, Go/WIT type names and
// the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLower, errors.KindTypeMismatch).
//		Op("l2solve(ZZIII[D[D[Z[D)I").
//		Path("arg5").
//		GoType("[]float32").
//		WitType("list<f64>").
//		Build()
//
// Start-up failures each have their own Kind (LibraryNotFound, EntryPointMissing,
// RuntimeCreation, TypeNotFound, MethodNotFound) so callers can map them to stable
// status codes.
//
// All errors implement the standard error interface and support errors.Is/As.
// A target with an empty Phase matches on Kind alone:
//
//	errors.Is(err, &errors.Error{Kind: errors.KindTrap})
package errors
