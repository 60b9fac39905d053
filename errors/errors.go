package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseStart   Phase = "start"   // runtime/class bring-up
	PhaseResolve Phase = "resolve" // method handle lookup
	PhaseParse   Phase = "parse"   // descriptor parsing
	PhaseLower   Phase = "lower"   // Go to guest memory
	PhaseLift    Phase = "lift"    // guest memory to Go
	PhaseInvoke  Phase = "invoke"  // remote call
	PhaseSession Phase = "session" // session lifecycle
	PhaseConfig  Phase = "config"  // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindLibraryNotFound   Kind = "library_not_found"
	KindEntryPointMissing Kind = "entry_point_missing"
	KindRuntimeCreation   Kind = "runtime_creation"
	KindTypeNotFound      Kind = "type_not_found"
	KindMethodNotFound    Kind = "method_not_found"
	KindSignatureMismatch Kind = "signature_mismatch"
	KindInvalidDescriptor Kind = "invalid_descriptor"
	KindUnsupported       Kind = "unsupported"
	KindTypeMismatch      Kind = "type_mismatch"
	KindLengthMismatch    Kind = "length_mismatch"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindAllocation        Kind = "allocation"
	KindTrap              Kind = "trap"
	KindNotStarted        Kind = "not_started"
	KindInvalidInput      Kind = "invalid_input"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Op      string
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.WitType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the remote operation the error belongs to
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Path sets the argument path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error for an argument
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// LengthMismatch creates an error for a buffer whose length differs from the derived one
func LengthMismatch(op string, path []string, got, want int) *Error {
	return &Error{
		Phase:  PhaseLower,
		Kind:   KindLengthMismatch,
		Op:     op,
		Path:   path,
		Detail: fmt.Sprintf("buffer has %d elements, expected %d", got, want),
		Value:  got,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(phase Phase, size, align uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
	}
}

// OutOfBounds creates a guest memory access error
func OutOfBounds(phase Phase, offset, length uint32) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("guest memory access out of bounds: offset=%d, length=%d", offset, length),
		Value:  offset,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// InvalidDescriptor creates a descriptor parse error at a byte offset
func InvalidDescriptor(desc string, offset int, detail string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidDescriptor,
		Detail: fmt.Sprintf("%q at offset %d: %s", desc, offset, detail),
		Value:  offset,
	}
}

// Trap wraps a failure raised while the guest was executing
func Trap(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindTrap,
		Op:     op,
		Detail: "remote operation failed",
		Cause:  cause,
	}
}

// NotStarted creates an error for calls made outside a running session
func NotStarted(op string) *Error {
	return &Error{
		Phase:  PhaseSession,
		Kind:   KindNotStarted,
		Op:     op,
		Detail: "session is not running",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Start-up failures, one Kind per stage.

// LibraryNotFound reports that the runtime image could not be read or is not a module
func LibraryNotFound(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindLibraryNotFound,
		Detail: fmt.Sprintf("cannot load runtime library %q (wrong path given)", path),
		Cause:  cause,
	}
}

// EntryPointMissing reports runtime exports the bridge cannot work without
func EntryPointMissing(missing []string) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindEntryPointMissing,
		Detail: fmt.Sprintf("runtime library lacks entry points: %s", strings.Join(missing, ", ")),
	}
}

// RuntimeCreation reports a failure to bring the embedded runtime up
func RuntimeCreation(cause error) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindRuntimeCreation,
		Detail: "cannot create embedded runtime",
		Cause:  cause,
	}
}

// TypeNotFound reports that the target class could not be loaded from the bundle
func TypeNotFound(class string, cause error) *Error {
	return &Error{
		Phase:  PhaseStart,
		Kind:   KindTypeNotFound,
		Detail: fmt.Sprintf("class %q not found", class),
		Cause:  cause,
	}
}

// MethodNotFound reports that one or more remote operation handles did not resolve
func MethodNotFound(keys []string, cause error) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMethodNotFound,
		Detail: fmt.Sprintf("unresolved methods: %s", strings.Join(keys, ", ")),
		Cause:  cause,
	}
}
