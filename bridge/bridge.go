package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/autopilot"
	"github.com/wippyai/autopilot-bridge/errors"
)

// NoError is reported by LastError when nothing failed.
const NoError = "No Error"

// Failure sentinels.
const (
	FocusFailure = -1.0
	SolveFailure = -2
	EndFailure   = 1
)

// Human-readable failure messages recorded as the last error.
const (
	MsgLibraryNotFound   = "Cannot load runtime library (wrong path given)"
	MsgEntryPointMissing = "Cannot load runtime library (entry points missing)"
	MsgRuntimeCreation   = "Error while creating embedded runtime"
	MsgClassNotFound     = "Cannot find class " + autopilot.DefaultClass
	MsgMethodNotFound    = "Cannot resolve AutoPilotC methods"
	MsgAlreadyRunning    = "Embedded runtime already running"
	MsgStop              = "Error while destroying embedded runtime"
	MsgLoggingOptions    = "Error while setting logging options"
	MsgDCTS              = "Error while computing dcts focus measure"
	MsgTenengrad         = "Error while computing tenengrad focus measure"
	MsgL2Solve           = "Error while running L2 solver"
	MsgQPSolve           = "Error while running QP solver"
	MsgException         = "Error while obtaining the exception string"
)

var startMessages = map[int]string{
	autopilot.CodeLibraryNotFound:   MsgLibraryNotFound,
	autopilot.CodeEntryPointMissing: MsgEntryPointMissing,
	autopilot.CodeRuntimeCreation:   MsgRuntimeCreation,
	autopilot.CodeClassNotFound:     MsgClassNotFound,
	autopilot.CodeMethodNotFound:    MsgMethodNotFound,
	autopilot.CodeUnknown:           MsgRuntimeCreation,
}

// Bridge owns at most one session. All state is guarded by one mutex, so
// the operations may be called from any goroutine.
type Bridge struct {
	session   *autopilot.Session
	log       *zap.Logger
	lastCause error
	opts      []autopilot.Option
	lastErr   string
	exception string
	mu        sync.Mutex
	// reached is set when the last operation invoked the class, the only
	// case in which its exception slot belongs to that operation.
	reached bool
}

// New creates a bridge. opts are passed to every autopilot.Open.
func New(log *zap.Logger, opts ...autopilot.Option) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		log:     log,
		opts:    append([]autopilot.Option{autopilot.WithLogger(log)}, opts...),
		lastErr: NoError,
	}
}

// catch converts a panic into the failure sentinel. It must be deferred
// directly by the operation.
func catch[T any](b *Bridge, msg string, out *T, sentinel T) {
	if r := recover(); r != nil {
		b.lastErr = msg
		b.lastCause = fmt.Errorf("panic: %v", r)
		b.log.Error("recovered panic", zap.String("message", msg), zap.Any("panic", r), zap.Stack("stack"))
		*out = sentinel
	}
}

func (b *Bridge) clearLocked() {
	b.lastErr = NoError
	b.lastCause = nil
	b.reached = false
}

// settleLocked records whether a session call got as far as the class.
// Failures raised before the invocation (length checks, lowering, a stopped
// session) leave the class's exception slot as an earlier call left it.
func (b *Bridge) settleLocked(err error) {
	b.reached = err == nil || errors.KindOf(err) == errors.KindTrap
}

func (b *Bridge) failLocked(msg string, err error) {
	b.lastErr = msg
	b.lastCause = err
	b.log.Debug("operation failed", zap.String("message", msg), zap.Error(err))
}

func (b *Bridge) sessionLocked(op string) (*autopilot.Session, error) {
	if b.session == nil || !b.session.Running() {
		return nil, errors.NotStarted(op)
	}
	return b.session, nil
}

// Begin starts the runtime image at runtimePath with the class bundle at
// bundlePath and returns its start code.
func (b *Bridge) Begin(runtimePath, bundlePath string) (code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	defer catch(b, MsgRuntimeCreation, &code, autopilot.CodeUnknown)

	if b.session != nil && b.session.Running() {
		b.failLocked(MsgAlreadyRunning, nil)
		return autopilot.CodeRuntimeCreation
	}

	s, err := autopilot.Open(context.Background(), runtimePath, bundlePath, b.opts...)
	if err != nil {
		code = autopilot.StartCode(err)
		b.failLocked(startMessages[code], err)
		return code
	}

	if b.session != nil {
		// a stopped session kept alive by the non-teardown default
		_ = b.session.Close(context.Background())
	}
	b.session = s
	b.exception = ""
	return autopilot.CodeOK
}

// End stops the session. Stopping a bridge that never started succeeds.
func (b *Bridge) End() (code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	defer catch(b, MsgStop, &code, EndFailure)

	if b.session == nil {
		return 0
	}
	if err := b.session.Stop(context.Background()); err != nil {
		b.failLocked(MsgStop, err)
		return EndFailure
	}
	return 0
}

// Close releases the runtime regardless of the teardown setting.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close(context.Background())
	b.session = nil
	return err
}

// SetLoggingOptions forwards the stdout and file logging flags.
func (b *Bridge) SetLoggingOptions(stdout, file bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	var none struct{}
	defer catch(b, MsgLoggingOptions, &none, struct{}{})

	s, err := b.sessionLocked("set_logging_options")
	if err == nil {
		err = s.SetLoggingOptions(context.Background(), stdout, file)
		b.settleLocked(err)
	}
	if err != nil {
		b.failLocked(MsgLoggingOptions, err)
	}
}

// DCTS16Bit returns the DCT focus measure, or FocusFailure.
func (b *Bridge) DCTS16Bit(samples []int16, width, height int32, psf float64) (out float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	defer catch(b, MsgDCTS, &out, FocusFailure)

	s, err := b.sessionLocked("dcts16bit")
	if err == nil {
		out, err = s.DCTS16(context.Background(), samples, width, height, psf)
		b.settleLocked(err)
	}
	if err != nil {
		b.failLocked(MsgDCTS, err)
		return FocusFailure
	}
	return out
}

// Tenengrad16Bit returns the Tenengrad focus measure, or FocusFailure.
func (b *Bridge) Tenengrad16Bit(samples []int16, width, height int32, psf float64) (out float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	defer catch(b, MsgTenengrad, &out, FocusFailure)

	s, err := b.sessionLocked("tenengrad16bit")
	if err == nil {
		out, err = s.Tenengrad16(context.Background(), samples, width, height, psf)
		b.settleLocked(err)
	}
	if err != nil {
		b.failLocked(MsgTenengrad, err)
		return FocusFailure
	}
	return out
}

// L2SolveSSP runs the single sync plane solver. newState is updated in
// place. It returns the solver status or SolveFailure.
func (b *Bridge) L2SolveSSP(detect, symmetric bool, wavelengths, planes, syncPlane int32,
	oldState, observations []float64, missing []bool, newState []float64,
) int {
	return b.solve(MsgL2Solve, "l2solve_single", newState, func(s *autopilot.Session, newState []float64) (int32, error) {
		return s.L2SolveSingle(context.Background(), autopilot.SolveRequest{
			DetectAnchor:   detect,
			AnchorSymmetry: symmetric,
			Wavelengths:    wavelengths,
			Planes:         planes,
			SyncPlane:      syncPlane,
			OldState:       oldState,
			Observations:   observations,
			Missing:        missing,
		}, newState)
	})
}

// L2Solve runs the multi sync plane solver.
func (b *Bridge) L2Solve(detect, symmetric bool, wavelengths, planes int32, syncPlanes []bool,
	oldState, observations []float64, missing []bool, newState []float64,
) int {
	return b.solve(MsgL2Solve, "l2solve_multi", newState, func(s *autopilot.Session, newState []float64) (int32, error) {
		return s.L2SolveMulti(context.Background(), autopilot.SolveRequest{
			DetectAnchor:   detect,
			AnchorSymmetry: symmetric,
			Wavelengths:    wavelengths,
			Planes:         planes,
			SyncPlanes:     syncPlanes,
			OldState:       oldState,
			Observations:   observations,
			Missing:        missing,
		}, newState)
	})
}

// QPSolve runs the quadratic-program solver.
func (b *Bridge) QPSolve(detect, symmetric bool, wavelengths, planes int32, syncPlanes []bool,
	oldState, observations []float64, missing []bool, maxCorrection, newState []float64,
) int {
	return b.solve(MsgQPSolve, "qpsolve", newState, func(s *autopilot.Session, newState []float64) (int32, error) {
		return s.QPSolve(context.Background(), autopilot.SolveRequest{
			DetectAnchor:   detect,
			AnchorSymmetry: symmetric,
			Wavelengths:    wavelengths,
			Planes:         planes,
			SyncPlanes:     syncPlanes,
			OldState:       oldState,
			Observations:   observations,
			Missing:        missing,
			MaxCorrection:  maxCorrection,
		}, newState)
	})
}

func (b *Bridge) solve(msg, op string, newState []float64, fn func(*autopilot.Session, []float64) (int32, error)) (status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	defer catch(b, msg, &status, SolveFailure)

	s, err := b.sessionLocked(op)
	if err != nil {
		b.failLocked(msg, err)
		return SolveFailure
	}
	st, err := fn(s, newState)
	b.settleLocked(err)
	if err != nil {
		b.failLocked(msg, err)
		return SolveFailure
	}
	return int(st)
}

// LastExceptionMessage queries the class for its pending exception. The
// message is cached until the next query replaces it. ok is false when no
// exception is pending or no session is running.
func (b *Bridge) LastExceptionMessage() (msg string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exceptionLocked()
}

func (b *Bridge) exceptionLocked() (msg string, ok bool) {
	defer catch(b, MsgException, &msg, MsgException)

	b.exception = ""
	if b.session == nil || !b.session.Running() {
		return "", false
	}
	m, ok, err := b.session.LastException(context.Background())
	if err != nil {
		b.log.Debug("exception query failed", zap.Error(err))
		return MsgException, true
	}
	if !ok {
		return "", false
	}
	b.exception = m
	return m, true
}

// LastError returns the pending exception message when the last operation
// reached the class, else the last local error, else NoError. It does not
// clear the local error.
func (b *Bridge) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reached {
		if msg, ok := b.exceptionLocked(); ok {
			return msg
		}
	}
	return b.lastErr
}

// LastCause returns the error behind the last local failure, if any.
func (b *Bridge) LastCause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCause
}

// ClearError resets the local error to NoError.
func (b *Bridge) ClearError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}
