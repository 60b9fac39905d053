package autopilot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wippyai/autopilot-bridge/engine"
	"github.com/wippyai/autopilot-bridge/errors"
)

// Start codes returned by StartCode.
const (
	CodeOK                = 0
	CodeLibraryNotFound   = 1
	CodeEntryPointMissing = 2
	CodeRuntimeCreation   = 3
	CodeClassNotFound     = 4
	CodeMethodNotFound    = 5
	CodeUnknown           = 100
)

// Method names and descriptors of the AutoPilotC class.
const (
	DescGetLastExceptionMessage = "()Ljava/lang/String;"
	DescSetLoggingOptions       = "(ZZ)V"
	DescFocusMeasure            = "(Ljava/nio/ByteBuffer;IID)D"
	DescL2SolveSingle           = "(ZZIII[D[D[Z[D)I"
	DescL2SolveMulti            = "(ZZII[Z[D[D[Z[D)I"
	DescQPSolve                 = "(ZZII[Z[D[D[Z[D[D)I"
)

type methodID int

const (
	methodLastException methodID = iota
	methodSetLogging
	methodDCTS
	methodTenengrad
	methodL2Single
	methodL2Multi
	methodQP
	numMethods
)

// remoteMethods is the fixed method set resolved at start-up. op is the
// label used in logs, spans and metrics.
var remoteMethods = [numMethods]struct {
	name, desc, op string
}{
	methodLastException: {"getLastExceptionMessage", DescGetLastExceptionMessage, "get_last_exception"},
	methodSetLogging:    {"setLoggingOptions", DescSetLoggingOptions, "set_logging_options"},
	methodDCTS:          {"dcts16bit", DescFocusMeasure, "dcts16bit"},
	methodTenengrad:     {"tenengrad16bit", DescFocusMeasure, "tenengrad16bit"},
	methodL2Single:      {"l2solve", DescL2SolveSingle, "l2solve_single"},
	methodL2Multi:       {"l2solve", DescL2SolveMulti, "l2solve_multi"},
	methodQP:            {"qpsolve", DescQPSolve, "qpsolve"},
}

// Session is one live connection to the AutoPilotC class.
type Session struct {
	engine  *engine.Engine
	lib     *engine.Library
	class   *engine.Class
	log     *zap.Logger
	methods [numMethods]*engine.Method
	id      string
	opts    options
	mu      sync.Mutex
	running bool
}

// Open starts the runtime image at runtimePath with the bundle directory at
// bundlePath, loads the target class and resolves every remote operation.
// On failure the runtime is released and the error carries the Kind of the
// stage that failed, see StartCode.
func Open(ctx context.Context, runtimePath, bundlePath string, opts ...Option) (s *Session, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	log := o.logger.With(zap.String("session", id))

	start := time.Now()
	defer func() {
		if err != nil {
			log.Warn("start failed",
				zap.Int("code", StartCode(err)),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
		}
	}()

	eng, err := engine.New(ctx, &engine.Config{
		Stdout:              o.stdout,
		Stderr:              o.stderr,
		CompilationCacheDir: o.cacheDir,
		BundleDir:           bundlePath,
		MemoryLimitPages:    o.memoryLimitPages,
	})
	if err != nil {
		return nil, err
	}

	s = &Session{engine: eng, log: log, id: id, opts: o}
	if err := s.start(ctx, runtimePath); err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	s.running = true
	log.Info("session started",
		zap.String("runtime", runtimePath),
		zap.String("bundle", bundlePath),
		zap.String("class", o.class),
		zap.Stringer("allocator", s.lib.Allocator()),
		zap.Duration("duration", time.Since(start)))
	return s, nil
}

func (s *Session) start(ctx context.Context, runtimePath string) error {
	compiled, err := s.engine.CompileLibrary(ctx, runtimePath)
	if err != nil {
		return err
	}
	if missing := compiled.MissingEntryPoints(); len(missing) > 0 {
		return errors.EntryPointMissing(missing)
	}

	s.lib, err = s.engine.InstantiateLibrary(ctx, compiled)
	if err != nil {
		return err
	}

	s.class, err = s.lib.LoadClass(ctx, s.opts.class)
	if err != nil {
		return err
	}

	var (
		unresolved []string
		cause      error
	)
	for id, rm := range remoteMethods {
		m, err := s.class.Method(rm.name, rm.desc)
		if err != nil {
			unresolved = append(unresolved, rm.name+rm.desc)
			if cause == nil {
				cause = err
			}
			continue
		}
		s.methods[id] = m
	}
	if len(unresolved) > 0 {
		return errors.MethodNotFound(unresolved, cause)
	}
	return nil
}

// StartCode maps an Open error to its start code. nil maps to CodeOK.
func StartCode(err error) int {
	if err == nil {
		return CodeOK
	}
	switch errors.KindOf(err) {
	case errors.KindLibraryNotFound:
		return CodeLibraryNotFound
	case errors.KindEntryPointMissing:
		return CodeEntryPointMissing
	case errors.KindRuntimeCreation:
		return CodeRuntimeCreation
	case errors.KindTypeNotFound:
		return CodeClassNotFound
	case errors.KindMethodNotFound:
		return CodeMethodNotFound
	}
	return CodeUnknown
}

// ID returns the session id used in logs and spans.
func (s *Session) ID() string { return s.id }

// Running reports whether the session accepts calls.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop marks the session inactive. The runtime is only closed when the
// session was opened WithTeardownOnStop(true); otherwise it stays alive
// until Close.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.log.Info("session stopped", zap.Bool("teardown", s.opts.teardownOnStop))

	if s.opts.teardownOnStop {
		return s.closeLocked(ctx)
	}
	return nil
}

// Close stops the session and releases the runtime.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.closeLocked(ctx)
}

func (s *Session) closeLocked(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	err := s.engine.Close(ctx)
	s.engine = nil
	s.lib = nil
	s.class = nil
	s.methods = [numMethods]*engine.Method{}
	return err
}

// call runs one remote operation under the session lock with a fresh
// marshal frame, recording logs, metrics and a span.
func (s *Session) call(ctx context.Context, id methodID, attrs []attribute.KeyValue,
	fn func(ctx context.Context, f *frame, m *engine.Method) error,
) error {
	op := remoteMethods[id].op

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return errors.NotStarted(op)
	}

	ctx, span := startCallSpan(ctx, s.id, op, attrs...)
	start := time.Now()

	f := newFrame(ctx, s.lib)
	defer f.release()
	err := fn(ctx, f, s.methods[id])

	finishCall(span, op, start, err)
	if err != nil {
		s.log.Debug("remote call failed", zap.String("operation", op), zap.Error(err))
	} else if ce := s.log.Check(zap.DebugLevel, "remote call"); ce != nil {
		ce.Write(zap.String("operation", op), zap.Duration("duration", time.Since(start)))
	}
	return err
}

// MethodInfo names one remote operation of the class.
type MethodInfo struct {
	Name       string
	Descriptor string
	Operation  string
}

// Methods lists the remote operations every session resolves, in
// resolution order.
func Methods() []MethodInfo {
	out := make([]MethodInfo, 0, numMethods)
	for _, rm := range remoteMethods {
		out = append(out, MethodInfo{Name: rm.name, Descriptor: rm.desc, Operation: rm.op})
	}
	return out
}
