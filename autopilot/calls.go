package autopilot

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wippyai/autopilot-bridge/engine"
	"github.com/wippyai/autopilot-bridge/errors"
)

// SolveRequest carries the inputs shared by the solver operations. Which
// sync selector is used depends on the operation: L2SolveSingle reads
// SyncPlane, L2SolveMulti and QPSolve read SyncPlanes.
type SolveRequest struct {
	// OldState has StateVectorLength(Wavelengths, Planes) entries.
	OldState []float64
	// Observations and Missing have ObservationVectorLength entries.
	Observations []float64
	Missing      []bool
	// SyncPlanes has SyncPlaneLength entries.
	SyncPlanes []bool
	// MaxCorrection bounds each state update (QPSolve only).
	MaxCorrection []float64

	Wavelengths    int32
	Planes         int32
	SyncPlane      int32
	DetectAnchor   bool
	AnchorSymmetry bool
}

func (r *SolveRequest) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("autopilot.wavelengths", int(r.Wavelengths)),
		attribute.Int("autopilot.planes", int(r.Planes)),
	}
}

type lengthCheck struct {
	name      string
	got, want int
}

// check validates every array length against the derived lengths.
// Non-positive dimensions derive empty arrays so the class can reject them.
func (r *SolveRequest) check(op string, multi, qp bool, newState []float64) error {
	var state, obs, sync int
	if w, p := int(r.Wavelengths), int(r.Planes); w > 0 && p > 0 {
		state = StateVectorLength(w, p)
		obs = ObservationVectorLength(w, p)
		sync = SyncPlaneLength(w, p)
	}

	checks := []lengthCheck{
		{"oldState", len(r.OldState), state},
		{"observations", len(r.Observations), obs},
		{"missing", len(r.Missing), obs},
		{"newState", len(newState), state},
	}
	if multi {
		checks = append(checks, lengthCheck{"syncPlanes", len(r.SyncPlanes), sync})
	}
	if qp {
		checks = append(checks, lengthCheck{"maxCorrection", len(r.MaxCorrection), state})
	}

	for _, c := range checks {
		if c.got != c.want {
			return errors.LengthMismatch(op, []string{c.name}, c.got, c.want)
		}
	}
	return nil
}

// SetLoggingOptions forwards the stdout and file logging flags.
func (s *Session) SetLoggingOptions(ctx context.Context, stdout, file bool) error {
	attrs := []attribute.KeyValue{attribute.Bool("autopilot.stdout", stdout), attribute.Bool("autopilot.file", file)}
	return s.call(ctx, methodSetLogging, attrs, func(ctx context.Context, f *frame, m *engine.Method) error {
		flat, err := f.lower(m.Sig, stdout, file)
		if err != nil {
			return err
		}
		_, err = m.Call(ctx, flat...)
		return err
	})
}

// DCTS16 computes the DCT-based focus measure of a width x height image of
// 16-bit samples.
func (s *Session) DCTS16(ctx context.Context, samples []int16, width, height int32, psf float64) (float64, error) {
	return s.focus(ctx, methodDCTS, samples, width, height, psf)
}

// Tenengrad16 computes the Tenengrad focus measure of a width x height
// image of 16-bit samples.
func (s *Session) Tenengrad16(ctx context.Context, samples []int16, width, height int32, psf float64) (float64, error) {
	return s.focus(ctx, methodTenengrad, samples, width, height, psf)
}

func (s *Session) focus(ctx context.Context, id methodID, samples []int16, width, height int32, psf float64) (float64, error) {
	if width > 0 && height > 0 {
		if want := int(width) * int(height); len(samples) != want {
			return 0, errors.LengthMismatch(remoteMethods[id].op, []string{"samples"}, len(samples), want)
		}
	}

	var measure float64
	attrs := []attribute.KeyValue{
		attribute.Int("autopilot.width", int(width)),
		attribute.Int("autopilot.height", int(height)),
	}
	err := s.call(ctx, id, attrs, func(ctx context.Context, f *frame, m *engine.Method) error {
		flat, err := f.lower(m.Sig, samples, width, height, psf)
		if err != nil {
			return err
		}
		results, err := m.Call(ctx, flat...)
		if err != nil {
			return err
		}
		measure, err = liftFloat64(m.Key, results)
		return err
	})
	return measure, err
}

// L2SolveSingle runs the least-squares solver anchored on the single plane
// req.SyncPlane. newState is copied in and overwritten with the solver's
// output. The solver status is returned.
func (s *Session) L2SolveSingle(ctx context.Context, req SolveRequest, newState []float64) (int32, error) {
	const op = "l2solve_single"
	if err := req.check(op, false, false, newState); err != nil {
		return 0, err
	}
	return s.solve(ctx, methodL2Single, &req, newState,
		req.DetectAnchor, req.AnchorSymmetry, req.Wavelengths, req.Planes, req.SyncPlane,
		req.OldState, req.Observations, req.Missing, newState)
}

// L2SolveMulti runs the least-squares solver anchored on every plane
// selected in req.SyncPlanes.
func (s *Session) L2SolveMulti(ctx context.Context, req SolveRequest, newState []float64) (int32, error) {
	const op = "l2solve_multi"
	if err := req.check(op, true, false, newState); err != nil {
		return 0, err
	}
	return s.solve(ctx, methodL2Multi, &req, newState,
		req.DetectAnchor, req.AnchorSymmetry, req.Wavelengths, req.Planes, req.SyncPlanes,
		req.OldState, req.Observations, req.Missing, newState)
}

// QPSolve runs the quadratic-program solver with per-parameter correction
// bounds req.MaxCorrection.
func (s *Session) QPSolve(ctx context.Context, req SolveRequest, newState []float64) (int32, error) {
	const op = "qpsolve"
	if err := req.check(op, true, true, newState); err != nil {
		return 0, err
	}
	return s.solve(ctx, methodQP, &req, newState,
		req.DetectAnchor, req.AnchorSymmetry, req.Wavelengths, req.Planes, req.SyncPlanes,
		req.OldState, req.Observations, req.Missing, req.MaxCorrection, newState)
}

// solve lowers args, invokes the method and lifts the last argument, the
// new state, back into newState.
func (s *Session) solve(ctx context.Context, id methodID, req *SolveRequest, newState []float64, args ...any) (int32, error) {
	var status int32
	err := s.call(ctx, id, req.attrs(), func(ctx context.Context, f *frame, m *engine.Method) error {
		flat, err := f.lower(m.Sig, args...)
		if err != nil {
			return err
		}
		results, err := m.Call(ctx, flat...)
		if err != nil {
			return err
		}
		if status, err = liftInt32(m.Key, results); err != nil {
			return err
		}
		return f.liftFloat64s(len(args)-1, newState)
	})
	return status, err
}

// LastException asks the class for its pending exception message. ok is
// false when none is pending.
func (s *Session) LastException(ctx context.Context) (msg string, ok bool, err error) {
	err = s.call(ctx, methodLastException, nil, func(ctx context.Context, f *frame, m *engine.Method) error {
		results, err := m.Call(ctx)
		if err != nil {
			return err
		}
		if len(results) != 1 {
			return errors.New(errors.PhaseLift, errors.KindSignatureMismatch).
				Op(m.Key).
				Detail("expected a return pointer, got %d results", len(results)).
				Build()
		}
		msg, ok, err = f.liftString(uint32(results[0]))
		return err
	})
	return msg, ok, err
}
