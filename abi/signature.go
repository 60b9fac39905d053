package abi

import (
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/autopilot-bridge/descriptor"
	"github.com/wippyai/autopilot-bridge/errors"
)

// Signature is a method descriptor lowered to the core function type a
// guest export must have.
type Signature struct {
	Result      wit.Type // nil for void
	Method      descriptor.Method
	Params      []wit.Type
	FlatParams  []CoreValType
	FlatResults []CoreValType
	// Retptr is set when the result does not fit MaxFlatResults and the
	// export returns a pointer to the flat result tuple instead.
	Retptr bool
}

// Lower maps a parsed descriptor to its lowered signature.
func Lower(m descriptor.Method) (*Signature, error) {
	sig := &Signature{Method: m, Params: make([]wit.Type, 0, len(m.Params))}

	for i, p := range m.Params {
		wt, err := WitType(p)
		if err != nil {
			var e *errors.Error
			if stderrors.As(err, &e) {
				e.Path = []string{"param", strconv.Itoa(i)}
			}
			return nil, err
		}
		sig.Params = append(sig.Params, wt)
		sig.FlatParams = append(sig.FlatParams, FlattenType(wt)...)
	}

	if len(sig.FlatParams) > MaxFlatParams {
		return nil, errors.New(errors.PhaseLower, errors.KindUnsupported).
			Detail("flattened parameters exceed MAX_FLAT_PARAMS (%d > %d)", len(sig.FlatParams), MaxFlatParams).
			Build()
	}

	if !m.Return.IsVoid() {
		rt, err := WitType(m.Return)
		if err != nil {
			return nil, err
		}
		sig.Result = rt
		sig.FlatResults = FlattenType(rt)
		if len(sig.FlatResults) > MaxFlatResults {
			sig.Retptr = true
			sig.FlatResults = []CoreValType{api.ValueTypeI32}
		}
	}

	return sig, nil
}

// LowerDescriptor parses desc and lowers it.
func LowerDescriptor(desc string) (*Signature, error) {
	m, err := descriptor.Parse(desc)
	if err != nil {
		return nil, err
	}
	return Lower(m)
}

// Matches reports whether a core function type equals the lowered signature.
func (s *Signature) Matches(params, results []CoreValType) bool {
	return equalTypes(s.FlatParams, params) && equalTypes(s.FlatResults, results)
}

// Check is Matches returning a signature_mismatch error that names both
// core types.
func (s *Signature) Check(op string, params, results []CoreValType) error {
	if s.Matches(params, results) {
		return nil
	}
	return errors.New(errors.PhaseResolve, errors.KindSignatureMismatch).
		Op(op).
		WitType(s.WitString()).
		Detail("export has core type %s, expected %s",
			CoreString(params, results), CoreString(s.FlatParams, s.FlatResults)).
		Build()
}

// WitString renders the signature as a WIT function type.
func (s *Signature) WitString() string {
	var b strings.Builder
	b.WriteString("func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(TypeName(p))
	}
	b.WriteByte(')')
	if s.Result != nil {
		b.WriteString(" -> ")
		b.WriteString(TypeName(s.Result))
	}
	return b.String()
}

// CoreString renders a core function type, e.g. "(i32, f64) -> (f64)".
func CoreString(params, results []CoreValType) string {
	var b strings.Builder
	writeTypes(&b, params)
	b.WriteString(" -> ")
	writeTypes(&b, results)
	return b.String()
}

func writeTypes(b *strings.Builder, types []CoreValType) {
	b.WriteByte('(')
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteByte(')')
}

func equalTypes(a, b []CoreValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
