package abi

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/autopilot-bridge/descriptor"
	"github.com/wippyai/autopilot-bridge/errors"
)

// Canonical ABI flattening limits
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// CoreValType is a core wasm value type
type CoreValType = api.ValueType

// ListOf returns the WIT list type with the given element.
func ListOf(elem wit.Type) wit.Type {
	return &wit.TypeDef{Kind: &wit.List{Type: elem}}
}

// WitType maps a descriptor field type to its WIT equivalent.
// ByteBuffer lowers as list<u8>; object types other than String and
// ByteBuffer are unsupported.
func WitType(t descriptor.Type) (wit.Type, error) {
	switch t.Kind {
	case descriptor.KindArray:
		elem, err := WitType(*t.Elem)
		if err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case descriptor.KindObject:
		switch t.Class {
		case descriptor.ClassString:
			return wit.String{}, nil
		case descriptor.ClassByteBuffer:
			return ListOf(wit.U8{}), nil
		}
		return nil, errors.New(errors.PhaseLower, errors.KindUnsupported).
			GoType(t.String()).
			Detail("object type %s has no lowering", t.Class).
			Build()
	}

	switch t.Base {
	case descriptor.Boolean:
		return wit.Bool{}, nil
	case descriptor.Byte:
		return wit.S8{}, nil
	case descriptor.Char:
		return wit.U16{}, nil
	case descriptor.Short:
		return wit.S16{}, nil
	case descriptor.Int:
		return wit.S32{}, nil
	case descriptor.Long:
		return wit.S64{}, nil
	case descriptor.Float:
		return wit.F32{}, nil
	case descriptor.Double:
		return wit.F64{}, nil
	case descriptor.Void:
		return nil, nil
	}
	return nil, errors.Unsupported(errors.PhaseLower, "scalar "+t.String())
}

// FlatCount returns the number of core values t flattens to.
func FlatCount(t wit.Type) int {
	return len(FlattenType(t))
}

// FlattenType flattens a WIT type to core wasm types
func FlattenType(t wit.Type) []CoreValType {
	if t == nil {
		return nil
	}

	switch v := t.(type) {
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []CoreValType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []CoreValType{api.ValueTypeI64}
	case wit.F32:
		return []CoreValType{api.ValueTypeF32}
	case wit.F64:
		return []CoreValType{api.ValueTypeF64}
	case wit.String:
		return []CoreValType{api.ValueTypeI32, api.ValueTypeI32}
	case *wit.TypeDef:
		if _, ok := v.Kind.(*wit.List); ok {
			return []CoreValType{api.ValueTypeI32, api.ValueTypeI32}
		}
	}
	return []CoreValType{api.ValueTypeI32}
}

// ElemLayout returns the in-memory size and alignment of a list element
// or scalar value. Strings and lists occupy a (ptr, len) pair.
func ElemLayout(t wit.Type) (size, align uint32) {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8:
		return 1, 1
	case wit.U16, wit.S16:
		return 2, 2
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return 4, 4
	case wit.U64, wit.S64, wit.F64:
		return 8, 8
	}
	return 8, 4
}

// ListElem returns the element type of a list, or nil when t is not a list.
func ListElem(t wit.Type) wit.Type {
	if td, ok := t.(*wit.TypeDef); ok {
		if l, ok := td.Kind.(*wit.List); ok {
			return l.Type
		}
	}
	return nil
}

// TypeName renders t in WIT syntax for diagnostics.
func TypeName(t wit.Type) string {
	switch v := t.(type) {
	case nil:
		return "()"
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if l, ok := v.Kind.(*wit.List); ok {
			return "list<" + TypeName(l.Type) + ">"
		}
	}
	return "?"
}
