// Package descriptor parses method descriptors in the primitive/array/object
// encoding used to key remote operations: scalar letters B C D F I J S V Z,
// '[' for array-of and 'L<binary/name>;' for object types.
//
//	(ZZIII[D[D[Z[D)I   boolean, boolean, int, int, int, double[] x3 ... -> int
//	(Ljava/nio/ByteBuffer;IID)D
//
// Descriptors round-trip byte-for-byte: Parse(s).String() == s.
package descriptor

import (
	"strings"

	"github.com/wippyai/autopilot-bridge/errors"
)

// Base is a scalar type letter.
type Base byte

const (
	Byte    Base = 'B'
	Char    Base = 'C'
	Double  Base = 'D'
	Float   Base = 'F'
	Int     Base = 'I'
	Long    Base = 'J'
	Short   Base = 'S'
	Void    Base = 'V'
	Boolean Base = 'Z'
)

// Well-known object types.
const (
	ClassString     = "java/lang/String"
	ClassByteBuffer = "java/nio/ByteBuffer"
)

func (b Base) valid() bool {
	switch b {
	case Byte, Char, Double, Float, Int, Long, Short, Void, Boolean:
		return true
	}
	return false
}

// Kind distinguishes scalar, array and object field types.
type Kind uint8

const (
	KindBase Kind = iota
	KindArray
	KindObject
)

// Type is a single field type.
type Type struct {
	Elem  *Type  // array element, KindArray only
	Class string // binary class name, KindObject only
	Kind  Kind
	Base  Base // KindBase only
}

// Scalar returns the scalar type for b.
func Scalar(b Base) Type { return Type{Kind: KindBase, Base: b} }

// ArrayOf returns the array type with element elem.
func ArrayOf(elem Type) Type { return Type{Kind: KindArray, Elem: &elem} }

// Object returns the object type for a binary class name.
func Object(class string) Type { return Type{Kind: KindObject, Class: class} }

// IsVoid reports whether t is the V return type.
func (t Type) IsVoid() bool { return t.Kind == KindBase && t.Base == Void }

// IsObject reports whether t is the object type named class.
func (t Type) IsObject(class string) bool { return t.Kind == KindObject && t.Class == class }

// String encodes t back into descriptor form.
func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.Kind {
	case KindArray:
		b.WriteByte('[')
		t.Elem.write(b)
	case KindObject:
		b.WriteByte('L')
		b.WriteString(t.Class)
		b.WriteByte(';')
	default:
		b.WriteByte(byte(t.Base))
	}
}

// Method is a parsed method descriptor.
type Method struct {
	Params []Type
	Return Type
}

// String encodes m back into descriptor form.
func (m Method) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		p.write(&b)
	}
	b.WriteByte(')')
	m.Return.write(&b)
	return b.String()
}

// Parse parses a method descriptor.
func Parse(desc string) (Method, error) {
	if len(desc) == 0 || desc[0] != '(' {
		return Method{}, errors.InvalidDescriptor(desc, 0, "expected '('")
	}

	var m Method
	pos := 1
	for {
		if pos >= len(desc) {
			return Method{}, errors.InvalidDescriptor(desc, pos, "unterminated parameter list")
		}
		if desc[pos] == ')' {
			pos++
			break
		}
		t, next, err := parseField(desc, pos)
		if err != nil {
			return Method{}, err
		}
		if t.IsVoid() {
			return Method{}, errors.InvalidDescriptor(desc, pos, "void parameter")
		}
		m.Params = append(m.Params, t)
		pos = next
	}

	ret, next, err := parseField(desc, pos)
	if err != nil {
		return Method{}, err
	}
	if next != len(desc) {
		return Method{}, errors.InvalidDescriptor(desc, next, "trailing characters")
	}
	m.Return = ret
	return m, nil
}

// MustParse is Parse for descriptors known at compile time.
func MustParse(desc string) Method {
	m, err := Parse(desc)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseField parses a single field type such as "[D" or "Ljava/lang/String;".
func ParseField(desc string) (Type, error) {
	t, next, err := parseField(desc, 0)
	if err != nil {
		return Type{}, err
	}
	if next != len(desc) {
		return Type{}, errors.InvalidDescriptor(desc, next, "trailing characters")
	}
	return t, nil
}

func parseField(desc string, pos int) (Type, int, error) {
	if pos >= len(desc) {
		return Type{}, pos, errors.InvalidDescriptor(desc, pos, "missing type")
	}

	switch c := desc[pos]; c {
	case '[':
		elem, next, err := parseField(desc, pos+1)
		if err != nil {
			return Type{}, next, err
		}
		if elem.IsVoid() {
			return Type{}, pos, errors.InvalidDescriptor(desc, pos, "array of void")
		}
		return ArrayOf(elem), next, nil
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end < 0 {
			return Type{}, pos, errors.InvalidDescriptor(desc, pos, "unterminated class name")
		}
		class := desc[pos+1 : pos+end]
		if class == "" {
			return Type{}, pos, errors.InvalidDescriptor(desc, pos, "empty class name")
		}
		return Object(class), pos + end + 1, nil
	default:
		if !Base(c).valid() {
			return Type{}, pos, errors.InvalidDescriptor(desc, pos, "unknown type '"+string(c)+"'")
		}
		return Scalar(Base(c)), pos + 1, nil
	}
}

// Key builds the export name under which a class publishes method name with
// descriptor desc: "<class>.<name><desc>".
func Key(class, name, desc string) string {
	return class + "." + name + desc
}

// SplitKey is the inverse of Key. ok is false when key has no class prefix
// or no descriptor.
func SplitKey(key string) (class, name, desc string, ok bool) {
	paren := strings.IndexByte(key, '(')
	if paren < 0 {
		return "", "", "", false
	}
	dot := strings.LastIndexByte(key[:paren], '.')
	if dot <= 0 {
		return "", "", "", false
	}
	return key[:dot], key[dot+1 : paren], key[paren:], true
}
