package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aura-lang/aura/compiler"
)

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// ValueKind enumerates all runtime kinds a Value may hold.
type ValueKind int

const (
	KindNil ValueKind = iota // internal void result; not writable from source
	KindInt
	KindFloat
	KindString
	KindBool
	KindArray
	KindFunction
	KindBuiltin
	KindExternal
)

var kindNames = map[ValueKind]string{
	KindNil:      "nil",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindBool:     "bool",
	KindArray:    "array",
	KindFunction: "function",
	KindBuiltin:  "builtin",
	KindExternal: "external",
}

func (k ValueKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ValueKind(%d)", k)
}

// Value is the tagged union carried through evaluation. Exactly one field
// matching Kind is meaningful. Arrays and functions are reference-like:
// copying a Value shares the underlying object.
type Value struct {
	Kind ValueKind

	Int      int64
	Float    float64
	Str      string
	Bool     bool
	Array    *ArrayObject
	Fn       *Function
	Builtin  *Builtin
	External any
}

// ArrayObject is the shared backing store for array values. Mutation through
// one reference is visible through all.
type ArrayObject struct {
	Elements []Value
}

// Function is a user-defined function value: parameters, body, and the
// environment captured at the point of definition (the closure scope).
// Functions loaded from a compiled program carry a Code handle instead of
// an AST body; only the execution engine that created the handle can run
// it.
type Function struct {
	Name   string
	Params []string
	Body   *compiler.BlockStmt
	Env    *Env
	Code   any
}

// Builtin is a native function registered in the root scope.
type Builtin struct {
	Name string
	Fn   BuiltinFunc
}

// Fact is one record returned by the knowledge capability, surfaced to
// programs as an opaque external value.
type Fact struct {
	Title      string
	Summary    string
	Confidence float64 // 0.0 - 1.0
	Verified   bool
}

// Constructors

var NilValue = Value{Kind: KindNil}

func IntValue(n int64) Value      { return Value{Kind: KindInt, Int: n} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func ExternalValue(v any) Value   { return Value{Kind: KindExternal, External: v} }
func FuncValue(f *Function) Value { return Value{Kind: KindFunction, Fn: f} }

func ArrayValue(elements []Value) Value {
	return Value{Kind: KindArray, Array: &ArrayObject{Elements: elements}}
}

// TypeName returns the user-facing name of the value's type.
func (v Value) TypeName() string {
	return v.Kind.String()
}

// Truthy reports whether the value counts as true in a condition. Only
// booleans are accepted in conditions; callers enforce that separately.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNil:
		return false
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return v.Str != ""
	case KindArray:
		return len(v.Array.Elements) > 0
	default:
		return true
	}
}

// Equal reports structural equality for scalars and reference equality for
// arrays and functions.
func (v Value) Equal(other Value) bool {
	// int/float compare numerically across kinds
	if v.IsNumber() && other.IsNumber() {
		if v.Kind == KindInt && other.Kind == KindInt {
			return v.Int == other.Int
		}
		return v.AsFloat() == other.AsFloat()
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNil:
		return true
	case KindString:
		return v.Str == other.Str
	case KindBool:
		return v.Bool == other.Bool
	case KindArray:
		return v.Array == other.Array
	case KindFunction:
		return v.Fn == other.Fn
	case KindBuiltin:
		return v.Builtin == other.Builtin
	default:
		return false
	}
}

// IsNumber reports whether the value is an int or a float.
func (v Value) IsNumber() bool {
	return v.Kind == KindInt || v.Kind == KindFloat
}

// AsFloat widens an int to float; floats pass through.
func (v Value) AsFloat() float64 {
	if v.Kind == KindInt {
		return float64(v.Int)
	}
	return v.Float
}

// Display renders the value the way print shows it.
func (v Value) Display() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, el := range v.Array.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			if el.Kind == KindString {
				sb.WriteString(strconv.Quote(el.Str))
			} else {
				sb.WriteString(el.Display())
			}
		}
		sb.WriteByte(']')
		return sb.String()
	case KindFunction:
		return fmt.Sprintf("<fn %s>", v.Fn.Name)
	case KindBuiltin:
		return fmt.Sprintf("<builtin %s>", v.Builtin.Name)
	case KindExternal:
		if f, ok := v.External.(Fact); ok {
			return fmt.Sprintf("<fact %q confidence=%.2f verified=%t>", f.Title, f.Confidence, f.Verified)
		}
		return "<external>"
	default:
		return "<unknown>"
	}
}
