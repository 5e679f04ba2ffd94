// Package value implements the .NYET Value model: a tagged union over
// Null, Int, Double, Bool, and String, with polymorphic arithmetic,
// equality, truthiness, and rendering.
package value

import (
	"errors"
	"fmt"
	"strconv"
)

// Type is the tag in the Value tagged union.
type Type uint8

const (
	Null Type = iota
	Int
	Double
	Bool
	String
)

func (t Type) String() string {
	switch t {
	case Null:
		return "Null"
	case Int:
		return "Int"
	case Double:
		return "Double"
	case Bool:
		return "Bool"
	case String:
		return "String"
	default:
		return "Unknown"
	}
}

// ErrTypeError is returned by Add/Sub/Eq when the operand variants are
// not a supported combination.
var ErrTypeError = errors.New("value: type error")

// Value is exactly one of Null, Int, Double, Bool, or String at a time.
// Only the field matching Tag is meaningful.
type Value struct {
	Tag Type
	I   int64
	F   float64
	B   bool
	S   string
}

// NewNull returns the Null value.
func NewNull() Value { return Value{Tag: Null} }

// NewInt wraps an int64 as an Int value.
func NewInt(i int64) Value { return Value{Tag: Int, I: i} }

// NewDouble wraps a float64 as a Double value.
func NewDouble(f float64) Value { return Value{Tag: Double, F: f} }

// NewBool wraps a bool as a Bool value.
func NewBool(b bool) Value { return Value{Tag: Bool, B: b} }

// NewString wraps a string as a String value.
func NewString(s string) Value { return Value{Tag: String, S: s} }

// TypeOf returns the variant tag.
func (v Value) TypeOf() Type { return v.Tag }

// String renders the canonical representation of v.
func (v Value) String() string {
	switch v.Tag {
	case Null:
		return "null"
	case Int:
		return strconv.FormatInt(v.I, 10)
	case Double:
		return strconv.FormatFloat(v.F, 'g', -1, 64)
	case Bool:
		if v.B {
			return "true"
		}
		return "false"
	case String:
		return v.S
	default:
		return fmt.Sprintf("<unknown value tag %d>", v.Tag)
	}
}

// Truthy projects v onto a boolean: Null is always false, Bool is
// itself, Int is "!= 0", Double is "!= 0.0" (NaN is truthy, -0.0 is
// not), String is "len > 0". Truthy never fails.
func (v Value) Truthy() bool {
	switch v.Tag {
	case Null:
		return false
	case Bool:
		return v.B
	case Int:
		return v.I != 0
	case Double:
		return v.F != 0.0
	case String:
		return len(v.S) > 0
	default:
		return false
	}
}

// Add implements addition and string concatenation across every
// supported operand pairing. a was pushed before b.
func Add(a, b Value) (Value, error) {
	switch {
	case a.Tag == Int && b.Tag == Int:
		return NewInt(a.I + b.I), nil
	case a.Tag == Int && b.Tag == Double:
		return NewDouble(float64(a.I) + b.F), nil
	case a.Tag == Double && b.Tag == Int:
		return NewDouble(a.F + float64(b.I)), nil
	case a.Tag == Double && b.Tag == Double:
		return NewDouble(a.F + b.F), nil
	case a.Tag == Int && b.Tag == String:
		return NewString(strconv.FormatInt(a.I, 10) + b.S), nil
	case a.Tag == Double && b.Tag == String:
		return NewString(a.String() + b.S), nil
	case a.Tag == String && b.Tag == Int:
		return NewString(a.S + strconv.FormatInt(b.I, 10)), nil
	case a.Tag == String && b.Tag == Double:
		return NewString(a.S + b.String()), nil
	case a.Tag == String && b.Tag == String:
		return NewString(a.S + b.S), nil
	default:
		return Value{}, fmt.Errorf("%w: ADD does not support %s and %s", ErrTypeError, a.Tag, b.Tag)
	}
}

// Sub implements Int subtraction only: a - b, where a was pushed
// before b, so the right operand is popped first and subtracted from
// the left.
func Sub(a, b Value) (Value, error) {
	if a.Tag != Int || b.Tag != Int {
		return Value{}, fmt.Errorf("%w: SUB requires two Int operands, got %s and %s", ErrTypeError, a.Tag, b.Tag)
	}
	return NewInt(a.I - b.I), nil
}

// Eq implements structural equality within one shared variant. Values
// of different variants trap rather than compare unequal.
func Eq(a, b Value) (Value, error) {
	if a.Tag != b.Tag {
		return Value{}, fmt.Errorf("%w: CMP across variants %s and %s", ErrTypeError, a.Tag, b.Tag)
	}
	switch a.Tag {
	case Null:
		return NewBool(true), nil
	case Int:
		return NewBool(a.I == b.I), nil
	case Double:
		return NewBool(a.F == b.F), nil
	case Bool:
		return NewBool(a.B == b.B), nil
	case String:
		return NewBool(a.S == b.S), nil
	default:
		return Value{}, fmt.Errorf("%w: unknown tag %s", ErrTypeError, a.Tag)
	}
}
