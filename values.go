package cursorql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

//go-sumtype:decl Value
type Value interface {
	cursorValue()
	fmt.Stringer
}

type Null struct{}

func (Null) cursorValue() {}
func (v Null) String() string {
	return "<null>"
}
func MakeNull() Null {
	return Null(struct{}{})
}

type Int int

func (Int) cursorValue()  {}
func (v Int) AsInt() int { return int(v) }
func (v Int) String() string {
	return fmt.Sprint(v.AsInt())
}
func MakeInt(v int) Int {
	return Int(v)
}

type Float float64

func (Float) cursorValue()       {}
func (v Float) AsFloat() float64 { return float64(v) }
func (v Float) String() string {
	return fmt.Sprint(v.AsFloat())
}
func MakeFloat(v float64) Float {
	return Float(v)
}

type Bool bool

func (Bool) cursorValue()   {}
func (v Bool) AsBool() bool { return bool(v) }
func (v Bool) String() string {
	return fmt.Sprint(v.AsBool())
}
func MakeBool(v bool) Bool {
	return Bool(v)
}

type String string

func (String) cursorValue()       {}
func (v String) AsString() string { return string(v) }
func (v String) String() string {
	return fmt.Sprintf("'%s'", v.AsString())
}
func MakeString(v string) String {
	return String(v)
}

type Tuple []Value

func (Tuple) cursorValue()       {}
func (v Tuple) AsSlice() []Value { return []Value(v) }
func (v Tuple) String() string {
	valueStrings := make([]string, len(v.AsSlice()))
	for i, value := range v.AsSlice() {
		valueStrings[i] = fmt.Sprint(value)
	}
	return fmt.Sprintf("(%s)", strings.Join(valueStrings, ", "))
}
func MakeTuple(v []Value) Tuple {
	return Tuple(v)
}

// Row is the unit flowing between cursors. Cursors hand rows out by reference,
// so a row must not be modified after it has been yielded.
type Row []Value

func (r Row) String() string {
	return Tuple(r).String()
}

func NewRow(values ...interface{}) Row {
	out := make(Row, len(values))
	for i := range values {
		out[i] = NormalizeType(values[i])
	}
	return out
}

// NormalizeType brings various primitive types into the type we want them to be.
func NormalizeType(value interface{}) Value {
	switch value := value.(type) {
	case nil:
		return MakeNull()
	case bool:
		return MakeBool(value)
	case int:
		return MakeInt(value)
	case int8:
		return MakeInt(int(value))
	case int16:
		return MakeInt(int(value))
	case int32:
		return MakeInt(int(value))
	case int64:
		return MakeInt(int(value))
	case uint8:
		return MakeInt(int(value))
	case uint16:
		return MakeInt(int(value))
	case uint32:
		return MakeInt(int(value))
	case uint64:
		return MakeInt(int(value))
	case float32:
		return MakeFloat(float64(value))
	case float64:
		return MakeFloat(value)
	case []byte:
		return MakeString(string(value))
	case string:
		return MakeString(value)
	case []interface{}:
		out := make(Tuple, len(value))
		for i := range value {
			out[i] = NormalizeType(value[i])
		}
		return out
	case Row:
		return Tuple(value)
	case Value:
		return value
	}
	panic(fmt.Sprintf("invalid type to normalize: %s", reflect.TypeOf(value).String()))
}

// AreEqual checks the equality of the given values, returning false if the types don't match.
func AreEqual(left, right Value) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	switch left := left.(type) {
	case Null:
		_, ok := right.(Null)
		return ok

	case Int:
		right, ok := right.(Int)
		return ok && left == right

	case Float:
		right, ok := right.(Float)
		return ok && left == right

	case Bool:
		right, ok := right.(Bool)
		return ok && left == right

	case String:
		right, ok := right.(String)
		return ok && left == right

	case Tuple:
		right, ok := right.(Tuple)
		if !ok || len(left) != len(right) {
			return false
		}
		for i := range left {
			if !AreEqual(left[i], right[i]) {
				return false
			}
		}
		return true
	}
	panic(fmt.Sprintf("unhandled type of cursorql.Value: %v", reflect.TypeOf(left).String()))
}

func RowsEqual(left, right Row) bool {
	return AreEqual(Tuple(left), Tuple(right))
}

func typeRank(v Value) int {
	switch v.(type) {
	case nil, Null:
		return 0
	case Bool:
		return 1
	case Int, Float:
		return 2
	case String:
		return 3
	case Tuple:
		return 4
	}
	panic(fmt.Sprintf("unhandled type of cursorql.Value: %v", reflect.TypeOf(v).String()))
}

// Compare orders values: nulls first, then booleans, numbers, strings and tuples.
// Ints and floats compare numerically.
func Compare(left, right Value) int {
	lr, rr := typeRank(left), typeRank(right)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}

	switch left := left.(type) {
	case Bool:
		right := right.(Bool)
		switch {
		case left == right:
			return 0
		case !bool(left):
			return -1
		default:
			return 1
		}

	case Int:
		if right, ok := right.(Int); ok {
			switch {
			case left < right:
				return -1
			case left > right:
				return 1
			}
			return 0
		}
		return compareFloats(float64(left), toFloat(right))

	case Float:
		return compareFloats(float64(left), toFloat(right))

	case String:
		return strings.Compare(string(left), string(right.(String)))

	case Tuple:
		right := right.(Tuple)
		for i := 0; i < len(left) && i < len(right); i++ {
			if c := Compare(left[i], right[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(left) < len(right):
			return -1
		case len(left) > len(right):
			return 1
		}
	}
	return 0
}

func compareFloats(left, right float64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	}
	return 0
}

func toFloat(v Value) float64 {
	switch v := v.(type) {
	case Int:
		return float64(v)
	case Float:
		return float64(v)
	}
	return 0
}

// CompareRows compares two rows lexicographically on the given columns.
func CompareRows(left, right Row, columns []int) int {
	for _, col := range columns {
		var l, r Value = MakeNull(), MakeNull()
		if col < len(left) {
			l = left[col]
		}
		if col < len(right) {
			r = right[col]
		}
		if c := Compare(l, r); c != 0 {
			return c
		}
	}
	return 0
}

// AsInt extracts an integer from a value, used for dynamic parameters.
func AsInt(v Value) (int, bool, error) {
	switch v := v.(type) {
	case nil, Null:
		return 0, false, nil
	case Int:
		return int(v), true, nil
	case Float:
		if float64(int(v)) != float64(v) {
			return 0, false, errors.Errorf("%v is not an integer", v)
		}
		return int(v), true, nil
	}
	return 0, false, errors.Errorf("%v is not an integer", v)
}
