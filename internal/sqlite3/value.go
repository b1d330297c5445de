package sqlite3

import (
	"fmt"
	"strconv"
)

// Kind is the tag of a bound parameter.
type Kind uint8

// Parameter kinds. KindBool binds as integer 0 or 1; KindInt and
// KindInt64 both bind as a 64-bit integer.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindInt64
	KindFloat64
	KindText
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindText:
		return "text"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a parameter value tagged with the SQLite bind call it maps to.
// The zero Value is NULL.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
}

// Null returns a value that binds SQL NULL.
func Null() Value { return Value{kind: KindNull} }

// Int returns a 32-bit integer value.
func Int(v int32) Value { return Value{kind: KindInt, i: int64(v)} }

// Int64 returns a 64-bit integer value.
func Int64(v int64) Value { return Value{kind: KindInt64, i: v} }

// Float64 returns a floating point value.
func Float64(v float64) Value { return Value{kind: KindFloat64, f: v} }

// Text returns a text value. The string is copied into native memory when
// bound, so it may contain NUL bytes.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bool returns a value that binds as integer 1 for true and 0 for false.
func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, i: 1}
	}
	return Value{kind: KindBool}
}

// Kind returns the tag v was constructed with.
func (v Value) Kind() Kind { return v.kind }

// String renders v for logs and error messages.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindInt, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	}
	return v.kind.String()
}

// ValueOf converts a Go value to a Value. Go int binds as a 64-bit
// integer; int32 and smaller signed types bind as int.
func ValueOf(x any) (Value, error) {
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int8:
		return Int(int32(x)), nil
	case int16:
		return Int(int32(x)), nil
	case int32:
		return Int(x), nil
	case int:
		return Int64(int64(x)), nil
	case int64:
		return Int64(x), nil
	case float32:
		return Float64(float64(x)), nil
	case float64:
		return Float64(x), nil
	case string:
		return Text(x), nil
	}
	return Value{}, &BindTypeError{Value: fmt.Sprintf("%T", x)}
}
