package tracing

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which variant a Value holds.
type ValueKind int

const (
	// KindOther holds an arbitrary Go value rendered with fmt.
	KindOther ValueKind = iota
	// KindBool holds a boolean.
	KindBool
	// KindInt64 holds a signed 64-bit integer.
	KindInt64
	// KindUint64 holds an unsigned 64-bit integer.
	KindUint64
	// KindFloat64 holds a 64-bit float.
	KindFloat64
	// KindString holds a string.
	KindString
)

// String returns the name of the kind.
func (k ValueKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	default:
		return "other"
	}
}

// Value is a typed attribute value. The zero Value is KindOther holding nil.
type Value struct {
	kind  ValueKind
	num   uint64
	str   string
	other any
}

// BoolValue returns a KindBool value.
func BoolValue(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// Int64Value returns a KindInt64 value.
func Int64Value(v int64) Value {
	return Value{kind: KindInt64, num: uint64(v)}
}

// Uint64Value returns a KindUint64 value.
func Uint64Value(v uint64) Value {
	return Value{kind: KindUint64, num: v}
}

// Float64Value returns a KindFloat64 value.
func Float64Value(v float64) Value {
	return Value{kind: KindFloat64, num: math.Float64bits(v)}
}

// StringValue returns a KindString value.
func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

// OtherValue returns a KindOther value wrapping v.
func OtherValue(v any) Value {
	return Value{kind: KindOther, other: v}
}

// Kind returns the variant held by the value.
func (v Value) Kind() ValueKind { return v.kind }

// AsBool returns the boolean held by a KindBool value.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num != 0 }

// AsInt64 returns the integer held by a KindInt64 value.
func (v Value) AsInt64() int64 { return int64(v.num) }

// AsUint64 returns the integer held by a KindUint64 value.
func (v Value) AsUint64() uint64 { return v.num }

// AsFloat64 returns the float held by a KindFloat64 value.
func (v Value) AsFloat64() float64 { return math.Float64frombits(v.num) }

// AsString returns the string held by a KindString value.
func (v Value) AsString() string { return v.str }

// AsOther returns the value wrapped by a KindOther value.
func (v Value) AsOther() any { return v.other }

// Emit returns the string representation of the value.
func (v Value) Emit() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindInt64:
		return strconv.FormatInt(v.AsInt64(), 10)
	case KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.AsFloat64(), 'g', -1, 64)
	case KindString:
		return v.str
	default:
		if v.other == nil {
			return ""
		}
		return fmt.Sprint(v.other)
	}
}

// Numeric returns the value coerced to float64 and true when the kind is
// bool, int64, uint64 or float64. Strings and other values report false.
func (v Value) Numeric() (float64, bool) {
	switch v.kind {
	case KindBool:
		return float64(v.num), true
	case KindInt64:
		return float64(v.AsInt64()), true
	case KindUint64:
		return float64(v.num), true
	case KindFloat64:
		return v.AsFloat64(), true
	default:
		return 0, false
	}
}

// KeyValue is one attribute on a span.
type KeyValue struct {
	Key   string
	Value Value
}

// Bool creates a bool attribute.
func Bool(key string, v bool) KeyValue { return KeyValue{Key: key, Value: BoolValue(v)} }

// Int creates an int64 attribute from an int.
func Int(key string, v int) KeyValue { return KeyValue{Key: key, Value: Int64Value(int64(v))} }

// Int64 creates an int64 attribute.
func Int64(key string, v int64) KeyValue { return KeyValue{Key: key, Value: Int64Value(v)} }

// Uint64 creates a uint64 attribute.
func Uint64(key string, v uint64) KeyValue { return KeyValue{Key: key, Value: Uint64Value(v)} }

// Float64 creates a float64 attribute.
func Float64(key string, v float64) KeyValue { return KeyValue{Key: key, Value: Float64Value(v)} }

// String creates a string attribute.
func String(key, v string) KeyValue { return KeyValue{Key: key, Value: StringValue(v)} }

// Any creates an attribute, picking the narrowest kind that fits v.
func Any(key string, v any) KeyValue {
	switch x := v.(type) {
	case Value:
		return KeyValue{Key: key, Value: x}
	case bool:
		return Bool(key, x)
	case int:
		return Int64(key, int64(x))
	case int8:
		return Int64(key, int64(x))
	case int16:
		return Int64(key, int64(x))
	case int32:
		return Int64(key, int64(x))
	case int64:
		return Int64(key, x)
	case uint:
		return Uint64(key, uint64(x))
	case uint8:
		return Uint64(key, uint64(x))
	case uint16:
		return Uint64(key, uint64(x))
	case uint32:
		return Uint64(key, uint64(x))
	case uint64:
		return Uint64(key, x)
	case float32:
		return Float64(key, float64(x))
	case float64:
		return Float64(key, x)
	case string:
		return String(key, x)
	default:
		return KeyValue{Key: key, Value: OtherValue(v)}
	}
}
