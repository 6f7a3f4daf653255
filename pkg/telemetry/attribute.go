package telemetry

import (
	"fmt"
	"strconv"
)

// ValueKind enumerates the closed set of attribute value types.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt64
	ValueFloat64
	ValueBool
)

// Value is a scalar attribute value. Anything outside the closed set is
// stringified at the boundary, never stored as-is.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flt  float64
	bl   bool
}

func StringValue(v string) Value  { return Value{kind: ValueString, str: v} }
func Int64Value(v int64) Value    { return Value{kind: ValueInt64, num: v} }
func Float64Value(v float64) Value { return Value{kind: ValueFloat64, flt: v} }
func BoolValue(v bool) Value      { return Value{kind: ValueBool, bl: v} }

// ValueOf converts an arbitrary scalar into a Value.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case string:
		return StringValue(v)
	case bool:
		return BoolValue(v)
	case int:
		return Int64Value(int64(v))
	case int32:
		return Int64Value(int64(v))
	case int64:
		return Int64Value(v)
	case uint32:
		return Int64Value(int64(v))
	case float32:
		return Float64Value(float64(v))
	case float64:
		return Float64Value(v)
	default:
		return StringValue(fmt.Sprintf("%v", v))
	}
}

func (v Value) Kind() ValueKind { return v.kind }

// Emit renders the value for the wire and the span archive.
func (v Value) Emit() string {
	switch v.kind {
	case ValueInt64:
		return strconv.FormatInt(v.num, 10)
	case ValueFloat64:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.bl)
	default:
		return v.str
	}
}

func (v Value) AsString() string   { return v.str }
func (v Value) AsInt64() int64     { return v.num }
func (v Value) AsFloat64() float64 { return v.flt }
func (v Value) AsBool() bool       { return v.bl }

// Attribute is one key-value pair on a span. Order of insertion is kept.
type Attribute struct {
	Key   string
	Value Value
}

func String(key, v string) Attribute    { return Attribute{Key: key, Value: StringValue(v)} }
func Int64(key string, v int64) Attribute { return Attribute{Key: key, Value: Int64Value(v)} }
func Int(key string, v int) Attribute   { return Attribute{Key: key, Value: Int64Value(int64(v))} }
func Float64(key string, v float64) Attribute {
	return Attribute{Key: key, Value: Float64Value(v)}
}
func Bool(key string, v bool) Attribute { return Attribute{Key: key, Value: BoolValue(v)} }
