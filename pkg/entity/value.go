package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags the type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindBool
	KindEnum
	KindEntity
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindEntity:
		return "entity"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a typed attribute value. The zero Value is null. Values are
// immutable; list and entity payloads are copied on construction.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	flag bool
	ent  Entity
	list []Value
}

// Null is the absent value.
var Null = Value{}

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Enum returns an enumeration value.
func Enum(s string) Value { return Value{kind: KindEnum, str: s} }

// Nested returns a value holding a nested entity.
func Nested(e Entity) Value { return Value{kind: KindEntity, ent: e} }

// List returns a list value.
func List(items ...Value) Value {
	return Value{kind: KindList, list: append([]Value{}, items...)}
}

// Strings returns a list of string values.
func Strings(items ...string) Value {
	vs := make([]Value, len(items))
	for i, s := range items {
		vs[i] = String(s)
	}
	return List(vs...)
}

// Ints returns a list of integer values.
func Ints(items ...int) Value {
	vs := make([]Value, len(items))
	for i, n := range items {
		vs[i] = Int(int64(n))
	}
	return List(vs...)
}

// Kind returns the value's type tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the payload of a string or enum value.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString || v.kind == KindEnum
}

// IntVal returns the payload of an integer value.
func (v Value) IntVal() (int64, bool) { return v.num, v.kind == KindInt }

// BoolVal returns the payload of a boolean value.
func (v Value) BoolVal() (bool, bool) { return v.flag, v.kind == KindBool }

// EntityVal returns the payload of a nested entity value.
func (v Value) EntityVal() (Entity, bool) { return v.ent, v.kind == KindEntity }

// Items returns a copy of the items of a list value.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return append([]Value(nil), v.list...)
}

// Len returns the number of items of a list value.
func (v Value) Len() int { return len(v.list) }

// Equal compares two values structurally. Lists compare in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString, KindEnum:
		return v.str == o.str
	case KindInt:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	case KindEntity:
		return v.ent.Equal(o.ent)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value the way templates and previews show it.
// Lists render comma-separated, nested entities as {a=1 b=2}.
func (v Value) String() string {
	switch v.kind {
	case KindString, KindEnum:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindEntity:
		return v.ent.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// Interface returns the payload as a plain Go value (string, int64, bool,
// map[string]interface{} or []interface{}), nil for null.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString, KindEnum:
		return v.str
	case KindInt:
		return v.num
	case KindBool:
		return v.flag
	case KindEntity:
		return v.ent.Map()
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes the payload without the type tag.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// FromInterface converts decoded YAML/JSON data into an untyped Value.
// Strings stay strings; schema-aware conversion is done by Schema.Coerce.
func FromInterface(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		if t != float64(int64(t)) {
			return Null, fmt.Errorf("non-integer number %v", t)
		}
		return Int(int64(t)), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromInterface(item)
			if err != nil {
				return Null, err
			}
			items[i] = v
		}
		return List(items...), nil
	case map[string]interface{}:
		e, err := FromMap(t)
		if err != nil {
			return Null, err
		}
		return Nested(e), nil
	}
	return Null, fmt.Errorf("unsupported value type %T", x)
}
