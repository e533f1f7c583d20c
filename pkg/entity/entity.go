package entity

import (
	"encoding/json"
	"sort"
	"strings"
)

// Field is one attribute assignment used to construct an Entity.
type Field struct {
	Name  string
	Value Value
}

// F is shorthand for a Field.
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Entity is an immutable snapshot of one configuration object's attributes.
//
// The zero Entity is absent: the object does not exist on the device. An
// entity built by New with no fields exists but has no attributes set. Null
// values are never stored.
type Entity struct {
	attrs map[string]Value
}

// Absent is the entity that does not exist.
var Absent = Entity{}

// New builds an existing entity from fields. Later fields win; null values
// are dropped.
func New(fields ...Field) Entity {
	attrs := make(map[string]Value, len(fields))
	for _, f := range fields {
		if f.Value.IsNull() {
			delete(attrs, f.Name)
			continue
		}
		attrs[f.Name] = f.Value
	}
	return Entity{attrs: attrs}
}

// FromMap builds an entity from decoded YAML/JSON data.
func FromMap(m map[string]interface{}) (Entity, error) {
	fields := make([]Field, 0, len(m))
	for _, name := range sortedKeys(m) {
		v, err := FromInterface(m[name])
		if err != nil {
			return Absent, err
		}
		fields = append(fields, F(name, v))
	}
	return New(fields...), nil
}

// Exists reports whether the entity is present.
func (e Entity) Exists() bool {
	return e.attrs != nil
}

// Get returns an attribute value; missing attributes are Null.
func (e Entity) Get(name string) Value {
	return e.attrs[name]
}

// Has reports whether an attribute is set.
func (e Entity) Has(name string) bool {
	_, ok := e.attrs[name]
	return ok
}

// Len returns the number of set attributes.
func (e Entity) Len() int {
	return len(e.attrs)
}

// Names returns the set attribute names in lexical order. Callers that need
// a deterministic semantic order use Schema.Fields instead.
func (e Entity) Names() []string {
	names := make([]string, 0, len(e.attrs))
	for n := range e.attrs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of e with the given fields applied. Applying to an
// absent entity creates it.
func (e Entity) With(fields ...Field) Entity {
	all := make([]Field, 0, len(e.attrs)+len(fields))
	for _, n := range e.Names() {
		all = append(all, F(n, e.attrs[n]))
	}
	return New(append(all, fields...)...)
}

// Without returns a copy of e without the named attributes.
func (e Entity) Without(names ...string) Entity {
	if !e.Exists() {
		return e
	}
	drop := make([]Field, len(names))
	for i, n := range names {
		drop[i] = F(n, Null)
	}
	return e.With(drop...)
}

// Equal reports whether both entities have the same existence and the same
// attribute values.
func (e Entity) Equal(o Entity) bool {
	if e.Exists() != o.Exists() || len(e.attrs) != len(o.attrs) {
		return false
	}
	for n, v := range e.attrs {
		ov, ok := o.attrs[n]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Map returns the attributes as plain Go values.
func (e Entity) Map() map[string]interface{} {
	if !e.Exists() {
		return nil
	}
	m := make(map[string]interface{}, len(e.attrs))
	for n, v := range e.attrs {
		m[n] = v.Interface()
	}
	return m
}

// MarshalJSON encodes the attributes as a JSON object, null when absent.
func (e Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Map())
}

func (e Entity) String() string {
	if !e.Exists() {
		return "<absent>"
	}
	parts := make([]string, 0, len(e.attrs))
	for _, n := range e.Names() {
		parts = append(parts, n+"="+e.attrs[n].String())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
