package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/util"
)

// FieldType is the declared type of an attribute.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeBool   FieldType = "bool"
	TypeEnum   FieldType = "enum"
	TypeEntity FieldType = "entity"
	TypeList   FieldType = "list"
)

// FieldSchema declares one attribute of an entity kind. The position of the
// field within Schema.Fields is its declared order, which drives create
// ordering and therefore the order of rendered commands.
type FieldSchema struct {
	Name string    `yaml:"name"`
	Type FieldType `yaml:"type"`

	// Item is the element type of a list attribute.
	Item FieldType `yaml:"item,omitempty"`
	// Values lists the legal enum values (enum attributes or enum items).
	Values []string `yaml:"values,omitempty"`
	// ItemKey names the attributes that identify an entity list item.
	// Scalar items are identified by their own text.
	ItemKey []string `yaml:"item_key,omitempty"`
	// Range marks a list whose text form is range notation ("1-3,5").
	Range bool `yaml:"range,omitempty"`

	Mandatory bool `yaml:"mandatory,omitempty"`
	// Immutable fields cannot change on update (key fields).
	Immutable bool `yaml:"immutable,omitempty"`
	// InPlace list items with a changed payload are re-added without a
	// preceding removal.
	InPlace bool `yaml:"in_place,omitempty"`
	// RemoveBeforeSet emits a removal of the old value before setting a new
	// one ("undo before re-apply").
	RemoveBeforeSet bool `yaml:"remove_before_set,omitempty"`
	// AddBeforeRemove emits list additions before list removals.
	AddBeforeRemove bool `yaml:"add_before_remove,omitempty"`
	// RemovalPriority orders teardown on delete: higher values are removed
	// first. Zero keeps declared order.
	RemovalPriority int `yaml:"removal_priority,omitempty"`
}

// Schema declares the attributes of one entity kind.
type Schema struct {
	Kind   string        `yaml:"kind"`
	Fields []FieldSchema `yaml:"fields"`

	// Grammar reads the range text of desired list values. The zero value
	// is the default grammar.
	Grammar rangeset.Grammar `yaml:"-"`
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Names returns the field names in declared order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// KeyOf returns the identity of one list item of field f.
func (f FieldSchema) KeyOf(item Value) string {
	ent, ok := item.EntityVal()
	if !ok || len(f.ItemKey) == 0 {
		return item.String()
	}
	parts := make([]string, len(f.ItemKey))
	for i, k := range f.ItemKey {
		parts[i] = ent.Get(k).String()
	}
	return strings.Join(parts, "|")
}

// Validate checks e against the declared types. Attributes the schema does
// not declare are rejected; mandatory attributes must be set.
func (s *Schema) Validate(e Entity) error {
	if !e.Exists() {
		return nil
	}
	v := &util.ValidationBuilder{}
	for _, name := range e.Names() {
		f, ok := s.Field(name)
		if !ok {
			v.AddErrorf("%s: unknown attribute %q", s.Kind, name)
			continue
		}
		if err := f.check(e.Get(name)); err != nil {
			v.AddErrorf("%s.%s: %v", s.Kind, name, err)
		}
	}
	for _, f := range s.Fields {
		v.Add(!f.Mandatory || e.Has(f.Name), fmt.Sprintf("%s.%s: mandatory attribute missing", s.Kind, f.Name))
	}
	return v.Build()
}

func (f FieldSchema) check(v Value) error {
	want := kindOf(f.Type)
	if v.Kind() != want {
		return fmt.Errorf("want %s, got %s", f.Type, v.Kind())
	}
	switch f.Type {
	case TypeEnum:
		return checkEnum(f.Values, v)
	case TypeList:
		if f.Item == "" {
			return nil
		}
		for _, item := range v.Items() {
			if item.Kind() != kindOf(f.Item) {
				return fmt.Errorf("list item want %s, got %s", f.Item, item.Kind())
			}
			if f.Item == TypeEnum {
				if err := checkEnum(f.Values, item); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func checkEnum(values []string, v Value) error {
	if len(values) == 0 {
		return nil
	}
	s, _ := v.Str()
	for _, allowed := range values {
		if s == allowed {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %s", s, strings.Join(values, ", "))
}

func kindOf(t FieldType) ValueKind {
	switch t {
	case TypeString:
		return KindString
	case TypeInt:
		return KindInt
	case TypeBool:
		return KindBool
	case TypeEnum:
		return KindEnum
	case TypeEntity:
		return KindEntity
	case TypeList:
		return KindList
	}
	return KindNull
}

// Coerce converts loosely typed values (strings from a command line, YAML
// scalars) to the declared field types and validates the result.
func (s *Schema) Coerce(e Entity) (Entity, error) {
	if !e.Exists() {
		return e, nil
	}
	fields := make([]Field, 0, e.Len())
	for _, name := range e.Names() {
		f, ok := s.Field(name)
		if !ok {
			return Absent, util.NewValidationError(fmt.Sprintf("%s: unknown attribute %q", s.Kind, name))
		}
		v, err := f.CoerceWith(s.Grammar, e.Get(name))
		if err != nil {
			return Absent, util.NewValidationError(fmt.Sprintf("%s.%s: %v", s.Kind, name, err))
		}
		fields = append(fields, F(name, v))
	}
	out := New(fields...)
	return out, s.Validate(out)
}

// Coerce converts v to the field's declared type, reading range text in
// the default grammar.
func (f FieldSchema) Coerce(v Value) (Value, error) {
	return f.CoerceWith(rangeset.Default, v)
}

// CoerceWith is Coerce with range text read in g.
func (f FieldSchema) CoerceWith(g rangeset.Grammar, v Value) (Value, error) {
	if f.Type == TypeList {
		if v.Kind() == KindList {
			items := v.Items()
			for i, item := range items {
				c, err := coerceScalar(f.Item, item)
				if err != nil {
					return Null, err
				}
				items[i] = c
			}
			return List(items...), nil
		}
		s, ok := v.Str()
		if !ok {
			return Null, fmt.Errorf("want list, got %s", v.Kind())
		}
		return f.ParseListWith(g, s)
	}
	return coerceScalar(f.Type, v)
}

// ParseList converts list text to a list value, using default range
// notation when the field declares it and comma separation otherwise.
func (f FieldSchema) ParseList(text string) (Value, error) {
	return f.ParseListWith(rangeset.Default, text)
}

// ParseListWith is ParseList with range text read in g.
func (f FieldSchema) ParseListWith(g rangeset.Grammar, text string) (Value, error) {
	var tokens []string
	if f.Range {
		set, err := g.Expand(text)
		if err != nil {
			return Null, err
		}
		tokens = set.Strings()
	} else {
		for _, p := range strings.Split(text, ",") {
			if p = strings.TrimSpace(p); p != "" {
				tokens = append(tokens, p)
			}
		}
	}
	items := make([]Value, len(tokens))
	for i, tok := range tokens {
		c, err := coerceScalar(f.Item, String(tok))
		if err != nil {
			return Null, err
		}
		items[i] = c
	}
	return List(items...), nil
}

func coerceScalar(t FieldType, v Value) (Value, error) {
	s, isStr := v.Str()
	switch t {
	case "", TypeEntity:
		return v, nil
	case TypeString:
		if isStr {
			return String(s), nil
		}
		return String(v.String()), nil
	case TypeEnum:
		if isStr {
			return Enum(s), nil
		}
		return Enum(v.String()), nil
	case TypeInt:
		if !isStr {
			return v, nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return Null, util.NewParseError("", s, string(t), err)
		}
		return Int(n), nil
	case TypeBool:
		if !isStr {
			return v, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return Null, util.NewParseError("", s, string(t), err)
		}
		return Bool(b), nil
	}
	return v, nil
}
