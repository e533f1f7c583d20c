package parse

import (
	"errors"

	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Field binds one schema attribute to the pattern that reads it.
type Field struct {
	Schema  entity.FieldSchema
	Pattern Pattern
	// Extract overrides the extractor derived from the schema type.
	Extract Extractor
	// Group is the capture group holding the value. Zero selects group 1
	// when the pattern has groups and the whole match otherwise.
	Group   int
	Filters []Filter
	// Grammar expands range-notation lists.
	Grammar rangeset.Grammar
	// Sub parses each match of an entity list into one item.
	Sub []Field
	// Default is stored when nothing matches.
	Default entity.Value
}

func (f Field) group() int {
	if f.Group > 0 || f.Pattern.re == nil {
		return f.Group
	}
	if f.Pattern.re.NumSubexp() > 0 {
		return 1
	}
	return 0
}

// Read extracts the attribute from text. No match yields Null (or the
// declared default) and a nil error.
func (f Field) Read(text string) (entity.Value, error) {
	var v entity.Value
	var err error
	if f.Schema.Type == entity.TypeList {
		v, err = f.readList(text)
	} else {
		var ok bool
		v, ok, err = FirstMatch(text, f.Pattern, f.extractor(f.Schema.Type), f.Filters...)
		if !ok {
			v = entity.Null
		}
	}
	if err != nil {
		return entity.Null, attributeError(f.Schema.Name, err)
	}
	if v.IsNull() {
		return f.Default, nil
	}
	return v, nil
}

func (f Field) extractor(t entity.FieldType) Extractor {
	if f.Extract != nil {
		return f.Extract
	}
	g := f.group()
	switch t {
	case entity.TypeInt:
		return Int(g)
	case entity.TypeBool:
		if g == 0 {
			return Present()
		}
		return Bool(g)
	case entity.TypeEnum:
		return Enum(g, f.Schema.Values...)
	case entity.TypeEntity:
		return func(m Match) (entity.Value, error) {
			res, err := Fields(m.Text, f.Sub)
			if err != nil {
				return entity.Null, err
			}
			return entity.Nested(res.Entity), nil
		}
	}
	return String(g)
}

// readList gathers list items from every match. Range lists fold the
// matches in order, so continuation lines ("... vlan add 3527") merge
// into the base set and split lines ("... allow-pass vlan 10 to 20",
// "... allow-pass vlan 30") form their union.
func (f Field) readList(text string) (entity.Value, error) {
	if f.Schema.Range && f.Extract == nil {
		set := rangeset.New()
		matched := false
		g := f.group()
		for _, m := range f.Pattern.matches(text) {
			if !keep(m, f.Filters) {
				continue
			}
			frag := m.Group(g)
			// Repeated plain lines accumulate.
			if matched && !rangeset.IsFragment(frag) {
				frag = "add " + frag
			}
			matched = true
			var err error
			if set, err = f.Grammar.Apply(set, frag); err != nil {
				return entity.Null, util.NewParseError("", m.Group(g), "range", err)
			}
		}
		if !matched {
			return entity.Null, nil
		}
		return f.Schema.Coerce(entity.Strings(set.Strings()...))
	}

	items, err := AllMatches(text, f.Pattern, f.extractor(f.Schema.Item), f.Filters...)
	if err != nil || len(items) == 0 {
		return entity.Null, err
	}
	return entity.List(items...), nil
}

// Result is an entity assembled by Fields together with the attribute
// failures that were tolerated.
type Result struct {
	Entity entity.Entity
	Errors []error
}

// Fields assembles an entity from text. A failure on an optional attribute
// leaves that attribute unset and is recorded in Result.Errors; a failure
// on a mandatory attribute fails the whole entity.
func Fields(text string, fields []Field) (Result, error) {
	var res Result
	attrs := make([]entity.Field, 0, len(fields))
	for _, f := range fields {
		v, err := f.Read(text)
		if err != nil {
			if f.Schema.Mandatory {
				return Result{}, err
			}
			res.Errors = append(res.Errors, err)
			continue
		}
		attrs = append(attrs, entity.F(f.Schema.Name, v))
	}
	res.Entity = entity.New(attrs...)
	return res, nil
}

// attributeError names the attribute on a parse error.
func attributeError(attr string, err error) error {
	var pe *util.ParseError
	if errors.As(err, &pe) && pe.Attribute == "" {
		named := *pe
		named.Attribute = attr
		return &named
	}
	return err
}
