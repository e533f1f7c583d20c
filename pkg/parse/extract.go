package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Extractor converts one match into a typed value.
type Extractor func(m Match) (entity.Value, error)

// Filter keeps a match when it returns true. Filters run before extraction.
type Filter func(m Match) bool

// Exclude drops matches whose text contains any of substrs.
func Exclude(substrs ...string) Filter {
	return func(m Match) bool {
		for _, s := range substrs {
			if strings.Contains(m.Text, s) {
				return false
			}
		}
		return true
	}
}

// Contains keeps only matches whose text contains substr.
func Contains(substr string) Filter {
	return func(m Match) bool {
		return strings.Contains(m.Text, substr)
	}
}

// FirstMatch returns the first match of p in line order, extracted with x.
// No match yields ok=false and a nil error.
func FirstMatch(text string, p Pattern, x Extractor, filters ...Filter) (entity.Value, bool, error) {
	if len(filters) == 0 {
		m, ok := p.first(text)
		if !ok {
			return entity.Null, false, nil
		}
		v, err := x(m)
		return v, err == nil, err
	}
	for _, m := range p.matches(text) {
		if keep(m, filters) {
			v, err := x(m)
			return v, err == nil, err
		}
	}
	return entity.Null, false, nil
}

// AllMatches returns every match of p in source order, extracted with x.
// Matches rejected by a filter are skipped before extraction. The first
// extraction failure is returned.
func AllMatches(text string, p Pattern, x Extractor, filters ...Filter) ([]entity.Value, error) {
	var out []entity.Value
	for _, m := range p.matches(text) {
		if !keep(m, filters) {
			continue
		}
		v, err := x(m)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func keep(m Match, filters []Filter) bool {
	for _, f := range filters {
		if !f(m) {
			return false
		}
	}
	return true
}

// String extracts capture group i verbatim, trimmed of surrounding space.
func String(group int) Extractor {
	return func(m Match) (entity.Value, error) {
		return entity.String(strings.TrimSpace(m.Group(group))), nil
	}
}

// Int extracts capture group i as a decimal integer.
func Int(group int) Extractor {
	return func(m Match) (entity.Value, error) {
		s := strings.TrimSpace(m.Group(group))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return entity.Null, util.NewParseError("", s, "int", err)
		}
		return entity.Int(n), nil
	}
}

var boolWords = map[string]bool{
	"true": true, "yes": true, "on": true, "enable": true, "enabled": true, "up": true,
	"false": false, "no": false, "off": false, "disable": false, "disabled": false, "down": false,
}

// Bool extracts capture group i as a boolean. Besides true/false the
// usual CLI words yes/no, on/off, enable(d)/disable(d) and up/down parse.
func Bool(group int) Extractor {
	return func(m Match) (entity.Value, error) {
		s := strings.TrimSpace(m.Group(group))
		b, ok := boolWords[strings.ToLower(s)]
		if !ok {
			return entity.Null, util.NewParseError("", s, "bool", fmt.Errorf("not a boolean"))
		}
		return entity.Bool(b), nil
	}
}

// Present yields true for every match. Used for flag lines such as
// "shutdown" whose mere presence sets the attribute.
func Present() Extractor {
	return func(Match) (entity.Value, error) {
		return entity.Bool(true), nil
	}
}

// Const yields v for every match.
func Const(v entity.Value) Extractor {
	return func(Match) (entity.Value, error) {
		return v, nil
	}
}

// Enum extracts capture group i and checks it against the allowed values.
// An empty allowed list accepts anything.
func Enum(group int, allowed ...string) Extractor {
	return func(m Match) (entity.Value, error) {
		s := strings.TrimSpace(m.Group(group))
		if len(allowed) == 0 {
			return entity.Enum(s), nil
		}
		for _, a := range allowed {
			if s == a {
				return entity.Enum(s), nil
			}
		}
		return entity.Null, util.NewParseError("", s, "enum",
			fmt.Errorf("not one of %s", strings.Join(allowed, ", ")))
	}
}

// Range extracts capture group i as range text and expands it with g. The
// result is a list of integers when every element is numeric and a list of
// strings otherwise.
func Range(group int, g rangeset.Grammar) Extractor {
	return func(m Match) (entity.Value, error) {
		s, err := g.Expand(m.Group(group))
		if err != nil {
			return entity.Null, util.NewParseError("", m.Group(group), "range", err)
		}
		return setValue(s), nil
	}
}

func setValue(s rangeset.Set) entity.Value {
	if ints, err := s.Ints(); err == nil {
		return entity.Ints(ints...)
	}
	return entity.Strings(s.Strings()...)
}
