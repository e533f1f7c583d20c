// Package rangeset expands and compacts the range notation device CLIs use
// for VLAN lists and port lists ("1-3,5,10,20-22", "1/2-2/1,t/3").
package rangeset

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Grammar describes one range dialect. The zero value of each field falls
// back to the Default grammar.
type Grammar struct {
	ListSep  string `yaml:"list_sep,omitempty"`  // between tokens, default ","
	SpanSep  string `yaml:"span_sep,omitempty"`  // between span endpoints, default "-"
	LevelSep string `yaml:"level_sep,omitempty"` // between unit/port components, default "/"

	// UnitSize is the number of ports per unit at the last level. When set,
	// spans may cross units ("1/47-2/2"); when zero such spans are rejected.
	UnitSize int `yaml:"unit_size,omitempty"`
	// UnitBase is the first port number within a unit (usually 0 or 1).
	UnitBase int `yaml:"unit_base,omitempty"`

	// NumericOnly rejects opaque and prefixed elements.
	NumericOnly bool `yaml:"numeric_only,omitempty"`

	// MaxSpan caps the number of elements one span may expand to,
	// default DefaultMaxSpan.
	MaxSpan int `yaml:"max_span,omitempty"`
}

// DefaultMaxSpan covers the full VLAN space and any port span.
const DefaultMaxSpan = 4096

// Default is the comma/dash/slash grammar shared by most CLIs. It declares
// no unit size, so a span that crosses units ("1/2-2/1") is rejected;
// profiles that accept such spans set unit_size and unit_base.
var Default = Grammar{ListSep: ",", SpanSep: "-", LevelSep: "/", MaxSpan: DefaultMaxSpan}

func (g Grammar) normalized() Grammar {
	if g.ListSep == "" {
		g.ListSep = Default.ListSep
	}
	if g.SpanSep == "" {
		g.SpanSep = Default.SpanSep
	}
	if g.LevelSep == "" {
		g.LevelSep = Default.LevelSep
	}
	if g.MaxSpan <= 0 {
		g.MaxSpan = DefaultMaxSpan
	}
	return g
}

// Expand parses range text into a set. Empty text yields an empty set.
// Tokens keep their order of appearance; duplicates are dropped.
func (g Grammar) Expand(text string) (Set, error) {
	g = g.normalized()
	out, err := g.ExpandTokens(g.tokens(text)...)
	if err != nil {
		if re, ok := err.(*util.RangeError); ok {
			re.Text = text
		}
		return Set{}, err
	}
	return out, nil
}

// tokens splits text on the list separator. A whitespace list separator
// splits on any run of spaces, and a word span separator (" to ") glues
// its endpoints back into one token: "10 20 to 30" -> [10, 20 to 30].
func (g Grammar) tokens(text string) []string {
	var parts []string
	if strings.TrimSpace(g.ListSep) == "" {
		parts = strings.Fields(text)
	} else {
		parts = strings.Split(text, g.ListSep)
	}
	word := strings.TrimSpace(g.SpanSep)
	if word == "" || word == g.SpanSep || strings.TrimSpace(g.ListSep) != "" {
		return parts
	}
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		if parts[i] == word && len(out) > 0 && i+1 < len(parts) {
			out[len(out)-1] += g.SpanSep + parts[i+1]
			i++
			continue
		}
		out = append(out, parts[i])
	}
	return out
}

// ExpandTokens expands already separated tokens, each a single element or
// a span, into one set.
func (g Grammar) ExpandTokens(tokens ...string) (Set, error) {
	g = g.normalized()
	out := New()
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		elems, err := g.expandToken(tok)
		if err != nil {
			return Set{}, err
		}
		for _, e := range elems {
			out.add(e)
		}
	}
	return out, nil
}

func (g Grammar) expandToken(tok string) ([]Element, error) {
	// Try span splits from the rightmost separator so prefixes that contain
	// the separator ("Port-channel1") still parse as single elements.
	for i := strings.LastIndex(tok, g.SpanSep); i > 0; i = strings.LastIndex(tok[:i], g.SpanSep) {
		left := strings.TrimSpace(tok[:i])
		right := strings.TrimSpace(tok[i+len(g.SpanSep):])
		lo, err := g.parseElement(left)
		if err != nil || lo.IsOpaque() {
			continue
		}
		hi, err := g.parseSpanEnd(lo, right)
		if err != nil {
			return nil, util.NewRangeError(tok, tok, err.Error())
		}
		return g.span(tok, lo, hi)
	}

	e, err := g.parseElement(tok)
	if err != nil {
		return nil, util.NewRangeError(tok, tok, err.Error())
	}
	if !g.allowed(e) {
		return nil, util.NewRangeError(tok, tok, "non-numeric element")
	}
	return []Element{e}, nil
}

func (g Grammar) allowed(e Element) bool {
	if !g.NumericOnly {
		return true
	}
	_, ok := e.IntValue()
	return ok
}

// parseElement splits a token into its verbatim prefix and numeric tail.
func (g Grammar) parseElement(tok string) (Element, error) {
	if tok == "" {
		return Element{}, fmt.Errorf("empty element")
	}
	start := len(tok)
	for start > 0 {
		c := tok[start-1]
		if c >= '0' && c <= '9' || strings.HasSuffix(tok[:start], g.LevelSep) {
			if c >= '0' && c <= '9' {
				start--
			} else {
				start -= len(g.LevelSep)
			}
			continue
		}
		break
	}
	// The tail must begin with a digit; a leading level separator belongs
	// to the prefix ("t/11" -> "t/" + 11).
	for start < len(tok) && strings.HasPrefix(tok[start:], g.LevelSep) {
		start += len(g.LevelSep)
	}
	prefix, tail := tok[:start], tok[start:]
	if strings.IndexFunc(prefix, unicode.IsDigit) >= 0 {
		return Element{}, fmt.Errorf("invalid element %q", tok)
	}
	if g.onlySpanSep(prefix) {
		return Element{}, fmt.Errorf("span %q has no start", tok)
	}
	if tail == "" {
		return Element{Prefix: prefix, sep: g.LevelSep}, nil
	}
	parts := strings.Split(tail, g.LevelSep)
	units := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Element{}, fmt.Errorf("invalid element %q", tok)
		}
		units[i] = v
	}
	return Element{Prefix: prefix, units: units, sep: g.LevelSep}, nil
}

// onlySpanSep reports whether prefix is made of nothing but span
// separators ("-5", "to 5").
func (g Grammar) onlySpanSep(prefix string) bool {
	sep := strings.TrimSpace(g.SpanSep)
	p := strings.TrimSpace(prefix)
	if p == "" || sep == "" {
		return false
	}
	for strings.HasPrefix(p, sep) {
		p = strings.TrimSpace(p[len(sep):])
	}
	return p == ""
}

// parseSpanEnd parses the high end of a span. A bare numeric end inherits
// the prefix and leading units of the low end ("Gi0/1-4" -> Gi0/4).
func (g Grammar) parseSpanEnd(lo Element, text string) (Element, error) {
	hi, err := g.parseElement(text)
	if err != nil {
		return Element{}, err
	}
	if hi.IsOpaque() {
		return Element{}, fmt.Errorf("span end %q is not numeric", text)
	}
	if hi.Prefix == "" && (lo.Prefix != "" || len(hi.units) < len(lo.units)) {
		if len(hi.units) > len(lo.units) {
			return Element{}, fmt.Errorf("span endpoints have different shapes")
		}
		units := lo.Units()
		copy(units[len(units)-len(hi.units):], hi.units)
		return Element{Prefix: lo.Prefix, units: units, sep: g.LevelSep}, nil
	}
	if hi.Prefix != lo.Prefix {
		return Element{}, fmt.Errorf("span endpoints have different prefixes (%q, %q)", lo.Prefix, hi.Prefix)
	}
	if len(hi.units) != len(lo.units) {
		return Element{}, fmt.Errorf("span endpoints have different shapes")
	}
	return hi, nil
}

func (g Grammar) span(tok string, lo, hi Element) ([]Element, error) {
	if compare(lo, hi) > 0 {
		return nil, util.NewRangeError(tok, tok, fmt.Sprintf("start %s greater than end %s", lo, hi))
	}
	if !g.allowed(lo) {
		return nil, util.NewRangeError(tok, tok, "non-numeric element")
	}
	if !lo.sameUnit(hi) && g.UnitSize <= 0 {
		return nil, util.NewRangeError(tok, tok, "span crosses units but the grammar declares no unit size")
	}
	var out []Element
	for cur := lo; ; {
		if len(out) == g.MaxSpan {
			return nil, util.NewRangeError(tok, tok, fmt.Sprintf("span expands to more than %d elements", g.MaxSpan))
		}
		out = append(out, cur)
		if cur.Equal(hi) {
			return out, nil
		}
		next, ok := g.next(cur)
		if !ok || compare(next, hi) > 0 {
			return nil, util.NewRangeError(tok, tok, fmt.Sprintf("end %s is not reachable from %s", hi, lo))
		}
		cur = next
	}
}

// next returns the element that directly follows e in device order.
func (g Grammar) next(e Element) (Element, bool) {
	if e.IsOpaque() {
		return Element{}, false
	}
	if g.UnitSize <= 0 || len(e.units) < 2 {
		return e.withLast(e.last() + 1), true
	}
	if e.last() < g.UnitBase+g.UnitSize-1 {
		return e.withLast(e.last() + 1), true
	}
	u := e.Units()
	u[len(u)-1] = g.UnitBase
	u[len(u)-2]++
	return Element{Prefix: e.Prefix, units: u, sep: e.sep}, true
}

// Compact renders s in canonical device order with consecutive elements
// merged into spans. Non-numeric and non-contiguous elements stay singletons.
func (g Grammar) Compact(s Set) string {
	g = g.normalized()
	sorted := s.Sorted().elems
	if len(sorted) == 0 {
		return ""
	}

	var parts []string
	start, end := sorted[0], sorted[0]
	for _, e := range sorted[1:] {
		if next, ok := g.next(end); ok && next.Equal(e) {
			end = e
			continue
		}
		parts = append(parts, g.formatSpan(start, end))
		start, end = e, e
	}
	parts = append(parts, g.formatSpan(start, end))
	return strings.Join(parts, g.ListSep)
}

func (g Grammar) formatSpan(start, end Element) string {
	if start.Equal(end) {
		return start.String()
	}
	return start.String() + g.SpanSep + end.String()
}

// Apply merges a continuation fragment into base. "add X" is a union and
// "remove X" a difference; "none" clears the set and any other text replaces
// it. Fragment order does not matter for unions.
func (g Grammar) Apply(base Set, fragment string) (Set, error) {
	fragment = strings.TrimSpace(fragment)
	verb, rest := fragment, ""
	if i := strings.IndexFunc(fragment, unicode.IsSpace); i > 0 {
		verb, rest = fragment[:i], strings.TrimSpace(fragment[i:])
	}
	switch verb {
	case "add":
		s, err := g.Expand(rest)
		if err != nil {
			return Set{}, err
		}
		return base.Union(s), nil
	case "remove":
		s, err := g.Expand(rest)
		if err != nil {
			return Set{}, err
		}
		return base.Difference(s), nil
	case "none":
		return New(), nil
	default:
		return g.Expand(fragment)
	}
}

// IsFragment reports whether text starts with a continuation verb
// understood by Apply.
func IsFragment(text string) bool {
	verb := strings.TrimSpace(text)
	if i := strings.IndexFunc(verb, unicode.IsSpace); i > 0 {
		verb = verb[:i]
	}
	return verb == "add" || verb == "remove" || verb == "none"
}

// ExpandFragments expands text and folds each fragment into the result.
func (g Grammar) ExpandFragments(text string, fragments ...string) (Set, error) {
	s, err := g.Expand(text)
	if err != nil {
		return Set{}, err
	}
	for _, f := range fragments {
		if s, err = g.Apply(s, f); err != nil {
			return Set{}, err
		}
	}
	return s, nil
}
