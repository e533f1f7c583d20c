// Package parse extracts attribute values from device configuration text.
//
// A Pattern is applied per logical line unless it was built with Whole, in
// which case it runs once over the full text with "." matching newlines.
// A pattern that finds nothing is never an error: FirstMatch reports
// ok=false and the caller treats the attribute as unset. A pattern that
// matches but whose capture cannot be converted to the declared type is a
// *util.ParseError.
package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// Pattern is a compiled field pattern.
type Pattern struct {
	re    *regexp.Regexp
	whole bool
}

// Line compiles expr as a per-line pattern.
func Line(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compiling line pattern %q: %w", expr, err)
	}
	return Pattern{re: re}, nil
}

// Whole compiles expr as a whole-text pattern for multi-line constructs.
// Dot matches newline and ^/$ match at line boundaries.
func Whole(expr string) (Pattern, error) {
	re, err := regexp.Compile("(?sm)" + expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compiling whole-text pattern %q: %w", expr, err)
	}
	return Pattern{re: re, whole: true}, nil
}

// MustLine is like Line but panics on a bad expression.
func MustLine(expr string) Pattern {
	p, err := Line(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// MustWhole is like Whole but panics on a bad expression.
func MustWhole(expr string) Pattern {
	p, err := Whole(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p was never compiled.
func (p Pattern) IsZero() bool { return p.re == nil }

// IsWhole reports whether p runs over the whole text.
func (p Pattern) IsWhole() bool { return p.whole }

func (p Pattern) String() string {
	if p.re == nil {
		return ""
	}
	return p.re.String()
}

// Match is one pattern match: the matched text and its capture groups,
// Groups[0] being the full match.
type Match struct {
	Text   string
	Groups []string
}

// Group returns capture group i, or "" when the group does not exist.
func (m Match) Group(i int) string {
	if i < 0 || i >= len(m.Groups) {
		return ""
	}
	return m.Groups[i]
}

// Lines splits text into logical lines, dropping carriage returns.
func Lines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// matches returns all matches of p in source order. For line patterns a
// line may contribute several matches; Text is then the whole line so
// filters see the surrounding context.
func (p Pattern) matches(text string) []Match {
	if p.re == nil {
		return nil
	}
	if p.whole {
		var out []Match
		for _, g := range p.re.FindAllStringSubmatch(text, -1) {
			out = append(out, Match{Text: g[0], Groups: g})
		}
		return out
	}
	var out []Match
	for _, line := range Lines(text) {
		for _, g := range p.re.FindAllStringSubmatch(line, -1) {
			out = append(out, Match{Text: line, Groups: g})
		}
	}
	return out
}

// first returns the first match in source order.
func (p Pattern) first(text string) (Match, bool) {
	if p.re == nil {
		return Match{}, false
	}
	if p.whole {
		g := p.re.FindStringSubmatch(text)
		if g == nil {
			return Match{}, false
		}
		return Match{Text: g[0], Groups: g}, true
	}
	for _, line := range Lines(text) {
		if g := p.re.FindStringSubmatch(line); g != nil {
			return Match{Text: line, Groups: g}, true
		}
	}
	return Match{}, false
}
