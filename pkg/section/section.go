// Package section slices a running-config dump into per-entity blocks.
//
// A block starts at the entity's header line and ends before the next
// sibling header, the first terminator line, or the end of text, whichever
// comes first. Header matches are computed once per Index, so extracting
// every entity of a dump costs one pass over the text.
package section

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTerminators end the last block of a dump.
var DefaultTerminators = []string{`^!\s*$`, `^end\s*$`, `^#\s*$`, `^return\s*$`}

// Extractor finds the blocks for one entity kind.
type Extractor struct {
	header      *regexp.Regexp
	idGroup     int
	terminators []*regexp.Regexp
}

// New compiles an extractor. The header pattern must capture the entity
// identifier, either in a group named "id" or in its first group. Nil
// terminators select DefaultTerminators; an empty non-nil slice disables
// terminators.
func New(header string, terminators []string) (*Extractor, error) {
	re, err := regexp.Compile(header)
	if err != nil {
		return nil, fmt.Errorf("compiling header pattern %q: %w", header, err)
	}
	if re.NumSubexp() == 0 {
		return nil, fmt.Errorf("header pattern %q has no identifier group", header)
	}
	x := &Extractor{header: re, idGroup: 1}
	if i := re.SubexpIndex("id"); i > 0 {
		x.idGroup = i
	}

	if terminators == nil {
		terminators = DefaultTerminators
	}
	for _, t := range terminators {
		tre, err := regexp.Compile(t)
		if err != nil {
			return nil, fmt.Errorf("compiling terminator %q: %w", t, err)
		}
		x.terminators = append(x.terminators, tre)
	}
	return x, nil
}

// MustNew is like New but panics on error.
func MustNew(header string, terminators []string) *Extractor {
	x, err := New(header, terminators)
	if err != nil {
		panic(err)
	}
	return x
}

// Extract returns the block for id. ok is false when no header for id
// exists, which callers treat as "entity absent". An entity whose block is
// only its header returns ok=true.
func (x *Extractor) Extract(text, id string) (string, bool) {
	return x.Index(text).Section(id)
}

// Index scans text once and records every block boundary.
func (x *Extractor) Index(text string) *Index {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	ix := &Index{lines: lines, byID: make(map[string]int)}

	var headers []int
	for i, line := range lines {
		m := x.header.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		headers = append(headers, i)
		id := m[x.idGroup]
		if _, dup := ix.byID[id]; !dup {
			ix.byID[id] = len(ix.blocks)
			ix.blocks = append(ix.blocks, block{id: id, start: i})
		}
	}

	// Each header's block ends at the following header in document order,
	// including later duplicates of its own id.
	next := make(map[int]int, len(headers))
	for i, h := range headers {
		if i+1 < len(headers) {
			next[h] = headers[i+1]
		} else {
			next[h] = len(lines)
		}
	}
	for i := range ix.blocks {
		b := &ix.blocks[i]
		b.end = x.terminate(lines, b.start+1, next[b.start])
	}
	return ix
}

// terminate returns the index of the first terminator line in [from, to),
// or to when there is none.
func (x *Extractor) terminate(lines []string, from, to int) int {
	for i := from; i < to; i++ {
		for _, t := range x.terminators {
			if t.MatchString(lines[i]) {
				return i
			}
		}
	}
	return to
}

type block struct {
	id         string
	start, end int
}

// Index holds the precomputed block boundaries of one dump. It is
// read-only after construction and safe for concurrent use.
type Index struct {
	lines  []string
	blocks []block
	byID   map[string]int
}

// Section returns the block text for id, header line included.
func (ix *Index) Section(id string) (string, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return "", false
	}
	b := ix.blocks[i]
	body := ix.lines[b.start:b.end]
	// Trailing blank lines belong to no entity.
	for len(body) > 1 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	return strings.Join(body, "\n") + "\n", true
}

// Has reports whether a header for id exists.
func (ix *Index) Has(id string) bool {
	_, ok := ix.byID[id]
	return ok
}

// Keys returns the identifiers in document order.
func (ix *Index) Keys() []string {
	out := make([]string, len(ix.blocks))
	for i, b := range ix.blocks {
		out[i] = b.id
	}
	return out
}

// Len returns the number of distinct entities.
func (ix *Index) Len() int {
	return len(ix.blocks)
}
