package rangeset

import (
	"fmt"
	"sort"
)

// Set is an ordered, duplicate-free collection of range elements. Order is
// the order of first appearance in the parsed text; set operations and
// equality ignore order. Sets are immutable once built.
type Set struct {
	elems []Element
	index map[string]struct{}
}

// New builds a set from elements, dropping duplicates after the first.
func New(elems ...Element) Set {
	s := Set{index: make(map[string]struct{}, len(elems))}
	for _, e := range elems {
		s.add(e)
	}
	return s
}

// FromInts builds a set of plain integer elements.
func FromInts(values ...int) Set {
	elems := make([]Element, len(values))
	for i, v := range values {
		elems[i] = Int(v)
	}
	return New(elems...)
}

func (s *Set) add(e Element) {
	k := e.String()
	if _, ok := s.index[k]; ok {
		return
	}
	s.index[k] = struct{}{}
	s.elems = append(s.elems, e)
}

// Len returns the number of distinct elements.
func (s Set) Len() int {
	return len(s.elems)
}

// IsEmpty reports whether the set has no elements.
func (s Set) IsEmpty() bool {
	return len(s.elems) == 0
}

// Elements returns the elements in input order.
func (s Set) Elements() []Element {
	return append([]Element(nil), s.elems...)
}

// Strings returns the canonical text of each element in input order.
func (s Set) Strings() []string {
	out := make([]string, len(s.elems))
	for i, e := range s.elems {
		out[i] = e.String()
	}
	return out
}

// Ints returns the elements as integers. It fails if any element is not a
// plain integer.
func (s Set) Ints() ([]int, error) {
	out := make([]int, 0, len(s.elems))
	for _, e := range s.elems {
		v, ok := e.IntValue()
		if !ok {
			return nil, fmt.Errorf("element %q is not an integer", e.String())
		}
		out = append(out, v)
	}
	return out, nil
}

// Contains reports whether e is a member.
func (s Set) Contains(e Element) bool {
	_, ok := s.index[e.String()]
	return ok
}

// Equal reports whether both sets hold the same elements, in any order.
func (s Set) Equal(o Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, e := range s.elems {
		if !o.Contains(e) {
			return false
		}
	}
	return true
}

// Union returns s followed by the members of o not already in s.
func (s Set) Union(o Set) Set {
	out := New(s.elems...)
	for _, e := range o.elems {
		out.add(e)
	}
	return out
}

// Difference returns the members of s that are not in o.
func (s Set) Difference(o Set) Set {
	out := New()
	for _, e := range s.elems {
		if !o.Contains(e) {
			out.add(e)
		}
	}
	return out
}

// Sorted returns a copy of s in canonical device order.
func (s Set) Sorted() Set {
	elems := s.Elements()
	sort.SliceStable(elems, func(i, j int) bool {
		return compare(elems[i], elems[j]) < 0
	})
	return New(elems...)
}
