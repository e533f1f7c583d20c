package rangeset

import (
	"strconv"
	"strings"
)

// Element is one member of a range set. Plain integers ("39") have an empty
// Prefix and one unit; composite ports ("1/2") have several units; prefixed
// tokens ("t/11", "Ethernet4") keep their non-numeric lead verbatim in Prefix.
// Elements with no numeric tail ("all") are opaque and never merge into spans.
type Element struct {
	Prefix string
	units  []int
	sep    string
}

// Int returns a plain integer element.
func Int(v int) Element {
	return Element{units: []int{v}, sep: "/"}
}

// Units returns a copy of the numeric components.
func (e Element) Units() []int {
	return append([]int(nil), e.units...)
}

// IsOpaque reports whether the element has no numeric components.
func (e Element) IsOpaque() bool {
	return len(e.units) == 0
}

// IntValue returns the value of a plain integer element.
func (e Element) IntValue() (int, bool) {
	if e.Prefix != "" || len(e.units) != 1 {
		return 0, false
	}
	return e.units[0], true
}

func (e Element) String() string {
	if len(e.units) == 0 {
		return e.Prefix
	}
	var sb strings.Builder
	sb.WriteString(e.Prefix)
	for i, u := range e.units {
		if i > 0 {
			sb.WriteString(e.sep)
		}
		sb.WriteString(strconv.Itoa(u))
	}
	return sb.String()
}

// Equal compares two elements by prefix and numeric components.
func (e Element) Equal(o Element) bool {
	return compare(e, o) == 0
}

// sameUnit reports whether e and o share prefix and all but the last unit.
func (e Element) sameUnit(o Element) bool {
	if e.Prefix != o.Prefix || len(e.units) != len(o.units) || len(e.units) == 0 {
		return false
	}
	for i := 0; i < len(e.units)-1; i++ {
		if e.units[i] != o.units[i] {
			return false
		}
	}
	return true
}

func (e Element) last() int {
	return e.units[len(e.units)-1]
}

func (e Element) withLast(v int) Element {
	u := e.Units()
	u[len(u)-1] = v
	return Element{Prefix: e.Prefix, units: u, sep: e.sep}
}

// compare implements canonical device ordering: plain numbers first, then
// prefixed tokens grouped by prefix, numeric components compared as numbers,
// opaque tokens last.
func compare(a, b Element) int {
	ao, bo := a.IsOpaque(), b.IsOpaque()
	switch {
	case ao && !bo:
		return 1
	case !ao && bo:
		return -1
	}
	if a.Prefix != b.Prefix {
		switch {
		case a.Prefix == "":
			return -1
		case b.Prefix == "":
			return 1
		case a.Prefix < b.Prefix:
			return -1
		default:
			return 1
		}
	}
	for i := 0; i < len(a.units) && i < len(b.units); i++ {
		if a.units[i] != b.units[i] {
			if a.units[i] < b.units[i] {
				return -1
			}
			return 1
		}
	}
	return len(a.units) - len(b.units)
}
