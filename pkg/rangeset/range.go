package rangeset

import (
	"fmt"
	"strings"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Expand parses text with the Default grammar.
func Expand(text string) (Set, error) {
	return Default.Expand(text)
}

// Compact renders s with the Default grammar.
func Compact(s Set) string {
	return Default.Compact(s)
}

// ExpandInts expands a purely numeric range specification
//   - "1-5" -> [1, 2, 3, 4, 5]
//   - "1-3,5,7-9" -> [1, 2, 3, 5, 7, 8, 9]
//
// Values are returned in input order without duplicates.
func ExpandInts(spec string) ([]int, error) {
	s, err := Grammar{NumericOnly: true}.Expand(spec)
	if err != nil {
		return nil, err
	}
	if s.IsEmpty() {
		return nil, nil
	}
	return s.Ints()
}

// CompactInts compacts integers into range notation
// [1, 2, 3, 5, 7, 8, 9] -> "1-3,5,7-9"
func CompactInts(values []int) string {
	return Default.Compact(FromInts(values...))
}

// ExpandVLANs expands a VLAN list and rejects IDs outside 1-4094.
func ExpandVLANs(spec string) ([]int, error) {
	vlans, err := ExpandInts(spec)
	if err != nil {
		return nil, err
	}
	for _, v := range vlans {
		if v < 1 || v > 4094 {
			return nil, util.NewRangeError(spec, fmt.Sprint(v), "VLAN ID must be 1-4094")
		}
	}
	return vlans, nil
}

// ExpandInterfaces expands interface shorthand where every number after the
// first inherits the leading interface type
//
//	"Ethernet0-4"   -> [Ethernet0 Ethernet1 Ethernet2 Ethernet3 Ethernet4]
//	"Ethernet0,4,8" -> [Ethernet0 Ethernet4 Ethernet8]
func ExpandInterfaces(spec string) ([]string, error) {
	prefixEnd := strings.IndexAny(spec, "0123456789")
	if prefixEnd <= 0 {
		return nil, util.NewRangeError(spec, spec, "no interface prefix found")
	}
	prefix := spec[:prefixEnd]

	s, err := Default.Expand(spec[prefixEnd:])
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, s.Len())
	for _, e := range s.Elements() {
		if e.Prefix != "" || e.IsOpaque() {
			return nil, util.NewRangeError(spec, e.String(), "interface number expected")
		}
		out = append(out, prefix+e.String())
	}
	return out, nil
}
