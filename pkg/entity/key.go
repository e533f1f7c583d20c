// Package entity defines the vendor-neutral configuration model: keys that
// locate one configuration object, typed attribute values, immutable entity
// snapshots and the per-kind schema that declares attribute order and diff
// semantics.
package entity

import (
	"fmt"
	"strings"
)

// PathElem is one (kind, identifier) step of a key path.
type PathElem struct {
	Kind string `json:"kind" yaml:"kind"`
	ID   string `json:"id" yaml:"id"`
}

func (p PathElem) String() string {
	return p.Kind + "[" + escapeID(p.ID) + "]"
}

// Key locates one configuration entity, e.g.
//
//	network-instance[default]/vlan[39]
//
// Keys are immutable and comparable, so they can be used as map keys.
type Key struct {
	path string
}

// NewKey builds a key from path elements.
func NewKey(elems ...PathElem) Key {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return Key{path: strings.Join(parts, "/")}
}

// K is shorthand for building a key from alternating kind/id pairs.
// It panics on an odd number of arguments.
func K(kindIDs ...string) Key {
	if len(kindIDs)%2 != 0 {
		panic("entity.K: odd number of arguments")
	}
	elems := make([]PathElem, 0, len(kindIDs)/2)
	for i := 0; i < len(kindIDs); i += 2 {
		elems = append(elems, PathElem{Kind: kindIDs[i], ID: kindIDs[i+1]})
	}
	return NewKey(elems...)
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, nil
	}
	var elems []PathElem
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '[')
		if open <= 0 {
			return Key{}, fmt.Errorf("invalid key %q: expected kind[id]", s)
		}
		kind := rest[:open]
		id, n, err := unescapeID(rest[open+1:])
		if err != nil {
			return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
		}
		elems = append(elems, PathElem{Kind: kind, ID: id})
		rest = rest[open+1+n:]
		if rest == "" {
			break
		}
		if rest[0] != '/' || len(rest) == 1 {
			return Key{}, fmt.Errorf("invalid key %q: expected '/' between elements", s)
		}
		rest = rest[1:]
	}
	return NewKey(elems...), nil
}

// String returns the canonical text form of the key.
func (k Key) String() string {
	return k.path
}

// IsZero reports whether the key has no elements.
func (k Key) IsZero() bool {
	return k.path == ""
}

// Elems returns the path elements from root to leaf.
func (k Key) Elems() []PathElem {
	if k.path == "" {
		return nil
	}
	var elems []PathElem
	rest := k.path
	for rest != "" {
		open := strings.IndexByte(rest, '[')
		id, n, _ := unescapeID(rest[open+1:])
		elems = append(elems, PathElem{Kind: rest[:open], ID: id})
		rest = rest[open+1+n:]
		if rest != "" {
			rest = rest[1:]
		}
	}
	return elems
}

// Len returns the number of path elements.
func (k Key) Len() int {
	return len(k.Elems())
}

// Root returns the first path element.
func (k Key) Root() (PathElem, bool) {
	elems := k.Elems()
	if len(elems) == 0 {
		return PathElem{}, false
	}
	return elems[0], true
}

// Leaf returns the last path element.
func (k Key) Leaf() (PathElem, bool) {
	elems := k.Elems()
	if len(elems) == 0 {
		return PathElem{}, false
	}
	return elems[len(elems)-1], true
}

// Kind returns the kind of the leaf element.
func (k Key) Kind() string {
	leaf, _ := k.Leaf()
	return leaf.Kind
}

// ID returns the identifier of the leaf element.
func (k Key) ID() string {
	leaf, _ := k.Leaf()
	return leaf.ID
}

// Parent returns the key without its leaf element.
func (k Key) Parent() Key {
	elems := k.Elems()
	if len(elems) <= 1 {
		return Key{}
	}
	return NewKey(elems[:len(elems)-1]...)
}

// Child returns a new key with one more element.
func (k Key) Child(kind, id string) Key {
	return NewKey(append(k.Elems(), PathElem{Kind: kind, ID: id})...)
}

// Lookup returns the identifier of the first element of the given kind.
func (k Key) Lookup(kind string) (string, bool) {
	for _, e := range k.Elems() {
		if e.Kind == kind {
			return e.ID, true
		}
	}
	return "", false
}

// Pattern returns the kinds of the path joined by "/", e.g.
// "network-instance/vlan". Dispatch candidates register against patterns.
func (k Key) Pattern() string {
	elems := k.Elems()
	kinds := make([]string, len(elems))
	for i, e := range elems {
		kinds[i] = e.Kind
	}
	return strings.Join(kinds, "/")
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.path), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

var idEscaper = strings.NewReplacer(`\`, `\\`, `]`, `\]`)

func escapeID(id string) string {
	return idEscaper.Replace(id)
}

// unescapeID reads an escaped identifier up to its closing bracket and
// returns the identifier and the number of bytes consumed, bracket included.
func unescapeID(s string) (string, int, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 >= len(s) {
				return "", 0, fmt.Errorf("dangling escape")
			}
			i++
			sb.WriteByte(s[i])
		case ']':
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(s[i])
		}
	}
	return "", 0, fmt.Errorf("missing ']'")
}
