// Package change defines the primitive mutations the diff planner emits and
// the command renderer consumes.
package change

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/newtron-network/newtcli/pkg/entity"
)

// Operation is the kind of write a transaction performs on one entity.
type Operation string

const (
	Read   Operation = "read"
	Create Operation = "create"
	Update Operation = "update"
	Delete Operation = "delete"
)

// OperationFor classifies a write by the existence of before and after.
func OperationFor(before, after entity.Entity) Operation {
	switch {
	case !before.Exists() && after.Exists():
		return Create
	case before.Exists() && !after.Exists():
		return Delete
	default:
		return Update
	}
}

// Kind tags the ChangeOp variant.
type Kind int

const (
	SetAttribute Kind = iota + 1
	RemoveAttribute
	AddListItem
	RemoveListItem
)

func (k Kind) String() string {
	switch k {
	case SetAttribute:
		return "set"
	case RemoveAttribute:
		return "remove"
	case AddListItem:
		return "add-item"
	case RemoveListItem:
		return "remove-item"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Op is one primitive change to one attribute of an entity.
//
//	SetAttribute:    Attr, Value (Old holds the replaced value, if any)
//	RemoveAttribute: Attr, Old
//	AddListItem:     Attr (collection), ItemKey, Value (the item)
//	RemoveListItem:  Attr (collection), ItemKey, Old (the removed item)
type Op struct {
	Kind    Kind
	Attr    string
	ItemKey string
	Value   entity.Value
	Old     entity.Value
}

// Set returns a SetAttribute op.
func Set(attr string, v, old entity.Value) Op {
	return Op{Kind: SetAttribute, Attr: attr, Value: v, Old: old}
}

// Remove returns a RemoveAttribute op.
func Remove(attr string, old entity.Value) Op {
	return Op{Kind: RemoveAttribute, Attr: attr, Old: old}
}

// AddItem returns an AddListItem op.
func AddItem(collection, key string, item entity.Value) Op {
	return Op{Kind: AddListItem, Attr: collection, ItemKey: key, Value: item}
}

// RemoveItem returns a RemoveListItem op.
func RemoveItem(collection, key string, old entity.Value) Op {
	return Op{Kind: RemoveListItem, Attr: collection, ItemKey: key, Old: old}
}

func (o Op) String() string {
	switch o.Kind {
	case SetAttribute:
		return fmt.Sprintf("Set(%s=%s)", o.Attr, o.Value)
	case RemoveAttribute:
		return fmt.Sprintf("Remove(%s)", o.Attr)
	case AddListItem:
		return fmt.Sprintf("AddListItem(%s[%s])", o.Attr, o.ItemKey)
	case RemoveListItem:
		return fmt.Sprintf("RemoveListItem(%s[%s])", o.Attr, o.ItemKey)
	}
	return "Unknown"
}

// MarshalJSON omits null values.
func (o Op) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"kind": o.Kind.String(),
		"attr": o.Attr,
	}
	if o.ItemKey != "" {
		m["item_key"] = o.ItemKey
	}
	if !o.Value.IsNull() {
		m["value"] = o.Value.Interface()
	}
	if !o.Old.IsNull() {
		m["old"] = o.Old.Interface()
	}
	return json.Marshal(m)
}

// List is an ordered sequence of ops for one entity.
type List []Op

// IsEmpty returns true if there are no changes.
func (l List) IsEmpty() bool {
	return len(l) == 0
}

// Attrs returns the distinct attribute names touched, in first-touch order.
func (l List) Attrs() []string {
	seen := make(map[string]bool, len(l))
	var out []string
	for _, o := range l {
		if !seen[o.Attr] {
			seen[o.Attr] = true
			out = append(out, o.Attr)
		}
	}
	return out
}

// String returns a human-readable representation of the changes.
func (l List) String() string {
	if l.IsEmpty() {
		return "No changes"
	}

	var sb strings.Builder
	for _, o := range l {
		tag := ""
		switch o.Kind {
		case SetAttribute:
			tag = "[SET]"
		case RemoveAttribute:
			tag = "[DEL]"
		case AddListItem:
			tag = "[ADD]"
		case RemoveListItem:
			tag = "[REM]"
		}

		sb.WriteString(fmt.Sprintf("  %s %s", tag, o.Attr))
		if o.ItemKey != "" {
			sb.WriteString("[" + o.ItemKey + "]")
		}
		if !o.Value.IsNull() && o.Kind == SetAttribute {
			sb.WriteString(fmt.Sprintf(" → %s", o.Value))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
