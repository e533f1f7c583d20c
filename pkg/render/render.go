// Package render turns a planned ChangeOp list into the literal command
// text sent to a device.
//
// Rendering is a pure function of the op list and the static templates: it
// never talks to the transport, and equal inputs render byte-identical
// CommandText. An update with no ops renders an empty CommandText and
// callers must not send it. A create or delete always renders its entity
// lines, even when the entity carries no attributes.
package render

import (
	"fmt"
	"strings"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/util"
)

// CommandText is the ordered command sequence for one entity write. It is
// sent as one unit.
type CommandText []string

// IsEmpty reports whether there is nothing to send.
func (c CommandText) IsEmpty() bool {
	return len(c) == 0
}

func (c CommandText) String() string {
	if len(c) == 0 {
		return ""
	}
	return strings.Join(c, "\n") + "\n"
}

// Session lines wrap every CommandText once, e.g. "configure terminal"
// ... "end".
type Session struct {
	Prologue []string `yaml:"prologue,omitempty"`
	Epilogue []string `yaml:"epilogue,omitempty"`
}

// Block holds the entity-level templates: Enter opens the entity's
// configuration mode, Exit leaves it, Delete removes the entity as a whole.
type Block struct {
	Enter  string `yaml:"enter,omitempty"`
	Exit   string `yaml:"exit,omitempty"`
	Delete string `yaml:"delete,omitempty"`
}

// Attribute holds the templates for one attribute, one per op kind.
// Teardown lines are emitted before the entity Delete line.
type Attribute struct {
	Set        string `yaml:"set,omitempty"`
	Remove     string `yaml:"remove,omitempty"`
	AddItem    string `yaml:"add_item,omitempty"`
	RemoveItem string `yaml:"remove_item,omitempty"`
	Teardown   string `yaml:"teardown,omitempty"`
}

// Scope is the template data describing the entity being written.
type Scope struct {
	Key  string            // full key text
	Kind string            // leaf kind
	ID   string            // leaf identifier
	IDs  map[string]string // identifier per kind along the key path
}

// NewScope builds the template scope of key.
func NewScope(key entity.Key) Scope {
	s := Scope{Key: key.String(), Kind: key.Kind(), ID: key.ID(), IDs: make(map[string]string)}
	for _, e := range key.Elems() {
		s.IDs[e.Kind] = e.ID
	}
	return s
}

// OpData is the template data for one op. Only plain scalars are exposed.
type OpData struct {
	Scope
	Attr   string
	Value  string              // new value (Set, AddItem)
	Old    string              // replaced or removed value
	Item   string              // list item key
	Items  []string            // list items of the value (or removed value)
	Rows   []map[string]string // attributes of each entity list item
	Fields map[string]string   // attributes of a nested entity payload
	Flag   bool                // boolean payload
}

func newOpData(scope Scope, op change.Op) OpData {
	d := OpData{
		Scope: scope,
		Attr:  op.Attr,
		Value: op.Value.String(),
		Old:   op.Old.String(),
		Item:  op.ItemKey,
	}
	payload := op.Value
	if payload.IsNull() {
		payload = op.Old
	}
	for _, item := range payload.Items() {
		d.Items = append(d.Items, item.String())
		if e, ok := item.EntityVal(); ok {
			d.Rows = append(d.Rows, scalars(e))
		}
	}
	if e, ok := payload.EntityVal(); ok {
		d.Fields = scalars(e)
	}
	if b, ok := payload.BoolVal(); ok {
		d.Flag = b
	}
	return d
}

func scalars(e entity.Entity) map[string]string {
	m := make(map[string]string, e.Len())
	for _, n := range e.Names() {
		m[n] = e.Get(n).String()
	}
	return m
}

type attrTemplates struct {
	declared                                   bool
	set, remove, addItem, removeItem, teardown *Template
}

func (a attrTemplates) forKind(k change.Kind) *Template {
	switch k {
	case change.SetAttribute:
		return a.set
	case change.RemoveAttribute:
		return a.remove
	case change.AddListItem:
		return a.addItem
	case change.RemoveListItem:
		return a.removeItem
	}
	return nil
}

// Renderer renders ops for one entity kind.
type Renderer struct {
	kind    string
	session Session
	enter   *Template
	exit    *Template
	delete  *Template
	attrs   map[string]attrTemplates
}

// New compiles the templates of one entity kind.
func New(kind string, session Session, block Block, attrs map[string]Attribute, g rangeset.Grammar) (*Renderer, error) {
	r := &Renderer{kind: kind, session: session, attrs: make(map[string]attrTemplates, len(attrs))}

	var err error
	compile := func(name, text string) *Template {
		if text == "" || err != nil {
			return nil
		}
		var t *Template
		t, err = Compile(kind+"."+name, text, g)
		return t
	}

	r.enter = compile("enter", block.Enter)
	r.exit = compile("exit", block.Exit)
	r.delete = compile("delete", block.Delete)
	for name, a := range attrs {
		r.attrs[name] = attrTemplates{
			declared:   true,
			set:        compile(name+".set", a.Set),
			remove:     compile(name+".remove", a.Remove),
			addItem:    compile(name+".add_item", a.AddItem),
			removeItem: compile(name+".remove_item", a.RemoveItem),
			teardown:   compile(name+".teardown", a.Teardown),
		}
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Render produces the command text for ops applied to key. op selects the
// framing: a delete with an entity Delete template renders the teardown
// lines of the removed attributes followed by the Delete line instead of
// per-attribute removals. A create whose ops render nothing still opens
// and leaves the entity's mode, which is what brings it into existence.
func (r *Renderer) Render(key entity.Key, op change.Operation, ops change.List) (CommandText, error) {
	if ops.IsEmpty() && op != change.Create && op != change.Delete {
		return nil, nil
	}
	scope := NewScope(key)

	var body []string
	var err error
	if op == change.Delete && r.delete != nil {
		body, err = r.renderDelete(scope, ops)
	} else {
		body, err = r.renderOps(scope, ops, op == change.Create)
	}
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}

	out := make(CommandText, 0, len(body)+len(r.session.Prologue)+len(r.session.Epilogue))
	out = append(out, r.session.Prologue...)
	out = append(out, body...)
	out = append(out, r.session.Epilogue...)
	return out, nil
}

func (r *Renderer) renderOps(scope Scope, ops change.List, create bool) ([]string, error) {
	enter, err := r.enter.Lines(scope)
	if err != nil {
		return nil, err
	}
	exit, err := r.exit.Lines(scope)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, o := range ops {
		a := r.attrs[o.Attr]
		if !a.declared {
			return nil, util.NewValidationError(fmt.Sprintf("%s: no templates for attribute %q", r.kind, o.Attr))
		}
		// A declared attribute without a template for this op renders
		// nothing, e.g. key attributes already carried by the Enter line.
		t := a.forKind(o.Kind)
		l, err := t.Lines(newOpData(scope, o))
		if err != nil {
			return nil, err
		}
		lines = append(lines, l...)
	}
	// Ops that render nothing do not open the entity's mode, unless
	// opening it is the create.
	if len(lines) == 0 && (!create || len(enter) == 0) {
		return nil, nil
	}
	out := append([]string(nil), enter...)
	out = append(out, lines...)
	return append(out, exit...), nil
}

func (r *Renderer) renderDelete(scope Scope, ops change.List) ([]string, error) {
	var teardown []string
	for _, o := range ops {
		t := r.attrs[o.Attr].teardown
		if t == nil {
			continue
		}
		l, err := t.Lines(newOpData(scope, o))
		if err != nil {
			return nil, err
		}
		teardown = append(teardown, l...)
	}

	var lines []string
	if len(teardown) > 0 {
		enter, err := r.enter.Lines(scope)
		if err != nil {
			return nil, err
		}
		exit, err := r.exit.Lines(scope)
		if err != nil {
			return nil, err
		}
		lines = append(lines, enter...)
		lines = append(lines, teardown...)
		lines = append(lines, exit...)
	}
	del, err := r.delete.Lines(scope)
	if err != nil {
		return nil, err
	}
	return append(lines, del...), nil
}

// Kind returns the entity kind this renderer serves.
func (r *Renderer) Kind() string {
	return r.kind
}
