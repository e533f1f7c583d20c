// Package planner computes the ordered ChangeOp list that moves one entity
// from its current state to its desired state.
//
// Planning is pure: the result depends only on the schema and the two
// snapshots, so repeated calls with equal inputs yield identical lists.
// Attribute order always comes from the schema's declared field order,
// never from map iteration.
package planner

import (
	"fmt"
	"sort"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Guard is a handler-specific precondition evaluated after the ops are
// computed and before anything is rendered or sent.
type Guard func(key entity.Key, op change.Operation, before, after entity.Entity) error

// Planner plans writes for one entity kind.
type Planner struct {
	schema *entity.Schema
	guards []Guard
}

// New creates a planner for schema with optional guards.
func New(schema *entity.Schema, guards ...Guard) *Planner {
	return &Planner{schema: schema, guards: guards}
}

// Plan is shorthand for New(schema).Plan with a zero key.
func Plan(schema *entity.Schema, before, after entity.Entity) (change.List, error) {
	return New(schema).Plan(entity.Key{}, before, after)
}

// Plan diffs before against after. An absent before plans a create, an
// absent after plans a delete. Precondition failures are returned before any
// op would be emitted.
func (p *Planner) Plan(key entity.Key, before, after entity.Entity) (change.List, error) {
	if err := p.checkDeclared(after); err != nil {
		return nil, err
	}
	op := change.OperationFor(before, after)

	var ops change.List
	var err error
	switch {
	case !before.Exists() && !after.Exists():
		return nil, nil
	case op == change.Create:
		ops = p.planCreate(after)
	case op == change.Delete:
		ops = p.planDelete(before)
	default:
		ops, err = p.planUpdate(key, before, after)
	}
	if err != nil {
		return nil, err
	}

	for _, g := range p.guards {
		if err := g(key, op, before, after); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (p *Planner) checkDeclared(e entity.Entity) error {
	v := &util.ValidationBuilder{}
	for _, name := range e.Names() {
		_, ok := p.schema.Field(name)
		v.Add(ok, fmt.Sprintf("%s: unknown attribute %q", p.schema.Kind, name))
	}
	return v.Build()
}

func (p *Planner) planCreate(after entity.Entity) change.List {
	var ops change.List
	for _, f := range p.schema.Fields {
		if v := after.Get(f.Name); !v.IsNull() {
			ops = append(ops, change.Set(f.Name, v, entity.Null))
		}
	}
	return ops
}

// planDelete removes set attributes. When any field declares a removal
// priority, higher priorities go first and ties mirror creation order in
// reverse; otherwise declared order is kept.
func (p *Planner) planDelete(before entity.Entity) change.List {
	type indexed struct {
		pos int
		f   entity.FieldSchema
	}
	var fields []indexed
	prioritized := false
	for i, f := range p.schema.Fields {
		if before.Get(f.Name).IsNull() {
			continue
		}
		if f.RemovalPriority != 0 {
			prioritized = true
		}
		fields = append(fields, indexed{pos: i, f: f})
	}
	if prioritized {
		sort.SliceStable(fields, func(i, j int) bool {
			a, b := fields[i], fields[j]
			if a.f.RemovalPriority != b.f.RemovalPriority {
				return a.f.RemovalPriority > b.f.RemovalPriority
			}
			return a.pos > b.pos
		})
	}

	ops := make(change.List, 0, len(fields))
	for _, x := range fields {
		ops = append(ops, change.Remove(x.f.Name, before.Get(x.f.Name)))
	}
	return ops
}

func (p *Planner) planUpdate(key entity.Key, before, after entity.Entity) (change.List, error) {
	pc := NewPreconditionChecker(change.Update, key)
	for _, f := range p.schema.Fields {
		if f.Immutable {
			pc.RequireUnchanged(f.Name, before.Get(f.Name), after.Get(f.Name))
		}
	}
	if err := pc.Result(); err != nil {
		return nil, err
	}

	var ops change.List
	for _, f := range p.schema.Fields {
		b, a := before.Get(f.Name), after.Get(f.Name)
		if b.Equal(a) {
			continue
		}
		if f.Type == entity.TypeList {
			ops = append(ops, diffList(f, b, a)...)
			continue
		}
		switch {
		case a.IsNull():
			ops = append(ops, change.Remove(f.Name, b))
		case f.RemoveBeforeSet && !b.IsNull():
			ops = append(ops, change.Remove(f.Name, b), change.Set(f.Name, a, entity.Null))
		default:
			ops = append(ops, change.Set(f.Name, a, b))
		}
	}
	return ops, nil
}

// diffList compares two list values by item key. Items only in before are
// removed, items only in after are added; items whose payload changed are
// removed and re-added unless the field is in-place updatable.
func diffList(f entity.FieldSchema, before, after entity.Value) change.List {
	bItems, bIndex := keyed(f, before)
	aItems, aIndex := keyed(f, after)

	var removals, additions change.List
	for _, it := range bItems {
		a, ok := aIndex[it.key]
		switch {
		case !ok:
			removals = append(removals, change.RemoveItem(f.Name, it.key, it.val))
		case !a.Equal(it.val) && !f.InPlace:
			removals = append(removals, change.RemoveItem(f.Name, it.key, it.val))
		}
	}
	for _, it := range aItems {
		b, ok := bIndex[it.key]
		if !ok || !b.Equal(it.val) {
			additions = append(additions, change.AddItem(f.Name, it.key, it.val))
		}
	}

	if f.AddBeforeRemove {
		return append(additions, removals...)
	}
	return append(removals, additions...)
}

type keyedItem struct {
	key string
	val entity.Value
}

func keyed(f entity.FieldSchema, list entity.Value) ([]keyedItem, map[string]entity.Value) {
	items := list.Items()
	out := make([]keyedItem, 0, len(items))
	index := make(map[string]entity.Value, len(items))
	for _, item := range items {
		k := f.KeyOf(item)
		if _, dup := index[k]; dup {
			continue
		}
		index[k] = item
		out = append(out, keyedItem{key: k, val: item})
	}
	return out, index
}
