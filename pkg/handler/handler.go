// Package handler turns the kinds of a vendor profile into dispatch
// candidates: the read, write and list functions every vendor unit shares,
// parameterized only by the profile's patterns and templates.
package handler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/parse"
	"github.com/newtron-network/newtcli/pkg/planner"
	"github.com/newtron-network/newtcli/pkg/profile"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/section"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Unit serves one kind of one profile.
type Unit struct {
	profile *profile.Profile
	kind    *profile.Kind
	planner *planner.Planner
	leaf    string
}

// New creates the unit for kind k of profile p. Guards run on every
// planned write.
func New(p *profile.Profile, k *profile.Kind, guards ...planner.Guard) *Unit {
	leaf := k.Path
	if i := strings.LastIndex(leaf, "/"); i >= 0 {
		leaf = leaf[i+1:]
	}
	return &Unit{
		profile: p,
		kind:    k,
		planner: planner.New(k.Schema(), guards...),
		leaf:    leaf,
	}
}

// Register registers a candidate for every kind of p, in profile order.
func Register(reg *dispatch.Registry, p *profile.Profile, guards ...planner.Guard) error {
	for _, k := range p.Kinds {
		if err := reg.Register(New(p, k, guards...).Candidate()); err != nil {
			return fmt.Errorf("registering %s: %w", p.Name, err)
		}
	}
	util.WithField("profile", p.Name).Debugf("Registered %d kinds", len(p.Kinds))
	return nil
}

// Candidate returns the dispatch candidate of the unit.
func (u *Unit) Candidate() dispatch.Candidate {
	c := dispatch.Candidate{
		Name:    u.profile.Name + "/" + u.kind.Name,
		Pattern: u.kind.Path,
		Check:   u.check(),
		Read:    u.Read,
		Write:   u.Write,
		List:    u.List,
	}
	for _, op := range u.kind.Ops {
		c.Ops = append(c.Ops, change.Operation(op))
	}
	if len(u.kind.References) > 0 {
		c.Guard = u.guardReferences
	}
	return c
}

// Kind returns the profile kind the unit serves.
func (u *Unit) Kind() *profile.Kind {
	return u.kind
}

// ============================================================================
// Read Path
// ============================================================================

// index returns the section index of the probe output for key. The index
// is shared by all siblings of key for the rest of the transaction.
func (u *Unit) index(ctx context.Context, key entity.Key, dc dispatch.DeviceContext) (*section.Index, error) {
	probe, err := u.kind.ProbeCommand(key)
	if err != nil {
		return nil, err
	}
	v, err := dc.Memo(ctx, key.Parent(), "index:"+u.kind.Name+":"+probe, func(ctx context.Context) (interface{}, error) {
		out, err := dc.Read(ctx, probe)
		if err != nil {
			return nil, err
		}
		return u.kind.Extractor().Index(out), nil
	})
	if err != nil {
		return nil, err
	}
	ix, ok := v.(*section.Index)
	if !ok {
		return nil, fmt.Errorf("%s: cached %T, want section index", u.kind.Name, v)
	}
	return ix, nil
}

// Read returns the current state of key. A key whose section is not in
// the probe output is absent.
func (u *Unit) Read(ctx context.Context, key entity.Key, dc dispatch.DeviceContext) (entity.Entity, error) {
	ix, err := u.index(ctx, key, dc)
	if err != nil {
		return entity.Absent, err
	}
	text, ok := ix.Section(key.ID())
	if !ok {
		util.WithEntity(key.String()).Debug("Section not found, entity absent")
		return entity.Absent, nil
	}
	return u.Parse(key, text)
}

// Parse assembles the entity of key from its configuration section.
// Attributes that fail to parse are logged and left unset unless they
// are mandatory.
func (u *Unit) Parse(key entity.Key, text string) (entity.Entity, error) {
	res, err := parse.Fields(text, u.kind.ParseFields())
	if err != nil {
		return entity.Absent, fmt.Errorf("parsing %s: %w", key, err)
	}
	for _, e := range res.Errors {
		util.WithEntity(key.String()).Warnf("Ignoring attribute: %v", e)
	}
	return res.Entity, nil
}

// List returns the keys of the unit's kind below parent in the order the
// device prints them.
func (u *Unit) List(ctx context.Context, parent entity.Key, dc dispatch.DeviceContext) ([]entity.Key, error) {
	ix, err := u.index(ctx, parent.Child(u.leaf, ""), dc)
	if err != nil {
		return nil, err
	}
	ids := ix.Keys()
	keys := make([]entity.Key, len(ids))
	for i, id := range ids {
		keys[i] = parent.Child(u.leaf, id)
	}
	return keys, nil
}

// ============================================================================
// Write Path
// ============================================================================

// Write plans and renders the move from before to after. Loosely typed
// desired values (YAML scalars, command-line strings) are converted to
// the declared types first. It never talks to the device.
func (u *Unit) Write(key entity.Key, before, after entity.Entity) (change.List, render.CommandText, error) {
	schema := u.kind.Schema()
	after, err := schema.Coerce(after)
	if err != nil {
		return nil, nil, err
	}
	after = carryImmutable(schema, before, after)
	ops, err := u.planner.Plan(key, before, after)
	if err != nil {
		return nil, nil, err
	}
	text, err := u.kind.Renderer().Render(key, change.OperationFor(before, after), ops)
	if err != nil {
		return nil, nil, err
	}
	return ops, text, nil
}

// carryImmutable copies immutable attributes the desired state leaves out
// from the current state, so an update need not restate key attributes
// the device derives from the header line.
func carryImmutable(schema *entity.Schema, before, after entity.Entity) entity.Entity {
	if !before.Exists() || !after.Exists() {
		return after
	}
	for _, f := range schema.Fields {
		if f.Immutable && !after.Has(f.Name) && before.Has(f.Name) {
			after = after.With(entity.F(f.Name, before.Get(f.Name)))
		}
	}
	return after
}

// ============================================================================
// Checks and Guards
// ============================================================================

func (u *Unit) check() dispatch.Check {
	w := u.kind.When
	if w == nil {
		return dispatch.Always()
	}
	var checks []dispatch.Check
	if w.RootKind != "" {
		checks = append(checks, dispatch.RootKind(w.RootKind))
	}
	for _, kind := range sortedKeys(w.IDEquals) {
		checks = append(checks, dispatch.KeyIDEquals(kind, w.IDEquals[kind]))
	}
	for _, kind := range sortedKeys(w.IDNotEquals) {
		checks = append(checks, dispatch.Not(dispatch.KeyIDEquals(kind, w.IDNotEquals[kind])))
	}
	if len(w.Platforms) > 0 {
		checks = append(checks, dispatch.Platform(w.Platforms...))
	}
	if w.Exists != nil {
		exists := u.Exists()
		if !*w.Exists {
			exists = dispatch.Not(exists)
		}
		checks = append(checks, exists)
	}
	return dispatch.All(checks...)
}

// Exists applies when the key's section is present on the device.
func (u *Unit) Exists() dispatch.Check {
	return func(ctx context.Context, key entity.Key, dc dispatch.DeviceContext) (bool, error) {
		ix, err := u.index(ctx, key, dc)
		if err != nil {
			return false, err
		}
		return ix.Has(key.ID()), nil
	}
}

// guardReferences refuses to delete an entity another entity still uses.
func (u *Unit) guardReferences(ctx context.Context, key entity.Key, op change.Operation, dc dispatch.DeviceContext) error {
	if op != change.Delete {
		return nil
	}
	seen := make(map[string]bool)
	var usedBy []string
	for _, ref := range u.kind.References {
		rk, ok := u.profile.Kind(ref.Kind)
		if !ok {
			continue
		}
		ru := New(u.profile, rk)
		keys, err := ru.List(ctx, entity.Key{}, dc)
		if err != nil {
			return err
		}
		for _, k := range keys {
			e, err := ru.Read(ctx, k, dc)
			if err != nil {
				return err
			}
			if refersTo(e.Get(ref.Field), key.ID()) && !seen[k.String()] {
				seen[k.String()] = true
				usedBy = append(usedBy, k.String())
			}
		}
	}
	return planner.NewPreconditionChecker(op, key).RequireNotReferenced(usedBy...).Result()
}

func refersTo(v entity.Value, id string) bool {
	if v.Kind() == entity.KindList {
		for _, item := range v.Items() {
			if item.String() == id {
				return true
			}
		}
		return false
	}
	return !v.IsNull() && v.String() == id
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
