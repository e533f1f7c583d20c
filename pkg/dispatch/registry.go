// Package dispatch routes an entity operation to exactly one of several
// competing candidate handlers.
//
// Candidates are registered against a key pattern (the kinds of the key
// path joined by "/", "*" matching any one kind). For a concrete key and
// operation the registry evaluates the matching candidates' checks in
// registration order and the first check that applies claims the key.
// Registration order is the only tie-break. When nothing applies the key
// is unclaimed, which is not an error.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/render"
)

// ReadFunc produces the current snapshot of key. An entity that does not
// exist on the device is entity.Absent with a nil error.
type ReadFunc func(ctx context.Context, key entity.Key, dc DeviceContext) (entity.Entity, error)

// WriteFunc plans and renders the commands that move key from before to
// after. It must not talk to the device.
type WriteFunc func(key entity.Key, before, after entity.Entity) (change.List, render.CommandText, error)

// ListFunc enumerates the keys of the candidate's kind below parent.
type ListFunc func(ctx context.Context, parent entity.Key, dc DeviceContext) ([]entity.Key, error)

// GuardFunc is a precondition that needs device state, such as "nothing
// still references this VLAN". It runs after the current state is read
// and before anything is planned or sent.
type GuardFunc func(ctx context.Context, key entity.Key, op change.Operation, dc DeviceContext) error

// Candidate binds a key pattern and an applicability check to the
// functions that serve matching keys.
type Candidate struct {
	Name    string
	Pattern string
	// Ops limits the candidate to some operations; empty means all.
	Ops   []change.Operation
	Check Check
	Read  ReadFunc
	Write WriteFunc
	List  ListFunc
	Guard GuardFunc
}

func (c *Candidate) serves(op change.Operation) bool {
	if len(c.Ops) == 0 {
		return true
	}
	for _, o := range c.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// State is the dispatch state of one (key, operation).
type State int

const (
	Unresolved State = iota
	Evaluating
	Claimed
	Unclaimed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Evaluating:
		return "evaluating"
	case Claimed:
		return "claimed"
	case Unclaimed:
		return "unclaimed"
	}
	return "unknown"
}

// Resolution is the outcome of dispatching one (key, operation).
type Resolution struct {
	Key       entity.Key
	Op        change.Operation
	State     State
	Candidate *Candidate
	// Evaluated counts the checks invoked before the outcome was known.
	Evaluated int
}

// Claimed reports whether a candidate owns the key.
func (r Resolution) Claimed() bool {
	return r.State == Claimed
}

// Registry holds candidates in registration order. It is safe for
// concurrent use; registrations normally happen once at startup.
type Registry struct {
	mu         sync.RWMutex
	candidates []*Candidate
	names      map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Register appends a candidate. Names must be unique.
func (r *Registry) Register(c Candidate) error {
	if c.Name == "" {
		return fmt.Errorf("dispatch: candidate name is required")
	}
	if c.Pattern == "" {
		return fmt.Errorf("dispatch: candidate %s: pattern is required", c.Name)
	}
	if c.Check == nil {
		c.Check = Always()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names[c.Name] {
		return fmt.Errorf("dispatch: candidate %s already registered", c.Name)
	}
	r.names[c.Name] = true
	r.candidates = append(r.candidates, &c)
	return nil
}

// Candidates returns the candidates whose pattern matches the given key
// pattern, in registration order.
func (r *Registry) Candidates(pattern string) []*Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Candidate
	for _, c := range r.candidates {
		if MatchPattern(c.Pattern, pattern) {
			out = append(out, c)
		}
	}
	return out
}

// All returns every candidate in registration order.
func (r *Registry) All() []*Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Candidate(nil), r.candidates...)
}

// Resolve finds the candidate that owns key for op. A check error stops
// evaluation and leaves the key unresolved.
func (r *Registry) Resolve(ctx context.Context, key entity.Key, op change.Operation, dc DeviceContext) (Resolution, error) {
	res := Resolution{Key: key, Op: op, State: Evaluating}
	for _, c := range r.Candidates(key.Pattern()) {
		if !c.serves(op) {
			continue
		}
		if err := ctx.Err(); err != nil {
			res.State = Unresolved
			return res, err
		}
		res.Evaluated++
		ok, err := c.Check(ctx, key, dc)
		if err != nil {
			res.State = Unresolved
			return res, fmt.Errorf("dispatch %s for %s: check %s: %w", op, key, c.Name, err)
		}
		if ok {
			res.State = Claimed
			res.Candidate = c
			return res, nil
		}
	}
	res.State = Unclaimed
	return res, nil
}

// MatchPattern reports whether a candidate pattern matches a key pattern.
// "*" matches exactly one kind.
func MatchPattern(candidate, key string) bool {
	if candidate == key {
		return true
	}
	cp := strings.Split(candidate, "/")
	kp := strings.Split(key, "/")
	if len(cp) != len(kp) {
		return false
	}
	for i := range cp {
		if cp[i] != "*" && cp[i] != kp[i] {
			return false
		}
	}
	return true
}
