package planner

import (
	"errors"
	"fmt"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/util"
)

// PreconditionChecker accumulates precondition failures for one write.
// All checks run before any command reaches the device, so a failed write
// never leaves the device partially changed.
type PreconditionChecker struct {
	operation string
	resource  string
	errors    []error
}

// NewPreconditionChecker creates a new precondition checker
func NewPreconditionChecker(op change.Operation, key entity.Key) *PreconditionChecker {
	return &PreconditionChecker{
		operation: string(op),
		resource:  key.String(),
	}
}

// RequireExists checks that the entity is present on the device
func (p *PreconditionChecker) RequireExists(e entity.Entity) *PreconditionChecker {
	if !e.Exists() {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, "entity must exist", "not found on device"))
	}
	return p
}

// RequireAbsent checks that the entity is not present on the device
func (p *PreconditionChecker) RequireAbsent(e entity.Entity) *PreconditionChecker {
	if e.Exists() {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, "entity must not exist", "already present on device"))
	}
	return p
}

// RequireUnchanged checks that an attribute keeps its value across the write
func (p *PreconditionChecker) RequireUnchanged(attr string, before, after entity.Value) *PreconditionChecker {
	if !before.IsNull() && !after.IsNull() && !before.Equal(after) {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, fmt.Sprintf("attribute %q is immutable", attr),
			fmt.Sprintf("%s -> %s", before, after)))
	}
	return p
}

// RequireNotReferenced checks that nothing else still uses the entity
func (p *PreconditionChecker) RequireNotReferenced(usedBy ...string) *PreconditionChecker {
	if len(usedBy) > 0 {
		p.errors = append(p.errors, util.NewInUseError(p.resource, usedBy...))
	}
	return p
}

// Check runs a custom check
func (p *PreconditionChecker) Check(condition bool, precondition, details string) *PreconditionChecker {
	if !condition {
		p.errors = append(p.errors, util.NewPreconditionError(
			p.operation, p.resource, precondition, details))
	}
	return p
}

// Result returns nil if all checks passed, the single failure, or all
// failures joined so errors.Is still matches each of them.
func (p *PreconditionChecker) Result() error {
	switch len(p.errors) {
	case 0:
		return nil
	case 1:
		return p.errors[0]
	}
	return errors.Join(p.errors...)
}

// HasErrors returns true if there are any errors
func (p *PreconditionChecker) HasErrors() bool {
	return len(p.errors) > 0
}
