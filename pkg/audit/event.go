// Package audit records the entity writes a transaction plans and sends.
package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
)

// Event is one audited entity write.
type Event struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	User        string        `json:"user"`
	Device      string        `json:"device"`
	Profile     string        `json:"profile,omitempty"`
	Transaction string        `json:"transaction,omitempty"`
	Operation   string        `json:"operation"`
	Entity      string        `json:"entity"`
	Changes     []string      `json:"changes,omitempty"`
	Commands    []string      `json:"commands,omitempty"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	ExecuteMode bool          `json:"execute_mode"` // true if -x was used
	DryRun      bool          `json:"dry_run"`
	Duration    time.Duration `json:"duration"`
}

// Filter defines criteria for querying audit events
type Filter struct {
	Device      string
	User        string
	Operation   string
	Transaction string
	// Entity matches the key itself and every key below it.
	Entity      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, device string, op change.Operation, key entity.Key) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: string(op),
		Entity:    key.String(),
	}
}

// WithProfile sets the vendor profile name
func (e *Event) WithProfile(name string) *Event {
	e.Profile = name
	return e
}

// WithTransaction sets the transaction ID
func (e *Event) WithTransaction(id string) *Event {
	e.Transaction = id
	return e
}

// WithChanges records the planned change ops in their preview form.
func (e *Event) WithChanges(ops change.List) *Event {
	e.Changes = make([]string, len(ops))
	for i, op := range ops {
		e.Changes[i] = op.String()
	}
	return e
}

// WithCommands records the rendered command lines.
func (e *Event) WithCommands(lines []string) *Event {
	e.Commands = append([]string(nil), lines...)
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithExecuteMode marks if execute mode was used
func (e *Event) WithExecuteMode(execute bool) *Event {
	e.ExecuteMode = execute
	e.DryRun = !execute
	return e
}

// Matches reports whether event satisfies every set criterion of f.
// Offset and Limit are applied by the backends.
func (f Filter) Matches(event *Event) bool {
	if f.Device != "" && event.Device != f.Device {
		return false
	}
	if f.User != "" && event.User != f.User {
		return false
	}
	if f.Operation != "" && event.Operation != f.Operation {
		return false
	}
	if f.Transaction != "" && event.Transaction != f.Transaction {
		return false
	}
	if f.Entity != "" && event.Entity != f.Entity && !strings.HasPrefix(event.Entity, f.Entity+"/") {
		return false
	}
	if !f.StartTime.IsZero() && event.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && event.Timestamp.After(f.EndTime) {
		return false
	}
	if f.SuccessOnly && !event.Success {
		return false
	}
	if f.FailureOnly && event.Success {
		return false
	}
	return true
}

// page applies Offset and Limit to matching events in log order.
func (f Filter) page(events []*Event) []*Event {
	if f.Offset > 0 {
		if f.Offset >= len(events) {
			return []*Event{}
		}
		events = events[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(events) {
		events = events[:f.Limit]
	}
	return events
}
