// Package txn runs reconciliation transactions. A Transaction owns one
// device session and executes the read, diff, render and execute steps of
// each entity write sequentially, with a cache that gives every check and
// read of the transaction one consistent view of the device.
package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/metrics"
	"github.com/newtron-network/newtcli/pkg/profile"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/transport"
	"github.com/newtron-network/newtcli/pkg/util"
)

// Options configure a transaction.
type Options struct {
	// Device names the device in logs and audit events.
	Device string
	User   string
	// Execute sends rendered commands. Without it writes are previewed.
	Execute bool
	// Verify re-reads each written entity and fails with a DriftError
	// when it differs from the desired state.
	Verify  bool
	Metrics *metrics.Metrics
	// Audit receives one event per planned write; nil uses
	// audit.DefaultLogger.
	Audit audit.Logger
}

// Result describes one entity write.
type Result struct {
	Key       entity.Key
	Operation change.Operation
	// Handler is the claiming candidate; empty when the key was unclaimed.
	Handler  string
	Before   entity.Entity
	After    entity.Entity
	Changes  change.List
	Commands render.CommandText
	Output   string
	Executed bool
}

// Claimed reports whether a handler owned the write.
func (r *Result) Claimed() bool {
	return r.Handler != ""
}

// TransportError is a transport failure during an entity write. It
// carries the change ops whose commands were in flight and the writes
// the transaction completed before them.
type TransportError struct {
	Key      entity.Key
	Changes  change.List
	Commands render.CommandText
	Applied  []Result
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

// Is lets errors.Is match ErrTransport for device-reported failures that
// carry no transport error of their own.
func (e *TransportError) Is(target error) bool {
	return target == util.ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type memoKey struct {
	key   entity.Key
	query string
}

// Transaction is one reconciliation pass against one device. It is not
// safe for concurrent use.
type Transaction struct {
	id       string
	session  transport.Session
	registry *dispatch.Registry
	profile  *profile.Profile
	opts     Options
	log      *logrus.Entry

	probes  map[string]string
	memo    map[memoKey]interface{}
	results []Result
	failed  error
	closed  bool
}

// New starts a transaction over session. Keys are dispatched through reg;
// p is the device's profile.
func New(session transport.Session, reg *dispatch.Registry, p *profile.Profile, opts Options) *Transaction {
	id := uuid.NewString()
	t := &Transaction{
		id:       id,
		session:  session,
		registry: reg,
		profile:  p,
		opts:     opts,
		log:      util.WithTransaction(id, opts.Device),
		probes:   make(map[string]string),
		memo:     make(map[memoKey]interface{}),
	}
	t.log.WithField("profile", p.Name).Debug("Transaction started")
	return t
}

// ID returns the transaction identifier.
func (t *Transaction) ID() string {
	return t.id
}

// Profile returns the device profile.
func (t *Transaction) Profile() *profile.Profile {
	return t.profile
}

// Results returns the writes completed so far, in order.
func (t *Transaction) Results() []Result {
	return append([]Result(nil), t.results...)
}

// ============================================================================
// Device Context
// ============================================================================

// Platform returns the profile name of the device.
func (t *Transaction) Platform() string {
	return t.profile.Name
}

// Read returns the output of probe, reading the device at most once per
// probe until the cache is invalidated.
func (t *Transaction) Read(ctx context.Context, probe string) (string, error) {
	if out, ok := t.probes[probe]; ok {
		t.opts.Metrics.RecordCache(true)
		t.log.Debugf("Cache hit: %s", probe)
		return out, nil
	}
	t.opts.Metrics.RecordCache(false)
	t.log.Debugf("Cache miss: %s", probe)

	start := time.Now()
	out, err := t.session.Read(ctx, probe)
	t.opts.Metrics.RecordTransport("read", err, time.Since(start))
	if err != nil {
		return "", err
	}
	t.probes[probe] = out
	return out, nil
}

// Memo returns the cached result of (key, query), computing it with fn on
// first use. Errors are not cached.
func (t *Transaction) Memo(ctx context.Context, key entity.Key, query string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	mk := memoKey{key: key, query: query}
	if v, ok := t.memo[mk]; ok {
		t.opts.Metrics.RecordCache(true)
		return v, nil
	}
	t.opts.Metrics.RecordCache(false)
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	t.memo[mk] = v
	return v, nil
}

// Invalidate drops every cached probe output and memoized result.
func (t *Transaction) Invalidate() {
	if len(t.probes) > 0 || len(t.memo) > 0 {
		t.log.Debugf("Invalidating cache (%d probes, %d results)", len(t.probes), len(t.memo))
	}
	t.probes = make(map[string]string)
	t.memo = make(map[memoKey]interface{})
}

// ============================================================================
// Operations
// ============================================================================

func (t *Transaction) resolve(ctx context.Context, key entity.Key, op change.Operation) (*dispatch.Candidate, error) {
	res, err := t.registry.Resolve(ctx, key, op, t)
	state := res.State.String()
	if err != nil {
		state = "error"
	}
	t.opts.Metrics.RecordDispatch(key.Kind(), state, res.Evaluated)
	if err != nil {
		return nil, err
	}
	if !res.Claimed() {
		t.log.WithField("entity", key.String()).Debugf("No handler claims %s after %d checks", op, res.Evaluated)
		return nil, nil
	}
	t.log.WithField("entity", key.String()).Debugf("%s claims %s", res.Candidate.Name, op)
	return res.Candidate, nil
}

func (t *Transaction) usable() error {
	if t.closed {
		return fmt.Errorf("transaction %s is closed", t.id)
	}
	if t.failed != nil {
		return fmt.Errorf("transaction %s aborted: %w", t.id, t.failed)
	}
	return nil
}

// Get returns the current state of key. A key no handler claims, like a
// key the device does not have, is entity.Absent.
func (t *Transaction) Get(ctx context.Context, key entity.Key) (entity.Entity, error) {
	if err := t.usable(); err != nil {
		return entity.Absent, err
	}
	start := time.Now()
	e, err := t.get(ctx, key)
	t.opts.Metrics.RecordOperation(string(change.Read), err, time.Since(start))
	return e, err
}

func (t *Transaction) get(ctx context.Context, key entity.Key) (entity.Entity, error) {
	c, err := t.resolve(ctx, key, change.Read)
	if err != nil || c == nil {
		return entity.Absent, err
	}
	return c.Read(ctx, key, t)
}

// List returns the keys of kind below parent.
func (t *Transaction) List(ctx context.Context, parent entity.Key, kind string) ([]entity.Key, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	c, err := t.resolve(ctx, parent.Child(kind, ""), change.Read)
	if err != nil || c == nil {
		return nil, err
	}
	if c.List == nil {
		return nil, fmt.Errorf("%s cannot list %s", c.Name, kind)
	}
	return c.List(ctx, parent, t)
}

// Apply moves key to the desired state after. An absent after deletes the
// entity.
func (t *Transaction) Apply(ctx context.Context, key entity.Key, after entity.Entity) (*Result, error) {
	if err := t.usable(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := t.write(ctx, key, after)
	op := change.Update
	if res != nil {
		op = res.Operation
	}
	t.opts.Metrics.RecordOperation(string(op), err, time.Since(start))
	return res, err
}

// Delete removes key from the device.
func (t *Transaction) Delete(ctx context.Context, key entity.Key) (*Result, error) {
	return t.Apply(ctx, key, entity.Absent)
}

func (t *Transaction) write(ctx context.Context, key entity.Key, after entity.Entity) (*Result, error) {
	log := t.log.WithField("entity", key.String())

	before, err := t.get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	res := &Result{Key: key, Operation: change.OperationFor(before, after), Before: before, After: after}
	if !before.Exists() && !after.Exists() {
		log.Debug("Entity absent, nothing to delete")
		return res, nil
	}

	c, err := t.resolve(ctx, key, res.Operation)
	if err != nil || c == nil {
		return res, err
	}
	res.Handler = c.Name

	event := audit.NewEvent(t.opts.User, t.opts.Device, res.Operation, key).
		WithProfile(t.profile.Name).
		WithTransaction(t.id).
		WithExecuteMode(t.opts.Execute)
	started := time.Now()
	fail := func(err error) (*Result, error) {
		t.audit(event.WithChanges(res.Changes).WithCommands(res.Commands).WithError(err).WithDuration(time.Since(started)))
		return res, err
	}

	if c.Guard != nil {
		if err := c.Guard(ctx, key, res.Operation, t); err != nil {
			return fail(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	ops, text, err := c.Write(key, before, after)
	if err != nil {
		return fail(err)
	}
	res.Changes, res.Commands = ops, text
	// A create or delete of an attribute-less entity has no ops but still
	// renders its entity lines.
	if text.IsEmpty() {
		log.Debugf("No changes (%d ops render nothing)", len(ops))
		return res, nil
	}

	if !t.opts.Execute {
		log.Infof("Preview %s: %d changes, %d lines", res.Operation, len(ops), len(text))
		t.audit(event.WithChanges(ops).WithCommands(text).WithSuccess().WithDuration(time.Since(started)))
		t.results = append(t.results, *res)
		return res, nil
	}

	// A CommandText is sent whole or not at all.
	if err := ctx.Err(); err != nil {
		return res, err
	}
	out, err := t.execute(ctx, text)
	res.Output = out
	if err != nil {
		terr := &TransportError{Key: key, Changes: ops, Commands: text, Applied: t.Results(), Err: err}
		t.failed = terr
		return fail(terr)
	}
	res.Executed = true
	log.Infof("Applied %s: %d changes, %d lines", res.Operation, len(ops), len(text))
	t.results = append(t.results, *res)

	if t.opts.Verify {
		if err := t.verify(ctx, c, key, after); err != nil {
			return fail(err)
		}
	}
	t.audit(event.WithChanges(ops).WithCommands(text).WithSuccess().WithDuration(time.Since(started)))
	return res, nil
}

// execute sends text and invalidates the cache, since the device state
// the cache describes is gone whether or not the send succeeded.
func (t *Transaction) execute(ctx context.Context, text render.CommandText) (string, error) {
	defer t.Invalidate()

	start := time.Now()
	out, err := t.session.Execute(ctx, text)
	t.opts.Metrics.RecordTransport("execute", err, time.Since(start))
	if err != nil {
		return out, err
	}
	t.opts.Metrics.RecordCommands(len(text))
	if line, bad := t.profile.CommandError(out); bad {
		return out, fmt.Errorf("%w: %s rejected command: %s", util.ErrTransport, t.opts.Device, line)
	}
	return out, nil
}

// verify re-reads key through the claiming handler and plans from the
// fresh state to the desired one; any planned change is drift.
func (t *Transaction) verify(ctx context.Context, c *dispatch.Candidate, key entity.Key, after entity.Entity) error {
	got, err := c.Read(ctx, key, t)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", key, err)
	}
	if !after.Exists() {
		if got.Exists() {
			return util.NewDriftError(key.String(), "entity still present")
		}
		return nil
	}
	if !got.Exists() {
		return util.NewDriftError(key.String(), "entity missing")
	}
	ops, _, err := c.Write(key, got, after)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", key, err)
	}
	if attrs := ops.Attrs(); len(attrs) > 0 {
		return util.NewDriftError(key.String(), attrs...)
	}
	t.log.WithField("entity", key.String()).Debug("Verified")
	return nil
}

func (t *Transaction) audit(event *audit.Event) {
	l := t.opts.Audit
	if l == nil {
		l = audit.DefaultLogger()
	}
	if l == nil {
		return
	}
	if err := l.Log(event); err != nil {
		t.log.Warnf("Audit log failed: %v", err)
	}
}

// Close ends the transaction, drops the cache and closes the session.
func (t *Transaction) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.Invalidate()
	t.log.Debugf("Transaction closed after %d writes", len(t.results))
	return t.session.Close()
}
