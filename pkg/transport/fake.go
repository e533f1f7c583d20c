package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/newtron-network/newtcli/pkg/util"
)

// Fake is an in-memory Session for tests and offline runs. It serves
// canned probe outputs, records every executed sequence and counts reads.
type Fake struct {
	mu       sync.Mutex
	outputs  map[string]string
	reads    map[string]int
	executed [][]string
	closed   bool

	// ReadErr fails reads of the named probes.
	ReadErr map[string]error
	// ExecErr fails every Execute after recording the sequence.
	ExecErr error
	// ExecOutput is what the device prints while executing.
	ExecOutput string
	// OnExecute lets a test mutate the canned outputs the way the device
	// would after applying commands.
	OnExecute func(f *Fake, commands []string)
}

// NewFake creates a fake serving outputs keyed by probe command.
func NewFake(outputs map[string]string) *Fake {
	f := &Fake{outputs: make(map[string]string), reads: make(map[string]int)}
	for k, v := range outputs {
		f.outputs[k] = v
	}
	return f
}

// ErrClosed is returned by a closed Fake.
var ErrClosed = errors.New("session closed")

// Read returns the canned output of probe. Unknown probes return empty
// output, as a device does for a filter that matches nothing.
func (f *Fake) Read(ctx context.Context, probe string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", wrap("fake", "read", ErrClosed)
	}
	f.reads[probe]++
	if err := f.ReadErr[probe]; err != nil {
		return "", wrap("fake", fmt.Sprintf("exec '%s'", probe), err)
	}
	return f.outputs[probe], nil
}

// Execute records commands.
func (f *Fake) Execute(ctx context.Context, commands []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return "", wrap("fake", "execute", ErrClosed)
	}
	f.executed = append(f.executed, append([]string(nil), commands...))
	hook, execErr, out := f.OnExecute, f.ExecErr, f.ExecOutput
	f.mu.Unlock()

	if execErr != nil {
		return out, fmt.Errorf("%w: fake execute: %w", util.ErrTransport, execErr)
	}
	if hook != nil {
		hook(f, commands)
	}
	return out, nil
}

// Close marks the fake closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetOutput replaces the canned output of probe.
func (f *Fake) SetOutput(probe, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[probe] = output
}

// Reads returns how often probe was read.
func (f *Fake) Reads(probe string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[probe]
}

// TotalReads returns the number of reads of all probes.
func (f *Fake) TotalReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.reads {
		n += c
	}
	return n
}

// Executed returns the recorded command sequences in order.
func (f *Fake) Executed() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.executed))
	for i, c := range f.executed {
		out[i] = append([]string(nil), c...)
	}
	return out
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
