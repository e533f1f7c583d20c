package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrReadOnly is returned by Execute on a Dump.
var ErrReadOnly = errors.New("saved output is read-only")

// Dump is a read-only Session over saved device output. A plain text file
// (a running-config capture) answers every probe; a YAML file maps probe
// commands to their outputs, and unknown probes return empty output.
type Dump struct {
	path    string
	text    string
	outputs map[string]string
}

// OpenDump loads saved output from path.
func OpenDump(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dump: %w", err)
	}
	d := &Dump{path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &d.outputs); err != nil {
			return nil, fmt.Errorf("parsing dump %s: %w", path, err)
		}
	default:
		d.text = string(data)
	}
	return d, nil
}

// Read returns the saved output for probe.
func (d *Dump) Read(ctx context.Context, probe string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if d.outputs != nil {
		return d.outputs[probe], nil
	}
	return d.text, nil
}

// Execute always fails; saved output cannot take commands.
func (d *Dump) Execute(ctx context.Context, commands []string) (string, error) {
	return "", wrap(d.path, "execute", ErrReadOnly)
}

// Close does nothing.
func (d *Dump) Close() error {
	return nil
}
