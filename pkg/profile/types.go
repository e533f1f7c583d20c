// Package profile loads vendor command profiles: the static, versioned
// bundles of header patterns, field patterns, range grammars and command
// templates that parameterize the reconciliation engine for one device
// family.
package profile

import (
	"regexp"
	"strings"

	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/parse"
	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/section"
)

// ============================================================================
// Profile File
// ============================================================================

// Profile is one vendor profile file.
type Profile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Platforms   []string `yaml:"platforms"`
	// Extends names a base profile. Unset session lines, platforms, grammar
	// and description are inherited; kinds are merged by name.
	Extends string `yaml:"extends,omitempty"`
	// Version selects the OS release the profile targets; empty matches any.
	Version string           `yaml:"version,omitempty"`
	Session render.Session   `yaml:"session"`
	Grammar rangeset.Grammar `yaml:"grammar,omitempty"`
	// ErrorPatterns match output lines the device prints when it rejects
	// a command.
	ErrorPatterns []string `yaml:"error_patterns,omitempty"`
	// Kinds are registered as dispatch candidates in file order.
	Kinds []*Kind `yaml:"kinds"`

	source   string
	errorRes []*regexp.Regexp
}

// Source returns the file or embedded path the profile came from.
func (p *Profile) Source() string {
	return p.source
}

// Kind returns the kind with the given name.
func (p *Profile) Kind(name string) (*Kind, bool) {
	for _, k := range p.Kinds {
		if k.Name == name {
			return k, true
		}
	}
	return nil, false
}

// inherit returns p completed from base. A kind of p replaces the base
// kind of the same name in place; new kinds follow the base kinds.
func (p *Profile) inherit(base *Profile) *Profile {
	out := *p
	if out.Description == "" {
		out.Description = base.Description
	}
	if len(out.Platforms) == 0 {
		out.Platforms = base.Platforms
	}
	if out.Session.Prologue == nil {
		out.Session.Prologue = base.Session.Prologue
	}
	if out.Session.Epilogue == nil {
		out.Session.Epilogue = base.Session.Epilogue
	}
	if out.Grammar == (rangeset.Grammar{}) {
		out.Grammar = base.Grammar
	}
	if out.ErrorPatterns == nil {
		out.ErrorPatterns = base.ErrorPatterns
	}

	own := make(map[string]*Kind, len(p.Kinds))
	for _, k := range p.Kinds {
		own[k.Name] = k
	}
	out.Kinds = nil
	for _, k := range base.Kinds {
		if o, ok := own[k.Name]; ok {
			k = o
			delete(own, k.Name)
		}
		c := *k
		out.Kinds = append(out.Kinds, &c)
	}
	for _, k := range p.Kinds {
		if _, ok := own[k.Name]; ok {
			c := *k
			out.Kinds = append(out.Kinds, &c)
		}
	}
	return &out
}

// CommandError returns the first output line matching an error pattern.
func (p *Profile) CommandError(output string) (string, bool) {
	if len(p.errorRes) == 0 {
		return "", false
	}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		for _, re := range p.errorRes {
			if re.MatchString(line) {
				return strings.TrimSpace(line), true
			}
		}
	}
	return "", false
}

// KindsFor returns the kinds bound to a key pattern, in file order.
func (p *Profile) KindsFor(pattern string) []*Kind {
	var out []*Kind
	for _, k := range p.Kinds {
		if k.Path == pattern {
			out = append(out, k)
		}
	}
	return out
}

// ============================================================================
// Entity Kinds
// ============================================================================

// Kind describes how one entity kind is read from and written to the
// device. Several kinds may share a Path; When decides which one owns a
// given key.
type Kind struct {
	Name string `yaml:"name"`
	// Path is the key pattern served, e.g. "network-instance/vlan".
	Path string `yaml:"path"`
	// Ops limits the kind to some operations (read, create, update, delete).
	Ops  []string `yaml:"ops,omitempty"`
	When *When    `yaml:"when,omitempty"`

	// Probe is the command (a template over the key scope) whose output
	// holds the entity's configuration.
	Probe string `yaml:"probe"`
	// Header matches the first line of one entity block and captures its
	// identifier.
	Header      string   `yaml:"header"`
	Terminators []string `yaml:"terminators,omitempty"`

	render.Block `yaml:",inline"`
	Fields       []*FieldDef `yaml:"fields"`
	// References block deletion while another entity still uses this one.
	References []Reference `yaml:"references,omitempty"`

	schema    *entity.Schema
	fields    []parse.Field
	extractor *section.Extractor
	renderer  *render.Renderer
	probe     *render.Template
}

// When declares the applicability of a kind. All set conditions must hold.
type When struct {
	RootKind    string            `yaml:"root_kind,omitempty"`
	IDEquals    map[string]string `yaml:"id_equals,omitempty"`
	IDNotEquals map[string]string `yaml:"id_not_equals,omitempty"`
	Platforms   []string          `yaml:"platforms,omitempty"`
	// Exists requires the entity to be present (true) or absent (false)
	// on the device.
	Exists *bool `yaml:"exists,omitempty"`
}

// Reference names an attribute of a top-level kind whose value holds the
// identifier of this kind (a VLAN ID in an interface's trunk list).
type Reference struct {
	Kind  string `yaml:"kind"`
	Field string `yaml:"field"`
}

// FieldDef declares one attribute: its schema, the pattern that reads it
// and the templates that write it.
type FieldDef struct {
	entity.FieldSchema `yaml:",inline"`
	render.Attribute   `yaml:",inline"`

	Pattern string   `yaml:"pattern"`
	Whole   bool     `yaml:"whole,omitempty"`
	Group   int      `yaml:"group,omitempty"`
	Exclude []string `yaml:"exclude,omitempty"`
	// Default is stored when the pattern finds nothing.
	Default interface{} `yaml:"default,omitempty"`
	// Fields parse the items of an entity list from each match.
	Fields []*FieldDef `yaml:"fields,omitempty"`
}

// Schema returns the compiled attribute schema.
func (k *Kind) Schema() *entity.Schema {
	return k.schema
}

// ParseFields returns the compiled field parsers.
func (k *Kind) ParseFields() []parse.Field {
	return k.fields
}

// Extractor returns the compiled section extractor.
func (k *Kind) Extractor() *section.Extractor {
	return k.extractor
}

// Renderer returns the compiled command renderer.
func (k *Kind) Renderer() *render.Renderer {
	return k.renderer
}

// ProbeCommand renders the probe command for key.
func (k *Kind) ProbeCommand(key entity.Key) (string, error) {
	lines, err := k.probe.Lines(render.NewScope(key))
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}
	return lines[0], nil
}
