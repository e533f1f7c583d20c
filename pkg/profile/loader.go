package profile

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/parse"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/section"
	"github.com/newtron-network/newtcli/pkg/util"
)

//go:embed profiles
var builtinFS embed.FS

// ProfileDir is the default directory for site-specific profiles
var ProfileDir = "/etc/newtcli/profiles"

// Loader loads vendor profiles: the built-in set first, then every
// *.yaml file in the profile directory. A file profile replaces a
// built-in one of the same name, and may extend any loaded profile.
type Loader struct {
	dir      string
	builtins bool
}

// NewLoader creates a loader for dir. An empty dir selects ProfileDir.
func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = ProfileDir
	}
	return &Loader{dir: dir, builtins: true}
}

// WithoutBuiltins skips the embedded profiles.
func (l *Loader) WithoutBuiltins() *Loader {
	l.builtins = false
	return l
}

// Load loads all profiles into a new registry. A missing profile
// directory is not an error.
func (l *Loader) Load() (*Registry, error) {
	var raw []*Profile

	if l.builtins {
		entries, err := fs.ReadDir(builtinFS, "profiles")
		if err != nil {
			return nil, fmt.Errorf("reading built-in profiles: %w", err)
		}
		for _, e := range entries {
			if !isProfileFile(e.Name()) {
				continue
			}
			data, err := builtinFS.ReadFile(path.Join("profiles", e.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading built-in profile %s: %w", e.Name(), err)
			}
			p, err := decode(data, "builtin:"+e.Name())
			if err != nil {
				return nil, err
			}
			raw = append(raw, p)
		}
	}

	entries, err := os.ReadDir(l.dir)
	switch {
	case os.IsNotExist(err):
		util.WithField("dir", l.dir).Debug("Profile directory not found, using built-in profiles")
	case err != nil:
		return nil, fmt.Errorf("reading profile directory %s: %w", l.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !isProfileFile(e.Name()) {
			continue
		}
		file := filepath.Join(l.dir, e.Name())
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading profile %s: %w", file, err)
		}
		p, err := decode(data, file)
		if err != nil {
			return nil, err
		}
		raw = append(raw, p)
	}

	return build(raw)
}

// build resolves inheritance, then validates and compiles every profile.
// Later profiles replace earlier ones of the same name.
func build(raw []*Profile) (*Registry, error) {
	byName := make(map[string]*Profile, len(raw))
	var order []string
	for _, p := range raw {
		if old, ok := byName[p.Name]; ok {
			util.WithField("profile", p.Name).Debugf("Profile %s overrides %s", p.source, old.source)
		} else {
			order = append(order, p.Name)
		}
		byName[p.Name] = p
	}

	reg := NewRegistry()
	for _, name := range order {
		p, err := resolve(byName[name], byName, make(map[string]bool))
		if err != nil {
			return nil, err
		}
		if err := p.finish(); err != nil {
			return nil, err
		}
		reg.Register(p)
	}
	return reg, nil
}

func resolve(p *Profile, byName map[string]*Profile, seen map[string]bool) (*Profile, error) {
	if p.Extends == "" {
		return p, nil
	}
	if seen[p.Name] {
		return nil, fmt.Errorf("profile %s: inheritance cycle through %s", p.Name, p.Extends)
	}
	seen[p.Name] = true
	base, ok := byName[p.Extends]
	if !ok {
		return nil, fmt.Errorf("profile %s extends %s: %w", p.Name, p.Extends, util.ErrUnknownProfile)
	}
	base, err := resolve(base, byName, seen)
	if err != nil {
		return nil, err
	}
	return p.inherit(base), nil
}

func isProfileFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// LoadFile loads and compiles one self-contained profile file.
func LoadFile(file string) (*Profile, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", file, err)
	}
	return Parse(data, file)
}

// Parse decodes, validates and compiles a self-contained profile. Profiles
// that extend another one must be loaded through a Loader.
func Parse(data []byte, source string) (*Profile, error) {
	p, err := decode(data, source)
	if err != nil {
		return nil, err
	}
	if p.Extends != "" {
		return nil, fmt.Errorf("profile %s extends %s: %w", p.Name, p.Extends, util.ErrUnknownProfile)
	}
	if err := p.finish(); err != nil {
		return nil, err
	}
	return p, nil
}

func decode(data []byte, source string) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", source, err)
	}
	p.source = source
	return &p, nil
}

func (p *Profile) finish() error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("validating profile %s: %w", p.source, err)
	}
	if err := p.compile(); err != nil {
		return fmt.Errorf("compiling profile %s: %w", p.source, err)
	}
	return nil
}

var knownOps = map[string]bool{"read": true, "create": true, "update": true, "delete": true}

var knownTypes = map[entity.FieldType]bool{
	entity.TypeString: true, entity.TypeInt: true, entity.TypeBool: true,
	entity.TypeEnum: true, entity.TypeEntity: true, entity.TypeList: true,
}

func (p *Profile) validate() error {
	v := &util.ValidationBuilder{}

	v.Add(p.Name != "", "name is required")
	v.Add(len(p.Platforms) > 0, "at least one platform is required")

	kinds := make(map[string]bool)
	for i, k := range p.Kinds {
		where := fmt.Sprintf("kind %d", i)
		if k.Name != "" {
			where = "kind " + k.Name
		}
		v.Add(k.Name != "", where+": name is required")
		v.Add(!kinds[k.Name], where+": duplicate kind name")
		kinds[k.Name] = true
		v.Add(k.Path != "", where+": path is required")
		v.Add(k.Probe != "", where+": probe is required")
		v.Add(k.Header != "", where+": header is required")
		for _, op := range k.Ops {
			v.Add(knownOps[op], fmt.Sprintf("%s: unknown op %q", where, op))
		}
		validateFields(v, where, k.Fields)
	}
	for _, k := range p.Kinds {
		for _, ref := range k.References {
			rk, ok := p.Kind(ref.Kind)
			if !ok {
				v.AddErrorf("kind %s: reference to unknown kind %q", k.Name, ref.Kind)
				continue
			}
			v.Add(!strings.Contains(rk.Path, "/"), fmt.Sprintf("kind %s: referencing kind %s must be top-level", k.Name, ref.Kind))
			v.Add(hasField(rk.Fields, ref.Field), fmt.Sprintf("kind %s: kind %s has no field %q", k.Name, ref.Kind, ref.Field))
		}
	}
	return v.Build()
}

func validateFields(v *util.ValidationBuilder, where string, fields []*FieldDef) {
	names := make(map[string]bool)
	for _, f := range fields {
		at := where + "." + f.Name
		v.Add(f.Name != "", where+": field name is required")
		v.Add(!names[f.Name], at+": duplicate field")
		names[f.Name] = true
		v.Add(knownTypes[f.Type], fmt.Sprintf("%s: unknown type %q", at, f.Type))
		v.Add(f.Pattern != "", at+": pattern is required")

		if f.Type == entity.TypeList {
			v.Add(f.Item != "", at+": list fields need an item type")
			v.Add(!f.Range || f.Item == entity.TypeInt || f.Item == entity.TypeString,
				at+": range lists hold int or string items")
		}
		if f.Type == entity.TypeEntity || f.Item == entity.TypeEntity {
			v.Add(len(f.Fields) > 0, at+": entity fields need sub-fields")
			validateFields(v, at, f.Fields)
		}
		if f.Item == entity.TypeEntity {
			for _, k := range f.ItemKey {
				v.Add(hasField(f.Fields, k), fmt.Sprintf("%s: item key %q is not a sub-field", at, k))
			}
		}
	}
}

func hasField(fields []*FieldDef, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (p *Profile) compile() error {
	p.errorRes = nil
	for _, pat := range p.ErrorPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("error pattern %q: %w", pat, err)
		}
		p.errorRes = append(p.errorRes, re)
	}
	for _, k := range p.Kinds {
		if err := p.compileKind(k); err != nil {
			return fmt.Errorf("kind %s: %w", k.Name, err)
		}
	}
	return nil
}

func (p *Profile) compileKind(k *Kind) error {
	var err error
	if k.extractor, err = section.New(k.Header, k.Terminators); err != nil {
		return err
	}
	if k.probe, err = render.Compile(k.Name+".probe", k.Probe, p.Grammar); err != nil {
		return err
	}

	leaf := k.Path
	if i := strings.LastIndex(leaf, "/"); i >= 0 {
		leaf = leaf[i+1:]
	}
	k.schema = &entity.Schema{Kind: leaf, Grammar: p.Grammar}
	attrs := make(map[string]render.Attribute, len(k.Fields))
	for _, f := range k.Fields {
		k.schema.Fields = append(k.schema.Fields, f.FieldSchema)
		attrs[f.Name] = f.Attribute
	}
	if k.fields, err = p.compileFields(k.Fields); err != nil {
		return err
	}
	k.renderer, err = render.New(k.Name, p.Session, k.Block, attrs, p.Grammar)
	return err
}

func (p *Profile) compileFields(defs []*FieldDef) ([]parse.Field, error) {
	out := make([]parse.Field, 0, len(defs))
	for _, d := range defs {
		f := parse.Field{Schema: d.FieldSchema, Group: d.Group, Grammar: p.Grammar}

		var err error
		if d.Whole {
			f.Pattern, err = parse.Whole(d.Pattern)
		} else {
			f.Pattern, err = parse.Line(d.Pattern)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", d.Name, err)
		}
		if len(d.Exclude) > 0 {
			f.Filters = []parse.Filter{parse.Exclude(d.Exclude...)}
		}
		if d.Default != nil {
			raw, err := entity.FromInterface(d.Default)
			if err != nil {
				return nil, fmt.Errorf("field %s: default: %w", d.Name, err)
			}
			if f.Default, err = d.FieldSchema.CoerceWith(p.Grammar, raw); err != nil {
				return nil, fmt.Errorf("field %s: default: %w", d.Name, err)
			}
		}
		if len(d.Fields) > 0 {
			if f.Sub, err = p.compileFields(d.Fields); err != nil {
				return nil, fmt.Errorf("field %s: %w", d.Name, err)
			}
		}
		out = append(out, f)
	}
	return out, nil
}

// ============================================================================
// Registry
// ============================================================================

// Registry indexes loaded profiles by name and platform.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Register adds p, replacing a profile of the same name.
func (r *Registry) Register(p *Profile) {
	if old, ok := r.profiles[p.Name]; ok {
		util.WithField("profile", p.Name).Debugf("Profile %s overrides %s", p.source, old.source)
	}
	r.profiles[p.Name] = p
}

// Get returns a profile by name.
func (r *Registry) Get(name string) (*Profile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrUnknownProfile, name)
	}
	return p, nil
}

// Names returns the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for n := range r.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup selects the profile for a platform and OS version. A profile
// name is accepted as platform. Among the profiles of the platform the
// longest version that prefixes the device version wins; an unversioned
// profile is the fallback.
func (r *Registry) Lookup(platform, version string) (*Profile, error) {
	if p, ok := r.profiles[platform]; ok && version == "" {
		return p, nil
	}

	var best *Profile
	for _, name := range r.Names() {
		p := r.profiles[name]
		if !p.servesPlatform(platform) {
			continue
		}
		if p.Version != "" && !versionMatch(p.Version, version) {
			continue
		}
		if best == nil || len(p.Version) > len(best.Version) {
			best = p
		}
	}
	if best == nil {
		if p, ok := r.profiles[platform]; ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: platform %q version %q", util.ErrUnknownProfile, platform, version)
	}
	return best, nil
}

func (p *Profile) servesPlatform(platform string) bool {
	if p.Name == platform {
		return true
	}
	for _, pl := range p.Platforms {
		if pl == platform {
			return true
		}
	}
	return false
}

// versionMatch reports whether want prefixes have on a dotted boundary:
// "17" matches "17.3.1" but not "173".
func versionMatch(want, have string) bool {
	if !strings.HasPrefix(have, want) {
		return false
	}
	rest := have[len(want):]
	return rest == "" || rest[0] == '.'
}
