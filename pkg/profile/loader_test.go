package profile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/parse"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/util"
)

func loadBuiltins(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reg
}

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestLoadBuiltins(t *testing.T) {
	reg := loadBuiltins(t)

	want := []string{"cisco_iosxe", "huawei_vrp", "huawei_vrp_v8"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}

	cisco, _ := reg.Get("cisco_iosxe")
	if !strings.HasPrefix(cisco.Source(), "builtin:") {
		t.Errorf("Source = %q", cisco.Source())
	}
	iface, ok := cisco.Kind("interface")
	if !ok {
		t.Fatal("cisco_iosxe has no interface kind")
	}
	if iface.Schema().Kind != "interface" || len(iface.ParseFields()) != len(iface.Schema().Fields) {
		t.Errorf("interface schema = %+v", iface.Schema())
	}
	vlans := cisco.KindsFor("network-instance/vlan")
	if len(vlans) != 2 || vlans[0].Name != "vlan" || vlans[1].Name != "bridge-domain" {
		t.Errorf("KindsFor(network-instance/vlan) = %d kinds", len(vlans))
	}
}

func TestInheritance(t *testing.T) {
	reg := loadBuiltins(t)
	base, _ := reg.Get("huawei_vrp")
	v8, err := reg.Get("huawei_vrp_v8")
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(v8.Session.Prologue, []string{"system-view"}) {
		t.Errorf("Prologue = %v, want inherited [system-view]", v8.Session.Prologue)
	}
	if !reflect.DeepEqual(v8.Session.Epilogue, []string{"commit", "return"}) {
		t.Errorf("Epilogue = %v", v8.Session.Epilogue)
	}
	if v8.Grammar != base.Grammar || !reflect.DeepEqual(v8.Platforms, base.Platforms) {
		t.Errorf("grammar/platforms not inherited: %+v %v", v8.Grammar, v8.Platforms)
	}
	if len(v8.Kinds) != len(base.Kinds) {
		t.Fatalf("v8 has %d kinds, base %d", len(v8.Kinds), len(base.Kinds))
	}
	for i := range v8.Kinds {
		if v8.Kinds[i] == base.Kinds[i] {
			t.Errorf("kind %s shared with base profile", v8.Kinds[i].Name)
		}
	}

	// The derived renderer uses the derived session.
	vlan, _ := v8.Kind("vlan")
	ops := change.List{change.Set("name", entity.String("users"), entity.Null)}
	got, err := vlan.Renderer().Render(entity.K("network-instance", "default", "vlan", "39"), change.Create, ops)
	if err != nil {
		t.Fatal(err)
	}
	want := render.CommandText{"system-view", "vlan 39", "name users", "quit", "commit", "return"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestLookup(t *testing.T) {
	reg := loadBuiltins(t)

	tests := []struct {
		platform, version string
		want              string
	}{
		{"cisco_iosxe", "", "cisco_iosxe"},
		{"cat9k", "17.3.1", "cisco_iosxe"},
		{"huawei_vrp", "", "huawei_vrp"},
		{"huawei_vrp", "8.180", "huawei_vrp_v8"},
		{"ce6800", "8", "huawei_vrp_v8"},
		{"ce6800", "80.1", "huawei_vrp"},
		{"vrp", "5.170", "huawei_vrp"},
	}
	for _, tt := range tests {
		t.Run(tt.platform+"@"+tt.version, func(t *testing.T) {
			p, err := reg.Lookup(tt.platform, tt.version)
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("Lookup = %s, want %s", p.Name, tt.want)
			}
		})
	}

	if _, err := reg.Lookup("junos", ""); !errors.Is(err, util.ErrUnknownProfile) {
		t.Errorf("Lookup(junos) error = %v", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "site.yaml", `
name: cisco_iosxe
description: site override
platforms: [cisco_iosxe]
session:
  prologue: [configure terminal]
  epilogue: [end]
kinds:
  - name: loopback
    path: interface
    when:
      id_equals: {interface: Loopback0}
    probe: 'show running-config interface {{.ID}}'
    header: '^interface (Loopback\d+)$'
    enter: 'interface {{.ID}}'
    exit: exit
    fields:
      - name: address
        type: string
        pattern: '^\s+ip address (\S+ \S+)$'
        set: 'ip address {{.Value}}'
`)
	writeProfile(t, dir, "lab.yml", `
name: lab_iosxe
extends: cisco_iosxe
version: "17.9"
`)
	writeProfile(t, dir, "README.txt", "not a profile")

	reg, err := NewLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, _ := reg.Get("cisco_iosxe")
	if p.Description != "site override" || len(p.Kinds) != 1 {
		t.Errorf("override not applied: %s, %d kinds", p.Description, len(p.Kinds))
	}
	lab, err := reg.Lookup("cisco_iosxe", "17.9.2")
	if err != nil || lab.Name != "lab_iosxe" {
		t.Fatalf("Lookup(17.9.2) = %v, %v", lab, err)
	}
	if _, ok := lab.Kind("loopback"); !ok {
		t.Error("lab_iosxe should inherit the overriding kinds")
	}

	only, err := NewLoader(dir).WithoutBuiltins().Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := only.Names(); !reflect.DeepEqual(got, []string{"cisco_iosxe", "lab_iosxe"}) {
		t.Errorf("Names without builtins = %v", got)
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name    string
		profile string
		want    string
	}{
		{"missing name", `platforms: [x]`, "name is required"},
		{"missing platforms", `name: x`, "at least one platform"},
		{"unknown op", `
name: x
platforms: [x]
kinds:
  - {name: k, path: k, probe: show k, header: '^k (\S+)$', ops: [merge]}
`, `unknown op "merge"`},
		{"list without item", `
name: x
platforms: [x]
kinds:
  - name: k
    path: k
    probe: show k
    header: '^k (\S+)$'
    fields:
      - {name: ports, type: list, pattern: 'port (\d+)'}
`, "need an item type"},
		{"bad item key", `
name: x
platforms: [x]
kinds:
  - name: k
    path: k
    probe: show k
    header: '^k (\S+)$'
    fields:
      - name: addrs
        type: list
        item: entity
        item_key: [ip]
        pattern: 'address .*'
        fields:
          - {name: mask, type: string, pattern: 'address \S+ (\S+)'}
`, `item key "ip" is not a sub-field`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.profile), "test.yaml")
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Fatalf("Parse error = %v, want validation failure", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseCompileErrors(t *testing.T) {
	bad := `
name: x
platforms: [x]
kinds:
  - name: k
    path: k
    probe: show k
    header: '^k \S+$'
`
	if _, err := Parse([]byte(bad), "test.yaml"); err == nil || !strings.Contains(err.Error(), "identifier group") {
		t.Errorf("header without group error = %v", err)
	}

	ext := `
name: y
extends: x
platforms: [x]
`
	if _, err := Parse([]byte(ext), "test.yaml"); !errors.Is(err, util.ErrUnknownProfile) {
		t.Errorf("standalone extends error = %v", err)
	}
}

func TestInheritanceCycle(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "a.yaml", "name: a\nextends: b\nplatforms: [a]\n")
	writeProfile(t, dir, "b.yaml", "name: b\nextends: a\nplatforms: [b]\n")
	if _, err := NewLoader(dir).WithoutBuiltins().Load(); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("cycle error = %v", err)
	}
}

func TestProbeCommand(t *testing.T) {
	p, err := Parse([]byte(`
name: x
platforms: [x]
kinds:
  - name: iface
    path: interface
    probe: 'show running-config interface {{.ID}}'
    header: '^interface (\S+)$'
`), "test.yaml")
	if err != nil {
		t.Fatal(err)
	}
	k, _ := p.Kind("iface")
	got, err := k.ProbeCommand(entity.K("interface", "Gi0/1"))
	if err != nil || got != "show running-config interface Gi0/1" {
		t.Errorf("ProbeCommand = %q, %v", got, err)
	}
}

const ciscoConfig = `Building configuration...
interface GigabitEthernet0/1
 description uplink
 mtu 9000
 switchport mode trunk
 switchport trunk allowed vlan 10,20-22
 switchport trunk allowed vlan add 30
 ip address 10.0.0.1 255.255.255.0
 ip address 10.0.1.1 255.255.255.0 secondary
!
interface GigabitEthernet0/2
 shutdown
!
end
`

const huaweiConfig = `#
interface 10GE1/0/1
 description uplink
 port link-type trunk
 port trunk allow-pass vlan 10 20 to 22
 port trunk allow-pass vlan 30
 ip address 10.0.1.1 255.255.255.0 sub
#
return
`

func address(ip string, secondary bool) entity.Value {
	return entity.Nested(entity.New(
		entity.F("ip", entity.String(ip)),
		entity.F("mask", entity.String("255.255.255.0")),
		entity.F("secondary", entity.Bool(secondary)),
	))
}

func readKind(t *testing.T, k *Kind, text, id string) entity.Entity {
	t.Helper()
	sec, ok := k.Extractor().Extract(text, id)
	if !ok {
		t.Fatalf("section %s not found", id)
	}
	res, err := parse.Fields(sec, k.ParseFields())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("tolerated errors: %v", res.Errors)
	}
	return res.Entity
}

func TestBuiltinInterfaceParsing(t *testing.T) {
	reg := loadBuiltins(t)

	cisco, _ := reg.Get("cisco_iosxe")
	iface, _ := cisco.Kind("interface")
	got := readKind(t, iface, ciscoConfig, "GigabitEthernet0/1")
	want := entity.New(
		entity.F("description", entity.String("uplink")),
		entity.F("mtu", entity.Int(9000)),
		entity.F("mode", entity.Enum("trunk")),
		entity.F("trunk_vlans", entity.Ints(10, 20, 21, 22, 30)),
		entity.F("addresses", entity.List(address("10.0.0.1", false), address("10.0.1.1", true))),
		entity.F("shutdown", entity.Bool(false)),
	)
	if !got.Equal(want) {
		t.Errorf("cisco interface =\n%v\nwant\n%v", got, want)
	}
	if got := readKind(t, iface, ciscoConfig, "GigabitEthernet0/2"); !got.Get("shutdown").Equal(entity.Bool(true)) {
		t.Errorf("Gi0/2 = %v", got)
	}

	huawei, _ := reg.Get("huawei_vrp")
	iface, _ = huawei.Kind("interface")
	got = readKind(t, iface, huaweiConfig, "10GE1/0/1")
	want = entity.New(
		entity.F("description", entity.String("uplink")),
		entity.F("mode", entity.Enum("trunk")),
		entity.F("trunk_vlans", entity.Ints(10, 20, 21, 22, 30)),
		entity.F("addresses", entity.List(address("10.0.1.1", true))),
		entity.F("shutdown", entity.Bool(false)),
	)
	if !got.Equal(want) {
		t.Errorf("huawei interface =\n%v\nwant\n%v", got, want)
	}
}

func TestBuiltinRangeRendering(t *testing.T) {
	reg := loadBuiltins(t)
	tests := []struct {
		profile string
		want    string
	}{
		{"cisco_iosxe", "switchport trunk allowed vlan 10,20-22,30"},
		{"huawei_vrp", "port trunk allow-pass vlan 10 20 to 22 30"},
	}
	ops := change.List{change.Set("trunk_vlans", entity.Ints(30, 10, 22, 21, 20), entity.Null)}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			p, _ := reg.Get(tt.profile)
			k, _ := p.Kind("interface")
			got, err := k.Renderer().Render(entity.K("interface", "x"), change.Create, ops)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 5 || got[2] != tt.want {
				t.Errorf("Render = %q, want line %q", got, tt.want)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	reg, err := NewLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		profile string
		output  string
		want    string
	}{
		{"cisco_iosxe", "r1(config)#vlan 39\nr1(config-vlan)#name users\n", ""},
		{"cisco_iosxe", "r1(config-if)#mtu 99999\n% Invalid input detected at '^' marker.\r\n", "% Invalid input detected at '^' marker."},
		{"huawei_vrp", "[~r1]vlan 39\nError: The VLAN does not exist.\n", "Error: The VLAN does not exist."},
		{"huawei_vrp_v8", "[~r1]vlan 5000\nError: Wrong parameter found at '^' position.\n", "Error: Wrong parameter found at '^' position."},
	}
	for _, tt := range tests {
		t.Run(tt.profile, func(t *testing.T) {
			p, err := reg.Get(tt.profile)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := p.CommandError(tt.output)
			if got != tt.want || ok != (tt.want != "") {
				t.Errorf("CommandError = %q, %v, want %q", got, ok, tt.want)
			}
		})
	}
}
