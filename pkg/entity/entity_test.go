package entity

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/newtron-network/newtcli/pkg/rangeset"
	"github.com/newtron-network/newtcli/pkg/util"
)

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		key     Key
		want    string
		pattern string
	}{
		{
			name:    "single",
			key:     K("vlan", "39"),
			want:    "vlan[39]",
			pattern: "vlan",
		},
		{
			name:    "nested",
			key:     K("network-instance", "default", "vlan", "39"),
			want:    "network-instance[default]/vlan[39]",
			pattern: "network-instance/vlan",
		},
		{
			name:    "slash in id",
			key:     K("interface", "Gi0/1", "subinterface", "100"),
			want:    "interface[Gi0/1]/subinterface[100]",
			pattern: "interface/subinterface",
		},
		{
			name:    "escaped bracket",
			key:     K("acl", `odd]name\x`),
			want:    `acl[odd\]name\\x]`,
			pattern: "acl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := tt.key.Pattern(); got != tt.pattern {
				t.Errorf("Pattern() = %q, want %q", got, tt.pattern)
			}
			parsed, err := ParseKey(tt.want)
			if err != nil {
				t.Fatalf("ParseKey(%q) error: %v", tt.want, err)
			}
			if parsed != tt.key {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.want, parsed, tt.key)
			}
		})
	}
}

func TestParseKeyErrors(t *testing.T) {
	for _, s := range []string{"vlan", "[39]", "vlan[39", "vlan[39]x", "vlan[39]/", `vlan[39\`} {
		if _, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q) should fail", s)
		}
	}
}

func TestKeyNavigation(t *testing.T) {
	k := K("network-instance", "blue", "vlan", "39")

	if k.Kind() != "vlan" || k.ID() != "39" {
		t.Errorf("leaf = %s[%s]", k.Kind(), k.ID())
	}
	if root, _ := k.Root(); root.Kind != "network-instance" || root.ID != "blue" {
		t.Errorf("Root() = %v", root)
	}
	if p := k.Parent(); p != K("network-instance", "blue") {
		t.Errorf("Parent() = %v", p)
	}
	if c := k.Parent().Child("vlan", "39"); c != k {
		t.Errorf("Child() = %v, want %v", c, k)
	}
	if id, ok := k.Lookup("network-instance"); !ok || id != "blue" {
		t.Errorf("Lookup() = %q, %v", id, ok)
	}
	if k.Len() != 2 {
		t.Errorf("Len() = %d", k.Len())
	}

	// Keys are comparable map keys.
	m := map[Key]int{k: 1}
	if m[K("network-instance", "blue", "vlan", "39")] != 1 {
		t.Error("equal keys should hash equally")
	}
}

func TestEntityAbsentVersusEmpty(t *testing.T) {
	if Absent.Exists() {
		t.Error("Absent should not exist")
	}
	empty := New()
	if !empty.Exists() || empty.Len() != 0 {
		t.Error("New() should be an existing entity without attributes")
	}
	if Absent.Equal(empty) {
		t.Error("absent and empty entities must differ")
	}
}

func TestEntityImmutable(t *testing.T) {
	a := New(F("name", String("R1")), F("mtu", Int(1500)))
	b := a.With(F("mtu", Int(9000)))

	if v, _ := a.Get("mtu").IntVal(); v != 1500 {
		t.Errorf("With mutated original: mtu = %d", v)
	}
	if v, _ := b.Get("mtu").IntVal(); v != 9000 {
		t.Errorf("With result mtu = %d", v)
	}

	c := b.Without("name")
	if c.Has("name") || !b.Has("name") {
		t.Error("Without should only affect the copy")
	}

	if !New(F("x", Null)).Equal(New()) {
		t.Error("null fields should not be stored")
	}
}

func TestValueEquality(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"string vs enum", String("a"), Enum("a"), false},
		{"ints", Int(1), Int(2), false},
		{"lists", Ints(1, 2), Ints(1, 2), true},
		{"list order", Ints(1, 2), Ints(2, 1), false},
		{"nested", Nested(New(F("ip", String("10.0.0.1")))), Nested(New(F("ip", String("10.0.0.1")))), true},
		{"nulls", Null, Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntityJSON(t *testing.T) {
	e := New(F("name", String("R1")), F("ports", Ints(1, 2)), F("shutdown", Bool(false)))
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]interface{}{
		"name":     "R1",
		"ports":    []interface{}{float64(1), float64(2)},
		"shutdown": false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("JSON = %v, want %v", got, want)
	}
}

func testSchema() *Schema {
	return &Schema{
		Kind: "interface",
		Fields: []FieldSchema{
			{Name: "name", Type: TypeString, Mandatory: true, Immutable: true},
			{Name: "description", Type: TypeString},
			{Name: "mtu", Type: TypeInt},
			{Name: "mode", Type: TypeEnum, Values: []string{"access", "trunk"}},
			{Name: "shutdown", Type: TypeBool},
			{Name: "vlans", Type: TypeList, Item: TypeInt, Range: true},
		},
	}
}

func TestSchemaCoerce(t *testing.T) {
	s := testSchema()
	raw := New(
		F("name", String("Gi0/1")),
		F("mtu", String("1500")),
		F("mode", String("trunk")),
		F("shutdown", String("true")),
		F("vlans", String("10-12,20")),
	)

	got, err := s.Coerce(raw)
	if err != nil {
		t.Fatalf("Coerce error: %v", err)
	}
	want := New(
		F("name", String("Gi0/1")),
		F("mtu", Int(1500)),
		F("mode", Enum("trunk")),
		F("shutdown", Bool(true)),
		F("vlans", Ints(10, 11, 12, 20)),
	)
	if !got.Equal(want) {
		t.Errorf("Coerce = %v, want %v", got, want)
	}
}

func TestSchemaCoerceGrammar(t *testing.T) {
	tests := []struct {
		name    string
		grammar rangeset.Grammar
		text    string
		want    Value
		wantErr bool
	}{
		{name: "default", text: "10-12,20", want: Ints(10, 11, 12, 20)},
		{name: "word spans", grammar: rangeset.Grammar{ListSep: " ", SpanSep: " to "}, text: "10 to 12 20", want: Ints(10, 11, 12, 20)},
		{name: "word spans in the default grammar", text: "10 to 12 20", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSchema()
			s.Grammar = tt.grammar
			got, err := s.Coerce(New(F("name", String("x")), F("vlans", String(tt.text))))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Coerce error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Get("vlans").Equal(tt.want) {
				t.Errorf("vlans = %v, want %v", got.Get("vlans"), tt.want)
			}
		})
	}
}

func TestSchemaCoerceErrors(t *testing.T) {
	s := testSchema()
	tests := []struct {
		name string
		in   Entity
	}{
		{"bad int", New(F("name", String("x")), F("mtu", String("big")))},
		{"bad enum", New(F("name", String("x")), F("mode", String("hybrid")))},
		{"unknown attribute", New(F("name", String("x")), F("speed", String("10G")))},
		{"missing mandatory", New(F("mtu", String("1500")))},
		{"bad range", New(F("name", String("x")), F("vlans", String("5-1")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Coerce(tt.in)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, util.ErrValidationFailed) {
				t.Errorf("error %v should be a validation error", err)
			}
		})
	}
}

func TestKeyOf(t *testing.T) {
	scalar := FieldSchema{Name: "vlans", Type: TypeList, Item: TypeInt}
	if k := scalar.KeyOf(Int(10)); k != "10" {
		t.Errorf("scalar KeyOf = %q", k)
	}

	keyed := FieldSchema{Name: "addresses", Type: TypeList, Item: TypeEntity, ItemKey: []string{"ip", "prefix"}}
	item := Nested(New(F("ip", String("10.0.0.1")), F("prefix", Int(24)), F("secondary", Bool(true))))
	if k := keyed.KeyOf(item); k != "10.0.0.1|24" {
		t.Errorf("entity KeyOf = %q", k)
	}
}

func TestFromMap(t *testing.T) {
	e, err := FromMap(map[string]interface{}{
		"name":  "R1",
		"mtu":   1500,
		"ports": []interface{}{1, 2, 3},
		"addr":  map[string]interface{}{"ip": "10.0.0.1"},
	})
	if err != nil {
		t.Fatalf("FromMap error: %v", err)
	}
	if v, _ := e.Get("mtu").IntVal(); v != 1500 {
		t.Errorf("mtu = %v", e.Get("mtu"))
	}
	if e.Get("ports").Len() != 3 {
		t.Errorf("ports = %v", e.Get("ports"))
	}
	if nested, ok := e.Get("addr").EntityVal(); !ok || nested.Get("ip").String() != "10.0.0.1" {
		t.Errorf("addr = %v", e.Get("addr"))
	}
}
