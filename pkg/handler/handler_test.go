package handler

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/newtron-network/newtcli/pkg/change"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/entity"
	"github.com/newtron-network/newtcli/pkg/profile"
	"github.com/newtron-network/newtcli/pkg/render"
	"github.com/newtron-network/newtcli/pkg/util"
)

const (
	interfaceProbe = "show running-config | section ^interface"
	vlanProbe      = "show running-config | section ^vlan"
)

var deviceOutputs = map[string]string{
	interfaceProbe: `interface GigabitEthernet0/1
 description uplink
 mtu 9000
 switchport mode trunk
 switchport trunk allowed vlan 10,20-22,30
 ip address 10.0.0.1 255.255.255.0
!
interface GigabitEthernet0/2
 switchport access vlan 99
 shutdown
!
interface GigabitEthernet0/3
 switchport mode dynamic
!
`,
	vlanProbe: `vlan 20
 name users
!
vlan 99
 name spare
!
vlan 300
 name unused
!
`,
}

// fakeDevice serves canned probe output and memoizes like a transaction.
type fakeDevice struct {
	reads map[string]int
	memo  map[string]interface{}
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{reads: make(map[string]int), memo: make(map[string]interface{})}
}

func (d *fakeDevice) Platform() string { return "cisco_iosxe" }

func (d *fakeDevice) Read(_ context.Context, probe string) (string, error) {
	d.reads[probe]++
	out, ok := deviceOutputs[probe]
	if !ok {
		return "", errors.New("unknown probe " + probe)
	}
	return out, nil
}

func (d *fakeDevice) Memo(ctx context.Context, key entity.Key, query string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	k := key.String() + "|" + query
	if v, ok := d.memo[k]; ok {
		return v, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	d.memo[k] = v
	return v, nil
}

func ciscoProfile(t *testing.T) *profile.Profile {
	t.Helper()
	reg, err := profile.NewLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p, err := reg.Get("cisco_iosxe")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func unit(t *testing.T, kind string) *Unit {
	t.Helper()
	p := ciscoProfile(t)
	k, ok := p.Kind(kind)
	if !ok {
		t.Fatalf("no kind %s", kind)
	}
	return New(p, k)
}

func TestReadAbsentSection(t *testing.T) {
	u := unit(t, "interface")
	dc := newFakeDevice()

	got, err := u.Read(context.Background(), entity.K("interface", "GigabitEthernet0/9"), dc)
	if err != nil {
		t.Fatalf("absent entity should not be an error: %v", err)
	}
	if got.Exists() {
		t.Errorf("Read = %v, want absent", got)
	}
	ok, err := u.Exists()(context.Background(), entity.K("interface", "GigabitEthernet0/9"), dc)
	if err != nil || ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
}

func TestReadSharesProbe(t *testing.T) {
	u := unit(t, "interface")
	dc := newFakeDevice()
	ctx := context.Background()

	gi1, err := u.Read(ctx, entity.K("interface", "GigabitEthernet0/1"), dc)
	if err != nil {
		t.Fatal(err)
	}
	want := entity.New(
		entity.F("description", entity.String("uplink")),
		entity.F("mtu", entity.Int(9000)),
		entity.F("mode", entity.Enum("trunk")),
		entity.F("trunk_vlans", entity.Ints(10, 20, 21, 22, 30)),
		entity.F("addresses", entity.List(entity.Nested(entity.New(
			entity.F("ip", entity.String("10.0.0.1")),
			entity.F("mask", entity.String("255.255.255.0")),
			entity.F("secondary", entity.Bool(false)),
		)))),
		entity.F("shutdown", entity.Bool(false)),
	)
	if !gi1.Equal(want) {
		t.Errorf("Read(Gi0/1) =\n%v\nwant\n%v", gi1, want)
	}

	gi2, err := u.Read(ctx, entity.K("interface", "GigabitEthernet0/2"), dc)
	if err != nil {
		t.Fatal(err)
	}
	if !gi2.Get("access_vlan").Equal(entity.Int(99)) || !gi2.Get("shutdown").Equal(entity.Bool(true)) {
		t.Errorf("Read(Gi0/2) = %v", gi2)
	}
	if dc.reads[interfaceProbe] != 1 {
		t.Errorf("probe read %d times, want 1", dc.reads[interfaceProbe])
	}
}

func TestReadToleratesAttributeErrors(t *testing.T) {
	u := unit(t, "interface")
	got, err := u.Read(context.Background(), entity.K("interface", "GigabitEthernet0/3"), newFakeDevice())
	if err != nil {
		t.Fatalf("optional attribute failure should stay local: %v", err)
	}
	if !got.Exists() || got.Has("mode") {
		t.Errorf("Read(Gi0/3) = %v, want entity without mode", got)
	}
}

func TestList(t *testing.T) {
	u := unit(t, "interface")
	keys, err := u.List(context.Background(), entity.Key{}, newFakeDevice())
	if err != nil {
		t.Fatal(err)
	}
	want := []entity.Key{
		entity.K("interface", "GigabitEthernet0/1"),
		entity.K("interface", "GigabitEthernet0/2"),
		entity.K("interface", "GigabitEthernet0/3"),
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("List = %v, want %v", keys, want)
	}

	vlans, err := unit(t, "vlan").List(context.Background(), entity.K("network-instance", "default"), newFakeDevice())
	if err != nil {
		t.Fatal(err)
	}
	if len(vlans) != 3 || vlans[0] != entity.K("network-instance", "default", "vlan", "20") {
		t.Errorf("List(vlan) = %v", vlans)
	}
}

func TestWriteUpdate(t *testing.T) {
	u := unit(t, "interface")
	key := entity.K("interface", "GigabitEthernet0/1")
	before, err := u.Read(context.Background(), key, newFakeDevice())
	if err != nil {
		t.Fatal(err)
	}
	after := before.With(entity.F("trunk_vlans", entity.Ints(10, 20, 21, 22, 30, 40))).Without("mtu")

	ops, text, err := u.Write(key, before, after)
	if err != nil {
		t.Fatal(err)
	}
	wantOps := change.List{
		change.Remove("mtu", entity.Int(9000)),
		change.AddItem("trunk_vlans", "40", entity.Int(40)),
	}
	if !reflect.DeepEqual(ops, wantOps) {
		t.Errorf("ops = %v, want %v", ops, wantOps)
	}
	wantText := render.CommandText{
		"configure terminal",
		"interface GigabitEthernet0/1",
		"no mtu",
		"switchport trunk allowed vlan add 40",
		"exit",
		"end",
	}
	if !reflect.DeepEqual(text, wantText) {
		t.Errorf("text = %q, want %q", text, wantText)
	}

	ops, text, err = u.Write(key, before, before)
	if err != nil || !ops.IsEmpty() || !text.IsEmpty() {
		t.Errorf("Write(A, A) = %v, %q, %v", ops, text, err)
	}
}

func TestWriteCarriesImmutable(t *testing.T) {
	u := unit(t, "vlan")
	key := entity.K("network-instance", "default", "vlan", "20")
	before, err := u.Read(context.Background(), key, newFakeDevice())
	if err != nil {
		t.Fatal(err)
	}
	if !before.Get("vlan_id").Equal(entity.Int(20)) {
		t.Fatalf("vlan_id = %v", before.Get("vlan_id"))
	}

	ops, text, err := u.Write(key, before, entity.New(entity.F("name", entity.String("staff"))))
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Attr != "name" {
		t.Errorf("ops = %v, want only the name change", ops)
	}
	want := render.CommandText{"configure terminal", "vlan 20", "name staff", "exit", "end"}
	if !reflect.DeepEqual(text, want) {
		t.Errorf("text = %q, want %q", text, want)
	}

	_, _, err = u.Write(key, before, before.With(entity.F("vlan_id", entity.Int(21))))
	if !errors.Is(err, util.ErrPreconditionFailed) {
		t.Errorf("changing vlan_id error = %v", err)
	}
	_, _, err = u.Write(key, before, before.With(entity.F("color", entity.String("red"))))
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("unknown attribute error = %v", err)
	}
}

func TestWriteDelete(t *testing.T) {
	u := unit(t, "vlan")
	key := entity.K("network-instance", "default", "vlan", "99")
	before, err := u.Read(context.Background(), key, newFakeDevice())
	if err != nil {
		t.Fatal(err)
	}
	_, text, err := u.Write(key, before, entity.Absent)
	if err != nil {
		t.Fatal(err)
	}
	want := render.CommandText{"configure terminal", "no vlan 99", "end"}
	if !reflect.DeepEqual(text, want) {
		t.Errorf("text = %q, want %q", text, want)
	}
}

func TestReferenceGuard(t *testing.T) {
	u := unit(t, "vlan")
	guard := u.Candidate().Guard
	if guard == nil {
		t.Fatal("vlan candidate has no reference guard")
	}
	ctx := context.Background()
	dc := newFakeDevice()

	err := guard(ctx, entity.K("network-instance", "default", "vlan", "99"), change.Delete, dc)
	if !errors.Is(err, util.ErrInUse) {
		t.Fatalf("delete vlan 99 error = %v, want in use", err)
	}
	var inUse *util.InUseError
	if !errors.As(err, &inUse) || !reflect.DeepEqual(inUse.UsedBy, []string{"interface[GigabitEthernet0/2]"}) {
		t.Errorf("InUseError = %#v", err)
	}

	err = guard(ctx, entity.K("network-instance", "default", "vlan", "21"), change.Delete, dc)
	var trunk *util.InUseError
	if !errors.As(err, &trunk) || !reflect.DeepEqual(trunk.UsedBy, []string{"interface[GigabitEthernet0/1]"}) {
		t.Errorf("trunk member error = %v", err)
	}

	if err := guard(ctx, entity.K("network-instance", "default", "vlan", "300"), change.Delete, dc); err != nil {
		t.Errorf("unreferenced vlan: %v", err)
	}
	if err := guard(ctx, entity.K("network-instance", "default", "vlan", "99"), change.Update, dc); err != nil {
		t.Errorf("update is not guarded: %v", err)
	}
	if dc.reads[interfaceProbe] != 1 {
		t.Errorf("interface probe read %d times, want 1", dc.reads[interfaceProbe])
	}
}

func TestRegisterDispatch(t *testing.T) {
	reg := dispatch.NewRegistry()
	if err := Register(reg, ciscoProfile(t)); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	dc := newFakeDevice()

	tests := []struct {
		key  entity.Key
		want string
	}{
		{entity.K("network-instance", "default", "vlan", "20"), "cisco_iosxe/vlan"},
		{entity.K("network-instance", "blue", "vlan", "20"), "cisco_iosxe/bridge-domain"},
		{entity.K("network-instance", "blue"), "cisco_iosxe/vrf"},
		{entity.K("interface", "GigabitEthernet0/1"), "cisco_iosxe/interface"},
	}
	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			res, err := reg.Resolve(ctx, tt.key, change.Update, dc)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Claimed() || res.Candidate.Name != tt.want {
				t.Errorf("Resolve = %+v, want %s", res, tt.want)
			}
		})
	}

	res, err := reg.Resolve(ctx, entity.K("network-instance", "default"), change.Update, dc)
	if err != nil || res.State != dispatch.Unclaimed {
		t.Errorf("default network-instance = %+v, %v; want unclaimed", res, err)
	}
}

func TestWriteCoercesDesired(t *testing.T) {
	u := unit(t, "interface")
	key := entity.K("interface", "GigabitEthernet0/4")
	after := entity.New(
		entity.F("mtu", entity.String("1500")),
		entity.F("mode", entity.String("access")),
		entity.F("trunk_vlans", entity.String("10-12")),
	)
	ops, _, err := u.Write(key, entity.Absent, after)
	if err != nil {
		t.Fatal(err)
	}
	want := change.List{
		change.Set("mtu", entity.Int(1500), entity.Null),
		change.Set("mode", entity.Enum("access"), entity.Null),
		change.Set("trunk_vlans", entity.Ints(10, 11, 12), entity.Null),
	}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("ops = %v, want %v", ops, want)
	}

	_, _, err = u.Write(key, entity.Absent, entity.New(entity.F("mtu", entity.String("jumbo"))))
	if !errors.Is(err, util.ErrValidationFailed) {
		t.Errorf("bad mtu error = %v", err)
	}
}

func TestWriteCoercesProfileGrammar(t *testing.T) {
	reg, err := profile.NewLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatal(err)
	}
	p, err := reg.Get("huawei_vrp")
	if err != nil {
		t.Fatal(err)
	}
	k, ok := p.Kind("interface")
	if !ok {
		t.Fatal("no kind interface")
	}
	after := entity.New(entity.F("trunk_vlans", entity.String("10 to 12 20")))
	ops, text, err := New(p, k).Write(entity.K("interface", "GE1/0/1"), entity.Absent, after)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	wantOps := change.List{change.Set("trunk_vlans", entity.Ints(10, 11, 12, 20), entity.Null)}
	if !reflect.DeepEqual(ops, wantOps) {
		t.Errorf("ops = %v, want %v", ops, wantOps)
	}
	wantText := render.CommandText{"system-view", "interface GE1/0/1", "port trunk allow-pass vlan 10 to 12 20", "quit", "return"}
	if !reflect.DeepEqual(text, wantText) {
		t.Errorf("text = %q, want %q", text, wantText)
	}
}
