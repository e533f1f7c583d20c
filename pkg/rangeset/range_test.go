package rangeset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/newtron-network/newtcli/pkg/util"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []string
		wantErr bool
	}{
		{
			name: "single value",
			spec: "5",
			want: []string{"5"},
		},
		{
			name: "mixed",
			spec: "1-3,5,10,20-22",
			want: []string{"1", "2", "3", "5", "10", "20", "21", "22"},
		},
		{
			name: "with spaces",
			spec: "1 - 3, 5",
			want: []string{"1", "2", "3", "5"},
		},
		{
			name: "input order kept, duplicates dropped",
			spec: "10,1-3,2-4",
			want: []string{"10", "1", "2", "3", "4"},
		},
		{
			name: "prefixed singleton",
			spec: "1/2,t/3",
			want: []string{"1/2", "t/3"},
		},
		{
			name: "prefixed span",
			spec: "t/1-t/3",
			want: []string{"t/1", "t/2", "t/3"},
		},
		{
			name: "bare span end inherits prefix",
			spec: "Gi0/1-3",
			want: []string{"Gi0/1", "Gi0/2", "Gi0/3"},
		},
		{
			name: "prefix containing the span separator",
			spec: "Port-channel1,Port-channel3",
			want: []string{"Port-channel1", "Port-channel3"},
		},
		{
			name: "opaque token",
			spec: "all",
			want: []string{"all"},
		},
		{
			name: "empty string",
			spec: "",
			want: []string{},
		},
		{
			name:    "start > end",
			spec:    "5-1",
			wantErr: true,
		},
		{
			name:    "mismatched prefixes",
			spec:    "t/1-x/3",
			wantErr: true,
		},
		{
			name:    "numeric to prefixed span",
			spec:    "1-t/3",
			wantErr: true,
		},
		{
			name:    "bad span format",
			spec:    "1-2-3",
			wantErr: true,
		},
		{
			name:    "cross-unit span without unit size",
			spec:    "1/2-2/1",
			wantErr: true,
		},
		{
			name:    "span without start",
			spec:    "-5",
			wantErr: true,
		},
		{
			name:    "prefixed span without start",
			spec:    "-1-5",
			wantErr: true,
		},
		{
			name:    "span without end",
			spec:    "5-",
			wantErr: true,
		},
		{
			name:    "span longer than the cap",
			spec:    "1-2000000000",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, util.ErrMalformedRange) {
					t.Errorf("Expand(%q) error %v should be ErrMalformedRange", tt.spec, err)
				}
				return
			}
			if strs := got.Strings(); !reflect.DeepEqual(strs, tt.want) {
				t.Errorf("Expand(%q) = %v, want %v", tt.spec, strs, tt.want)
			}
		})
	}
}

func TestExpandCrossUnit(t *testing.T) {
	g := Grammar{UnitSize: 4, UnitBase: 1}

	got, err := g.Expand("1/2-2/1,t/3")
	if err != nil {
		t.Fatalf("Expand error: %v", err)
	}
	want := []string{"1/2", "1/3", "1/4", "2/1", "t/3"}
	if !reflect.DeepEqual(got.Strings(), want) {
		t.Errorf("Expand = %v, want %v", got.Strings(), want)
	}

	if c := g.Compact(got); c != "1/2-2/1,t/3" {
		t.Errorf("Compact = %q, want %q", c, "1/2-2/1,t/3")
	}
}

func TestDefaultGrammarUnits(t *testing.T) {
	if _, err := Default.Expand("1/2-2/1"); !errors.Is(err, util.ErrMalformedRange) {
		t.Errorf("Default.Expand(1/2-2/1) error = %v, want ErrMalformedRange", err)
	}
	g := Default
	g.UnitSize, g.UnitBase = 2, 1
	got, err := g.Expand("1/2-2/1")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"1/2", "2/1"}; !reflect.DeepEqual(got.Strings(), want) {
		t.Errorf("Expand = %v, want %v", got.Strings(), want)
	}
}

func TestMaxSpan(t *testing.T) {
	tests := []struct {
		name    string
		g       Grammar
		spec    string
		wantLen int
		wantErr bool
	}{
		{name: "full vlan space", g: Default, spec: "1-4094", wantLen: 4094},
		{name: "at the cap", g: Grammar{MaxSpan: 3}, spec: "1-3", wantLen: 3},
		{name: "over the cap", g: Grammar{MaxSpan: 3}, spec: "1-4", wantErr: true},
		{name: "cross-unit over the cap", g: Grammar{UnitSize: 48, UnitBase: 1, MaxSpan: 10}, spec: "1/40-2/8", wantErr: true},
		{name: "huge span", g: Grammar{}, spec: "1-2000000000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.g.Expand(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expand(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if tt.wantErr {
				var re *util.RangeError
				if !errors.As(err, &re) || re.Text != tt.spec {
					t.Errorf("Expand(%q) error = %#v, want RangeError on the text", tt.spec, err)
				}
				return
			}
			if got.Len() != tt.wantLen {
				t.Errorf("Expand(%q) has %d elements, want %d", tt.spec, got.Len(), tt.wantLen)
			}
		})
	}
}

func TestCompact(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want string
	}{
		{"contiguous", "1,2,3,4,5", "1-5"},
		{"gaps", "1,2,3,5,7,8,9", "1-3,5,7-9"},
		{"pairs merge", "1100,1101", "1100-1101"},
		{"numeric not lexical order", "10,9,100,2", "2,9-10,100"},
		{"numbers before prefixes", "t/2,3,t/1,1/2", "1/2,3,t/1-t/2"},
		{"opaque last", "all,4,5", "4-5,all"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Expand(tt.spec)
			if err != nil {
				t.Fatalf("Expand(%q) error: %v", tt.spec, err)
			}
			if got := Compact(s); got != tt.want {
				t.Errorf("Compact(%q) = %q, want %q", tt.spec, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	specs := []string{
		"1-3,5,10,20-22",
		"31,127,1100,1101,2560,2563,3107,3510-3514,3522",
		"22,1,5-7,3",
		"t/11,1/2,t/12,1/3",
		"Gi0/1-4,Gi0/10",
		"all,1",
	}
	for _, spec := range specs {
		t.Run(spec, func(t *testing.T) {
			first, err := Expand(spec)
			if err != nil {
				t.Fatalf("Expand(%q) error: %v", spec, err)
			}
			compact := Compact(first)
			second, err := Expand(compact)
			if err != nil {
				t.Fatalf("Expand(Compact) = Expand(%q) error: %v", compact, err)
			}
			if !second.Equal(first) {
				t.Errorf("round trip changed elements: %v -> %q -> %v", first.Strings(), compact, second.Strings())
			}
		})
	}
}

func TestAddFragment(t *testing.T) {
	base := "31,127,1100,1101,2560,2563,3107,3510-3514,3522"

	s, err := Default.ExpandFragments(base, "add 3527")
	if err != nil {
		t.Fatalf("ExpandFragments error: %v", err)
	}
	if s.Len() != 14 {
		t.Fatalf("Len = %d, want 14", s.Len())
	}
	elems := s.Elements()
	if v, _ := elems[len(elems)-1].IntValue(); v != 3527 {
		t.Errorf("last element = %s, want 3527", elems[len(elems)-1])
	}
	want := "31,127,1100-1101,2560,2563,3107,3510-3514,3522,3527"
	if got := Compact(s); got != want {
		t.Errorf("Compact = %q, want %q", got, want)
	}

	// Fragment order is irrelevant to the resulting set.
	other, err := Default.ExpandFragments("3527", "add "+base)
	if err != nil {
		t.Fatalf("ExpandFragments error: %v", err)
	}
	if !other.Equal(s) {
		t.Errorf("swapped fragments differ: %v vs %v", other.Strings(), s.Strings())
	}
}

func TestApply(t *testing.T) {
	base, _ := Expand("1-10")

	tests := []struct {
		fragment string
		want     string
	}{
		{"add 20", "1-10,20"},
		{"remove 3-5", "1-2,6-10"},
		{"none", ""},
		{"7,8", "7-8"},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			got, err := Default.Apply(base, tt.fragment)
			if err != nil {
				t.Fatalf("Apply(%q) error: %v", tt.fragment, err)
			}
			if c := Compact(got); c != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.fragment, c, tt.want)
			}
		})
	}

	if _, err := Default.Apply(base, "add 9-2"); !errors.Is(err, util.ErrMalformedRange) {
		t.Errorf("Apply with bad fragment error = %v, want ErrMalformedRange", err)
	}
}

func TestExpandInts(t *testing.T) {
	got, err := ExpandInts("1-3,5")
	if err != nil {
		t.Fatalf("ExpandInts error: %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, 2, 3, 5}) {
		t.Errorf("ExpandInts = %v", got)
	}

	if got, err := ExpandInts(""); err != nil || got != nil {
		t.Errorf("ExpandInts(\"\") = %v, %v; want nil, nil", got, err)
	}
	if _, err := ExpandInts("abc"); err == nil {
		t.Error("ExpandInts(abc) should fail")
	}
	if _, err := ExpandInts("t/1"); err == nil {
		t.Error("ExpandInts(t/1) should fail")
	}
}

func TestCompactInts(t *testing.T) {
	tests := []struct {
		values []int
		want   string
	}{
		{nil, ""},
		{[]int{5}, "5"},
		{[]int{5, 3, 1, 2}, "1-3,5"},
		{[]int{1, 1, 2, 2, 3}, "1-3"},
	}
	for _, tt := range tests {
		if got := CompactInts(tt.values); got != tt.want {
			t.Errorf("CompactInts(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}

func TestExpandVLANs(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{spec: "100-102,200", want: []int{100, 101, 102, 200}},
		{spec: "1,4094", want: []int{1, 4094}},
		{spec: "0", wantErr: true},
		{spec: "4090-4095", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ExpandVLANs(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandVLANs(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandVLANs(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestExpandInterfaces(t *testing.T) {
	tests := []struct {
		spec    string
		want    []string
		wantErr bool
	}{
		{spec: "Ethernet0-2", want: []string{"Ethernet0", "Ethernet1", "Ethernet2"}},
		{spec: "Ethernet0,4,8", want: []string{"Ethernet0", "Ethernet4", "Ethernet8"}},
		{spec: "GigabitEthernet0/1-2", want: []string{"GigabitEthernet0/1", "GigabitEthernet0/2"}},
		{spec: "0-4", wantErr: true},
		{spec: "Ethernet4-1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ExpandInterfaces(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandInterfaces(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandInterfaces(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestSetOperations(t *testing.T) {
	a := FromInts(3, 1, 2)
	b := FromInts(1, 2, 3)
	if !a.Equal(b) {
		t.Error("sets with same members in different order should be equal")
	}
	if reflect.DeepEqual(a.Strings(), b.Strings()) {
		t.Error("input order should be preserved")
	}
	if a.Union(FromInts(4)).Len() != 4 {
		t.Error("Union should add new member")
	}
	if !a.Difference(FromInts(2)).Equal(FromInts(1, 3)) {
		t.Error("Difference should drop member")
	}
	if !a.Contains(Int(2)) || a.Contains(Int(9)) {
		t.Error("Contains mismatch")
	}
}
