package countries

import (
	"sort"
	"testing"
)

func TestNameFor(t *testing.T) {
	tests := []struct {
		code   string
		want   string
		wantOK bool
	}{
		{code: "NZ", want: "New Zealand", wantOK: true},
		{code: "GB", want: "United Kingdom", wantOK: true},
		{code: "US", want: "United States", wantOK: true},
		{code: "A1", want: "Anonymous Proxy", wantOK: true},
		{code: "A3", want: "Internal Network", wantOK: true},
		{code: "ZZ", wantOK: false},
		{code: "nz", wantOK: false},
		{code: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			name, ok := NameFor(tt.code)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if name != tt.want {
				t.Errorf("expected name %q, got %q", tt.want, name)
			}
		})
	}
}

func TestDropdownListExcludesSyntheticCodes(t *testing.T) {
	list := DropdownList()

	for _, c := range list {
		switch c.Code {
		case AnonymousProxy, SatelliteProvider, InternalNetwork:
			t.Errorf("synthetic code %s present in dropdown", c.Code)
		}
	}

	if len(list) != Len()-3 {
		t.Errorf("expected %d entries, got %d", Len()-3, len(list))
	}
}

func TestDropdownListSortedByName(t *testing.T) {
	list := DropdownList()

	sorted := sort.SliceIsSorted(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	if !sorted {
		t.Error("expected dropdown sorted by name")
	}
	if list[0].Name != "Afghanistan" {
		t.Errorf("expected first entry Afghanistan, got %s", list[0].Name)
	}
}

func TestDropdownListReturnsCopy(t *testing.T) {
	list := DropdownList()
	list[0].Name = "changed"

	if DropdownList()[0].Name == "changed" {
		t.Error("dropdown list shares storage between calls")
	}
}

func TestTableSize(t *testing.T) {
	if Len() < 240 {
		t.Errorf("expected at least 240 entries, got %d", Len())
	}
}
