package addr

import "testing"

func TestAddrString(t *testing.T) {
	a := Addr(0x1000)
	want := "0x0000000000001000"
	if got := a.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAddrSetHexAndDecimal(t *testing.T) {
	var a Addr
	if err := a.Set("0x2000"); err != nil {
		t.Fatalf("Set(0x2000): %v", err)
	}
	if a != 0x2000 {
		t.Errorf("Set(0x2000) = %v, want 0x2000", a)
	}
	if err := a.Set("4096"); err != nil {
		t.Fatalf("Set(4096): %v", err)
	}
	if a != 4096 {
		t.Errorf("Set(4096) = %v, want 4096", a)
	}
}

func TestAddrJSONRoundTrip(t *testing.T) {
	a := Addr(0x5000)
	data, err := a.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if string(data) != "20480" {
		t.Errorf("MarshalJSON() = %s, want 20480", data)
	}
	var b Addr
	if err := b.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if b != a {
		t.Errorf("UnmarshalJSON round-trip = %v, want %v", b, a)
	}
}

func TestAddrsSorted(t *testing.T) {
	as := Addrs{3, 1, 2}
	sorted := as.Sorted()
	want := Addrs{1, 2, 3}
	for i := range want {
		if sorted[i] != want[i] {
			t.Errorf("Sorted()[%d] = %v, want %v", i, sorted[i], want[i])
		}
	}
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: 0x1000, End: 0x2000}
	if !r.Contains(0x1000) {
		t.Errorf("Contains(start) = false, want true")
	}
	if r.Contains(0x2000) {
		t.Errorf("Contains(end) = true, want false (half-open)")
	}
	if !r.Contains(0x1fff) {
		t.Errorf("Contains(end-1) = false, want true")
	}
}
