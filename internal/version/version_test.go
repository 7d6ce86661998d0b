package version

import "testing"

func TestParseRoundTrip(t *testing.T) {
	inputs := []string{"1.0.0", "1.2-3", "0.4.1.2", "2", "1-2-3-4-5-6-7-8-9-10"}
	for _, in := range inputs {
		v, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if got := v.String(); got != in {
			t.Errorf("Parse(%q).String() = %q, want %q", in, got, in)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "1.a.0", "1.2.3.4.5.6.7.8.9.10.11"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	table := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.0", "1.0.1", -1},
		{"1.1.0", "1.0.9", 1},
		{"1.2-3", "1.2.4", -1}, // "-3" parses the same as ".3" for ordering purposes
		{"2", "1.9.9", 1},
	}
	for _, tt := range table {
		a, b := MustParse(tt.a), MustParse(tt.b)
		if got := a.Compare(b); got != tt.want {
			t.Errorf("Compare(%q,%q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		// antisymmetry
		if got := b.Compare(a); got != -tt.want {
			t.Errorf("Compare(%q,%q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestEqualMatchesZeroCompare(t *testing.T) {
	a := MustParse("1.0")
	b := MustParse("1.0.0")
	if !a.Equal(b) {
		t.Fatalf("expected 1.0 to equal 1.0.0 under zero-extension")
	}
	if a.Compare(b) != 0 {
		t.Fatalf("expected Compare == 0 for equal versions")
	}
}

func TestHazyMatch(t *testing.T) {
	user := MustParse("3.5")
	full := MustParse("3.5.2")
	other := MustParse("3.6.0")

	if !HazyMatch(user, full) {
		t.Errorf("expected 3.5 to hazily match 3.5.2")
	}
	if HazyMatch(user, other) {
		t.Errorf("expected 3.5 to NOT hazily match 3.6.0")
	}
}

func TestSort(t *testing.T) {
	vs := []Version{MustParse("1.2.0"), MustParse("1.0.0"), MustParse("1.1.5")}
	Sort(vs)
	want := []string{"1.0.0", "1.1.5", "1.2.0"}
	for i, w := range want {
		if vs[i].String() != w {
			t.Errorf("Sort()[%d] = %q, want %q", i, vs[i].String(), w)
		}
	}
}
