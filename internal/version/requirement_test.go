package version

import "testing"

func TestParseRequirement(t *testing.T) {
	table := map[string]struct {
		op Operator
		v  string
	}{
		">= 1.0.0": {OpGE, "1.0.0"},
		"<=2.0":    {OpLE, "2.0"},
		"==1.2.3":  {OpEQ, "1.2.3"},
		"> 1":      {OpGT, "1"},
		"<1":       {OpLT, "1"},
	}
	for in, want := range table {
		r, err := ParseRequirement(in)
		if err != nil {
			t.Fatalf("ParseRequirement(%q) error: %v", in, err)
		}
		if r.Op != want.op {
			t.Errorf("ParseRequirement(%q).Op = %v, want %v", in, r.Op, want.op)
		}
		if r.V.String() != want.v {
			t.Errorf("ParseRequirement(%q).V = %q, want %q", in, r.V.String(), want.v)
		}
	}
}

func TestParseRequirementStrict(t *testing.T) {
	for _, in := range []string{"~1.0.0", "1.0.0", "!=1.0", ""} {
		if _, err := ParseRequirement(in); err == nil {
			t.Errorf("ParseRequirement(%q) expected error, got nil", in)
		}
	}
}

func TestIsSatisfied(t *testing.T) {
	table := []struct {
		req  string
		cand string
		want bool
	}{
		{"== 1.0.0", "1.0.0", true},
		{"== 1.0.0", "1.0.1", false},
		{"> 1.0.0", "1.0.1", true},
		{"> 1.0.0", "1.0.0", false},
		{"< 1.0.0", "0.9.9", true},
		{">= 1.0.0", "1.0.0", true},
		{"<= 1.0.0", "1.0.0", true},
		{"<= 1.0.0", "1.0.1", false},
	}
	for _, tt := range table {
		r, err := ParseRequirement(tt.req)
		if err != nil {
			t.Fatalf("ParseRequirement(%q): %v", tt.req, err)
		}
		cand := MustParse(tt.cand)
		if got := r.IsSatisfied(cand); got != tt.want {
			t.Errorf("%q.IsSatisfied(%q) = %v, want %v", tt.req, tt.cand, got, tt.want)
		}
	}
}
