package cfg

import (
	"strings"
	"testing"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	if err != nil {
		t.Fatalf("version.Parse(%q): %v", s, err)
	}
	return v
}

func TestLockfileRoundTrip(t *testing.T) {
	lf := &model.Lockfile{
		LanguageVersion: mustVersion(t, "4.3.0"),
		Packages: []model.LockedPackage{
			{
				Name:    "ggplot2",
				Version: mustVersion(t, "3.4.0"),
				Source:  model.RepositorySource("https://cran.r-project.org"),
				Dependencies: []string{"rlang"},
			},
			{
				Name:    "mypkg",
				Version: mustVersion(t, "1.0.0"),
				Source:  model.GitSource("https://github.com/example/mypkg", "abc123", "", model.GitRef{Tag: "v1.0.0"}),
			},
		},
	}

	b, err := WriteLockfile(lf)
	if err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	got, err := ReadLockfile(strings.NewReader(string(b)))
	if err != nil {
		t.Fatalf("ReadLockfile: %v", err)
	}
	if !got.Equal(lf) {
		t.Fatalf("round-trip mismatch:\nwant %+v\ngot  %+v", lf, got)
	}
}

func TestWriteLockfileCanonicalOrder(t *testing.T) {
	lf := &model.Lockfile{
		LanguageVersion: mustVersion(t, "4.3.0"),
		Packages: []model.LockedPackage{
			{Name: "zzz", Version: mustVersion(t, "1.0.0"), Source: model.BuiltinSource()},
			{Name: "aaa", Version: mustVersion(t, "1.0.0"), Source: model.BuiltinSource()},
		},
	}
	b, err := WriteLockfile(lf)
	if err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}
	idxA := strings.Index(string(b), `name = 'aaa'`)
	idxZ := strings.Index(string(b), `name = 'zzz'`)
	if idxA == -1 || idxZ == -1 || idxA > idxZ {
		t.Fatalf("expected alphabetical ordering in output:\n%s", b)
	}
}

func TestLockfileSeedsManifest(t *testing.T) {
	lf := &model.Lockfile{
		Packages: []model.LockedPackage{
			{Name: "dplyr", Source: model.RepositorySource("https://cran.r-project.org")},
		},
	}
	deps := []model.ManifestDependency{{Name: "dplyr"}}
	if !lf.SeedsManifest(deps) {
		t.Fatal("expected lockfile to seed a compatible manifest")
	}

	deps = []model.ManifestDependency{{Name: "dplyr", Git: &model.GitPin{URL: "https://example.com/dplyr"}}}
	if lf.SeedsManifest(deps) {
		t.Fatal("expected lockfile not to seed a manifest whose source materially changed")
	}
}
