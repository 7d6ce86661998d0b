package resolver

import (
	"context"
	"sort"
	"testing"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/repodb"
	"github.com/a2-ai/rv/internal/version"
)

func newDB(name, url string, recs ...*model.PackageRecord) RepoEntry {
	db := repodb.New(name)
	for _, r := range recs {
		db.AddSource(r)
	}
	return RepoEntry{Config: model.RepositoryConfig{Alias: name, URL: url}, DB: db}
}

func rec(name, ver string, deps ...model.Dependency) *model.PackageRecord {
	return &model.PackageRecord{Name: name, Version: version.MustParse(ver), Depends: deps}
}

func names(found []*model.ResolvedDependency) []string {
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.Name
	}
	sort.Strings(out)
	return out
}

// S1: one repository, one dependency with no transitive deps.
func TestResolveSingleDependency(t *testing.T) {
	r1 := newDB("R1", "http://ex/r1", rec("pkgA", "1.0.0"))
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Found) != 1 {
		t.Fatalf("found = %d, want 1", len(result.Found))
	}
	rd := result.Found[0]
	if rd.Name != "pkgA" || !rd.Version.Equal(version.MustParse("1.0.0")) {
		t.Errorf("got %+v", rd)
	}
	if rd.Source.Kind != model.SourceRepository || rd.Source.RepositoryURL != "http://ex/r1" {
		t.Errorf("source = %+v", rd.Source)
	}
}

// S2: transitive dependency pkgB (>= 2.0) required by pkgA.
func TestResolveTransitiveDependency(t *testing.T) {
	req, _ := version.ParseRequirement(">= 2.0")
	r1 := newDB("R1", "http://ex/r1",
		rec("pkgA", "1.0.0", model.Pinned("pkgB", req)),
		rec("pkgB", "2.1.0"),
	)
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := names(result.Found); len(got) != 2 || got[0] != "pkgA" || got[1] != "pkgB" {
		t.Fatalf("found = %v, want [pkgA pkgB]", got)
	}
}

// S3: repository pin picks the pinned repository's version even though an
// earlier repository also has the package.
func TestResolveRepositoryPin(t *testing.T) {
	r1 := newDB("R1", "http://ex/r1", rec("pkgA", "1.0.0"))
	r2 := newDB("R2", "http://ex/r2", rec("pkgA", "0.9.0"))
	rslv := &Resolver{Repos: []RepoEntry{r1, r2}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA", Repository: "R2"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Found) != 1 || !result.Found[0].Version.Equal(version.MustParse("0.9.0")) {
		t.Fatalf("got %+v", result.Found)
	}
}

// S4 / property 8: a lockfile entry short-circuits the repository lookup.
func TestResolveLockfileSeed(t *testing.T) {
	r1 := newDB("R1", "http://ex/r1", rec("pkgA", "1.0.1"))
	lock := &model.Lockfile{Packages: []model.LockedPackage{
		{Name: "pkgA", Version: version.MustParse("1.0.0"), Source: model.RepositorySource("http://ex/r1")},
	}}
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0"), Lockfile: lock}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Found) != 1 || !result.Found[0].Version.Equal(version.MustParse("1.0.0")) {
		t.Fatalf("expected the lockfile's 1.0.0, got %+v", result.Found)
	}
	if !result.Found[0].FromLockfile {
		t.Errorf("expected FromLockfile = true")
	}
}

// S5: two dependents require incompatible versions of the same package.
func TestResolveConflictDiagnosis(t *testing.T) {
	reqC1, _ := version.ParseRequirement("== 1.0")
	reqC2, _ := version.ParseRequirement("== 2.0")
	r1 := newDB("R1", "http://ex/r1",
		rec("pkgA", "1.0", model.Pinned("C", reqC1)),
		rec("pkgB", "1.0", model.Pinned("C", reqC2)),
		rec("C", "1.0"),
		rec("C", "2.0"),
	)
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}, {Name: "pkgB"}})
	if err == nil {
		t.Fatalf("expected a conflict error, got result %+v", result)
	}
	if len(result.Conflict) == 0 {
		t.Fatalf("expected a non-empty conflict diagnosis")
	}
	reqs := result.Conflict["C"]
	if len(reqs) != 2 {
		t.Fatalf("conflict[C] = %v, want exactly 2 offending requirements", reqs)
	}
}

// Property 9: an unresolvable dependency is reported in Failed, and
// resolution continues past it rather than aborting.
func TestResolveUnresolvedDoesNotShortCircuit(t *testing.T) {
	r1 := newDB("R1", "http://ex/r1", rec("pkgA", "1.0.0"))
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}, {Name: "missing"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Found) != 1 || result.Found[0].Name != "pkgA" {
		t.Fatalf("expected pkgA to resolve, got %+v", result.Found)
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != "missing" {
		t.Fatalf("expected missing to be unresolved, got %+v", result.Failed)
	}
	if !result.Failed[0].IsDirect() {
		t.Errorf("expected missing to be a direct manifest dependency")
	}
}

// Core/recommended names are excluded from planning even when a package
// lists them as a dependency.
func TestResolveExcludesCoreDependencies(t *testing.T) {
	r1 := newDB("R1", "http://ex/r1", rec("pkgA", "1.0.0", model.Simple("stats"), model.Simple("MASS")))
	rslv := &Resolver{Repos: []RepoEntry{r1}, LanguageVersion: version.MustParse("4.3.0")}

	result, err := rslv.Resolve(context.Background(), []model.ManifestDependency{{Name: "pkgA"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Found) != 1 {
		t.Fatalf("found = %v, want just pkgA (stats/MASS excluded)", result.Found)
	}
}
