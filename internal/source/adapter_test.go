package source

import (
	"testing"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
)

func TestForSourceDispatchesByKind(t *testing.T) {
	cases := []struct {
		kind model.SourceKind
		want interface{}
	}{
		{model.SourceRepository, &RepositoryAdapter{}},
		{model.SourceGit, &GitAdapter{}},
		{model.SourceLocal, &LocalAdapter{}},
		{model.SourceURL, &URLAdapter{}},
		{model.SourceBuiltin, &BuiltinAdapter{}},
	}

	for _, c := range cases {
		got := ForSource(model.Source{Kind: c.kind}, cache.Platform{}, nil, nil)
		switch c.want.(type) {
		case *RepositoryAdapter:
			if _, ok := got.(*RepositoryAdapter); !ok {
				t.Errorf("kind %v: got %T, want *RepositoryAdapter", c.kind, got)
			}
		case *GitAdapter:
			if _, ok := got.(*GitAdapter); !ok {
				t.Errorf("kind %v: got %T, want *GitAdapter", c.kind, got)
			}
		case *LocalAdapter:
			if _, ok := got.(*LocalAdapter); !ok {
				t.Errorf("kind %v: got %T, want *LocalAdapter", c.kind, got)
			}
		case *URLAdapter:
			if _, ok := got.(*URLAdapter); !ok {
				t.Errorf("kind %v: got %T, want *URLAdapter", c.kind, got)
			}
		case *BuiltinAdapter:
			if _, ok := got.(*BuiltinAdapter); !ok {
				t.Errorf("kind %v: got %T, want *BuiltinAdapter", c.kind, got)
			}
		}
	}
}

func TestBuiltinAdapterIsNoop(t *testing.T) {
	a := &BuiltinAdapter{}
	dep := &model.ResolvedDependency{Name: "base", Source: model.BuiltinSource()}
	installed, err := a.Install(nil, dep, nil, "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installed.Kind != model.KindBinary {
		t.Errorf("Kind = %v, want KindBinary", installed.Kind)
	}
	if installed.LibraryPath != "" {
		t.Errorf("LibraryPath = %q, want empty", installed.LibraryPath)
	}
}

func TestBinaryURLRewriterGatedByFlag(t *testing.T) {
	r := &BinaryURLRewriter{Host: "https://packagemanager.posit.co/cran"}
	platform := cache.Platform{Family: "linux", Codename: "jammy"}

	if _, rewrote := r.Rewrite("https://packagemanager.posit.co/cran/latest", platform); rewrote {
		t.Errorf("expected no rewrite when AdvertisesMatchingDistro is false")
	}

	r.AdvertisesMatchingDistro = true
	got, rewrote := r.Rewrite("https://packagemanager.posit.co/cran/latest", platform)
	if !rewrote {
		t.Fatalf("expected rewrite when AdvertisesMatchingDistro is true")
	}
	if got == "https://packagemanager.posit.co/cran/latest" {
		t.Errorf("rewritten URL should differ from base")
	}
}

func TestBinaryURLRewriterIgnoresUnrelatedHost(t *testing.T) {
	r := &BinaryURLRewriter{Host: "https://packagemanager.posit.co/cran", AdvertisesMatchingDistro: true}
	base := "https://cran.r-project.org/src/contrib"
	got, rewrote := r.Rewrite(base, cache.Platform{Family: "linux", Codename: "jammy"})
	if rewrote || got != base {
		t.Errorf("rewriter should leave an unrelated host untouched")
	}
}
