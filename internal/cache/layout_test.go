package cache

import (
	"path/filepath"
	"testing"

	"github.com/a2-ai/rv/internal/version"
)

func TestLayoutPathsAreDeterministic(t *testing.T) {
	l := New("/cacheroot", Platform{Family: "linux", Codename: "jammy", Arch: "x86_64"}, version.MustParse("4.3.0"))

	p1 := l.IndexPath("http://example.com/repo")
	p2 := l.IndexPath("http://example.com/repo")
	if p1 != p2 {
		t.Fatalf("IndexPath not deterministic: %q != %q", p1, p2)
	}
	if filepath.Base(p1) != "packages.bin" {
		t.Errorf("IndexPath base = %q, want packages.bin", filepath.Base(p1))
	}

	other := l.IndexPath("http://example.com/other")
	if p1 == other {
		t.Errorf("different URLs hashed to the same index path")
	}
}

func TestSourceAndBinaryPathsDiffer(t *testing.T) {
	l := New("/cacheroot", Platform{Family: "linux"}, version.MustParse("4.3.0"))
	v := version.MustParse("1.0.0")

	paths := l.PackagePaths("http://example.com/repo", "pkgA", v)
	if paths.Source == paths.Binary {
		t.Errorf("source and binary paths must differ")
	}
}

func TestGitBuildPathTruncatesSha(t *testing.T) {
	l := New("/cacheroot", Platform{Family: "linux"}, version.MustParse("4.3.0"))
	sha := "abcdef1234567890"
	p := l.GitBuildPath("https://github.com/foo/bar", sha)
	if filepath.Base(p) != sha[:10] {
		t.Errorf("GitBuildPath base = %q, want %q", filepath.Base(p), sha[:10])
	}
}
