package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

func writeDescription(t *testing.T, dir, name, ver string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "Package: " + name + "\nVersion: " + ver + "\n"
	if err := os.WriteFile(filepath.Join(dir, descriptorFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestInspectClassifiesRepoPackages(t *testing.T) {
	root := t.TempDir()
	writeDescription(t, filepath.Join(root, "dplyr"), "dplyr", "1.1.4")

	lib, err := Inspect(root)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := lib.Packages["dplyr"]
	if !ok {
		t.Fatalf("expected dplyr in Packages, got %+v", lib.Packages)
	}
	want := version.MustParse("1.1.4")
	if !v.Equal(want) {
		t.Errorf("version = %v, want %v", v, want)
	}
	if !lib.Has("dplyr") {
		t.Error("Has(dplyr) = false")
	}
}

func TestInspectClassifiesNonRepoPackagesBySidecar(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "mypkg")
	writeDescription(t, pkgDir, "mypkg", "0.1.0")
	if err := WriteMetadata(pkgDir, model.ShaMetadata("abc123")); err != nil {
		t.Fatal(err)
	}

	lib, err := Inspect(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lib.Packages["mypkg"]; ok {
		t.Error("mypkg should not be classified as a repository package")
	}
	meta, ok := lib.NonRepoPackages["mypkg"]
	if !ok {
		t.Fatalf("expected mypkg in NonRepoPackages")
	}
	if meta.Kind != model.MetadataSha || meta.Sha != "abc123" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestInspectMarksMissingDescriptorAsBroken(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "broken"), 0o755); err != nil {
		t.Fatal(err)
	}

	lib, err := Inspect(root)
	if err != nil {
		t.Fatal(err)
	}
	if !lib.Broken["broken"] {
		t.Error("expected broken entry to be marked Broken")
	}
	if !lib.Has("broken") {
		t.Error("Has(broken) = false")
	}
}

func TestInspectMissingDirReturnsEmptyLibrary(t *testing.T) {
	lib, err := Inspect(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatal(err)
	}
	if lib.Has("anything") {
		t.Error("expected empty library")
	}
}

func TestContainsPackageRepositorySource(t *testing.T) {
	root := t.TempDir()
	writeDescription(t, filepath.Join(root, "dplyr"), "dplyr", "1.1.4")
	lib, err := Inspect(root)
	if err != nil {
		t.Fatal(err)
	}

	dep := &model.ResolvedDependency{
		Name:    "dplyr",
		Version: version.MustParse("1.1.4"),
		Source:  model.RepositorySource("https://cran.example/cran"),
	}
	ok, err := ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected ContainsPackage to be true for matching version")
	}

	dep.Version = version.MustParse("2.0.0")
	ok, err = ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected ContainsPackage to be false for mismatched version")
	}
}

func TestContainsPackageGitSource(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "gitpkg")
	writeDescription(t, pkgDir, "gitpkg", "0.0.1")
	if err := WriteMetadata(pkgDir, model.ShaMetadata("deadbeef")); err != nil {
		t.Fatal(err)
	}
	lib, err := Inspect(root)
	if err != nil {
		t.Fatal(err)
	}

	dep := &model.ResolvedDependency{
		Name:   "gitpkg",
		Source: model.GitSource("https://example.com/repo.git", "deadbeef", "", model.GitRef{}),
	}
	ok, err := ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected matching git sha to be contained")
	}

	dep.Source.GitSHA = "other"
	ok, err = ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected mismatched git sha to not be contained")
	}
}

func TestContainsPackageLocalDirectorySource(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "srcpkg")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "R.R"), []byte("f <- function() 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	libDir := t.TempDir()
	pkgDir := filepath.Join(libDir, "srcpkg")
	writeDescription(t, pkgDir, "srcpkg", "0.1.0")

	mtime, err := recursiveMtime(srcDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteMetadata(pkgDir, model.MtimeMetadata(mtime)); err != nil {
		t.Fatal(err)
	}

	lib, err := Inspect(libDir)
	if err != nil {
		t.Fatal(err)
	}

	dep := &model.ResolvedDependency{
		Name:   "srcpkg",
		Source: model.LocalSource(srcDir, ""),
	}
	ok, err := ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected matching mtime to be contained")
	}

	// Touch the source tree later; the stored mtime is now stale.
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(srcDir, "R.R"), later, later); err != nil {
		t.Fatal(err)
	}
	ok, err = ContainsPackage(lib, dep, root)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected stale mtime to make ContainsPackage false")
	}
}
