package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// writeFixturePackage writes a minimal installable package directory (a
// DESCRIPTION file and nothing under src/ or R/, so the Local adapter
// treats it as already binary and never invokes a build runner).
func writeFixturePackage(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o777); err != nil {
		t.Fatal(err)
	}
	body := "Package: " + name + "\nVersion: 1.0.0\n"
	if err := os.WriteFile(filepath.Join(dir, "DESCRIPTION"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestHandler(t *testing.T, projectDir string, lib *model.Library) *Handler {
	t.Helper()
	cacheRoot := t.TempDir()
	facade, err := cache.NewFacade(cache.Layout{Root: cacheRoot}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &Handler{
		ProjectDir: projectDir,
		LibraryDir: lib.Dir,
		StagingDir: filepath.Join(filepath.Dir(lib.Dir), "staging"),
		Library:    lib,
		Cache:      facade,
		Workers:    2,
	}
}

// runWithDeadline guards against the exact deadlock this test was added
// to catch: a hung Run would otherwise block "go test" forever.
func runWithDeadline(t *testing.T, h *Handler, resolved []*model.ResolvedDependency) (*Result, error) {
	t.Helper()
	type outcome struct {
		res *Result
		err error
	}
	out := make(chan outcome, 1)
	go func() {
		res, err := h.Run(context.Background(), resolved, nil)
		out <- outcome{res, err}
	}()
	select {
	case o := <-out:
		return o.res, o.err
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return; suspected worker-pool deadlock")
		return nil, nil
	}
}

// A library that already contains one correctly-installed repository
// package, plus one new local-source package still to install, must not
// deadlock: the already-seen package produces no done event, so the
// consume loop's target must already account for it (property 2: planner
// liveness under partial progress).
func TestRunPartialInstallDoesNotDeadlock(t *testing.T) {
	projectDir := t.TempDir()
	libraryRoot := t.TempDir()
	libraryDir := filepath.Join(libraryRoot, "library")

	writeFixturePackage(t, filepath.Join(libraryDir, "existing"), "existing")

	lib := model.NewLibrary(libraryDir)
	lib.Packages["existing"] = version.MustParse("1.0.0")

	h := newTestHandler(t, projectDir, lib)

	fixtureDir := filepath.Join(t.TempDir(), "newpkg-src")
	writeFixturePackage(t, fixtureDir, "newpkg")

	resolved := []*model.ResolvedDependency{
		{Name: "existing", Version: version.MustParse("1.0.0"), Source: model.RepositorySource("http://example.test/repo")},
		{Name: "newpkg", Version: version.MustParse("1.0.0"), Source: model.LocalSource(fixtureDir, "")},
	}

	result, err := runWithDeadline(t, h, resolved)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Name != "newpkg" {
		t.Fatalf("Changes = %+v, want exactly one install of newpkg", result.Changes)
	}
	if _, err := os.Stat(filepath.Join(libraryDir, "newpkg", "DESCRIPTION")); err != nil {
		t.Errorf("expected newpkg installed into library: %v", err)
	}
	if _, err := os.Stat(h.StagingDir); !os.IsNotExist(err) {
		t.Errorf("expected staging directory removed after promotion, got err=%v", err)
	}
}

// A forced failure in one worker must leave the library untouched and
// remove the staging directory (property 11: sync atomicity).
func TestRunForcedFailureLeavesLibraryUntouched(t *testing.T) {
	projectDir := t.TempDir()
	libraryRoot := t.TempDir()
	libraryDir := filepath.Join(libraryRoot, "library")

	writeFixturePackage(t, filepath.Join(libraryDir, "existing"), "existing")

	lib := model.NewLibrary(libraryDir)
	lib.Packages["existing"] = version.MustParse("1.0.0")

	h := newTestHandler(t, projectDir, lib)

	before, err := os.ReadDir(libraryDir)
	if err != nil {
		t.Fatal(err)
	}

	resolved := []*model.ResolvedDependency{
		{Name: "existing", Version: version.MustParse("1.0.0"), Source: model.RepositorySource("http://example.test/repo")},
		{Name: "broken", Version: version.MustParse("1.0.0"), Source: model.LocalSource(filepath.Join(projectDir, "does-not-exist"), "")},
	}

	_, err = runWithDeadline(t, h, resolved)
	if err == nil {
		t.Fatal("expected Run to fail for a missing local source")
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindBuildFailure {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(libraryDir, "broken")); !os.IsNotExist(err) {
		t.Errorf("expected no trace of the failed package in the library, got err=%v", err)
	}
	after, err := os.ReadDir(libraryDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("library contents changed: before=%v after=%v", before, after)
	}
	if _, err := os.Stat(h.StagingDir); !os.IsNotExist(err) {
		t.Errorf("expected staging directory removed after failure, got err=%v", err)
	}
}

// A dry run reports the changes it would make without touching the
// library or leaving a staging directory behind.
func TestRunDryRunMakesNoChanges(t *testing.T) {
	projectDir := t.TempDir()
	libraryRoot := t.TempDir()
	libraryDir := filepath.Join(libraryRoot, "library")

	writeFixturePackage(t, filepath.Join(libraryDir, "stale"), "stale")

	lib := model.NewLibrary(libraryDir)
	lib.Packages["stale"] = version.MustParse("1.0.0")

	h := newTestHandler(t, projectDir, lib)
	h.DryRun = true

	// The manifest no longer lists "stale" at all (S6): nothing needs
	// installing, so the run takes the early-exit removal path.
	result, err := runWithDeadline(t, h, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(result.Changes) != 1 || result.Changes[0].Action != ActionRemoved || result.Changes[0].Name != "stale" {
		t.Fatalf("Changes = %+v, want exactly one reported removal of stale", result.Changes)
	}

	if _, err := os.Stat(filepath.Join(libraryDir, "stale")); err != nil {
		t.Errorf("dry run must not actually remove stale, got err=%v", err)
	}
	if _, err := os.Stat(h.StagingDir); !os.IsNotExist(err) {
		t.Errorf("expected no staging directory left behind, got err=%v", err)
	}
}
