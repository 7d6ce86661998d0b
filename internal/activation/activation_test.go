package activation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestActivateWritesScriptAndRprofile(t *testing.T) {
	dir := t.TempDir()
	if err := Activate(dir); err != nil {
		t.Fatal(err)
	}

	scriptPath := filepath.Join(dir, ScriptPath)
	if _, err := os.Stat(scriptPath); err != nil {
		t.Fatalf("expected activation script to exist: %v", err)
	}

	rprofile, err := os.ReadFile(filepath.Join(dir, ".Rprofile"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(rprofile), sourceLine) {
		t.Fatalf(".Rprofile missing source line:\n%s", rprofile)
	}
}

func TestActivateIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := Activate(dir); err != nil {
		t.Fatal(err)
	}
	if err := Activate(dir); err != nil {
		t.Fatal(err)
	}
	rprofile, err := os.ReadFile(filepath.Join(dir, ".Rprofile"))
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(rprofile), sourceLine); n != 1 {
		t.Fatalf("expected source line exactly once, appeared %d times:\n%s", n, rprofile)
	}
}

func TestDeactivateRemovesSourceLine(t *testing.T) {
	dir := t.TempDir()
	if err := Activate(dir); err != nil {
		t.Fatal(err)
	}
	if err := Deactivate(dir); err != nil {
		t.Fatal(err)
	}
	rprofile, err := os.ReadFile(filepath.Join(dir, ".Rprofile"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(rprofile), sourceLine) {
		t.Fatalf("expected source line removed:\n%s", rprofile)
	}
}

func TestDeactivateOnMissingRprofileIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := Deactivate(dir); err != nil {
		t.Fatal(err)
	}
}

func TestActivateRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notadir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Activate(file); err == nil {
		t.Fatal("expected error activating a non-directory")
	}
}
