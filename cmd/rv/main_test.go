package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesManifest(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var stdout, stderr bytes.Buffer
	code := run([]string{"rv", "init", "-name", "demo", "-r-version", "4.3.0"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("init exited %d, stderr: %s", code, stderr.String())
	}

	b, err := os.ReadFile(filepath.Join(dir, "rv.toml"))
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	if !strings.Contains(string(b), `name = 'demo'`) {
		t.Fatalf("manifest missing project name:\n%s", b)
	}
	if !strings.Contains(string(b), `r_version = '4.3.0'`) {
		t.Fatalf("manifest missing r_version:\n%s", b)
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"rv", "init"}, &stdout, &stderr); code != 0 {
		t.Fatalf("first init exited %d", code)
	}
	if code := run([]string{"rv", "init"}, &stdout, &stderr); code == 0 {
		t.Fatal("expected second init to fail")
	}
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"rv", "bogus"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1 for unknown command, got %d", code)
	}
}

func TestActivateWritesRprofile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"rv", "activate"}, &stdout, &stderr); code != 0 {
		t.Fatalf("activate exited %d, stderr: %s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, ".Rprofile")); err != nil {
		t.Fatalf("expected .Rprofile to exist: %v", err)
	}
}

func TestMigrateImportsRenvLock(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"rv", "init"}, &stdout, &stderr); code != 0 {
		t.Fatalf("init exited %d, stderr: %s", code, stderr.String())
	}

	renvLock := `{
  "R": {"Version": "4.3.0", "Repositories": [{"Name": "CRAN", "URL": "https://cran.r-project.org"}]},
  "Packages": {"dplyr": {"Package": "dplyr", "Version": "1.1.2", "Source": "Repository", "Repository": "CRAN"}}
}`
	if err := os.WriteFile(filepath.Join(dir, "renv.lock"), []byte(renvLock), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout.Reset()
	if code := run([]string{"rv", "migrate"}, &stdout, &stderr); code != 0 {
		t.Fatalf("migrate exited %d, stderr: %s", code, stderr.String())
	}

	b, err := os.ReadFile(filepath.Join(dir, "rv.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `name = 'dplyr'`) {
		t.Fatalf("manifest missing migrated dependency:\n%s", b)
	}
}
