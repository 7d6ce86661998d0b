package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIndexEntryFreshAndExpired(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	created := creationTime(statFile(t, path))

	state, err := IndexEntry(path, created.Add(5*time.Second), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if state != Existing {
		t.Errorf("expected Existing just after creation, got %v", state)
	}

	state, err = IndexEntry(path, created.Add(2*time.Hour), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if state != Expired {
		t.Errorf("expected Expired after timeout, got %v", state)
	}
}

func TestIndexEntryNotFound(t *testing.T) {
	state, err := IndexEntry(filepath.Join(t.TempDir(), "missing.bin"), time.Now(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if state != NotFound {
		t.Errorf("expected NotFound, got %v", state)
	}
}

func TestLoadOrExpireDeletesExpiredFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packages.bin")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	created := creationTime(statFile(t, path))

	state, err := LoadOrExpire(path, created.Add(2*time.Hour), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if state != NotFound {
		t.Errorf("expected NotFound after expiry, got %v", state)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected expired cache file to be deleted")
	}
}

func statFile(t *testing.T, path string) os.FileInfo {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return info
}
