package repodb

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

func sampleDB() *Database {
	db := New("CRAN")
	db.URL = "https://cran.r-project.org"
	db.SourceURL = "https://cran.r-project.org/src/contrib"
	db.BinaryURL = "https://cran.r-project.org/bin/linux/jammy/4.3"

	req := mustReqForCodec("<= 4.5.0")
	db.AddSource(&model.PackageRecord{
		Name:                "dplyr",
		Version:             version.MustParse("1.1.4"),
		LanguageRequirement: req,
		Depends:             []model.Dependency{model.Simple("R"), model.Pinned("rlang", *mustReqForCodec(">= 1.0.0"))},
		License:             "MIT",
		ContentDigest:       "deadbeef",
		Recommended:         false,
		NeedsCompilation:    true,
		Remotes: map[string]model.Source{
			"rlang": model.GitSource("https://github.com/r-lib/rlang", "abc123", "", model.GitRef{}),
		},
	})
	db.AddBinary(4, 3, &model.PackageRecord{
		Name:    "dplyr",
		Version: version.MustParse("1.1.4"),
	})
	return db
}

func mustReqForCodec(s string) *version.Requirement {
	req, err := version.ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return &req
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	db := sampleDB()

	var buf bytes.Buffer
	if err := encode(db, &buf); err != nil {
		t.Fatal(err)
	}

	decoded, err := decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if decoded.Name != db.Name || decoded.URL != db.URL {
		t.Fatalf("identity fields mismatch: %+v", decoded)
	}

	recs := decoded.SourceRecords("dplyr")
	if len(recs) != 1 {
		t.Fatalf("expected 1 source record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Version.String() != "1.1.4" {
		t.Errorf("version mismatch: %s", rec.Version)
	}
	if rec.LanguageRequirement == nil || rec.LanguageRequirement.String() != "<= 4.5.0" {
		t.Errorf("language requirement mismatch: %v", rec.LanguageRequirement)
	}
	if len(rec.Depends) != 2 || rec.Depends[1].Req == nil {
		t.Fatalf("depends mismatch: %v", rec.Depends)
	}
	if rec.Remotes["rlang"].GitURL != "https://github.com/r-lib/rlang" {
		t.Errorf("remote mismatch: %+v", rec.Remotes["rlang"])
	}

	binRecs := decoded.BinaryRecords(4, 3, "dplyr")
	if len(binRecs) != 1 {
		t.Fatalf("expected 1 binary record, got %d", len(binRecs))
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	db := sampleDB()
	path := filepath.Join(t.TempDir(), "packages.bin")
	if err := Persist(db, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "CRAN" {
		t.Errorf("expected name CRAN, got %q", loaded.Name)
	}
}

func TestLoadRejectsIncompatibleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.bin")
	if err := os.WriteFile(path, []byte{0xFF, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err != ErrIncompatibleFormat {
		t.Fatalf("expected ErrIncompatibleFormat, got %v", err)
	}
}
