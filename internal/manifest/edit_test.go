package manifest

import (
	"testing"

	"github.com/a2-ai/rv/internal/model"
)

func TestAddDependencyAppendsAndReplaces(t *testing.T) {
	m := &model.Manifest{}

	if replaced := AddDependency(m, model.ManifestDependency{Name: "dplyr"}); replaced {
		t.Fatal("expected first add to not replace anything")
	}
	if len(m.Dependencies) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(m.Dependencies))
	}

	if replaced := AddDependency(m, model.ManifestDependency{Name: "dplyr", Repository: "CRAN"}); !replaced {
		t.Fatal("expected second add of the same name to replace")
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Repository != "CRAN" {
		t.Fatalf("expected dplyr to be replaced in place, got %+v", m.Dependencies)
	}
}

func TestRemoveDependency(t *testing.T) {
	m := &model.Manifest{Dependencies: []model.ManifestDependency{{Name: "a"}, {Name: "b"}}}

	if !RemoveDependency(m, "a") {
		t.Fatal("expected removal of a to succeed")
	}
	if len(m.Dependencies) != 1 || m.Dependencies[0].Name != "b" {
		t.Fatalf("unexpected dependencies after removal: %+v", m.Dependencies)
	}
	if RemoveDependency(m, "missing") {
		t.Fatal("expected removal of a missing name to report false")
	}
}

func TestAddRepositoryReplacesByAlias(t *testing.T) {
	m := &model.Manifest{}
	AddRepository(m, model.RepositoryConfig{Alias: "CRAN", URL: "https://cran.r-project.org"})
	if replaced := AddRepository(m, model.RepositoryConfig{Alias: "CRAN", URL: "https://cran.rstudio.com"}); !replaced {
		t.Fatal("expected replace")
	}
	if m.Repositories[0].URL != "https://cran.rstudio.com" {
		t.Fatalf("unexpected repositories: %+v", m.Repositories)
	}
}
