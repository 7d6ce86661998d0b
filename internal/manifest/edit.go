// Package manifest mutates an in-memory model.Manifest's dependency list,
// the way the original add.rs/dependency_edit.rs sources manipulate a
// parsed manifest before re-serialising it, without going anywhere near the
// TOML encoding itself (that stays internal/cfg's job).
package manifest

import "github.com/a2-ai/rv/internal/model"

// AddDependency appends dep to m, replacing any existing entry with the
// same name. It reports whether an existing entry was replaced, so a
// caller can decide whether to warn about an overwrite.
func AddDependency(m *model.Manifest, dep model.ManifestDependency) (replaced bool) {
	for i, d := range m.Dependencies {
		if d.Name == dep.Name {
			m.Dependencies[i] = dep
			return true
		}
	}
	m.Dependencies = append(m.Dependencies, dep)
	return false
}

// RemoveDependency deletes the dependency named name from m, if present,
// reporting whether anything was removed.
func RemoveDependency(m *model.Manifest, name string) (removed bool) {
	for i, d := range m.Dependencies {
		if d.Name == name {
			m.Dependencies = append(m.Dependencies[:i], m.Dependencies[i+1:]...)
			return true
		}
	}
	return false
}

// AddRepository appends repo to m, replacing any existing entry with the
// same alias.
func AddRepository(m *model.Manifest, repo model.RepositoryConfig) (replaced bool) {
	for i, r := range m.Repositories {
		if r.Alias == repo.Alias {
			m.Repositories[i] = repo
			return true
		}
	}
	m.Repositories = append(m.Repositories, repo)
	return false
}
