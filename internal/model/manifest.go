package model

import "github.com/a2-ai/rv/internal/version"

// RepositoryConfig is one entry in a manifest's ordered repository list.
// Earlier entries win ties during resolution.
type RepositoryConfig struct {
	Alias       string
	URL         string
	ForceSource bool
}

// GitPin captures exactly one of commit/tag/branch for a git dependency
// entry.
type GitPin struct {
	URL       string
	Commit    string
	Tag       string
	Branch    string
	Directory string
}

// Ref renders the pin as a GitRef for a Source/ResolvedDependency.
func (g GitPin) Ref() GitRef {
	return GitRef{Branch: g.Branch, Tag: g.Tag, Commit: g.Commit}
}

// Pinned returns whichever of commit/tag/branch is set, preferring commit,
// then tag, then branch — the order a resolver should try to resolve a ref
// to a concrete sha.
func (g GitPin) Pinned() string {
	switch {
	case g.Commit != "":
		return g.Commit
	case g.Tag != "":
		return g.Tag
	default:
		return g.Branch
	}
}

// ManifestDependency is one entry in "project.dependencies": a bare name,
// or a name with a repository pin / git pin / local path / url. At most
// one of Git/Path/URL is set; when none are set the dependency is resolved
// through Repositories.
type ManifestDependency struct {
	Name string

	// Repository, when non-empty, pins resolution to the repository with
	// this alias.
	Repository string

	InstallSuggestions bool
	ForceSource        bool
	// DependenciesOnly excludes Name itself from installation while still
	// resolving and installing its dependency closure.
	DependenciesOnly bool

	Git  *GitPin
	Path string
	URL  string
}

// SourceKind classifies which adapter variant a manifest entry resolves
// through, independent of any repository database lookup.
func (d ManifestDependency) SourceKind() SourceKind {
	switch {
	case d.Git != nil:
		return SourceGit
	case d.Path != "":
		return SourceLocal
	case d.URL != "":
		return SourceURL
	default:
		return SourceRepository
	}
}

// Manifest is the parsed project manifest.
type Manifest struct {
	ProjectName  string
	RVersion     version.Version
	Repositories []RepositoryConfig
	Dependencies []ManifestDependency
}

// RepositoryByAlias returns the configured repository with the given
// alias, or false if none matches.
func (m *Manifest) RepositoryByAlias(alias string) (RepositoryConfig, bool) {
	for _, r := range m.Repositories {
		if r.Alias == alias {
			return r, true
		}
	}
	return RepositoryConfig{}, false
}

// DependencyByName returns the manifest dependency entry with the given
// name, or false if none matches.
func (m *Manifest) DependencyByName(name string) (ManifestDependency, bool) {
	for _, d := range m.Dependencies {
		if d.Name == name {
			return d, true
		}
	}
	return ManifestDependency{}, false
}
