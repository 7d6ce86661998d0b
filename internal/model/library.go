package model

import "github.com/a2-ai/rv/internal/version"

// LocalMetadataKind discriminates the LocalMetadata variant.
type LocalMetadataKind int

const (
	MetadataMtime LocalMetadataKind = iota
	MetadataSha
)

// LocalMetadata records provenance for a non-repository-sourced package so
// the Library Inspector can tell a stale copy from a current one.
type LocalMetadata struct {
	Kind  LocalMetadataKind
	Mtime int64
	Sha   string
}

func MtimeMetadata(mtime int64) LocalMetadata {
	return LocalMetadata{Kind: MetadataMtime, Mtime: mtime}
}

func ShaMetadata(sha string) LocalMetadata {
	return LocalMetadata{Kind: MetadataSha, Sha: sha}
}

func (m LocalMetadata) Equal(other LocalMetadata) bool {
	if m.Kind != other.Kind {
		return false
	}
	if m.Kind == MetadataMtime {
		return m.Mtime == other.Mtime
	}
	return m.Sha == other.Sha
}

// Library is the project-scoped directory of installed packages.
// Packages installed from a repository are keyed by version in Packages;
// everything else (git/local/url sources) carries its provenance in
// NonRepoPackages instead. Broken holds the names of entries present on
// disk without a readable package-descriptor file.
type Library struct {
	Dir             string
	Packages        map[string]version.Version
	NonRepoPackages map[string]LocalMetadata
	Broken          map[string]bool
}

func NewLibrary(dir string) *Library {
	return &Library{
		Dir:             dir,
		Packages:        map[string]version.Version{},
		NonRepoPackages: map[string]LocalMetadata{},
		Broken:          map[string]bool{},
	}
}

// Has reports whether name is present in the library at all (repo-sourced,
// non-repo-sourced, or broken).
func (l *Library) Has(name string) bool {
	if _, ok := l.Packages[name]; ok {
		return true
	}
	if _, ok := l.NonRepoPackages[name]; ok {
		return true
	}
	return l.Broken[name]
}
