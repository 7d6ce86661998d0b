package model

import "github.com/a2-ai/rv/internal/version"

// InstallStatus is the derived presence of a (repo, name, version) triple
// in the cache, or of a package in the library.
type InstallStatus int

const (
	Absent InstallStatus = iota
	HasSource
	HasBinary
	HasBoth
)

func CombineStatus(hasSource, hasBinary bool) InstallStatus {
	switch {
	case hasSource && hasBinary:
		return HasBoth
	case hasBinary:
		return HasBinary
	case hasSource:
		return HasSource
	default:
		return Absent
	}
}

// ResolvedDependency is one node produced by a Resolver pass.
type ResolvedDependency struct {
	Name    string
	Version version.Version
	Source  Source

	Dependencies []string
	Suggests     []string

	ForceSource      bool
	InstallSuggests  bool
	FromLockfile     bool
	Ignored          bool

	Kind   PackageKind
	Status InstallStatus

	// Subpath is set when the package's content lives under a prefix of
	// its source root (mirrors PackageRecord.PathPrefix / Source.GitDirectory).
	Subpath string
}

// UnresolvedDependency is emitted when the Resolver could not find a
// satisfying candidate for a requested name.
type UnresolvedDependency struct {
	Name    string
	Req     *version.Requirement
	Err     string
	Parent  string // empty if listed directly in the manifest
}

func (u UnresolvedDependency) IsDirect() bool { return u.Parent == "" }
