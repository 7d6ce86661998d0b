package model

import "github.com/a2-ai/rv/internal/version"

// PackageRecord is a single entry in a Repository Database.
type PackageRecord struct {
	Name    string
	Version version.Version

	// LanguageRequirement is optional: the 'R' (or core-language) entry
	// lifted out of the Depends line by the Package Index Parser.
	LanguageRequirement *version.Requirement

	Depends   []Dependency
	Imports   []Dependency
	LinkingTo []Dependency
	Suggests  []Dependency

	License          string
	ContentDigest    string
	PathPrefix       string // optional relative path prefix within the repo
	Recommended      bool
	NeedsCompilation bool

	// Remotes maps a name to an external source pointer advertised by the
	// repository index as an alternative upstream for that dependency.
	Remotes map[string]Source
}

// AllDependencies returns depends+imports+linking-to in that order, with
// core/recommended names filtered out, as installation planning needs.
func (p *PackageRecord) AllDependencies() []Dependency {
	all := make([]Dependency, 0, len(p.Depends)+len(p.Imports)+len(p.LinkingTo))
	all = append(all, p.Depends...)
	all = append(all, p.Imports...)
	all = append(all, p.LinkingTo...)
	return FilterInstallable(all)
}

// PackageKind distinguishes a Source-kind (must be compiled) record from a
// Binary-kind (pre-built) one, per GLOSSARY.
type PackageKind int

const (
	KindSource PackageKind = iota
	KindBinary
)

func (k PackageKind) String() string {
	if k == KindBinary {
		return "binary"
	}
	return "source"
}
