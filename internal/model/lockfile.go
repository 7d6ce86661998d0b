package model

import (
	"sort"

	"github.com/a2-ai/rv/internal/version"
)

// LockedPackage is one "[[package]]" record in a Lockfile.
type LockedPackage struct {
	Name            string
	Version         version.Version
	Source          Source
	Dependencies    []string
	Suggests        []string
	ForceSource     bool
	InstallSuggests bool
	Path            string // optional, set for Local sources
}

// Lockfile is the canonical record of a successful resolution: a language
// version plus an ordered list of Locked Package records. Canonical order
// is alphabetical by name; Equal compares structurally, independent of the
// slice's current order.
type Lockfile struct {
	LanguageVersion version.Version
	Packages        []LockedPackage
}

// Sort puts Packages into canonical (alphabetical by name) order.
func (l *Lockfile) Sort() {
	sort.Slice(l.Packages, func(i, j int) bool {
		return l.Packages[i].Name < l.Packages[j].Name
	})
}

// Get returns the locked package with the given name, or false.
func (l *Lockfile) Get(name string) (LockedPackage, bool) {
	for _, p := range l.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return LockedPackage{}, false
}

// Equal reports structural equality modulo ordering.
func (l *Lockfile) Equal(other *Lockfile) bool {
	if other == nil {
		return false
	}
	if !l.LanguageVersion.Equal(other.LanguageVersion) {
		return false
	}
	if len(l.Packages) != len(other.Packages) {
		return false
	}
	a := append([]LockedPackage(nil), l.Packages...)
	b := append([]LockedPackage(nil), other.Packages...)
	sort.Slice(a, func(i, j int) bool { return a[i].Name < a[j].Name })
	sort.Slice(b, func(i, j int) bool { return b[i].Name < b[j].Name })
	for i := range a {
		if !lockedPackageEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func lockedPackageEqual(a, b LockedPackage) bool {
	if a.Name != b.Name || !a.Version.Equal(b.Version) || a.Source.String() != b.Source.String() {
		return false
	}
	if a.ForceSource != b.ForceSource || a.InstallSuggests != b.InstallSuggests || a.Path != b.Path {
		return false
	}
	return stringSliceEqual(a.Dependencies, b.Dependencies) && stringSliceEqual(a.Suggests, b.Suggests)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SeedsManifest reports whether every dependency in deps has a
// source-compatible record in the lockfile, i.e. whether the lockfile can
// fully seed a resolution without any repository lookup.
func (l *Lockfile) SeedsManifest(deps []ManifestDependency) bool {
	for _, d := range deps {
		locked, ok := l.Get(d.Name)
		if !ok {
			return false
		}
		if d.SourceKind() != SourceRepository && d.SourceKind() != locked.Source.Kind {
			return false
		}
	}
	return true
}
