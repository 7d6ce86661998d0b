// Package migrate converts a foreign lockfile format into a Manifest, so a
// project that already pins its dependencies through another tool can be
// brought under this engine without hand-authoring rv.toml from scratch.
//
// This package supports exactly one format so far (renv.lock, the most
// common R dependency lock format) and keeps the door open for others
// behind the same Importer seam.
package migrate

import "github.com/a2-ai/rv/internal/model"

// Importer turns the bytes of a foreign lockfile into the manifest
// dependency entries and repositories it implies. Implementations never
// touch the filesystem themselves; callers read the file and hand over its
// contents as a byte slice.
type Importer interface {
	// Name identifies the foreign format, for CLI/log messages.
	Name() string
	// Import parses data and returns the repositories and dependencies a
	// Manifest built from it should carry.
	Import(data []byte) ([]model.RepositoryConfig, []model.ManifestDependency, error)
}

// Importers lists the formats this package knows how to read.
var Importers = []Importer{
	RenvLockImporter{},
}
