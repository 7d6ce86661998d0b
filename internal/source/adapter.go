// Package source implements the five Source Adapter variants: Repository,
// Git, Local, Url, and Builtin. Every adapter shares one contract,
// install(dep, cache, library_dirs, build_runner, configure_args, cancel)
// -> (), expressed here as the Adapter interface with cancellation carried
// on the context rather than a bespoke token type.
package source

import (
	"context"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
)

// BuildRunner compiles a source extract into a binary extract. Its
// concrete implementation (invoking R CMD INSTALL or equivalent) lives
// outside this package; adapters only depend on the interface so they can
// be tested with a fake.
type BuildRunner interface {
	Run(ctx context.Context, sourceDir, destDir string, configureArgs []string) error
}

// Installed describes where an adapter placed its result, for the Sync
// Handler and Library Inspector to record.
type Installed struct {
	LibraryPath string
	Kind        model.PackageKind
	Metadata    *model.LocalMetadata // set for Local/Git/Url sources
}

// Adapter is the shared contract every Source variant implements.
type Adapter interface {
	Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error)
}

// ForSource returns the Adapter implementation for a Source's Kind.
func ForSource(src model.Source, platform cache.Platform, langVer func() (major, minor uint64), rewriter *BinaryURLRewriter) Adapter {
	switch src.Kind {
	case model.SourceGit:
		return &GitAdapter{}
	case model.SourceLocal:
		return &LocalAdapter{}
	case model.SourceURL:
		return &URLAdapter{}
	case model.SourceBuiltin:
		return &BuiltinAdapter{}
	default:
		return &RepositoryAdapter{Platform: platform, Rewriter: rewriter}
	}
}
