package source

import (
	"context"
	"path/filepath"

	"github.com/Masterminds/vcs"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/link"
	"github.com/a2-ai/rv/internal/model"
)

// GitAdapter clones (or reuses) a git checkout at a pinned sha, optionally
// descends into a subdirectory, builds, and always links the resulting
// binary extract into the library. Cloning uses Masterminds/vcs
// (vcs.NewGitRepo, then Get/Update/UpdateVersion) rather than shelling out
// to git directly.
type GitAdapter struct{}

func (a *GitAdapter) Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error) {
	layout := facade.Local
	clonePath := layout.GitClonePath(dep.Source.GitURL)
	buildDir := filepath.Join(layout.GitBuildPath(dep.Source.GitURL, dep.Source.GitSHA), dep.Name)
	target := filepath.Join(libraryDir, dep.Name)

	if isDir(buildDir) {
		return a.link(buildDir, target, dep)
	}

	repo, err := vcs.NewGitRepo(dep.Source.GitURL, clonePath)
	if err != nil {
		return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, apperr.UnwrapVCS(err).Error())
	}

	if repo.CheckLocal() {
		if err := repo.Update(); err != nil {
			return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, apperr.UnwrapVCS(err).Error())
		}
	} else {
		if err := repo.Get(); err != nil {
			return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, apperr.UnwrapVCS(err).Error())
		}
	}

	if err := repo.UpdateVersion(dep.Source.GitSHA); err != nil {
		return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, apperr.UnwrapVCS(err).Error())
	}

	sourceDir := clonePath
	if dep.Source.GitDirectory != "" {
		sourceDir = filepath.Join(clonePath, dep.Source.GitDirectory)
	}

	if err := runner.Run(ctx, sourceDir, buildDir, configureArgs); err != nil {
		return Installed{}, &apperr.BuildError{Package: dep.Name, ExitCode: -1, Stderr: err.Error()}
	}

	return a.link(buildDir, target, dep)
}

func (a *GitAdapter) link(buildDir, target string, dep *model.ResolvedDependency) (Installed, error) {
	_, err := link.Place(link.DefaultStrategy(), buildDir, target)
	if err != nil {
		return Installed{}, apperr.New(apperr.KindLinkFailure, dep.Name, err.Error())
	}
	meta := model.ShaMetadata(dep.Source.GitSHA)
	return Installed{LibraryPath: target, Kind: model.KindBinary, Metadata: &meta}, nil
}
