package source

import (
	"context"
	"path/filepath"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/link"
	"github.com/a2-ai/rv/internal/model"
)

// URLAdapter downloads an arbitrary archive URL, extracts it to the URL
// cache path, and treats the result like a Local directory source
// thereafter; the sha is the downloaded archive's digest.
type URLAdapter struct{}

func (a *URLAdapter) Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error) {
	layout := facade.Local
	extractDir := layout.URLArchivePath(dep.Source.URL, dep.Source.URLSHA)
	buildDir := extractDir + "-build"
	target := filepath.Join(libraryDir, dep.Name)

	if !isDir(extractDir) {
		if err := downloadExtract(ctx, httpDefaultClient(), dep.Source.URL, extractDir); err != nil {
			return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, err.Error())
		}
	}

	sourceDir := extractDir
	if looksLikeSourcePackage(extractDir) {
		if !isDir(buildDir) {
			if err := runner.Run(ctx, extractDir, buildDir, configureArgs); err != nil {
				return Installed{}, &apperr.BuildError{Package: dep.Name, ExitCode: -1, Stderr: err.Error()}
			}
		}
		sourceDir = buildDir
	}

	if _, err := link.Place(link.DefaultStrategy(), sourceDir, target); err != nil {
		return Installed{}, apperr.New(apperr.KindLinkFailure, dep.Name, err.Error())
	}
	meta := model.ShaMetadata(dep.Source.URLSHA)
	return Installed{LibraryPath: target, Kind: model.KindBinary, Metadata: &meta}, nil
}
