package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/link"
	"github.com/a2-ai/rv/internal/model"
)

// LocalAdapter installs a package from a path on disk, relative to the
// project directory. An archive file is extracted to a tempdir first; a
// directory is used directly. The provenance sidecar
// (mtime for directories, sha for archives) lets the Library Inspector
// detect a stale copy on a later run.
type LocalAdapter struct {
	ProjectDir string
}

func (a *LocalAdapter) Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error) {
	path := dep.Source.LocalPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.ProjectDir, path)
	}
	path = filepath.Clean(path)

	sourceDir := path
	isArchive := !isDir(path)
	if isArchive {
		tmp, err := os.MkdirTemp("", "rv-local-*")
		if err != nil {
			return Installed{}, errors.Wrap(err, "creating temp dir for local archive")
		}
		if err := extractArchive(ctx, path, tmp); err != nil {
			return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, err.Error())
		}
		sourceDir = tmp
	}

	buildDir := filepath.Join(facade.Local.Root, "local-builds", dep.Name, dep.Version.String())
	target := filepath.Join(libraryDir, dep.Name)

	var meta model.LocalMetadata
	if isArchive {
		meta = model.ShaMetadata(dep.Source.LocalSHA)
	} else {
		mtime, err := recursiveMtime(sourceDir)
		if err != nil {
			return Installed{}, errors.Wrap(err, "computing recursive mtime")
		}
		meta = model.MtimeMetadata(mtime)
	}

	if looksLikeSourcePackage(sourceDir) {
		if err := runner.Run(ctx, sourceDir, buildDir, configureArgs); err != nil {
			return Installed{}, &apperr.BuildError{Package: dep.Name, ExitCode: -1, Stderr: err.Error()}
		}
		sourceDir = buildDir
	}

	if _, err := link.Place(link.DefaultStrategy(), sourceDir, target); err != nil {
		return Installed{}, apperr.New(apperr.KindLinkFailure, dep.Name, err.Error())
	}
	return Installed{LibraryPath: target, Kind: model.KindBinary, Metadata: &meta}, nil
}

// recursiveMtime is the newest modification time under root, in unix
// seconds, used as the Local source's provenance fingerprint: the recorded
// mtime must equal the recursive mtime of the source path for a cached
// install to be considered current. godirwalk gives a fast recursive walk
// without the per-entry allocation of filepath.WalkDir's fs.DirEntry, the
// same tradeoff the Library Inspector and Cache pruning make.
func recursiveMtime(root string) (int64, error) {
	var latest int64
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			info, err := os.Lstat(path)
			if err != nil {
				return err
			}
			if mt := info.ModTime().Unix(); mt > latest {
				latest = mt
			}
			return nil
		},
		Unsorted: true,
	})
	return latest, err
}
