package source

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/link"
	"github.com/a2-ai/rv/internal/model"
)

// RepositoryAdapter installs a package resolved against a repository
// (CRAN-like) source, preferring a cached or downloaded binary extract and
// building from source otherwise.
type RepositoryAdapter struct {
	Platform cache.Platform
	Rewriter *BinaryURLRewriter
	Client   *http.Client
}

func (a *RepositoryAdapter) httpClient() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return httpDefaultClient()
}

// httpDefaultClient is shared by every adapter that downloads over plain
// HTTP (Repository's source/binary fetch, URL adapter) so there is exactly
// one place to adjust timeouts or transport settings.
func httpDefaultClient() *http.Client {
	return http.DefaultClient
}

func (a *RepositoryAdapter) Install(ctx context.Context, dep *model.ResolvedDependency, facade *cache.Facade, libraryDir string, runner BuildRunner, configureArgs []string) (Installed, error) {
	layout := facade.Local
	paths := layout.PackagePaths(dep.Source.RepositoryURL, dep.Name, dep.Version)
	target := filepath.Join(libraryDir, dep.Name)

	if isDir(paths.Binary) {
		return a.linkExtract(paths.Binary, target, model.KindBinary)
	}

	if isDir(paths.Source) {
		if err := runner.Run(ctx, paths.Source, paths.Binary, configureArgs); err != nil {
			return Installed{}, &apperr.BuildError{Package: dep.Name, ExitCode: -1, Stderr: err.Error()}
		}
		return a.linkExtract(paths.Binary, target, model.KindBinary)
	}

	binaryURL := a.binaryURL(dep)
	if binaryURL != "" {
		if err := a.downloadAndVerifyBinary(ctx, binaryURL, paths, dep); err == nil {
			return a.linkExtract(paths.Binary, target, model.KindBinary)
		}
		// fall through to source on any binary-download error
	}

	sourceURL := dep.Source.RepositoryURL
	if err := downloadExtract(ctx, a.httpClient(), sourceURL, paths.Source); err != nil {
		return Installed{}, apperr.New(apperr.KindSourceFetchFailure, dep.Name, err.Error())
	}
	if err := runner.Run(ctx, paths.Source, paths.Binary, configureArgs); err != nil {
		return Installed{}, &apperr.BuildError{Package: dep.Name, ExitCode: -1, Stderr: err.Error()}
	}
	return a.linkExtract(paths.Binary, target, model.KindBinary)
}

func (a *RepositoryAdapter) binaryURL(dep *model.ResolvedDependency) string {
	base := dep.Source.RepositoryURL
	if a.Rewriter != nil {
		if rewritten, ok := a.Rewriter.Rewrite(base, a.Platform); ok {
			return rewritten
		}
	}
	return base
}

// downloadAndVerifyBinary downloads what the repository advertises as a
// binary artifact and inspects its contents: a "binary" archive that turns
// out to contain source (e.g. a CRAN mirror serving source-only for a
// platform it doesn't build for) is relocated to the source extract path
// and left for the caller to build.
func (a *RepositoryAdapter) downloadAndVerifyBinary(ctx context.Context, url string, paths cache.PackagePaths, dep *model.ResolvedDependency) error {
	tmp, err := os.MkdirTemp("", "rv-binary-*")
	if err != nil {
		return errors.Wrap(err, "creating temp dir for binary download")
	}
	defer os.RemoveAll(tmp)

	archivePath := filepath.Join(tmp, "download")
	if err := downloadFile(ctx, a.httpClient(), url, archivePath); err != nil {
		return err
	}
	extractDir := filepath.Join(tmp, "extract")
	if err := extractArchive(ctx, archivePath, extractDir); err != nil {
		return err
	}

	if looksLikeSourcePackage(extractDir) {
		if err := os.MkdirAll(filepath.Dir(paths.Source), 0o777); err != nil {
			return err
		}
		return os.Rename(extractDir, paths.Source)
	}

	if err := os.MkdirAll(filepath.Dir(paths.Binary), 0o777); err != nil {
		return err
	}
	return os.Rename(extractDir, paths.Binary)
}

func (a *RepositoryAdapter) linkExtract(extractDir, target string, kind model.PackageKind) (Installed, error) {
	_, err := link.Place(link.DefaultStrategy(), extractDir, target)
	if err != nil {
		return Installed{}, apperr.New(apperr.KindLinkFailure, filepath.Base(target), err.Error())
	}
	return Installed{LibraryPath: target, Kind: kind}, nil
}

// looksLikeSourcePackage reports whether an extract directory has a `src/`
// subdirectory holding .c, .cpp or .f files, or has an `R/` directory but
// no `libs/` (the platform-compiled object layout of a binary extract),
// i.e. whether a repository's advertised "binary" was actually source.
func looksLikeSourcePackage(extractDir string) bool {
	if isDir(filepath.Join(extractDir, "src")) {
		entries, err := os.ReadDir(filepath.Join(extractDir, "src"))
		if err == nil {
			for _, e := range entries {
				if filepath.Ext(e.Name()) == ".c" || filepath.Ext(e.Name()) == ".cpp" || filepath.Ext(e.Name()) == ".f" {
					return true
				}
			}
		}
	}
	return isDir(filepath.Join(extractDir, "R")) && !isDir(filepath.Join(extractDir, "libs"))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "downloading %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func downloadExtract(ctx context.Context, client *http.Client, url, destDir string) error {
	tmp, err := os.MkdirTemp("", "rv-source-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	archivePath := filepath.Join(tmp, "download")
	if err := downloadFile(ctx, client, url, archivePath); err != nil {
		return err
	}
	if err := extractArchive(ctx, archivePath, destDir); err != nil {
		return err
	}
	return nil
}
