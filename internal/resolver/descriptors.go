// Package resolver implements the BFS dependency-graph walk over
// heterogeneous sources plus a SAT-based conflict-diagnosis pass.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/apperr"
	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/pkgindex"
)

// descriptorFile is the package-metadata filename read from a package
// source tree, matching the language's own convention (a DESCRIPTION file
// parses with the same RFC822-like grammar as a repository index, so
// pkgindex.Parse handles both).
const descriptorFile = "DESCRIPTION"

// Descriptors resolves just enough of a dependency's metadata to continue
// the BFS walk for the three non-repository sources, without performing a
// full install: it reads the package descriptor to get dependency metadata.
type Descriptors interface {
	// Git resolves pin to a concrete sha and returns the package record
	// read from the checkout.
	Git(ctx context.Context, pin model.GitPin, facade *cache.Facade) (sha string, rec *model.PackageRecord, err error)
	// Local reads the descriptor at path (relative to projectDir unless
	// absolute), extracting first if it is an archive.
	Local(projectDir, path string) (*model.PackageRecord, error)
	// URL downloads and extracts url, returning its content digest and
	// package record.
	URL(ctx context.Context, url string, facade *cache.Facade) (sha string, rec *model.PackageRecord, err error)
}

// FileDescriptors is the concrete Descriptors used outside of tests.
// Cloning is delegated to Masterminds/vcs the same way internal/source's
// GitAdapter does; Git performs a full clone with complete history, not a
// sparse or minimal fetch, but the checkout is cached at the same path the Git adapter will reuse
// at install time, so the clone is never paid for twice.
type FileDescriptors struct {
	Client *http.Client
}

func (d *FileDescriptors) httpClient() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

func (d *FileDescriptors) Git(ctx context.Context, pin model.GitPin, facade *cache.Facade) (string, *model.PackageRecord, error) {
	clonePath := facade.Local.GitClonePath(pin.URL)

	repo, err := vcs.NewGitRepo(pin.URL, clonePath)
	if err != nil {
		return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", apperr.UnwrapVCS(err).Error())
	}
	if repo.CheckLocal() {
		if err := repo.Update(); err != nil {
			return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", apperr.UnwrapVCS(err).Error())
		}
	} else if err := repo.Get(); err != nil {
		return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", apperr.UnwrapVCS(err).Error())
	}

	ref := pin.Pinned()
	if ref != "" {
		if err := repo.UpdateVersion(ref); err != nil {
			return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", apperr.UnwrapVCS(err).Error())
		}
	}
	sha, err := repo.Version()
	if err != nil {
		return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", apperr.UnwrapVCS(err).Error())
	}

	dir := clonePath
	if pin.Directory != "" {
		dir = filepath.Join(clonePath, pin.Directory)
	}
	rec, err := readDescriptor(filepath.Join(dir, descriptorFile))
	if err != nil {
		return "", nil, err
	}
	return sha, rec, nil
}

func (d *FileDescriptors) Local(projectDir, path string) (*model.PackageRecord, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(projectDir, full)
	}
	full = filepath.Clean(full)
	if isArchivePath(full) {
		tmp, err := os.MkdirTemp("", "rv-resolve-local-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		if err := extractArchiveTo(context.Background(), full, tmp); err != nil {
			return nil, apperr.New(apperr.KindSourceFetchFailure, "", err.Error())
		}
		full = tmp
	}
	return readDescriptor(filepath.Join(full, descriptorFile))
}

// URL downloads url once, hashes its content to get the digest the
// resolved Source carries, extracts it into the facade's URL archive cache
// (the same path internal/source's URLAdapter will reuse at install time,
// so the download is never paid for twice), and reads the descriptor out
// of the extracted tree.
func (d *FileDescriptors) URL(ctx context.Context, url string, facade *cache.Facade) (string, *model.PackageRecord, error) {
	tmp, err := os.MkdirTemp("", "rv-resolve-url-*")
	if err != nil {
		return "", nil, err
	}
	defer os.RemoveAll(tmp)

	archivePath := filepath.Join(tmp, "download")
	sha, err := downloadAndHash(ctx, d.httpClient(), url, archivePath)
	if err != nil {
		return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", err.Error())
	}

	extractDir := facade.Local.URLArchivePath(url, sha)
	if _, err := os.Stat(extractDir); errors.Is(err, fs.ErrNotExist) {
		if err := extractArchiveTo(ctx, archivePath, extractDir); err != nil {
			return "", nil, apperr.New(apperr.KindSourceFetchFailure, "", err.Error())
		}
	}

	rec, err := readDescriptor(filepath.Join(extractDir, descriptorFile))
	if err != nil {
		return "", nil, err
	}
	return sha, rec, nil
}

func downloadAndHash(ctx context.Context, client *http.Client, url, dest string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("downloading %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return "", err
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(f, h), resp.Body); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// extractArchiveTo unpacks archivePath into destDir using mholt/archives'
// filesystem adapter, the same library internal/source's archive helper
// uses so both layers sniff formats identically.
func extractArchiveTo(ctx context.Context, archivePath, destDir string) error {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return errors.Wrapf(err, "reading archive %s", archivePath)
	}
	return fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		target := filepath.Join(destDir, path)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o777)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o777); err != nil {
			return err
		}
		src, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, src)
		return err
	})
}

func readDescriptor(path string) (*model.PackageRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.New(apperr.KindIndexParseFailure, "", "missing "+descriptorFile+" at "+path)
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	records, err := pkgindex.Parse(string(content))
	if err != nil {
		return nil, apperr.New(apperr.KindIndexParseFailure, "", err.Error())
	}
	for _, list := range records {
		if len(list) > 0 {
			return list[0], nil
		}
	}
	return nil, apperr.New(apperr.KindIndexParseFailure, "", "no Package field in "+path)
}
