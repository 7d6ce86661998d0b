// Package library implements the Library Inspector: reading the current
// project library from disk, classifying each entry as a repository
// package, a non-repository package with provenance, or broken, and the
// source-aware ContainsPackage check the Sync Handler consults to decide
// what still needs installing.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/pkgindex"
)

// descriptorFile is the package-metadata filename read from an installed
// package directory (same convention internal/resolver reads at
// resolve-time; see that package's doc comment).
const descriptorFile = "DESCRIPTION"

// metadataFile is the provenance sidecar written for non-repository
// sources, so the Library Inspector can detect out-of-date copies.
const metadataFile = ".rv-source"

// Inspect enumerates dir's immediate subdirectories, reading each one's
// package descriptor (and, if present, its provenance sidecar) to build a
// Library snapshot.
func Inspect(dir string) (*model.Library, error) {
	lib := model.NewLibrary(dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, nil
		}
		return nil, errors.Wrapf(err, "reading library directory %s", dir)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		pkgDir := filepath.Join(dir, name)

		rec, err := readDescriptor(pkgDir)
		if err != nil {
			lib.Broken[name] = true
			continue
		}

		if meta, ok := readMetadata(pkgDir); ok {
			lib.NonRepoPackages[name] = meta
		} else {
			lib.Packages[name] = rec.Version
		}
	}

	return lib, nil
}

func readDescriptor(pkgDir string) (*model.PackageRecord, error) {
	content, err := os.ReadFile(filepath.Join(pkgDir, descriptorFile))
	if err != nil {
		return nil, err
	}
	records, err := pkgindex.Parse(string(content))
	if err != nil {
		return nil, err
	}
	for _, list := range records {
		if len(list) > 0 {
			return list[0], nil
		}
	}
	return nil, errors.Errorf("no Package field in %s", pkgDir)
}

func readMetadata(pkgDir string) (model.LocalMetadata, bool) {
	content, err := os.ReadFile(filepath.Join(pkgDir, metadataFile))
	if err != nil {
		return model.LocalMetadata{}, false
	}
	return parseMetadata(string(content))
}

// WriteMetadata writes the provenance sidecar for a non-repository-sourced
// package, read back by readMetadata above on the next Inspect call.
func WriteMetadata(pkgDir string, meta model.LocalMetadata) error {
	return os.WriteFile(filepath.Join(pkgDir, metadataFile), []byte(renderMetadata(meta)), 0o644)
}

func renderMetadata(meta model.LocalMetadata) string {
	if meta.Kind == model.MetadataMtime {
		return fmt.Sprintf("mtime %d\n", meta.Mtime)
	}
	return "sha " + meta.Sha + "\n"
}

func parseMetadata(content string) (model.LocalMetadata, bool) {
	fields := strings.Fields(content)
	if len(fields) != 2 {
		return model.LocalMetadata{}, false
	}
	kind, value := fields[0], fields[1]
	switch kind {
	case "mtime":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return model.LocalMetadata{}, false
		}
		return model.MtimeMetadata(n), true
	case "sha":
		return model.ShaMetadata(value), true
	default:
		return model.LocalMetadata{}, false
	}
}

// ContainsPackage is a source-aware presence check: for a repository
// source the library version must equal the resolved version; for git/url
// the stored sha must equal the resolved sha; for a local directory the
// recorded mtime must equal the source path's current recursive mtime;
// for a local archive the recorded sha must equal the archive's content
// digest.
func ContainsPackage(lib *model.Library, dep *model.ResolvedDependency, projectDir string) (bool, error) {
	switch dep.Source.Kind {
	case model.SourceRepository:
		v, ok := lib.Packages[dep.Name]
		return ok && v.Equal(dep.Version), nil
	case model.SourceGit:
		meta, ok := lib.NonRepoPackages[dep.Name]
		return ok && meta.Kind == model.MetadataSha && meta.Sha == dep.Source.GitSHA, nil
	case model.SourceURL:
		meta, ok := lib.NonRepoPackages[dep.Name]
		return ok && meta.Kind == model.MetadataSha && meta.Sha == dep.Source.URLSHA, nil
	case model.SourceLocal:
		return containsLocal(lib, dep, projectDir)
	case model.SourceBuiltin:
		return true, nil
	default:
		return false, nil
	}
}

func containsLocal(lib *model.Library, dep *model.ResolvedDependency, projectDir string) (bool, error) {
	meta, ok := lib.NonRepoPackages[dep.Name]
	if !ok {
		return false, nil
	}
	path := dep.Source.LocalPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(projectDir, path)
	}

	if meta.Kind == model.MetadataSha {
		// archive source: compare recorded digest against the archive's
		// current content digest.
		return meta.Sha == dep.Source.LocalSHA, nil
	}

	// directory source: compare recorded mtime against the current
	// recursive mtime.
	mtime, err := recursiveMtime(path)
	if err != nil {
		return false, err
	}
	return meta.Mtime == mtime, nil
}

// recursiveMtime returns the newest modification time under root, in unix
// seconds, using godirwalk for the same fast-recursive-walk reason
// internal/source's Local adapter computes the same fingerprint at install
// time (the two must use an identical definition of "current mtime" or
// every local package would look stale forever).
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
