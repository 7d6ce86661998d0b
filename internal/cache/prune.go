package cache

import (
	"os"
	"path/filepath"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// OpenFileChecker reports whether any file under path is currently held
// open by a running process. It is platform-specific and best-effort; the
// NoOpenFileChecker implementation always reports false, so the check is
// simply omitted on platforms where the probing tool is unavailable.
type OpenFileChecker interface {
	AnyOpen(path string) (bool, error)
}

type NoOpenFileChecker struct{}

func (NoOpenFileChecker) AnyOpen(string) (bool, error) { return false, nil }

// Referenced is the set of cache entry paths a lockfile still points to;
// Prune deletes anything under root not present in this set.
type Referenced map[string]bool

// PruneResult reports what Prune removed (or, in a dry run, would remove).
type PruneResult struct {
	Removed []string
}

// Prune walks root recursively via godirwalk and removes package/version
// directories (see isPrunableLeaf) not referenced by the current lockfile,
// asking checker before each removal and aborting if an entry is in use.
func Prune(root string, referenced Referenced, checker OpenFileChecker, dryRun bool) (PruneResult, error) {
	if checker == nil {
		checker = NoOpenFileChecker{}
	}

	var candidates []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == root {
				return nil
			}
			ok, isLeaf := isPrunableLeaf(path, de)
			if !ok {
				return nil
			}
			if isLeaf && !referenced[path] {
				candidates = append(candidates, path)
				return filepath.SkipDir
			}
			return nil
		},
		Unsorted:            false,
		AllowNonDirectory:   true,
		FollowSymbolicLinks: false,
	})
	if err != nil && !os.IsNotExist(err) {
		return PruneResult{}, errors.Wrap(err, "walking cache root")
	}

	result := PruneResult{}
	for _, path := range candidates {
		busy, err := checker.AnyOpen(path)
		if err != nil {
			return result, err
		}
		if busy {
			return result, errors.Errorf("cache entry %s is in use, aborting prune", path)
		}
		result.Removed = append(result.Removed, path)
		if !dryRun {
			if err := os.RemoveAll(path); err != nil {
				return result, errors.Wrapf(err, "removing %s", path)
			}
		}
	}
	return result, nil
}

// isPrunableLeaf decides whether path is a terminal package/version
// directory worth considering for removal: a version-looking directory two
// levels below (name/version) either a "src" directory or a
// language-version directory such as "4.3".
func isPrunableLeaf(path string, de *godirwalk.Dirent) (candidate bool, isLeaf bool) {
	if !de.IsDir() {
		return false, false
	}
	base := filepath.Base(path)
	grandparent := filepath.Base(filepath.Dir(filepath.Dir(path)))
	looksLikeVersion := func(s string) bool { return len(s) > 0 && s[0] >= '0' && s[0] <= '9' }
	underRoot := grandparent == "src" || (looksLikeVersion(grandparent) && filepath.Ext(grandparent) != "")
	leaf := looksLikeVersion(base) && underRoot
	return leaf, leaf
}
