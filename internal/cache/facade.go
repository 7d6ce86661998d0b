package cache

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
)

// CacheDirTag is the content of the CACHEDIR.TAG marker written at the root
// of a cache directory, per the well-known cache-directory-tagging
// convention.
const CacheDirTag = "Signature: 8a477f597d28d172789f06886806bc55\n" +
	"# This file is a cache directory tag created by rv.\n" +
	"# For information about cache directory tags, see https://bford.info/cachedir/\n"

// Facade combines a writable local cache root with an optional read-only
// global root: lookups try local first, then global; writes always target
// local.
type Facade struct {
	Local  Layout
	Global *Layout

	lock *flock.Flock
}

// NewFacade creates the local root (tagging it on first creation) and
// optionally wires in a read-only global root.
func NewFacade(local Layout, global *Layout) (*Facade, error) {
	if err := ensureRoot(local.Root); err != nil {
		return nil, err
	}
	return &Facade{
		Local:  local,
		Global: global,
		lock:   flock.NewFlock(lockPath(local.Root)),
	}, nil
}

func lockPath(root string) string {
	return root + string(os.PathSeparator) + ".rv-cache.lock"
}

func ensureRoot(root string) error {
	if err := os.MkdirAll(root, 0o777); err != nil {
		return errors.Wrapf(err, "creating cache root %s", root)
	}
	tagPath := root + string(os.PathSeparator) + "CACHEDIR.TAG"
	if _, err := os.Stat(tagPath); os.IsNotExist(err) {
		if werr := os.WriteFile(tagPath, []byte(CacheDirTag), 0o644); werr != nil {
			return errors.Wrapf(werr, "writing CACHEDIR.TAG in %s", root)
		}
	}
	return nil
}

// Lock acquires an exclusive advisory lock on the local cache root for the
// duration of a write-heavy operation (e.g. a sync run), releasing it when
// the returned func is called.
func (f *Facade) Lock() (func(), error) {
	locked, err := f.lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "locking cache root")
	}
	if !locked {
		return nil, errors.Errorf("cache root %s is locked by another process", f.Local.Root)
	}
	return func() { _ = f.lock.Unlock() }, nil
}

// Entry bundles a path with the freshness state discovered for it, scoped
// to whichever level (local/global) served the lookup.
type Entry struct {
	Path  string
	State EntryState
	// FromGlobal is true when the entry was served from the read-only
	// global root rather than the writable local one.
	FromGlobal bool
}

// IndexEntry checks local first, falling back to global on NotFound; a
// result found in global is never auto-promoted to local (writes always
// go through explicit adapter calls).
func (f *Facade) IndexEntry(repoURL string, now time.Time, timeout time.Duration) (Entry, error) {
	localPath := f.Local.IndexPath(repoURL)
	state, err := LoadOrExpire(localPath, now, timeout)
	if err != nil {
		return Entry{}, err
	}
	if state != NotFound {
		return Entry{Path: localPath, State: state}, nil
	}

	if f.Global != nil {
		globalPath := f.Global.IndexPath(repoURL)
		gstate, gerr := IndexEntry(globalPath, now, timeout)
		if gerr != nil {
			return Entry{}, gerr
		}
		if gstate != NotFound {
			return Entry{Path: globalPath, State: gstate, FromGlobal: true}, nil
		}
	}

	return Entry{Path: localPath, State: NotFound}, nil
}
