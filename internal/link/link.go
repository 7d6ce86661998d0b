// Package link places an extract into the library directory using the
// cheapest strategy the filesystem supports, falling back to a full copy
// when a cheaper strategy fails.
package link

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// Strategy is one of the four placement mechanisms, in preference order:
// clone (reflink), hardlink, symlink, copy.
type Strategy int

const (
	StrategyClone Strategy = iota
	StrategyHardlink
	StrategySymlink
	StrategyCopy
)

func (s Strategy) String() string {
	switch s {
	case StrategyClone:
		return "clone"
	case StrategyHardlink:
		return "hardlink"
	case StrategySymlink:
		return "symlink"
	case StrategyCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// EnvOverride is the environment variable that overrides the platform
// default strategy.
const EnvOverride = "RV_LINK_MODE"

// ParseStrategy maps a lowercase name to a Strategy.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clone":
		return StrategyClone, true
	case "hardlink":
		return StrategyHardlink, true
	case "symlink":
		return StrategySymlink, true
	case "copy":
		return StrategyCopy, true
	default:
		return 0, false
	}
}

// DefaultStrategy returns clone on macOS (APFS reflinks are cheap and
// common) and hardlink elsewhere, honoring EnvOverride first.
func DefaultStrategy() Strategy {
	if v, ok := os.LookupEnv(EnvOverride); ok {
		if s, valid := ParseStrategy(v); valid {
			return s
		}
	}
	if runtime.GOOS == "darwin" {
		return StrategyClone
	}
	return StrategyHardlink
}

// Place installs src into dst using strategy, falling back to a copy on any
// non-copy failure; usedFallback reports whether that fallback was taken,
// so callers can log it. dst must not already exist; callers are responsible
// for removing a stale target first.
func Place(strategy Strategy, src, dst string) (usedFallback bool, err error) {
	if _, statErr := os.Stat(dst); statErr == nil {
		return false, errors.Errorf("link target %s already exists", dst)
	}

	var placeErr error
	switch strategy {
	case StrategyClone:
		placeErr = cloneTree(src, dst)
	case StrategyHardlink:
		placeErr = hardlinkTree(src, dst)
	case StrategySymlink:
		placeErr = symlinkTree(src, dst)
	case StrategyCopy:
		return false, copyTree(src, dst)
	default:
		placeErr = errors.Errorf("unknown link strategy %v", strategy)
	}

	if placeErr == nil {
		return false, nil
	}

	_ = os.RemoveAll(dst)
	if err := copyTree(src, dst); err != nil {
		return true, errors.Wrapf(err, "fallback copy after %s strategy failed (%v)", strategy, placeErr)
	}
	return true, nil
}

func copyTree(src, dst string) error {
	return shutil.CopyTree(src, dst, nil)
}

// symlinkTree places a single symlink pointing at the absolute source path
// rather than recreating the tree; this is only safe because installed
// library entries are never mutated in place once promoted.
func symlinkTree(src, dst string) error {
	abs, err := filepath.Abs(src)
	if err != nil {
		return errors.Wrap(err, "resolving absolute source path")
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o777); err != nil {
		return errors.Wrap(err, "creating parent directory")
	}
	return os.Symlink(abs, dst)
}

// hardlinkTree recursively recreates src's directory structure under dst,
// hardlinking each regular file and recreating symlinks verbatim.
func hardlinkTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o777)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			return os.Link(path, target)
		}
	})
}
