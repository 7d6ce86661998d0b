package cache

import (
	"os"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// PackageStatus derives the Absent/Source/Binary/Both installation status
// of a (repo, name, version) triple by stat-ing both extract paths.
func (l Layout) PackageStatus(repoURL, name string, v version.Version) model.InstallStatus {
	paths := l.PackagePaths(repoURL, name, v)
	return model.CombineStatus(isDir(paths.Source), isDir(paths.Binary))
}

// GitStatus derives installation status for a git-sourced package keyed by
// sha rather than version.
func (l Layout) GitStatus(gitURL, sha, name string) model.InstallStatus {
	srcPresent := isDir(l.GitClonePath(gitURL))
	binPresent := isDir(l.GitBuildPath(gitURL, sha) + string(os.PathSeparator) + name)
	return model.CombineStatus(srcPresent, binPresent)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
