// Package cache implements the deterministic, content-keyed on-disk layout
// for repository index caches, source/binary extract paths, git clones and
// git build outputs, and URL archive downloads.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/a2-ai/rv/internal/version"
)

// Platform is the "family[/codename][/arch]" descriptor used to key
// binary-relevant cache paths.
type Platform struct {
	Family   string
	Codename string
	Arch     string
}

// Path renders the platform descriptor as the path segment used in cache
// templates, e.g. "linux/ubuntu-22.04/x86_64" or just "darwin/arm64".
func (p Platform) Path() string {
	parts := []string{p.Family}
	if p.Codename != "" {
		parts = append(parts, p.Codename)
	}
	if p.Arch != "" {
		parts = append(parts, p.Arch)
	}
	out := parts[0]
	for _, part := range parts[1:] {
		out = filepath.Join(out, part)
	}
	return out
}

// Layout computes deterministic paths under a single cache root.
type Layout struct {
	Root     string
	Platform Platform
	LangVer  version.Version
}

func New(root string, platform Platform, langVer version.Version) Layout {
	return Layout{Root: root, Platform: platform, LangVer: langVer}
}

// HashURL is the collision-resistant, fixed-length digest used to key
// cache paths by URL.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:32]
}

func (l Layout) langVerDir() string {
	maj, min := l.LangVer.MajorMinor()
	return fmt.Sprintf("%d.%d", maj, min)
}

// IndexPath is R/hash(url)/{P}/{maj}.{min}/packages.bin.
func (l Layout) IndexPath(repoURL string) string {
	return filepath.Join(l.Root, HashURL(repoURL), l.Platform.Path(), l.langVerDir(), "packages.bin")
}

// SourceTarballPath is R/hash(url)/src/{name}/{version}/.
func (l Layout) SourceTarballPath(repoURL, name string, v version.Version) string {
	return filepath.Join(l.Root, HashURL(repoURL), "src", name, v.String())
}

// BinaryArtifactPath is R/hash(url)/{P}/{maj}.{min}/{name}/{version}/.
func (l Layout) BinaryArtifactPath(repoURL, name string, v version.Version) string {
	return filepath.Join(l.Root, HashURL(repoURL), l.Platform.Path(), l.langVerDir(), name, v.String())
}

// GitClonePath is R/git/hash(url)/.
func (l Layout) GitClonePath(gitURL string) string {
	return filepath.Join(l.Root, "git", HashURL(gitURL))
}

// GitBuildPath is R/git/builds/hash(url)/{sha[0..10]}/.
func (l Layout) GitBuildPath(gitURL, sha string) string {
	return filepath.Join(l.Root, "git", "builds", HashURL(gitURL), shortSHA(sha))
}

// URLArchivePath is R/urls/hash(url)/{sha[0..10]}/.
func (l Layout) URLArchivePath(url, sha string) string {
	return filepath.Join(l.Root, "urls", HashURL(url), shortSHA(sha))
}

func shortSHA(sha string) string {
	if len(sha) <= 10 {
		return sha
	}
	return sha[:10]
}

// PackagePaths bundles the source and binary extract paths for one
// (repo, name, version) triple.
type PackagePaths struct {
	Source string
	Binary string
}

func (l Layout) PackagePaths(repoURL, name string, v version.Version) PackagePaths {
	return PackagePaths{
		Source: l.SourceTarballPath(repoURL, name, v),
		Binary: l.BinaryArtifactPath(repoURL, name, v),
	}
}
