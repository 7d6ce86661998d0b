package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var archiveExts = map[string]bool{
	".tar": true, ".gz": true, ".tgz": true, ".zip": true, ".bz2": true, ".xz": true,
}

// isArchivePath reports whether path's extension suggests it is an
// archive. It looks at the name only and does not stat path; the Local
// source adapter instead treats any path that is not a directory as an
// archive at install time.
func isArchivePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return archiveExts[ext]
}

// archiveDigest computes the sha256 content digest of a local archive
// file, used as Source.LocalSHA (set only when path is an archive file).
func archiveDigest(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
