//go:build !linux && !darwin

package cache

import (
	"os"
	"time"
)

// creationTime falls back to mtime on platforms without a portable ctime
// field (e.g. windows).
func creationTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
