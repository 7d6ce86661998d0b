// Package repoload fetches and caches a repository's package index into an
// in-memory Database. It is the glue between the Cache Layout and the
// Package Index Parser that the resolver depends on through repodb.Database
// values; neither of those two packages needs to know about HTTP or the
// freshness policy itself.
package repoload

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/cache"
	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/pkgindex"
	"github.com/a2-ai/rv/internal/repodb"
)

// BinaryDescriptor is one (language major, language minor, index URL) the
// caller wants folded into a repository's binary map alongside its source
// index, e.g. the platform-specific PACKAGES file CRAN publishes per R
// series.
type BinaryDescriptor struct {
	Major uint64
	Minor uint64
	URL   string
}

// Load fetches (or reuses a fresh cached copy of) the source index at
// sourceIndexURL plus every binary index in binaries, and returns a
// populated repodb.Database. Only the binary-encoded Database is persisted
// (at the cache's IndexPath for repoURL), so a warm run skips both the
// fetch and re-parsing; the raw index text is not kept.
func Load(ctx context.Context, facade *cache.Facade, repoName, repoURL, sourceIndexURL string, binaries []BinaryDescriptor, now time.Time) (*repodb.Database, error) {
	dbPath := facade.Local.IndexPath(repoURL)
	if db, err := repodb.Load(dbPath); err == nil {
		if fresh, ferr := isFresh(dbPath, now); ferr == nil && fresh {
			return db, nil
		}
	}

	db := repodb.New(repoName)

	records, err := fetchAndParse(ctx, sourceIndexURL)
	if err != nil {
		return nil, errors.Wrapf(err, "loading source index for %s", repoName)
	}
	for _, recs := range records {
		for _, r := range recs {
			db.AddSource(r)
		}
	}

	for _, b := range binaries {
		brecords, err := fetchAndParse(ctx, b.URL)
		if err != nil {
			// A missing binary index for one (major, minor) is not fatal to
			// resolving other packages; repodb.Find simply falls back to
			// source for this repository.
			continue
		}
		for _, recs := range brecords {
			for _, r := range recs {
				db.AddBinary(b.Major, b.Minor, r)
			}
		}
	}

	if err := os.MkdirAll(parentDir(dbPath), 0o777); err == nil {
		_ = repodb.Persist(db, dbPath)
	}
	return db, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func isFresh(path string, now time.Time) (bool, error) {
	state, err := cache.IndexEntry(path, now, cache.Timeout())
	if err != nil {
		return false, err
	}
	if state == cache.Expired {
		_ = os.Remove(path)
	}
	return state == cache.Existing, nil
}

func fetchAndParse(ctx context.Context, url string) (map[string][]*model.PackageRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return pkgindex.Parse(string(body))
}
