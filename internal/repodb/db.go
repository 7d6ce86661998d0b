// Package repodb implements the per-repository in-memory package index
// (source and binary), the lookup rule that picks a candidate record for a
// name/requirement/language-version tuple, and persistence to a stable
// binary encoding on disk.
package repodb

import (
	"sync"

	"github.com/armon/go-radix"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// langKey identifies a (major, minor) language-version bucket in the binary
// map.
type langKey struct {
	Major, Minor uint64
}

// Kind distinguishes which map a Find result was satisfied from.
type Kind int

const (
	KindNone Kind = iota
	KindSource
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindBinary:
		return "binary"
	default:
		return "none"
	}
}

// Database is a single repository's index: ordered source records per
// name, plus ordered binary records per name scoped to a language-version
// bucket. Ordering is preserved from the index file so lookup is
// deterministic.
//
// Name lookup is backed by a radix tree (nameTrie) rather than a bare map: a
// small typed shim over github.com/armon/go-radix so callers never need to
// type-assert.
type Database struct {
	Name      string
	URL       string
	SourceURL string
	BinaryURL string

	mu     sync.RWMutex
	source *nameTrie
	binary map[langKey]*nameTrie
}

// New creates an empty database for the given repository alias.
func New(name string) *Database {
	return &Database{
		Name:   name,
		source: newNameTrie(),
		binary: make(map[langKey]*nameTrie),
	}
}

// AddSource appends a source Package Record to the ordered list for its
// name, preserving index-file order across repeated calls for the same
// name.
func (db *Database) AddSource(rec *model.PackageRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.source.Append(rec.Name, rec)
}

// AddBinary appends a binary Package Record under the (major, minor)
// language-version bucket it was published for.
func (db *Database) AddBinary(major, minor uint64, rec *model.PackageRecord) {
	db.mu.Lock()
	defer db.mu.Unlock()
	key := langKey{major, minor}
	t, ok := db.binary[key]
	if !ok {
		t = newNameTrie()
		db.binary[key] = t
	}
	t.Append(rec.Name, rec)
}

// SourceRecords returns the ordered source records for a name, or nil.
func (db *Database) SourceRecords(name string) []*model.PackageRecord {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.source.Get(name)
}

// BinaryRecords returns the ordered binary records for a name under a given
// language-version bucket, or nil.
func (db *Database) BinaryRecords(major, minor uint64, name string) []*model.PackageRecord {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.binary[langKey{major, minor}]
	if !ok {
		return nil
	}
	return t.Get(name)
}

// Find prefers the binary map (scoped to languageVersion.MajorMinor())
// unless forceSource is set, falling back to the source map on a miss in
// either branch. Within a candidate list, the first record whose
// LanguageRequirement accepts languageVersion and whose own Version
// satisfies req (if non-nil) wins.
func (db *Database) Find(name string, req *version.Requirement, languageVersion version.Version, forceSource bool) (*model.PackageRecord, Kind) {
	if !forceSource {
		major, minor := languageVersion.MajorMinor()
		if rec := db.firstMatch(db.BinaryRecords(major, minor, name), req, languageVersion); rec != nil {
			return rec, KindBinary
		}
	}
	if rec := db.firstMatch(db.SourceRecords(name), req, languageVersion); rec != nil {
		return rec, KindSource
	}
	return nil, KindNone
}

func (db *Database) firstMatch(candidates []*model.PackageRecord, req *version.Requirement, languageVersion version.Version) *model.PackageRecord {
	for _, rec := range candidates {
		if rec.LanguageRequirement != nil && !rec.LanguageRequirement.IsSatisfied(languageVersion) {
			continue
		}
		if req != nil && !req.IsSatisfied(rec.Version) {
			continue
		}
		return rec
	}
	return nil
}

// nameTrie is a typed wrapper over a radix tree keyed by package name,
// hiding the interface{} value type behind a narrow, typed API.
type nameTrie struct {
	t *radix.Tree
}

func newNameTrie() *nameTrie {
	return &nameTrie{t: radix.New()}
}

func (n *nameTrie) Append(name string, rec *model.PackageRecord) {
	if v, ok := n.t.Get(name); ok {
		records := v.([]*model.PackageRecord)
		n.t.Insert(name, append(records, rec))
		return
	}
	n.t.Insert(name, []*model.PackageRecord{rec})
}

func (n *nameTrie) Get(name string) []*model.PackageRecord {
	v, ok := n.t.Get(name)
	if !ok {
		return nil
	}
	return v.([]*model.PackageRecord)
}

// Names returns every name currently stored, in the radix tree's sorted
// walk order (used by the codec to make persisted output deterministic).
func (n *nameTrie) Names() []string {
	var names []string
	n.t.Walk(func(s string, v interface{}) bool {
		names = append(names, s)
		return false
	})
	return names
}
