package repodb

import (
	"bufio"
	"io"
	"os"

	"github.com/jmank88/nuts"
	"github.com/pkg/errors"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// formatVersion is the codec's format tag: a cache file is reloadable iff
// this byte matches, otherwise it's treated as absent.
const formatVersion byte = 1

// Persist serialises db to path using the stable binary codec.
func Persist(db *Database, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating db file %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := encode(db, w); err != nil {
		return errors.Wrapf(err, "encoding db to %s", path)
	}
	return w.Flush()
}

// Load reconstructs a Database from path. A format mismatch is reported via
// ErrIncompatibleFormat rather than a generic decode error, since callers
// treat it as equivalent to a missing cache entry.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file %s", path)
	}
	defer f.Close()
	return decode(bufio.NewReader(f))
}

// ErrIncompatibleFormat is returned by Load when the on-disk format version
// byte does not match formatVersion.
var ErrIncompatibleFormat = errors.New("repodb: incompatible on-disk format version")

func encode(db *Database, w io.Writer) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if _, err := w.Write([]byte{formatVersion}); err != nil {
		return err
	}
	if err := writeString(w, db.Name); err != nil {
		return err
	}
	if err := writeString(w, db.URL); err != nil {
		return err
	}
	if err := writeString(w, db.SourceURL); err != nil {
		return err
	}
	if err := writeString(w, db.BinaryURL); err != nil {
		return err
	}

	if err := writeNameTrie(w, db.source); err != nil {
		return err
	}

	if err := writeUvarint(w, uint64(len(db.binary))); err != nil {
		return err
	}
	for key, trie := range db.binary {
		if err := writeUvarint(w, key.Major); err != nil {
			return err
		}
		if err := writeUvarint(w, key.Minor); err != nil {
			return err
		}
		if err := writeNameTrie(w, trie); err != nil {
			return err
		}
	}
	return nil
}

func decode(r io.Reader) (*Database, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, errors.Wrap(err, "reading format tag")
	}
	if tag[0] != formatVersion {
		return nil, ErrIncompatibleFormat
	}

	db := New("")
	var err error
	if db.Name, err = readString(r); err != nil {
		return nil, err
	}
	if db.URL, err = readString(r); err != nil {
		return nil, err
	}
	if db.SourceURL, err = readString(r); err != nil {
		return nil, err
	}
	if db.BinaryURL, err = readString(r); err != nil {
		return nil, err
	}

	if db.source, err = readNameTrie(r); err != nil {
		return nil, err
	}

	numBuckets, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	db.binary = make(map[langKey]*nameTrie, numBuckets)
	for i := uint64(0); i < numBuckets; i++ {
		major, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		minor, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		trie, err := readNameTrie(r)
		if err != nil {
			return nil, err
		}
		db.binary[langKey{major, minor}] = trie
	}
	return db, nil
}

func writeNameTrie(w io.Writer, t *nameTrie) error {
	names := t.Names()
	if err := writeUvarint(w, uint64(len(names))); err != nil {
		return err
	}
	for _, name := range names {
		recs := t.Get(name)
		if err := writeUvarint(w, uint64(len(recs))); err != nil {
			return err
		}
		for _, rec := range recs {
			if err := writeRecord(w, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func readNameTrie(r io.Reader) (*nameTrie, error) {
	t := newNameTrie()
	numNames, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numNames; i++ {
		numRecs, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < numRecs; j++ {
			rec, err := readRecord(r)
			if err != nil {
				return nil, err
			}
			t.Append(rec.Name, rec)
		}
	}
	return t, nil
}

func writeRecord(w io.Writer, rec *model.PackageRecord) error {
	if err := writeString(w, rec.Name); err != nil {
		return err
	}
	if err := writeString(w, rec.Version.String()); err != nil {
		return err
	}
	if err := writeOptionalRequirement(w, rec.LanguageRequirement); err != nil {
		return err
	}
	for _, deps := range [][]model.Dependency{rec.Depends, rec.Imports, rec.LinkingTo, rec.Suggests} {
		if err := writeDependencies(w, deps); err != nil {
			return err
		}
	}
	if err := writeString(w, rec.License); err != nil {
		return err
	}
	if err := writeString(w, rec.ContentDigest); err != nil {
		return err
	}
	if err := writeString(w, rec.PathPrefix); err != nil {
		return err
	}
	if err := writeBool(w, rec.Recommended); err != nil {
		return err
	}
	if err := writeBool(w, rec.NeedsCompilation); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(rec.Remotes))); err != nil {
		return err
	}
	for name, src := range rec.Remotes {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := writeSource(w, src); err != nil {
			return err
		}
	}
	return nil
}

func readRecord(r io.Reader) (*model.PackageRecord, error) {
	rec := &model.PackageRecord{}
	var err error
	if rec.Name, err = readString(r); err != nil {
		return nil, err
	}
	vs, err := readString(r)
	if err != nil {
		return nil, err
	}
	if rec.Version, err = version.Parse(vs); err != nil {
		return nil, err
	}
	if rec.LanguageRequirement, err = readOptionalRequirement(r); err != nil {
		return nil, err
	}
	depsSlots := []*[]model.Dependency{&rec.Depends, &rec.Imports, &rec.LinkingTo, &rec.Suggests}
	for _, slot := range depsSlots {
		*slot, err = readDependencies(r)
		if err != nil {
			return nil, err
		}
	}
	if rec.License, err = readString(r); err != nil {
		return nil, err
	}
	if rec.ContentDigest, err = readString(r); err != nil {
		return nil, err
	}
	if rec.PathPrefix, err = readString(r); err != nil {
		return nil, err
	}
	if rec.Recommended, err = readBool(r); err != nil {
		return nil, err
	}
	if rec.NeedsCompilation, err = readBool(r); err != nil {
		return nil, err
	}
	numRemotes, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if numRemotes > 0 {
		rec.Remotes = make(map[string]model.Source, numRemotes)
	}
	for i := uint64(0); i < numRemotes; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		src, err := readSource(r)
		if err != nil {
			return nil, err
		}
		rec.Remotes[name] = src
	}
	return rec, nil
}

func writeDependencies(w io.Writer, deps []model.Dependency) error {
	if err := writeUvarint(w, uint64(len(deps))); err != nil {
		return err
	}
	for _, d := range deps {
		if err := writeString(w, d.Name); err != nil {
			return err
		}
		if err := writeOptionalRequirement(w, d.Req); err != nil {
			return err
		}
	}
	return nil
}

func readDependencies(r io.Reader) ([]model.Dependency, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	deps := make([]model.Dependency, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		req, err := readOptionalRequirement(r)
		if err != nil {
			return nil, err
		}
		deps = append(deps, model.Dependency{Name: name, Req: req})
	}
	return deps, nil
}

func writeOptionalRequirement(w io.Writer, req *version.Requirement) error {
	if req == nil {
		return writeBool(w, false)
	}
	if err := writeBool(w, true); err != nil {
		return err
	}
	return writeString(w, req.String())
}

func readOptionalRequirement(r io.Reader) (*version.Requirement, error) {
	present, err := readBool(r)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := readString(r)
	if err != nil {
		return nil, err
	}
	req, err := version.ParseRequirement(s)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func writeSource(w io.Writer, src model.Source) error {
	if err := writeUvarint(w, uint64(src.Kind)); err != nil {
		return err
	}
	return writeString(w, src.String())
}

func readSource(r io.Reader) (model.Source, error) {
	kind, err := readUvarint(r)
	if err != nil {
		return model.Source{}, err
	}
	repr, err := readString(r)
	if err != nil {
		return model.Source{}, err
	}
	// Remote pointers are reparsed by the repository index loader, which
	// owns the "kind::rest" grammar (internal/pkgindex.parseRemote); here we
	// only need a round-trippable placeholder for the advertised kind and
	// its original representation.
	return model.Source{Kind: model.SourceKind(kind), RepositoryURL: repr}, nil
}

func writeBool(w io.Writer, b bool) error {
	if b {
		_, err := w.Write([]byte{1})
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] == 1, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// writeUvarint encodes x as a length-tagged big-endian key using
// github.com/jmank88/nuts: a single length byte (KeyLen(x), 1..8) followed
// by that many bytes. This keeps small integers (string lengths, record
// counts) from costing a fixed 8 bytes each, which is most of the codec's
// volume given how many short fields a Package Record has.
func writeUvarint(w io.Writer, x uint64) error {
	n := nuts.KeyLen(x)
	key := make(nuts.Key, n)
	key.Put(x)
	if _, err := w.Write([]byte{byte(n)}); err != nil {
		return err
	}
	_, err := w.Write(key)
	return err
}

// readUvarint is the inverse of writeUvarint. nuts.Key does not itself
// expose a decode method in this codebase (only Put/KeyLen are used
// upstream), so the big-endian bytes nuts wrote are parsed back by hand.
func readUvarint(r io.Reader) (uint64, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(r, lenByte[:]); err != nil {
		return 0, err
	}
	n := int(lenByte[0])
	if n == 0 {
		return 0, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	var x uint64
	for _, b := range buf {
		x = x<<8 | uint64(b)
	}
	return x, nil
}
