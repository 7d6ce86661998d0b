// Package version implements the package-version model: an ordered tuple
// of up to ten unsigned integers parsed from a string split on "." and
// "-", zero-extended, and compared lexicographically.
//
// This is deliberately NOT github.com/Masterminds/semver: the language this
// tool targets uses versions like "1.2-3" or "0.4.1.2" that semver's strict
// major.minor.patch[-prerelease] grammar cannot round-trip. See DESIGN.md
// for why semver was tried and rejected for this specific type; it is still
// used elsewhere in this module (language-version requirements) where the
// input really is dotted-integer shaped.
package version

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// MaxComponents is the tuple length every parsed Version is zero-extended
// to.
const MaxComponents = 10

// Version is an ordered tuple of unsigned integers plus the original string
// it was parsed from, retained for display and serialisation round-trip.
type Version struct {
	tuple    [MaxComponents]uint64
	original string
}

// Parse splits s on "." and "-", parses each segment as an unsigned
// integer, and zero-extends the result to MaxComponents. It is an error for
// s to be empty, to contain more than MaxComponents segments, or to contain
// a non-numeric segment.
func Parse(s string) (Version, error) {
	if s == "" {
		return Version{}, errors.New("version: empty string")
	}

	segments := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '-'
	})
	if len(segments) == 0 {
		return Version{}, errors.Errorf("version: %q has no numeric components", s)
	}
	if len(segments) > MaxComponents {
		return Version{}, errors.Errorf("version: %q has more than %d components", s, MaxComponents)
	}

	var v Version
	v.original = s
	for i, seg := range segments {
		n, err := strconv.ParseUint(seg, 10, 64)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version: %q: invalid component %q", s, seg)
		}
		v.tuple[i] = n
	}
	return v, nil
}

// MustParse parses s and panics on error; intended for use with literal
// version strings in tests and static tables.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original string the Version was parsed from.
func (v Version) String() string {
	return v.original
}

// Tuple exposes the zero-extended numeric tuple for callers (e.g. the SAT
// post-pass) that need to treat versions as plain comparable values.
func (v Version) Tuple() [MaxComponents]uint64 {
	return v.tuple
}

// MajorMinor returns the first two components, the key used for
// binary-artifact indexing in a Repository Database.
func (v Version) MajorMinor() (major, minor uint64) {
	return v.tuple[0], v.tuple[1]
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other, comparing the tuples lexicographically.
func (v Version) Compare(other Version) int {
	for i := 0; i < MaxComponents; i++ {
		if v.tuple[i] != other.tuple[i] {
			if v.tuple[i] < other.tuple[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Equal reports tuple equality.
func (v Version) Equal(other Version) bool {
	return v.tuple == other.tuple
}

func (v Version) Less(other Version) bool    { return v.Compare(other) < 0 }
func (v Version) Greater(other Version) bool { return v.Compare(other) > 0 }

// numSegments returns how many "."/"-" separated segments the original
// string had, used by HazyMatch to decide how much of the tuple to compare.
func (v Version) numSegments() int {
	if v.original == "" {
		return 0
	}
	return len(strings.FieldsFunc(v.original, func(r rune) bool {
		return r == '.' || r == '-'
	}))
}

// HazyMatch is true when a's tuple, truncated to the number of components
// present in a's original string, equals the corresponding prefix of b's
// tuple. It is used to match a user-supplied language version (e.g. "3.5")
// against a discovered installation's full version.
func HazyMatch(a, b Version) bool {
	n := a.numSegments()
	if n == 0 {
		return false
	}
	for i := 0; i < n && i < MaxComponents; i++ {
		if a.tuple[i] != b.tuple[i] {
			return false
		}
	}
	return true
}

// Sort orders versions ascending, for deterministic diagnostics/output.
func Sort(vs []Version) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0 && vs[j].Less(vs[j-1]); j-- {
			vs[j], vs[j-1] = vs[j-1], vs[j]
		}
	}
}
