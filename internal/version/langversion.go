package version

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// LanguageRequirement wraps github.com/Masterminds/semver/v3 to express and
// test a project's declared language-version requirement (e.g.
// "project.r_version" in a manifest, read as a floor: ">= 4.1.0") against
// the version actually installed on the machine running a sync. Unlike
// package Versions, language versions in the wild are plain dotted
// major.minor.patch strings, so semver's stricter grammar is the right
// tool here (see DESIGN.md for why it is NOT used for the package Version
// type itself).
type LanguageRequirement struct {
	constraint *mmsemver.Constraints
	raw        string
}

// ParseLanguageRequirement parses an operator+version pair like ">= 3.5.0"
// or "3.5" (treated as an exact pin) into a semver constraint.
func ParseLanguageRequirement(s string) (LanguageRequirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LanguageRequirement{}, errors.New("language requirement: empty string")
	}
	c, err := mmsemver.NewConstraint(normalizeForSemver(s))
	if err != nil {
		return LanguageRequirement{}, errors.Wrapf(err, "language requirement: %q", s)
	}
	return LanguageRequirement{constraint: c, raw: s}, nil
}

// normalizeForSemver pads a bare "major" or "major.minor" string with
// trailing zero components so Masterminds/semver's strict parser accepts
// it; the result always has exactly three components (any beyond the
// third are dropped).
func normalizeForSemver(s string) string {
	op := ""
	for _, p := range []string{">=", "<=", "==", ">", "<", "="} {
		if strings.HasPrefix(s, p) {
			op = p
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	parts := strings.Split(s, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return op + strings.Join(parts[:3], ".")
}

// Accepts reports whether the language version v (a plain Version in the
// major.minor[.patch] sense) satisfies the constraint.
func (lr LanguageRequirement) Accepts(v Version) bool {
	if lr.constraint == nil {
		return true
	}
	maj, min := v.MajorMinor()
	sv, err := mmsemver.NewVersion(renderMajorMinor(maj, min, v))
	if err != nil {
		return false
	}
	return lr.constraint.Check(sv)
}

func renderMajorMinor(maj, min uint64, v Version) string {
	t := v.Tuple()
	return joinUint(maj) + "." + joinUint(min) + "." + joinUint(t[2])
}

func joinUint(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (lr LanguageRequirement) String() string { return lr.raw }
