package version

import (
	"strings"

	"github.com/pkg/errors"
)

// Operator is one of the comparison operators a Requirement can carry.
type Operator int

const (
	OpEQ Operator = iota
	OpGT
	OpLT
	OpGE
	OpLE
)

func (o Operator) String() string {
	switch o {
	case OpEQ:
		return "=="
	case OpGT:
		return ">"
	case OpLT:
		return "<"
	case OpGE:
		return ">="
	case OpLE:
		return "<="
	default:
		return "?"
	}
}

// Requirement pairs an Operator with a Version.
type Requirement struct {
	Op Operator
	V  Version
}

// ParseRequirement parses strings like ">= 1.0.0", "==1.2", "<3".
// Operator parsing is strict: only the five operators ==, >, <, >= and <=
// are accepted, and anything else is an error.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	op, rest, err := splitOperator(s)
	if err != nil {
		return Requirement{}, err
	}
	rest = strings.TrimSpace(rest)
	v, err := Parse(rest)
	if err != nil {
		return Requirement{}, errors.Wrapf(err, "requirement: %q", s)
	}
	return Requirement{Op: op, V: v}, nil
}

func splitOperator(s string) (Operator, string, error) {
	switch {
	case strings.HasPrefix(s, ">="):
		return OpGE, s[2:], nil
	case strings.HasPrefix(s, "<="):
		return OpLE, s[2:], nil
	case strings.HasPrefix(s, "=="):
		return OpEQ, s[2:], nil
	case strings.HasPrefix(s, ">"):
		return OpGT, s[1:], nil
	case strings.HasPrefix(s, "<"):
		return OpLT, s[1:], nil
	default:
		return 0, "", errors.Errorf("requirement: %q has no recognised operator", s)
	}
}

// String reconstructs a canonical "<op> <version>" rendering.
func (r Requirement) String() string {
	return r.Op.String() + " " + r.V.String()
}

// IsSatisfied evaluates the operator as written against candidate.
func (r Requirement) IsSatisfied(candidate Version) bool {
	c := candidate.Compare(r.V)
	switch r.Op {
	case OpEQ:
		return c == 0
	case OpGT:
		return c > 0
	case OpLT:
		return c < 0
	case OpGE:
		return c >= 0
	case OpLE:
		return c <= 0
	default:
		return false
	}
}
