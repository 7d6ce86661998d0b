package resolver

import (
	"sort"

	"github.com/a2-ai/rv/internal/model"
	"github.com/a2-ai/rv/internal/version"
)

// Conflict maps a package name to the offending requirement strings that
// cannot be jointly satisfied, the diagnostic output of the SAT post-pass.
type Conflict map[string][]string

// satVar is one (name, version) variable.
type satVar struct {
	name    string
	version version.Version
}

// clause is a disjunction of variable indices, tagged (when it originated
// from a requirement) with the reqFact that produced it so a minimal
// unsatisfiable subset can be reported back in terms of requirements
// rather than raw clause indices.
type clause struct {
	lits []int // indices into problem.vars; all positive (OR of "var is true")
	fact *reqFact
}

// negClause is a pairwise "at most one" clause: both literals negated.
type negClause struct{ a, b int }

type problem struct {
	vars       []satVar
	reqClauses []clause
	atMostOne  []negClause
}

// buildProblem constructs a SAT instance from the found set and the
// requirement facts collected during the BFS walk. The candidate-version
// domain for a name is the resolved version already committed to in found
// plus every version literally named by a requirement referencing that
// name — enough to diagnose a conflict without re-querying every
// repository database for every version it has ever published.
func buildProblem(found []*model.ResolvedDependency, facts []reqFact) *problem {
	candidates := map[string]map[string]version.Version{} // name -> version string -> version

	addCandidate := func(name string, v version.Version) {
		m, ok := candidates[name]
		if !ok {
			m = map[string]version.Version{}
			candidates[name] = m
		}
		m[v.String()] = v
	}

	for _, rd := range found {
		addCandidate(rd.Name, rd.Version)
	}
	for _, f := range facts {
		addCandidate(f.name, f.req.V)
	}

	p := &problem{}
	varIndex := map[satVar]int{}
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vs := candidates[name]
		versions := make([]version.Version, 0, len(vs))
		for _, v := range vs {
			versions = append(versions, v)
		}
		version.Sort(versions)

		indices := make([]int, 0, len(versions))
		for _, v := range versions {
			sv := satVar{name: name, version: v}
			idx := len(p.vars)
			p.vars = append(p.vars, sv)
			varIndex[sv] = idx
			indices = append(indices, idx)
		}
		for i := 0; i < len(indices); i++ {
			for j := i + 1; j < len(indices); j++ {
				p.atMostOne = append(p.atMostOne, negClause{indices[i], indices[j]})
			}
		}
	}

	for i := range facts {
		f := facts[i]
		var lits []int
		for idx, v := range p.vars {
			if v.name != f.name {
				continue
			}
			if f.req.IsSatisfied(v.version) {
				lits = append(lits, idx)
			}
		}
		p.reqClauses = append(p.reqClauses, clause{lits: lits, fact: &facts[i]})
	}

	return p
}

// solve runs DPLL-style backtracking with unit propagation over the
// problem's requirement clauses plus its fixed at-most-one clauses,
// returning true iff satisfiable.
func (p *problem) solve(active []clause) bool {
	assign := make([]int8, len(p.vars)) // 0 unassigned, 1 true, -1 false
	return p.dpll(assign, active)
}

func (p *problem) dpll(assign []int8, active []clause) bool {
	changed := true
	for changed {
		changed = false
		for _, c := range active {
			val, unit, sat := p.evalClause(assign, c.lits, false)
			if sat {
				continue
			}
			if val == 0 {
				return false // empty/unsatisfiable clause under current assignment
			}
			if unit != -1 && assign[unit] == 0 {
				assign[unit] = 1
				changed = true
			}
		}
		for _, nc := range p.atMostOne {
			if assign[nc.a] == 1 && assign[nc.b] == 1 {
				return false // both variables for a mutually-exclusive pair chosen true
			}
			if assign[nc.a] == 1 && assign[nc.b] == 0 {
				assign[nc.b] = -1
				changed = true
			}
			if assign[nc.b] == 1 && assign[nc.a] == 0 {
				assign[nc.a] = -1
				changed = true
			}
		}
	}

	for _, c := range active {
		_, _, sat := p.evalClause(assign, c.lits, false)
		if !sat && allAssigned(assign, c.lits) {
			return false
		}
	}

	idx := firstUnassigned(assign)
	if idx == -1 {
		return true
	}

	assign[idx] = 1
	if p.dpll(append([]int8(nil), assign...), active) {
		return true
	}
	assign[idx] = -1
	return p.dpll(append([]int8(nil), assign...), active)
}

// evalClause reports (remainingCount, theUnitLiteralIfExactlyOne, satisfied).
func (p *problem) evalClause(assign []int8, lits []int, _ bool) (int, int, bool) {
	remaining := 0
	unit := -1
	for _, l := range lits {
		switch assign[l] {
		case 1:
			return 0, -1, true
		case 0:
			remaining++
			unit = l
		}
	}
	if remaining == 1 {
		return remaining, unit, false
	}
	return remaining, -1, false
}

func allAssigned(assign []int8, lits []int) bool {
	for _, l := range lits {
		if assign[l] == 0 {
			return false
		}
	}
	return true
}

func firstUnassigned(assign []int8) int {
	for i, a := range assign {
		if a == 0 {
			return i
		}
	}
	return -1
}

// Diagnose runs the SAT post-pass over found/facts, returning nil if
// satisfiable (no conflict) or a minimal-unsatisfiable-subset-derived
// Conflict map otherwise.
func Diagnose(found []*model.ResolvedDependency, facts []reqFact) Conflict {
	p := buildProblem(found, facts)
	if len(p.reqClauses) == 0 {
		return nil
	}

	if p.solve(p.reqClauses) {
		return nil
	}

	core := minimalUnsatCore(p, p.reqClauses)
	conflict := Conflict{}
	for _, c := range core {
		conflict[c.fact.name] = append(conflict[c.fact.name], c.fact.req.String())
	}
	return conflict
}

// minimalUnsatCore is a deletion-based MUS algorithm: requirement clauses
// are removed one at a time and the problem re-solved; survivors are the
// diagnosis.
func minimalUnsatCore(p *problem, clauses []clause) []clause {
	core := append([]clause(nil), clauses...)
	i := 0
	for i < len(core) {
		trial := make([]clause, 0, len(core)-1)
		trial = append(trial, core[:i]...)
		trial = append(trial, core[i+1:]...)
		if !p.solve(trial) {
			core = trial
			continue
		}
		i++
	}
	return core
}
