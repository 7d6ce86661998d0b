// Package plan implements the Build Planner: an incremental Ready/Wait/Done
// state machine over a resolved dependency set, driven by the Sync
// Handler's worker pool as each package finishes installing.
//
// This is the incremental variant (see DESIGN.md for why it was chosen
// over a precomputed topological order): it mutates `installing`/
// `installed` sets and a per-name remaining-deps map as Get/MarkInstalled
// are called, rather than materialising a full order up front, which is
// what lets a live worker pool drive it one completion at a time without
// recomputing anything.
package plan

import "github.com/a2-ai/rv/internal/model"

// Action is the result of a Get call.
type Action int

const (
	ActionWait Action = iota
	ActionInstall
	ActionDone
)

func (a Action) String() string {
	switch a {
	case ActionInstall:
		return "install"
	case ActionDone:
		return "done"
	default:
		return "wait"
	}
}

// Plan is the Build Plan, covering a fixed slice of Resolved Dependencies
// decided at construction time.
type Plan struct {
	deps []*model.ResolvedDependency
	byName map[string]*model.ResolvedDependency

	installed  map[string]bool
	installing map[string]bool

	// fullDeps maps name -> remaining dependency names not yet installed:
	// fullDeps[d.name] == closure(d.deps) \ installed.
	fullDeps map[string]map[string]bool

	total int
}

// New builds a Plan over deps. installed seeds the set of names already
// correctly present in the library, so they are not re-scheduled.
func New(deps []*model.ResolvedDependency, installed []string) *Plan {
	p := &Plan{
		deps:       deps,
		byName:     make(map[string]*model.ResolvedDependency, len(deps)),
		installed:  make(map[string]bool, len(installed)),
		installing: make(map[string]bool),
		fullDeps:   make(map[string]map[string]bool, len(deps)),
	}
	for _, d := range deps {
		p.byName[d.Name] = d
	}
	for _, name := range installed {
		p.installed[name] = true
	}

	for _, d := range deps {
		closure := map[string]bool{}
		p.closureInto(d.Name, closure, map[string]bool{})
		remaining := map[string]bool{}
		for name := range closure {
			if !p.installed[name] {
				remaining[name] = true
			}
		}
		p.fullDeps[d.Name] = remaining
	}

	p.total = 0
	for _, d := range deps {
		if !p.installed[d.Name] {
			p.total++
		}
	}

	return p
}

// closureInto computes the transitive dependency closure of name (over
// names present in this plan's deps slice; names outside it, e.g. core
// packages already filtered by the resolver, are simply absent and thus
// never block anything).
func (p *Plan) closureInto(name string, out, visiting map[string]bool) {
	if visiting[name] {
		return
	}
	visiting[name] = true
	d, ok := p.byName[name]
	if !ok {
		return
	}
	for _, dep := range d.Dependencies {
		out[dep] = true
		p.closureInto(dep, out, visiting)
	}
}

// NumToInstall is |deps| - |installed| at construction time.
func (p *Plan) NumToInstall() int {
	return p.total
}

// Get scans for a dependency whose remaining-dep set is empty and which is
// not yet installed or installing; on a hit it is moved into `installing`
// and ActionInstall is returned alongside it. If every dependency is
// already installed, ActionDone is returned. Otherwise ActionWait.
func (p *Plan) Get() (Action, *model.ResolvedDependency) {
	for _, d := range p.deps {
		if p.installed[d.Name] || p.installing[d.Name] {
			continue
		}
		if len(p.fullDeps[d.Name]) == 0 {
			p.installing[d.Name] = true
			return ActionInstall, d
		}
	}

	if p.allInstalled() {
		return ActionDone, nil
	}
	return ActionWait, nil
}

func (p *Plan) allInstalled() bool {
	for _, d := range p.deps {
		if !p.installed[d.Name] {
			return false
		}
	}
	return true
}

// MarkInstalled moves name from `installing` to `installed` and removes it
// from every other entry's remaining-dep set.
func (p *Plan) MarkInstalled(name string) {
	delete(p.installing, name)
	p.installed[name] = true
	for _, remaining := range p.fullDeps {
		delete(remaining, name)
	}
}

// Installed reports whether name has completed installation.
func (p *Plan) Installed(name string) bool {
	return p.installed[name]
}

// Remaining returns the names not yet installed, for progress reporting.
func (p *Plan) Remaining() []string {
	var out []string
	for _, d := range p.deps {
		if !p.installed[d.Name] {
			out = append(out, d.Name)
		}
	}
	return out
}
