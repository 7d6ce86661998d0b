package model

import "github.com/a2-ai/rv/internal/version"

// Dependency is an edge out of a Package Record: either a bare name or a
// name pinned to a Requirement.
type Dependency struct {
	Name string
	Req  *version.Requirement // nil for Simple
}

func Simple(name string) Dependency { return Dependency{Name: name} }

func Pinned(name string, req version.Requirement) Dependency {
	return Dependency{Name: name, Req: &req}
}

func (d Dependency) IsPinned() bool { return d.Req != nil }

func (d Dependency) String() string {
	if d.Req == nil {
		return d.Name
	}
	return d.Name + " (" + d.Req.String() + ")"
}

// coreSet and recommendedSet are the language's built-in and recommended
// package names; dependencies on them are excluded from installation
// planning.
var coreSet = map[string]bool{
	"R":         true,
	"base":      true,
	"compiler":  true,
	"datasets":  true,
	"grDevices": true,
	"graphics":  true,
	"grid":      true,
	"methods":   true,
	"parallel":  true,
	"splines":   true,
	"stats":     true,
	"stats4":    true,
	"tcltk":     true,
	"tools":     true,
	"utils":     true,
}

var recommendedSet = map[string]bool{
	"boot":            true,
	"class":           true,
	"cluster":         true,
	"codetools":       true,
	"foreign":         true,
	"KernSmooth":      true,
	"lattice":         true,
	"MASS":            true,
	"Matrix":          true,
	"mgcv":            true,
	"nlme":            true,
	"nnet":            true,
	"rpart":           true,
	"spatial":         true,
	"survival":        true,
}

// IsExcluded reports whether a dependency name should never be scheduled
// for installation because it ships with the language runtime or is part
// of its recommended set.
func IsExcluded(name string) bool {
	return coreSet[name] || recommendedSet[name]
}

// FilterInstallable drops core/recommended names from a dependency list,
// preserving order.
func FilterInstallable(deps []Dependency) []Dependency {
	out := make([]Dependency, 0, len(deps))
	for _, d := range deps {
		if !IsExcluded(d.Name) {
			out = append(out, d)
		}
	}
	return out
}
