// Package plantree renders a resolved dependency set as an indented tree,
// starting from the manifest's direct dependencies and walking each
// package's Dependencies edges. It is read-only: nothing here feeds back
// into resolution or the Build Plan (internal/plan).
package plantree

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a2-ai/rv/internal/model"
)

// Node is one line of the rendered tree.
type Node struct {
	Name     string
	Version  string
	Children []*Node
}

// Build constructs a forest rooted at the given direct dependency names,
// resolving each name's children through deps (keyed by package name).
// A name that recurs further down its own subtree (a dependency cycle,
// which a correct resolution should never produce) is rendered once and
// not expanded again, so Build always terminates.
func Build(deps []*model.ResolvedDependency, directNames []string) []*Node {
	byName := make(map[string]*model.ResolvedDependency, len(deps))
	for _, d := range deps {
		byName[d.Name] = d
	}

	roots := make([]*Node, 0, len(directNames))
	for _, name := range directNames {
		roots = append(roots, buildNode(byName, name, map[string]bool{}))
	}
	return roots
}

func buildNode(byName map[string]*model.ResolvedDependency, name string, ancestors map[string]bool) *Node {
	n := &Node{Name: name}
	d, ok := byName[name]
	if !ok {
		n.Version = "?"
		return n
	}
	n.Version = d.Version.String()
	if ancestors[name] {
		return n
	}

	childNames := append([]string(nil), d.Dependencies...)
	sort.Strings(childNames)
	next := map[string]bool{name: true}
	for a := range ancestors {
		next[a] = true
	}
	for _, c := range childNames {
		n.Children = append(n.Children, buildNode(byName, c, next))
	}
	return n
}

// Write prints roots as an indented tree, two spaces per depth level,
// "name version" per line.
func Write(w io.Writer, roots []*Node) {
	for _, r := range roots {
		writeNode(w, r, 0)
	}
}

func writeNode(w io.Writer, n *Node, depth int) {
	fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), n.Name, n.Version)
	for _, c := range n.Children {
		writeNode(w, c, depth+1)
	}
}
