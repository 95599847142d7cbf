// Package subgraph describes a rewritable region of an operator graph: a
// root node plus child nodes that are replaced together.
package subgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/specialistvlad/opgraph/internal/opgraph"
)

// Subgraph is a root node and an ordered set of child nodes within a graph.
// All derived views are computed against the graph on demand and never
// mutate it.
type Subgraph struct {
	Graph    *opgraph.Graph
	Root     string
	Children []string
}

// New returns a descriptor for root and children in g.
func New(g *opgraph.Graph, root string, children ...string) Subgraph {
	return Subgraph{Graph: g, Root: root, Children: children}
}

// AllNodes returns the root followed by the children, without duplicates.
func (s Subgraph) AllNodes() []string {
	all := make([]string, 0, 1+len(s.Children))
	all = append(all, s.Root)
	for _, c := range s.Children {
		if !slices.Contains(all, c) {
			all = append(all, c)
		}
	}
	return all
}

// Contains reports whether the named node belongs to the subgraph.
func (s Subgraph) Contains(node string) bool {
	return node == s.Root || slices.Contains(s.Children, node)
}

// Outputs returns the variables produced inside the subgraph that are
// visible outside it: a produced variable is an output when it has no
// consumers at all or at least one consumer outside the subgraph. Root
// outputs come first in declared order, then each child's in child order.
func (s Subgraph) Outputs() []string {
	var out []string
	for _, name := range s.AllNodes() {
		n, ok := s.Graph.Node(name)
		if !ok {
			continue
		}
		for _, v := range n.Outputs {
			if slices.Contains(out, v) {
				continue
			}
			consumers := s.Graph.Consumers(v)
			if len(consumers) == 0 || slices.ContainsFunc(consumers, func(c string) bool { return !s.Contains(c) }) {
				out = append(out, v)
			}
		}
	}
	return out
}

// Inputs returns the variables read by subgraph nodes whose producer is not
// part of the subgraph, in first-occurrence order over AllNodes.
func (s Subgraph) Inputs() []string {
	var in []string
	for _, name := range s.AllNodes() {
		n, ok := s.Graph.Node(name)
		if !ok {
			continue
		}
		for _, v := range n.Inputs {
			if slices.Contains(in, v) {
				continue
			}
			if p := s.Graph.Producer(v); p != "" && s.Contains(p) {
				continue
			}
			in = append(in, v)
		}
	}
	return in
}

// Valid reports whether every node of the subgraph still exists in the graph.
func (s Subgraph) Valid() bool {
	for _, name := range s.AllNodes() {
		if !s.Graph.HasNode(name) {
			return false
		}
	}
	return true
}

func (s Subgraph) String() string {
	if len(s.Children) == 0 {
		return fmt.Sprintf("subgraph(%s)", s.Root)
	}
	return fmt.Sprintf("subgraph(%s <- %s)", s.Root, strings.Join(s.Children, ", "))
}
