package opgraph

import (
	"slices"
)

// Validate checks the producer, back-reference and dangling-name invariants
// over the whole graph and returns the first violation found. Nodes and
// variables are visited in insertion order so the reported violation is
// stable.
func (g *Graph) Validate() error {
	for _, name := range g.order {
		n := g.nodes[name]
		for _, out := range n.Outputs {
			v, ok := g.vars[out]
			if !ok {
				return integrityErr(InvariantNoDangling, name, "output %q does not exist", out)
			}
			if v.Producer != name {
				return integrityErr(InvariantSingleProducer, out, "listed as output of %q but produced by %q", name, v.Producer)
			}
		}
		for _, in := range n.Inputs {
			v, ok := g.vars[in]
			if !ok {
				return integrityErr(InvariantNoDangling, name, "input %q does not exist", in)
			}
			if count(n.Inputs, in) != count(v.Consumers, name) {
				return integrityErr(InvariantBackReference, in, "consumer list records %q %d times, node reads it %d times",
					name, count(v.Consumers, name), count(n.Inputs, in))
			}
		}
		if err := g.validateControlDeps(name, n.ControlDeps); err != nil {
			return err
		}
	}

	for _, name := range g.varOrder {
		v := g.vars[name]
		if v.Producer != "" {
			p, ok := g.nodes[v.Producer]
			if !ok {
				return integrityErr(InvariantNoDangling, name, "producer %q does not exist", v.Producer)
			}
			if !slices.Contains(p.Outputs, name) {
				return integrityErr(InvariantSingleProducer, name, "producer %q does not list it as an output", v.Producer)
			}
		}
		for _, c := range v.Consumers {
			n, ok := g.nodes[c]
			if !ok {
				return integrityErr(InvariantNoDangling, name, "consumer %q does not exist", c)
			}
			if !slices.Contains(n.Inputs, name) {
				return integrityErr(InvariantBackReference, name, "consumer %q does not read it", c)
			}
		}
		for _, holder := range v.ControlDepFor {
			deps := g.controlDeps(holder)
			if deps == nil {
				return integrityErr(InvariantNoDangling, name, "control back-reference %q does not exist", holder)
			}
			if !slices.Contains(*deps, name) {
				return integrityErr(InvariantBackReference, name, "control back-reference %q does not depend on it", holder)
			}
		}
		if err := g.validateControlDeps(name, v.ControlDeps); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validateControlDeps(owner string, deps []string) error {
	for _, d := range deps {
		if !g.exists(d) {
			return integrityErr(InvariantNoDangling, owner, "control dependency %q does not exist", d)
		}
		if v, ok := g.vars[d]; ok && !slices.Contains(v.ControlDepFor, owner) {
			return integrityErr(InvariantBackReference, d, "control back-reference to %q is missing", owner)
		}
	}
	return nil
}

func count(list []string, s string) int {
	c := 0
	for _, e := range list {
		if e == s {
			c++
		}
	}
	return c
}

// predecessors returns the nodes that must precede n: producers of its
// inputs, nodes it control-depends on, and producers of variables it
// control-depends on.
func (g *Graph) predecessors(n *Node) []string {
	var preds []string
	add := func(name string) {
		if name != "" && name != n.Name && !slices.Contains(preds, name) {
			preds = append(preds, name)
		}
	}
	for _, in := range n.Inputs {
		add(g.Producer(in))
	}
	for _, d := range n.ControlDeps {
		if _, ok := g.nodes[d]; ok {
			add(d)
			continue
		}
		add(g.Producer(d))
	}
	return preds
}

// TopologicalOrder returns node names ordered so that every node follows its
// data and control predecessors. Ties are broken by insertion order, so the
// result is deterministic. A *CycleError is returned if no order exists.
func (g *Graph) TopologicalOrder() ([]string, error) {
	// Depth-first search with two sets of nodes:
	// permanent: fully visited, already placed in the order.
	// temporary: on the current recursion stack.
	permanent := make(map[string]bool, len(g.nodes))
	temporary := make(map[string]bool)
	order := make([]string, 0, len(g.nodes))

	var visit func(name string) error
	visit = func(name string) error {
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			return &CycleError{Node: name}
		}
		temporary[name] = true
		for _, p := range g.predecessors(g.nodes[name]) {
			if err := visit(p); err != nil {
				return err
			}
		}
		delete(temporary, name)
		permanent[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range g.order {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Equal reports whether two graphs are structurally identical: same nodes and
// variables in the same insertion order, with equal edge lists and
// attributes.
func (g *Graph) Equal(other *Graph) bool {
	if g == nil || other == nil {
		return g == other
	}
	if !slices.Equal(g.order, other.order) || !slices.Equal(g.varOrder, other.varOrder) {
		return false
	}
	for name, a := range g.nodes {
		b, ok := other.nodes[name]
		if !ok || !nodesEqual(a, b) {
			return false
		}
	}
	for name, a := range g.vars {
		b, ok := other.vars[name]
		if !ok || !variablesEqual(a, b) {
			return false
		}
	}
	return true
}

func nodesEqual(a, b *Node) bool {
	if a.Name != b.Name || a.Kind != b.Kind {
		return false
	}
	if !slices.Equal(a.Inputs, b.Inputs) || !slices.Equal(a.Outputs, b.Outputs) || !slices.Equal(a.ControlDeps, b.ControlDeps) {
		return false
	}
	if len(a.Attributes) != len(b.Attributes) {
		return false
	}
	for k, av := range a.Attributes {
		bv, ok := b.Attributes[k]
		if !ok || !av.RawEquals(bv) {
			return false
		}
	}
	return true
}

func variablesEqual(a, b *Variable) bool {
	return a.Name == b.Name &&
		a.Producer == b.Producer &&
		slices.Equal(a.Consumers, b.Consumers) &&
		slices.Equal(a.ControlDeps, b.ControlDeps) &&
		slices.Equal(a.ControlDepFor, b.ControlDepFor)
}
