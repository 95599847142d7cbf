package opgraph

import (
	"slices"
)

// controlReferrers returns every node and variable whose ControlDeps name
// target, nodes first in insertion order.
func (g *Graph) controlReferrers(target string) []string {
	var out []string
	for _, name := range g.order {
		if slices.Contains(g.nodes[name].ControlDeps, target) {
			out = append(out, name)
		}
	}
	for _, name := range g.varOrder {
		if slices.Contains(g.vars[name].ControlDeps, target) {
			out = append(out, name)
		}
	}
	return out
}

// RemoveNode deletes a node together with the variables it produces. It
// fails if any other element still consumes one of those variables or holds
// a control dependency on the node or its outputs.
func (g *Graph) RemoveNode(name string) error {
	n, ok := g.nodes[name]
	if !ok {
		return integrityErr(InvariantNoDangling, name, "no such node")
	}
	dying := func(ref string) bool {
		return ref == name || slices.Contains(n.Outputs, ref)
	}
	for _, out := range n.Outputs {
		v := g.vars[out]
		for _, c := range v.Consumers {
			if c != name {
				return integrityErr(InvariantBackReference, out, "output of %q is still consumed by %q", name, c)
			}
		}
		for _, ref := range v.ControlDepFor {
			if !dying(ref) {
				return integrityErr(InvariantNoDangling, out, "output of %q is a control dependency of %q", name, ref)
			}
		}
	}
	for _, ref := range g.controlReferrers(name) {
		if !dying(ref) {
			return integrityErr(InvariantNoDangling, name, "node is a control dependency of %q", ref)
		}
	}

	for _, in := range n.Inputs {
		if v, ok := g.vars[in]; ok {
			v.Consumers = removeAll(v.Consumers, name)
		}
	}
	g.unlinkControlDeps(name, n.ControlDeps)
	for _, out := range n.Outputs {
		g.unlinkControlDeps(out, g.vars[out].ControlDeps)
	}
	for _, out := range n.Outputs {
		delete(g.vars, out)
		g.varOrder = removeAll(g.varOrder, out)
	}
	delete(g.nodes, name)
	g.order = removeAll(g.order, name)
	return nil
}

// RemoveVariable deletes a variable that has no live producer, no consumers
// and is not a control dependency of anything.
func (g *Graph) RemoveVariable(name string) error {
	v, ok := g.vars[name]
	if !ok {
		return integrityErr(InvariantNoDangling, name, "no such variable")
	}
	if v.Producer != "" {
		if _, live := g.nodes[v.Producer]; live {
			return integrityErr(InvariantSingleProducer, name, "variable is produced by live node %q; remove the node instead", v.Producer)
		}
	}
	if len(v.Consumers) > 0 {
		return integrityErr(InvariantBackReference, name, "variable still has consumers %v", v.Consumers)
	}
	if len(v.ControlDepFor) > 0 {
		return integrityErr(InvariantNoDangling, name, "variable is a control dependency of %v", v.ControlDepFor)
	}

	g.unlinkControlDeps(name, v.ControlDeps)
	delete(g.vars, name)
	g.varOrder = removeAll(g.varOrder, name)
	return nil
}

// Rename gives a node or variable a new name and rewrites every occurrence of
// the old name: input and output lists, producer fields, consumer lists,
// control dependencies and their back-references. The new name must be
// unused. Either every occurrence is rewritten or, on error, none is.
func (g *Graph) Rename(old, new string) error {
	if new == "" {
		return integrityErr(InvariantNoDangling, old, "new name cannot be empty")
	}
	if !g.exists(old) {
		return integrityErr(InvariantNoDangling, old, "no such node or variable")
	}
	if old == new {
		return nil
	}
	if g.exists(new) {
		return integrityErr(InvariantUniqueName, new, "name already exists in graph")
	}

	// Names are unique across nodes and variables, so substituting every
	// string occurrence is exact.
	if n, ok := g.nodes[old]; ok {
		delete(g.nodes, old)
		n.Name = new
		g.nodes[new] = n
		g.order = replaceAll(g.order, old, new)
	}
	if v, ok := g.vars[old]; ok {
		delete(g.vars, old)
		v.Name = new
		g.vars[new] = v
		g.varOrder = replaceAll(g.varOrder, old, new)
	}
	for _, n := range g.nodes {
		n.Inputs = replaceAll(n.Inputs, old, new)
		n.Outputs = replaceAll(n.Outputs, old, new)
		n.ControlDeps = replaceAll(n.ControlDeps, old, new)
	}
	for _, v := range g.vars {
		if v.Producer == old {
			v.Producer = new
		}
		v.Consumers = replaceAll(v.Consumers, old, new)
		v.ControlDeps = replaceAll(v.ControlDeps, old, new)
		v.ControlDepFor = replaceAll(v.ControlDepFor, old, new)
	}
	return nil
}

// ReplaceUses redirects every reference to variable old onto variable new:
// positional inputs of nodes and control dependencies of nodes and
// variables. Elements for which exclude returns true keep their references;
// a variable is excluded when its producer is. Consumer and control
// back-references of both variables are updated to match.
func (g *Graph) ReplaceUses(old, new string, exclude func(node string) bool) error {
	oldVar, ok := g.vars[old]
	if !ok {
		return integrityErr(InvariantNoDangling, old, "no such variable")
	}
	newVar, ok := g.vars[new]
	if !ok {
		return integrityErr(InvariantNoDangling, new, "no such variable")
	}
	if old == new {
		return nil
	}
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	if err := g.checkControlRewrite(old, []string{new}, exclude); err != nil {
		return err
	}

	for _, name := range g.order {
		if exclude(name) {
			continue
		}
		n := g.nodes[name]
		moved := 0
		for i, in := range n.Inputs {
			if in == old {
				n.Inputs[i] = new
				moved++
			}
		}
		if moved == 0 {
			continue
		}
		oldVar.Consumers = removeFirstN(oldVar.Consumers, name, moved)
		for j := 0; j < moved; j++ {
			newVar.Consumers = append(newVar.Consumers, name)
		}
	}
	g.rewriteControlRefs(old, []string{new}, exclude)
	return nil
}

// ReplaceControlDep rewrites every control dependency on old (a node or a
// variable) into control dependencies on each name in replacement, skipping
// holders for which exclude returns true. Duplicates and self-references
// produced by the substitution are dropped. An empty replacement is rejected
// when any reference would otherwise be lost.
func (g *Graph) ReplaceControlDep(old string, replacement []string, exclude func(node string) bool) error {
	if !g.exists(old) {
		return integrityErr(InvariantNoDangling, old, "no such node or variable")
	}
	if exclude == nil {
		exclude = func(string) bool { return false }
	}
	if err := g.checkControlRewrite(old, replacement, exclude); err != nil {
		return err
	}
	g.rewriteControlRefs(old, replacement, exclude)
	return nil
}

// excludedHolder reports whether a control-dependency holder is skipped.
// Variables follow their producer.
func (g *Graph) excludedHolder(holder string, exclude func(string) bool) bool {
	if v, ok := g.vars[holder]; ok {
		return v.Producer != "" && exclude(v.Producer)
	}
	return exclude(holder)
}

func (g *Graph) checkControlRewrite(old string, replacement []string, exclude func(string) bool) error {
	for _, r := range replacement {
		if !g.exists(r) {
			return integrityErr(InvariantNoDangling, r, "replacement control dependency does not exist")
		}
	}
	for _, holder := range g.controlReferrers(old) {
		if g.excludedHolder(holder, exclude) {
			continue
		}
		kept := 0
		for _, r := range replacement {
			if r != holder {
				kept++
			}
		}
		if kept == 0 {
			return integrityErr(InvariantNoDangling, holder, "control dependency on %q would be dropped without replacement", old)
		}
	}
	return nil
}

func (g *Graph) rewriteControlRefs(old string, replacement []string, exclude func(string) bool) {
	for _, holder := range g.controlReferrers(old) {
		if g.excludedHolder(holder, exclude) {
			continue
		}
		deps := g.controlDeps(holder)
		added := make([]string, 0, len(replacement))
		for _, r := range replacement {
			if r != holder {
				added = append(added, r)
			}
		}
		var next []string
		for _, d := range *deps {
			if d != old {
				if !slices.Contains(next, d) {
					next = append(next, d)
				}
				continue
			}
			for _, r := range added {
				if !slices.Contains(next, r) {
					next = append(next, r)
				}
			}
		}
		*deps = next
		g.unlinkControlDeps(holder, []string{old})
		g.linkControlDeps(holder, added)
	}
}
