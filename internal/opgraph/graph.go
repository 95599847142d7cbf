package opgraph

import (
	"slices"
	"sort"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		vars:  make(map[string]*Variable),
	}
}

// Len returns the number of nodes and variables in the graph.
func (g *Graph) Len() (nodes, variables int) {
	return len(g.nodes), len(g.vars)
}

// Node returns a copy of the named node.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.clone(), true
}

// Variable returns a copy of the named variable.
func (g *Graph) Variable(name string) (*Variable, bool) {
	v, ok := g.vars[name]
	if !ok {
		return nil, false
	}
	return v.clone(), true
}

// HasNode reports whether a node with the given name exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// HasVariable reports whether a variable with the given name exists.
func (g *Graph) HasVariable(name string) bool {
	_, ok := g.vars[name]
	return ok
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name].clone())
	}
	return out
}

// Variables returns copies of all variables in insertion order.
func (g *Graph) Variables() []*Variable {
	out := make([]*Variable, 0, len(g.varOrder))
	for _, name := range g.varOrder {
		out = append(out, g.vars[name].clone())
	}
	return out
}

// VariableNames returns all variable names sorted lexically.
func (g *Graph) VariableNames() []string {
	names := make([]string, 0, len(g.vars))
	for name := range g.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Producer returns the name of the node producing the variable, or "" for
// graph inputs and unknown variables.
func (g *Graph) Producer(variable string) string {
	if v, ok := g.vars[variable]; ok {
		return v.Producer
	}
	return ""
}

// Consumers returns the ordered consumer list of a variable.
func (g *Graph) Consumers(variable string) []string {
	if v, ok := g.vars[variable]; ok {
		return slices.Clone(v.Consumers)
	}
	return nil
}

func (g *Graph) exists(name string) bool {
	_, isNode := g.nodes[name]
	_, isVar := g.vars[name]
	return isNode || isVar
}

// controlDeps returns a pointer to the control-dependency list of the named
// node or variable.
func (g *Graph) controlDeps(name string) *[]string {
	if n, ok := g.nodes[name]; ok {
		return &n.ControlDeps
	}
	if v, ok := g.vars[name]; ok {
		return &v.ControlDeps
	}
	return nil
}

// AddVariable registers a graph input (a variable without a producer).
func (g *Graph) AddVariable(v Variable) error {
	if v.Name == "" {
		return integrityErr(InvariantNoDangling, "", "variable name cannot be empty")
	}
	if g.exists(v.Name) {
		return integrityErr(InvariantUniqueName, v.Name, "name already exists in graph")
	}
	if v.Producer != "" {
		return integrityErr(InvariantSingleProducer, v.Name, "variables with a producer are created by AddNode")
	}
	if len(v.Consumers) > 0 || len(v.ControlDepFor) > 0 {
		return integrityErr(InvariantBackReference, v.Name, "back-references are maintained by the graph and must be empty")
	}
	deps, err := g.checkControlDeps(v.Name, v.ControlDeps)
	if err != nil {
		return err
	}

	g.vars[v.Name] = &Variable{Name: v.Name, ControlDeps: deps}
	g.varOrder = append(g.varOrder, v.Name)
	g.linkControlDeps(v.Name, deps)
	return nil
}

// AddNode adds an operation node and creates its output variables. Inputs
// and control dependencies must already exist; outputs must not.
func (g *Graph) AddNode(n Node) error {
	if n.Name == "" {
		return integrityErr(InvariantNoDangling, "", "node name cannot be empty")
	}
	if g.exists(n.Name) {
		return integrityErr(InvariantUniqueName, n.Name, "name already exists in graph")
	}
	if err := n.Kind.checkArity(&n); err != nil {
		return err
	}
	for _, in := range n.Inputs {
		if _, ok := g.vars[in]; !ok {
			return integrityErr(InvariantNoDangling, n.Name, "input %q is not a variable in the graph", in)
		}
	}
	seen := make(map[string]struct{}, len(n.Outputs))
	for _, out := range n.Outputs {
		if out == "" {
			return integrityErr(InvariantNoDangling, n.Name, "output name cannot be empty")
		}
		if out == n.Name {
			return integrityErr(InvariantUniqueName, n.Name, "output %q shares the node's name", out)
		}
		if _, dup := seen[out]; dup {
			return integrityErr(InvariantSingleProducer, n.Name, "output %q listed twice", out)
		}
		seen[out] = struct{}{}
		if g.exists(out) {
			return integrityErr(InvariantSingleProducer, out, "variable already exists; node %q cannot produce it", n.Name)
		}
	}
	deps, err := g.checkControlDeps(n.Name, n.ControlDeps)
	if err != nil {
		return err
	}

	stored := n.clone()
	stored.ControlDeps = deps
	g.nodes[n.Name] = stored
	g.order = append(g.order, n.Name)

	for _, out := range n.Outputs {
		g.vars[out] = &Variable{Name: out, Producer: n.Name}
		g.varOrder = append(g.varOrder, out)
	}
	for _, in := range n.Inputs {
		v := g.vars[in]
		v.Consumers = append(v.Consumers, n.Name)
	}
	g.linkControlDeps(n.Name, deps)
	return nil
}

// AddControlDependency records that name (a node or variable) must be
// considered after on (a node or variable). Adding an existing edge is a no-op.
func (g *Graph) AddControlDependency(name, on string) error {
	deps := g.controlDeps(name)
	if deps == nil {
		return integrityErr(InvariantNoDangling, name, "no such node or variable")
	}
	if !g.exists(on) {
		return integrityErr(InvariantNoDangling, name, "control dependency %q does not exist", on)
	}
	if name == on {
		return integrityErr(InvariantNoDangling, name, "element cannot control-depend on itself")
	}
	if slices.Contains(*deps, on) {
		return nil
	}
	*deps = append(*deps, on)
	g.linkControlDeps(name, []string{on})
	return nil
}

// checkControlDeps validates a control-dependency list for owner and returns
// it deduplicated.
func (g *Graph) checkControlDeps(owner string, deps []string) ([]string, error) {
	var out []string
	for _, d := range deps {
		if d == owner {
			return nil, integrityErr(InvariantNoDangling, owner, "element cannot control-depend on itself")
		}
		if !g.exists(d) {
			return nil, integrityErr(InvariantNoDangling, owner, "control dependency %q does not exist", d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

// linkControlDeps records owner in the ControlDepFor list of every variable
// among deps.
func (g *Graph) linkControlDeps(owner string, deps []string) {
	for _, d := range deps {
		if v, ok := g.vars[d]; ok && !slices.Contains(v.ControlDepFor, owner) {
			v.ControlDepFor = append(v.ControlDepFor, owner)
		}
	}
}

// unlinkControlDeps is the inverse of linkControlDeps.
func (g *Graph) unlinkControlDeps(owner string, deps []string) {
	for _, d := range deps {
		if v, ok := g.vars[d]; ok {
			v.ControlDepFor = removeAll(v.ControlDepFor, owner)
		}
	}
}

// Duplicate returns a deep copy of the graph. Mutating the copy never affects
// the original.
func (g *Graph) Duplicate() *Graph {
	dup := &Graph{
		nodes:    make(map[string]*Node, len(g.nodes)),
		vars:     make(map[string]*Variable, len(g.vars)),
		order:    slices.Clone(g.order),
		varOrder: slices.Clone(g.varOrder),
	}
	for name, n := range g.nodes {
		dup.nodes[name] = n.clone()
	}
	for name, v := range g.vars {
		dup.vars[name] = v.clone()
	}
	return dup
}

func removeAll(list []string, s string) []string {
	return slices.DeleteFunc(list, func(e string) bool { return e == s })
}

func removeFirstN(list []string, s string, n int) []string {
	out := list[:0]
	for _, e := range list {
		if e == s && n > 0 {
			n--
			continue
		}
		out = append(out, e)
	}
	return out
}

func replaceAll(list []string, old, new string) []string {
	for i, e := range list {
		if e == old {
			list[i] = new
		}
	}
	return list
}
