package opgraph

import (
	"maps"
	"slices"

	"github.com/zclconf/go-cty/cty"
)

// Variadic marks an OpKind arity that is not checked.
const Variadic = -1

// OpKind identifies an operator type and the arity the engine enforces for
// it. The operator's numeric semantics are not modeled; nodes carry whatever
// they need in Attributes.
type OpKind struct {
	Name    string
	Inputs  int
	Outputs int
}

// Kind returns an OpKind with unchecked input and output arity.
func Kind(name string) OpKind {
	return OpKind{Name: name, Inputs: Variadic, Outputs: Variadic}
}

// FixedKind returns an OpKind with a fixed input and output arity.
func FixedKind(name string, inputs, outputs int) OpKind {
	return OpKind{Name: name, Inputs: inputs, Outputs: outputs}
}

func (k OpKind) String() string { return k.Name }

func (k OpKind) checkArity(n *Node) error {
	if k.Inputs != Variadic && len(n.Inputs) != k.Inputs {
		return integrityErr(InvariantArity, n.Name, "kind %q takes %d inputs, got %d", k.Name, k.Inputs, len(n.Inputs))
	}
	if k.Outputs != Variadic && len(n.Outputs) != k.Outputs {
		return integrityErr(InvariantArity, n.Name, "kind %q produces %d outputs, got %d", k.Name, k.Outputs, len(n.Outputs))
	}
	return nil
}

// Node is one operation in the graph.
type Node struct {
	Name    string
	Kind    OpKind
	Inputs  []string
	Outputs []string
	// ControlDeps names nodes or variables that must be considered before
	// this node without carrying data.
	ControlDeps []string
	Attributes  map[string]cty.Value
}

func (n *Node) clone() *Node {
	return &Node{
		Name:        n.Name,
		Kind:        n.Kind,
		Inputs:      slices.Clone(n.Inputs),
		Outputs:     slices.Clone(n.Outputs),
		ControlDeps: slices.Clone(n.ControlDeps),
		Attributes:  maps.Clone(n.Attributes),
	}
}

// Variable is a named value edge.
type Variable struct {
	Name string
	// Producer is the node that outputs this variable; empty for graph inputs.
	Producer string
	// Consumers lists every node reading this variable, once per input slot.
	Consumers []string
	// ControlDeps names nodes or variables this variable is ordered after.
	ControlDeps []string
	// ControlDepFor lists nodes and variables whose ControlDeps name this variable.
	ControlDepFor []string
}

// IsInput reports whether the variable has no producer.
func (v *Variable) IsInput() bool { return v.Producer == "" }

func (v *Variable) clone() *Variable {
	return &Variable{
		Name:          v.Name,
		Producer:      v.Producer,
		Consumers:     slices.Clone(v.Consumers),
		ControlDeps:   slices.Clone(v.ControlDeps),
		ControlDepFor: slices.Clone(v.ControlDepFor),
	}
}

// Graph is an operator dataflow graph. The zero value is not usable; call New.
type Graph struct {
	nodes    map[string]*Node
	vars     map[string]*Variable
	order    []string // node insertion order
	varOrder []string // variable insertion order
}
