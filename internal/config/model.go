package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Variadic marks a KindDef arity that is not checked.
const Variadic = -1

// Model is the unified, format-agnostic representation of all loaded files:
// operator kinds, one graph and an ordered list of rewrite rules.
type Model struct {
	Kinds map[string]*KindDef
	Graph *GraphDef
	Rules []*RuleDef
}

// NewModel returns an empty model ready for merging.
func NewModel() *Model {
	return &Model{
		Kinds: make(map[string]*KindDef),
		Graph: &GraphDef{},
	}
}

// Merge folds other into m. Kind and rule names must not collide; graph
// elements and rules are appended in order.
func (m *Model) Merge(other *Model) error {
	for name, k := range other.Kinds {
		if _, dup := m.Kinds[name]; dup {
			return fmt.Errorf("kind %q is declared more than once", name)
		}
		m.Kinds[name] = k
	}
	if other.Graph != nil {
		m.Graph.Inputs = append(m.Graph.Inputs, other.Graph.Inputs...)
		m.Graph.Ops = append(m.Graph.Ops, other.Graph.Ops...)
	}
	for _, r := range other.Rules {
		for _, existing := range m.Rules {
			if existing.Name == r.Name {
				return fmt.Errorf("rule %q is declared more than once", r.Name)
			}
		}
		m.Rules = append(m.Rules, r)
	}
	return nil
}

// KindDef declares an operator kind and its arity.
type KindDef struct {
	Name        string
	Description string
	Inputs      int // Variadic when unchecked
	Outputs     int // Variadic when unchecked
}

// GraphDef is the declared operator graph.
type GraphDef struct {
	Inputs []*InputDef
	Ops    []*OpDef
}

// InputDef is a graph input variable.
type InputDef struct {
	Name        string
	ControlDeps []string
}

// OpDef is one operation node.
type OpDef struct {
	Name        string
	Kind        string
	Inputs      []string
	Outputs     []string
	ControlDeps []string
	Attributes  map[string]cty.Value
}

// --- Rewrite rule models ---

// RuleDef pairs a subgraph match with its replacement.
type RuleDef struct {
	Name    string
	Match   *MatchDef
	Replace *ReplaceDef
}

// MatchDef describes the node at the root of a match. Empty strings and nil
// counts are not checked.
type MatchDef struct {
	Kind        string
	KindPattern string
	Name        string
	NamePattern string
	When        string // CEL expression over the node
	InputCount  *int
	OutputCount *int
	Inputs      []*InputMatchDef
}

// InputMatchDef constrains the producer of one root input. When Include is
// set the producer, and whatever its own Inputs include, join the matched
// subgraph; otherwise it is only checked.
type InputMatchDef struct {
	Index   int
	Include bool
	Match   *MatchDef
}

// ReplaceDef describes what a match is replaced with. Bypass forwards the
// subgraph inputs to its outputs; otherwise one node of Kind is created.
type ReplaceDef struct {
	Kind           string
	Bypass         bool
	KeepAttributes bool // copy the matched root's attributes first
	Attributes     map[string]cty.Value
}
