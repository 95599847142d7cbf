package builder

import (
	"fmt"

	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/opgraph"
)

// Export converts g back into a config model: graph inputs in insertion
// order, ops in topological order and one KindDef per kind in use.
// Variables produced by a node cannot carry control dependencies in the
// model, so such graphs are rejected.
func Export(g *opgraph.Graph) (*config.Model, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	m := config.NewModel()
	for _, v := range g.Variables() {
		if !v.IsInput() {
			if len(v.ControlDeps) > 0 {
				return nil, fmt.Errorf("variable %q produced by %q has control dependencies, which cannot be exported", v.Name, v.Producer)
			}
			continue
		}
		m.Graph.Inputs = append(m.Graph.Inputs, &config.InputDef{Name: v.Name, ControlDeps: v.ControlDeps})
	}

	for _, name := range order {
		n, _ := g.Node(name)
		if existing, ok := m.Kinds[n.Kind.Name]; ok {
			if existing.Inputs != n.Kind.Inputs || existing.Outputs != n.Kind.Outputs {
				return nil, fmt.Errorf("kind %q is used with conflicting arities", n.Kind.Name)
			}
		} else {
			m.Kinds[n.Kind.Name] = &config.KindDef{Name: n.Kind.Name, Inputs: n.Kind.Inputs, Outputs: n.Kind.Outputs}
		}
		m.Graph.Ops = append(m.Graph.Ops, &config.OpDef{
			Name:        n.Name,
			Kind:        n.Kind.Name,
			Inputs:      n.Inputs,
			Outputs:     n.Outputs,
			ControlDeps: n.ControlDeps,
			Attributes:  n.Attributes,
		})
	}
	return m, nil
}
