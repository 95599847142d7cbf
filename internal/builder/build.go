package builder

import (
	"context"
	"fmt"
	"slices"

	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/specialistvlad/opgraph/internal/opgraph"
)

// Build constructs a complete, validated operator graph from a config model.
func Build(ctx context.Context, model *config.Model) (*opgraph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	g := opgraph.New()
	if model.Graph == nil {
		return g, nil
	}

	// First pass: graph inputs.
	for _, in := range model.Graph.Inputs {
		if err := g.AddVariable(opgraph.Variable{Name: in.Name}); err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
	}
	logger.Debug("Build: Input creation complete.", "input_count", len(model.Graph.Inputs))

	// Second pass: ops, each once its inputs exist.
	if err := addOps(ctx, g, model); err != nil {
		return nil, err
	}
	logger.Debug("Build: Op creation complete.", "op_count", len(model.Graph.Ops))

	// Third pass: control dependencies.
	for _, in := range model.Graph.Inputs {
		if err := addControlDeps(g, in.Name, in.ControlDeps); err != nil {
			return nil, err
		}
	}
	for _, op := range model.Graph.Ops {
		if err := addControlDeps(g, op.Name, op.ControlDeps); err != nil {
			return nil, err
		}
	}
	logger.Debug("Build: Control dependency linking complete.")

	// Final validation.
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("error validating operator graph: %w", err)
	}
	if _, err := g.TopologicalOrder(); err != nil {
		return nil, fmt.Errorf("error validating operator graph: %w", err)
	}

	nodes, vars := g.Len()
	logger.Info("Build: Graph construction successful.", "nodes", nodes, "variables", vars)
	return g, nil
}

func addOps(ctx context.Context, g *opgraph.Graph, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)

	declared := make(map[string]struct{})
	for _, op := range model.Graph.Ops {
		for _, out := range op.Outputs {
			declared[out] = struct{}{}
		}
	}

	pending := slices.Clone(model.Graph.Ops)
	for len(pending) > 0 {
		var next []*config.OpDef
		for _, op := range pending {
			if !slices.ContainsFunc(op.Inputs, func(in string) bool { return !g.HasVariable(in) }) {
				n := opgraph.Node{
					Name:       op.Name,
					Kind:       ResolveKind(model.Kinds, op.Kind),
					Inputs:     op.Inputs,
					Outputs:    op.Outputs,
					Attributes: op.Attributes,
				}
				if err := g.AddNode(n); err != nil {
					return fmt.Errorf("op %q: %w", op.Name, err)
				}
				logger.Debug("Build: Op added.", "op", op.Name, "kind", op.Kind)
				continue
			}
			next = append(next, op)
		}
		if len(next) == len(pending) {
			return unresolved(g, next, declared)
		}
		pending = next
	}
	return nil
}

// unresolved explains why none of the pending ops could be added.
func unresolved(g *opgraph.Graph, pending []*config.OpDef, declared map[string]struct{}) error {
	for _, op := range pending {
		for _, in := range op.Inputs {
			if g.HasVariable(in) {
				continue
			}
			if _, ok := declared[in]; !ok {
				return fmt.Errorf("op %q: %w", op.Name, &opgraph.GraphIntegrityError{
					Invariant: opgraph.InvariantNoDangling,
					Name:      in,
					Msg:       "input is neither a graph input nor produced by any op",
				})
			}
		}
	}
	return fmt.Errorf("op %q: %w", pending[0].Name, &opgraph.CycleError{Node: pending[0].Name})
}

func addControlDeps(g *opgraph.Graph, name string, deps []string) error {
	for _, dep := range deps {
		if err := g.AddControlDependency(name, dep); err != nil {
			return fmt.Errorf("control dependency of %q on %q: %w", name, dep, err)
		}
	}
	return nil
}
