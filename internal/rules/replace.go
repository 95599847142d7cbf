package rules

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/specialistvlad/opgraph/internal/builder"
	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/rewrite"
	"github.com/specialistvlad/opgraph/internal/subgraph"
	"github.com/zclconf/go-cty/cty"
)

func compileReplace(r *config.ReplaceDef, kinds map[string]*config.KindDef) (rewrite.Processor, error) {
	if r.Bypass {
		if r.Kind != "" {
			return nil, fmt.Errorf("bypass and kind are mutually exclusive")
		}
		return rewrite.ProcessorFunc(bypass), nil
	}
	if r.Kind == "" {
		return nil, fmt.Errorf("either kind or bypass must be set")
	}
	return &nodeReplacer{kind: builder.ResolveKind(kinds, r.Kind), def: r}, nil
}

// bypass forwards subgraph input i to output i.
func bypass(ctx context.Context, _ *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
	in, out := sg.Inputs(), sg.Outputs()
	if len(in) != len(out) {
		return nil, fmt.Errorf("bypass of %s needs as many inputs as outputs, got %d and %d", sg, len(in), len(out))
	}
	ctxlog.FromContext(ctx).Debug("Bypassing subgraph.", "subgraph", sg.String(), "inputs", in)
	return in, nil
}

// nodeReplacer replaces a subgraph with a single node reading the subgraph
// inputs and producing one fresh variable per subgraph output.
type nodeReplacer struct {
	kind opgraph.OpKind
	def  *config.ReplaceDef
}

func (p *nodeReplacer) Process(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
	root, ok := g.Node(sg.Root)
	if !ok {
		return nil, fmt.Errorf("root %q not found", sg.Root)
	}

	name := freshName(g, sg.Root+"_"+p.kind.Name)
	outs := make([]string, len(sg.Outputs()))
	for i := range outs {
		outs[i] = freshName(g, fmt.Sprintf("%s_out%d", name, i))
	}

	attrs := make(map[string]cty.Value)
	if p.def.KeepAttributes {
		maps.Copy(attrs, root.Attributes)
	}
	maps.Copy(attrs, p.def.Attributes)
	if len(attrs) == 0 {
		attrs = nil
	}

	n := opgraph.Node{
		Name:        name,
		Kind:        p.kind,
		Inputs:      sg.Inputs(),
		Outputs:     outs,
		ControlDeps: externalControlDeps(g, sg),
		Attributes:  attrs,
	}
	if err := g.AddNode(n); err != nil {
		return nil, fmt.Errorf("failed to add replacement node: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Replacement node added.", "node", name, "kind", p.kind.Name, "subgraph", sg.String())
	return outs, nil
}

// externalControlDeps collects the control dependencies subgraph nodes hold
// on elements that survive the rewrite, so the replacement keeps them.
func externalControlDeps(g *opgraph.Graph, sg subgraph.Subgraph) []string {
	var deps []string
	for _, name := range sg.AllNodes() {
		n, ok := g.Node(name)
		if !ok {
			continue
		}
		for _, d := range n.ControlDeps {
			if sg.Contains(d) || sg.Contains(g.Producer(d)) || slices.Contains(deps, d) {
				continue
			}
			deps = append(deps, d)
		}
	}
	return deps
}

// freshName returns base, or base with the lowest numeric suffix that is not
// already a node or variable name.
func freshName(g *opgraph.Graph, base string) string {
	taken := func(s string) bool { return g.HasNode(s) || g.HasVariable(s) }
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
