package rewrite

import (
	"context"

	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/subgraph"
)

// Matcher selects subgraph roots and extracts the subgraph around them.
//
// Implementations must not mutate the graph and must be deterministic for a
// given graph state. Subgraph is only called for nodes that Matches
// accepted, and the returned subgraph's root must be that node.
//
// *predicate.SubgraphPredicate is the standard implementation.
type Matcher interface {
	Matches(g *opgraph.Graph, n *opgraph.Node) bool
	Subgraph(g *opgraph.Graph, n *opgraph.Node) subgraph.Subgraph
}

// Processor builds the replacement for one matched subgraph.
//
// Process may add nodes and variables to g, typically wired to
// sg.Inputs(). It must not remove or rename any node of the subgraph or any
// variable those nodes produce; deleting them is the driver's job. It
// returns one variable name per entry of sg.Outputs(), in the same order.
// A returned name may be an existing variable produced outside the
// subgraph, which forwards that value directly to the old consumers.
type Processor interface {
	Process(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
	return f(ctx, g, sg)
}
