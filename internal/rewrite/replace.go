package rewrite

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/subgraph"
)

// Result summarizes one Replace call.
type Result struct {
	Matched int // Subgraphs discovered before any rewriting
	Applied int // Subgraphs replaced
	Skipped int // Subgraphs whose nodes an earlier match had already removed
}

// RewriteError reports the match at which Replace stopped.
type RewriteError struct {
	Index int    // Position of the match in discovery order
	Root  string // Root node of the failing subgraph
	Err   error
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite of match %d rooted at %q failed: %v", e.Index, e.Root, e.Err)
}

func (e *RewriteError) Unwrap() error { return e.Err }

// FindAll returns every subgraph of g selected by m, one per matching root,
// in node insertion order.
func FindAll(g *opgraph.Graph, m Matcher) []subgraph.Subgraph {
	var out []subgraph.Subgraph
	for _, n := range g.Nodes() {
		if m.Matches(g, n) {
			out = append(out, m.Subgraph(g, n))
		}
	}
	return out
}

// Replace rewrites a copy of g, replacing every subgraph selected by m with
// the output of p. g itself is never modified. On error the copy is
// discarded and nil is returned.
func Replace(ctx context.Context, g *opgraph.Graph, m Matcher, p Processor) (*opgraph.Graph, error) {
	out, _, err := ReplaceWithStats(ctx, g, m, p)
	return out, err
}

// ReplaceWithStats is Replace that also reports how many matches were found,
// applied and skipped. The Result is meaningful on error too: it counts what
// happened before the failing match.
func ReplaceWithStats(ctx context.Context, g *opgraph.Graph, m Matcher, p Processor) (*opgraph.Graph, Result, error) {
	logger := ctxlog.FromContext(ctx)
	var res Result

	if err := ctx.Err(); err != nil {
		return nil, res, err
	}
	if err := g.Validate(); err != nil {
		return nil, res, fmt.Errorf("input graph is inconsistent: %w", err)
	}

	working := g.Duplicate()
	matches := FindAll(working, m)
	res.Matched = len(matches)
	logger.Debug("Subgraph matches discovered.", "count", len(matches))

	for i, found := range matches {
		if err := ctx.Err(); err != nil {
			return nil, res, err
		}
		// Rebind to the working graph as the processor sees it now.
		sg := subgraph.New(working, found.Root, found.Children...)
		if !sg.Valid() {
			logger.Debug("Skipping match, nodes already replaced.", "index", i, "subgraph", sg.String())
			res.Skipped++
			continue
		}
		if err := apply(ctx, working, sg, p); err != nil {
			return nil, res, &RewriteError{Index: i, Root: sg.Root, Err: err}
		}
		logger.Debug("Subgraph replaced.", "index", i, "subgraph", sg.String())
		res.Applied++
	}

	if err := working.Validate(); err != nil {
		return nil, res, fmt.Errorf("rewritten graph is inconsistent: %w", err)
	}
	if _, err := working.TopologicalOrder(); err != nil {
		return nil, res, fmt.Errorf("rewritten graph is inconsistent: %w", err)
	}
	return working, res, nil
}

// apply moves one subgraph through Processed, Spliced and Removed.
func apply(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph, p Processor) error {
	members := sg.AllNodes()
	oldOutputs := sg.Outputs()
	inputs := sg.Inputs()
	produced := producedBy(g, members)

	newOutputs, err := p.Process(ctx, g, sg)
	if err != nil {
		return fmt.Errorf("processor failed: %w", err)
	}
	if !sg.Valid() {
		return &opgraph.UnsupportedRewriteError{Name: sg.Root, Msg: "processor removed a node of the matched subgraph"}
	}
	if len(newOutputs) != len(oldOutputs) {
		return &opgraph.ArityMismatchError{Expected: len(oldOutputs), Got: len(newOutputs)}
	}

	if err := splice(g, sg, oldOutputs, newOutputs); err != nil {
		return err
	}
	if err := redirectControlDeps(g, sg, members, produced, oldOutputs, newOutputs); err != nil {
		return err
	}
	if err := removeConsumerFirst(g, members); err != nil {
		return err
	}
	for _, in := range inputs {
		for _, c := range g.Consumers(in) {
			if slices.Contains(members, c) {
				return &opgraph.GraphIntegrityError{
					Invariant: opgraph.InvariantBackReference,
					Name:      in,
					Msg:       fmt.Sprintf("removed node %q is still listed as a consumer", c),
				}
			}
		}
	}
	return nil
}

// splice points every outside consumer of old output i at new output i.
func splice(g *opgraph.Graph, sg subgraph.Subgraph, oldOutputs, newOutputs []string) error {
	for i, old := range oldOutputs {
		repl := newOutputs[i]
		if !g.HasVariable(repl) {
			return &opgraph.GraphIntegrityError{
				Invariant: opgraph.InvariantNoDangling,
				Name:      repl,
				Msg:       "replacement output is not a variable of the graph",
			}
		}
		if repl == old {
			return &opgraph.UnsupportedRewriteError{Name: old, Msg: "reusing a subgraph output as its own replacement is not supported"}
		}
		producer := g.Producer(repl)
		if producer != "" && sg.Contains(producer) {
			return &opgraph.UnsupportedRewriteError{Name: repl, Msg: fmt.Sprintf("replacement is produced by %q inside the matched subgraph", producer)}
		}
		if producer != "" && dependsOn(g, repl, old) {
			return &opgraph.UnsupportedRewriteError{Name: repl, Msg: fmt.Sprintf("replacement depends on the output %q it replaces", old)}
		}
		if err := g.ReplaceUses(old, repl, sg.Contains); err != nil {
			return err
		}
	}
	return nil
}

// redirectControlDeps moves control dependencies held by the rest of the
// graph on subgraph nodes, or on variables they produce, onto the
// replacement. Old outputs were already handled by splice.
func redirectControlDeps(g *opgraph.Graph, sg subgraph.Subgraph, members, produced, oldOutputs, newOutputs []string) error {
	replacement := controlTargets(g, newOutputs)
	for _, name := range members {
		if err := g.ReplaceControlDep(name, replacement, sg.Contains); err != nil {
			return err
		}
	}
	for _, v := range produced {
		if slices.Contains(oldOutputs, v) {
			continue
		}
		if err := g.ReplaceControlDep(v, replacement, sg.Contains); err != nil {
			return err
		}
	}
	return nil
}

// controlTargets maps replacement outputs to the elements a control
// dependency should wait for: each output's producer, or the variable itself
// when it has none.
func controlTargets(g *opgraph.Graph, outputs []string) []string {
	var targets []string
	for _, v := range outputs {
		t := g.Producer(v)
		if t == "" {
			t = v
		}
		if !slices.Contains(targets, t) {
			targets = append(targets, t)
		}
	}
	return targets
}

// removeConsumerFirst deletes members in an order where no node is removed
// while another member still reads one of its outputs.
func removeConsumerFirst(g *opgraph.Graph, members []string) error {
	remaining := slices.Clone(members)
	for len(remaining) > 0 {
		var lastErr error
		next := remaining[:0:0]
		for _, name := range remaining {
			if err := g.RemoveNode(name); err != nil {
				lastErr = err
				next = append(next, name)
			}
		}
		if len(next) == len(remaining) {
			return errors.Join(fmt.Errorf("cannot remove subgraph nodes %v", next), lastErr)
		}
		remaining = next
	}
	return nil
}

// dependsOn reports whether v reaches old by walking producers, inputs and
// control dependencies backwards.
func dependsOn(g *opgraph.Graph, v, old string) bool {
	seen := make(map[string]struct{})
	stack := []string{v}
	for len(stack) > 0 {
		name := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if name == old {
			return true
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if n, ok := g.Node(name); ok {
			stack = append(stack, n.Inputs...)
			stack = append(stack, n.ControlDeps...)
			continue
		}
		if x, ok := g.Variable(name); ok {
			if x.Producer != "" {
				stack = append(stack, x.Producer)
			}
			stack = append(stack, x.ControlDeps...)
		}
	}
	return false
}

func producedBy(g *opgraph.Graph, members []string) []string {
	var out []string
	for _, name := range members {
		if n, ok := g.Node(name); ok {
			out = append(out, n.Outputs...)
		}
	}
	return out
}
