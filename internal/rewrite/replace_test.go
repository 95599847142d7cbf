package rewrite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/predicate"
	"github.com/specialistvlad/opgraph/internal/subgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChain builds x -> Y -> y -> Z -> z, plus W reading y when withW is set.
func newChain(t *testing.T, withW bool) *opgraph.Graph {
	t.Helper()
	g := opgraph.New()
	require.NoError(t, g.AddVariable(opgraph.Variable{Name: "x"}))
	require.NoError(t, g.AddNode(opgraph.Node{Name: "Y", Kind: opgraph.FixedKind("relu", 1, 1), Inputs: []string{"x"}, Outputs: []string{"y"}}))
	require.NoError(t, g.AddNode(opgraph.Node{Name: "Z", Kind: opgraph.Kind("sink"), Inputs: []string{"y"}, Outputs: []string{"z"}}))
	if withW {
		require.NoError(t, g.AddNode(opgraph.Node{Name: "W", Kind: opgraph.Kind("sink"), Inputs: []string{"y"}, Outputs: []string{"w"}}))
	}
	return g
}

// newReluChain builds x -> R1 -> r1 -> R2 -> r2 -> R3 -> r3.
func newReluChain(t *testing.T) *opgraph.Graph {
	t.Helper()
	g := opgraph.New()
	require.NoError(t, g.AddVariable(opgraph.Variable{Name: "x"}))
	prev := "x"
	for i := 1; i <= 3; i++ {
		out := fmt.Sprintf("r%d", i)
		require.NoError(t, g.AddNode(opgraph.Node{
			Name: fmt.Sprintf("R%d", i), Kind: opgraph.FixedKind("relu", 1, 1),
			Inputs: []string{prev}, Outputs: []string{out},
		}))
		prev = out
	}
	return g
}

// replaceWith returns a processor that adds one node of the given kind per
// match, reading the subgraph inputs and producing one output per subgraph
// output.
func replaceWith(kind string) ProcessorFunc {
	calls := 0
	return func(_ context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
		calls++
		name := fmt.Sprintf("%s_%d", kind, calls)
		outs := make([]string, len(sg.Outputs()))
		for i := range outs {
			outs[i] = fmt.Sprintf("%s_out%d", name, i)
		}
		err := g.AddNode(opgraph.Node{Name: name, Kind: opgraph.Kind(kind), Inputs: sg.Inputs(), Outputs: outs})
		return outs, err
	}
}

func nodeNames(g *opgraph.Graph) []string {
	var out []string
	for _, n := range g.Nodes() {
		out = append(out, n.Name)
	}
	return out
}

func mustNode(t *testing.T, g *opgraph.Graph, name string) *opgraph.Node {
	t.Helper()
	n, ok := g.Node(name)
	require.True(t, ok, "node %q missing", name)
	return n
}

func externalConsumers(g *opgraph.Graph, variable string, inside func(string) bool) int {
	n := 0
	for _, c := range g.Consumers(variable) {
		if !inside(c) {
			n++
		}
	}
	return n
}

var matchY = predicate.WithRoot(predicate.NameEquals("Y"))

func TestReplace_SingleNode(t *testing.T) {
	g := newChain(t, false)
	before := g.Duplicate()

	out, err := Replace(context.Background(), g, matchY, replaceWith("A"))
	require.NoError(t, err)

	assert.True(t, before.Equal(g), "input graph must not change")
	assert.False(t, out.HasNode("Y"))
	assert.False(t, out.HasVariable("y"))
	assert.Equal(t, []string{"A_1_out0"}, mustNode(t, out, "Z").Inputs)
	assert.Equal(t, "A_1", out.Producer("A_1_out0"))
	assert.Equal(t, []string{"A_1"}, out.Consumers("x"))
	if diff := cmp.Diff([]string{"Z", "A_1"}, nodeNames(out)); diff != "" {
		t.Errorf("node order mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, out.Validate())
}

func TestReplace_SharedOutputRewiresEveryConsumer(t *testing.T) {
	g := newChain(t, true)
	sg := subgraph.New(g, "Y")
	consumersBefore := externalConsumers(g, "y", sg.Contains)

	out, err := Replace(context.Background(), g, matchY, replaceWith("A"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A_1_out0"}, mustNode(t, out, "Z").Inputs)
	assert.Equal(t, []string{"A_1_out0"}, mustNode(t, out, "W").Inputs)
	assert.Equal(t, []string{"Z", "W"}, out.Consumers("A_1_out0"))
	assert.Equal(t, consumersBefore, externalConsumers(out, "A_1_out0", func(string) bool { return false }))
}

func TestReplace_ArityMismatch(t *testing.T) {
	g := newChain(t, false)
	before := g.Duplicate()

	twoOutputs := ProcessorFunc(func(_ context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
		err := g.AddNode(opgraph.Node{Name: "A", Kind: opgraph.Kind("split"), Inputs: sg.Inputs(), Outputs: []string{"a0", "a1"}})
		return []string{"a0", "a1"}, err
	})
	out, res, err := ReplaceWithStats(context.Background(), g, matchY, twoOutputs)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, opgraph.ErrArityMismatch)

	var arity *opgraph.ArityMismatchError
	require.ErrorAs(t, err, &arity)
	assert.Equal(t, 1, arity.Expected)
	assert.Equal(t, 2, arity.Got)

	var rwErr *RewriteError
	require.ErrorAs(t, err, &rwErr)
	assert.Equal(t, 0, rwErr.Index)
	assert.Equal(t, "Y", rwErr.Root)

	assert.Equal(t, Result{Matched: 1}, res)
	assert.True(t, before.Equal(g), "input graph must not change")
}

func TestReplace_ControlDependencies(t *testing.T) {
	t.Run("on a replaced node", func(t *testing.T) {
		g := opgraph.New()
		require.NoError(t, g.AddVariable(opgraph.Variable{Name: "x"}))
		require.NoError(t, g.AddNode(opgraph.Node{Name: "Y", Kind: opgraph.Kind("relu"), Inputs: []string{"x"}, Outputs: []string{"y"}}))
		require.NoError(t, g.AddNode(opgraph.Node{Name: "Z", Kind: opgraph.Kind("sink"), Inputs: []string{"x"}, Outputs: []string{"z"}, ControlDeps: []string{"Y"}}))

		out, err := Replace(context.Background(), g, matchY, replaceWith("A"))
		require.NoError(t, err)
		assert.Equal(t, []string{"A_1"}, mustNode(t, out, "Z").ControlDeps)
		assert.Equal(t, []string{"Y"}, mustNode(t, g, "Z").ControlDeps)
	})

	t.Run("on a replaced output", func(t *testing.T) {
		g := newChain(t, false)
		require.NoError(t, g.AddControlDependency("z", "y"))

		out, err := Replace(context.Background(), g, matchY, replaceWith("A"))
		require.NoError(t, err)
		z, ok := out.Variable("z")
		require.True(t, ok)
		assert.Equal(t, []string{"A_1_out0"}, z.ControlDeps)
		a, ok := out.Variable("A_1_out0")
		require.True(t, ok)
		assert.Equal(t, []string{"z"}, a.ControlDepFor)
	})

	t.Run("on an internal variable", func(t *testing.T) {
		g := newReluChain(t)
		require.NoError(t, g.AddNode(opgraph.Node{Name: "E", Kind: opgraph.Kind("sink"), Inputs: []string{"x"}, Outputs: []string{"e"}, ControlDeps: []string{"r1"}}))
		m := predicate.WithRoot(predicate.NameEquals("R2")).WithInputSubgraph(0, predicate.WithRoot(predicate.Any()))

		out, err := Replace(context.Background(), g, m, replaceWith("F"))
		require.NoError(t, err)
		assert.False(t, out.HasVariable("r1"))
		assert.Equal(t, []string{"F_1"}, mustNode(t, out, "E").ControlDeps)
		assert.Equal(t, []string{"F_1_out0"}, mustNode(t, out, "R3").Inputs)
	})
}

func TestReplace_NoMatchIsIdentity(t *testing.T) {
	g := newChain(t, true)
	out, res, err := ReplaceWithStats(context.Background(), g, predicate.WithRoot(predicate.KindEquals("conv")), replaceWith("A"))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.True(t, out.Equal(g))
	assert.NotSame(t, g, out)
}

func TestReplace_OverlappingMatchesAreSkipped(t *testing.T) {
	g := newReluChain(t)
	pair := predicate.WithRoot(predicate.KindEquals("relu")).
		WithInputSubgraph(0, predicate.WithRoot(predicate.KindEquals("relu")))

	found := FindAll(g, pair)
	require.Len(t, found, 2)
	assert.Equal(t, "R2", found[0].Root)
	assert.Equal(t, []string{"R1"}, found[0].Children)
	assert.Equal(t, "R3", found[1].Root)

	out, res, err := ReplaceWithStats(context.Background(), g, pair, replaceWith("fused"))
	require.NoError(t, err)
	assert.Equal(t, Result{Matched: 2, Applied: 1, Skipped: 1}, res)
	assert.Equal(t, []string{"R3", "fused_1"}, nodeNames(out))
	assert.Equal(t, []string{"fused_1_out0"}, mustNode(t, out, "R3").Inputs)
	assert.Equal(t, []string{"x"}, mustNode(t, out, "fused_1").Inputs)
}

func TestReplace_ProcessorResults(t *testing.T) {
	ctx := context.Background()

	t.Run("bypass to an external variable", func(t *testing.T) {
		g := newChain(t, false)
		bypass := ProcessorFunc(func(_ context.Context, _ *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
			return sg.Inputs(), nil
		})
		out, err := Replace(ctx, g, matchY, bypass)
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, mustNode(t, out, "Z").Inputs)
		assert.Equal(t, []string{"Z"}, nodeNames(out))
	})

	t.Run("reusing an old output is unsupported", func(t *testing.T) {
		g := newChain(t, false)
		reuse := ProcessorFunc(func(_ context.Context, _ *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
			return sg.Outputs(), nil
		})
		_, err := Replace(ctx, g, matchY, reuse)
		assert.ErrorIs(t, err, opgraph.ErrUnsupportedRewrite)
	})

	t.Run("unknown variable", func(t *testing.T) {
		g := newChain(t, false)
		missing := ProcessorFunc(func(context.Context, *opgraph.Graph, subgraph.Subgraph) ([]string, error) {
			return []string{"nope"}, nil
		})
		_, err := Replace(ctx, g, matchY, missing)
		assert.ErrorIs(t, err, opgraph.ErrGraphIntegrity)
	})

	t.Run("replacement reading the replaced output", func(t *testing.T) {
		g := newChain(t, false)
		wrap := ProcessorFunc(func(_ context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
			err := g.AddNode(opgraph.Node{Name: "A", Kind: opgraph.Kind("id"), Inputs: sg.Outputs(), Outputs: []string{"a"}})
			return []string{"a"}, err
		})
		_, err := Replace(ctx, g, matchY, wrap)
		assert.ErrorIs(t, err, opgraph.ErrUnsupportedRewrite)
	})

	t.Run("replacement reading the replaced output through another node", func(t *testing.T) {
		g := newChain(t, false)
		before := g.Duplicate()
		wrap := ProcessorFunc(func(_ context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
			if err := g.AddNode(opgraph.Node{Name: "A", Kind: opgraph.Kind("id"), Inputs: sg.Outputs(), Outputs: []string{"a"}}); err != nil {
				return nil, err
			}
			err := g.AddNode(opgraph.Node{Name: "B", Kind: opgraph.Kind("id"), Inputs: []string{"a"}, Outputs: []string{"b"}})
			return []string{"b"}, err
		})
		out, err := Replace(ctx, g, matchY, wrap)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, opgraph.ErrUnsupportedRewrite)
		assert.ErrorContains(t, err, `depends on the output "y"`)
		assert.True(t, before.Equal(g))
	})

	t.Run("replacement waiting on the replaced output", func(t *testing.T) {
		g := newChain(t, false)
		wait := ProcessorFunc(func(_ context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
			err := g.AddNode(opgraph.Node{Name: "A", Kind: opgraph.Kind("id"), Inputs: sg.Inputs(), Outputs: []string{"a"}, ControlDeps: sg.Outputs()})
			return []string{"a"}, err
		})
		_, err := Replace(ctx, g, matchY, wait)
		assert.ErrorIs(t, err, opgraph.ErrUnsupportedRewrite)
	})

	t.Run("processor error", func(t *testing.T) {
		g := newChain(t, false)
		boom := errors.New("boom")
		failing := ProcessorFunc(func(context.Context, *opgraph.Graph, subgraph.Subgraph) ([]string, error) {
			return nil, boom
		})
		out, err := Replace(ctx, g, matchY, failing)
		assert.Nil(t, out)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("processor removing a subgraph node", func(t *testing.T) {
		g := newChain(t, false)
		remove := ProcessorFunc(func(_ context.Context, g *opgraph.Graph, _ subgraph.Subgraph) ([]string, error) {
			if err := g.RemoveNode("Z"); err != nil {
				return nil, err
			}
			return []string{"x"}, g.RemoveNode("Y")
		})
		_, err := Replace(ctx, g, matchY, remove)
		assert.ErrorIs(t, err, opgraph.ErrUnsupportedRewrite)
	})
}

func TestReplace_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replace(ctx, newChain(t, false), matchY, replaceWith("A"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplace_FailureLeavesInputUntouched(t *testing.T) {
	g := newReluChain(t)
	before := g.Duplicate()
	calls := 0
	secondFails := ProcessorFunc(func(ctx context.Context, g *opgraph.Graph, sg subgraph.Subgraph) ([]string, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("second match fails")
		}
		return replaceWith("A")(ctx, g, sg)
	})

	_, res, err := ReplaceWithStats(context.Background(), g, predicate.WithRoot(predicate.KindEquals("relu")), secondFails)
	var rwErr *RewriteError
	require.ErrorAs(t, err, &rwErr)
	assert.Equal(t, 1, rwErr.Index)
	assert.Equal(t, "R2", rwErr.Root)
	assert.Equal(t, Result{Matched: 3, Applied: 1}, res)
	assert.True(t, before.Equal(g))
}
