package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/opgraph/internal/app"
	"github.com/specialistvlad/opgraph/internal/builder"
	"github.com/specialistvlad/opgraph/internal/hcl"
	"github.com/specialistvlad/opgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addReluGraph = `
kind "add" {
  inputs  = 2
  outputs = 1
}

kind "relu" {
  inputs  = 1
  outputs = 1
}

kind "add_relu" {
  inputs  = 2
  outputs = 1
}

input "x" {}
input "w" {}

op "A" {
  kind    = "add"
  inputs  = ["x", "w"]
  outputs = ["a"]
}

op "I" {
  kind    = "identity"
  inputs  = ["a"]
  outputs = ["i"]
}

op "R" {
  kind       = "relu"
  inputs     = ["i"]
  outputs    = ["r"]
  attributes = { fusable = true }
}

op "S1" {
  kind    = "sink"
  inputs  = ["r"]
  outputs = ["s1"]
}

op "S2" {
  kind         = "sink"
  inputs       = ["r", "x"]
  outputs      = ["s2"]
  control_deps = ["R"]
}
`

const dropIdentityRule = `
rule "drop_identity" {
  match {
    kind = "identity"
  }
  replace {
    bypass = true
  }
}
`

const fuseRule = `
rule "fuse_add_relu" {
  match {
    kind = "relu"
    when = "attrs.fusable == true"
    input {
      index   = 0
      kind    = "add"
      include = true
    }
  }
  replace {
    kind = "add_relu"
  }
}
`

// TestSequentialRules checks that a later rule sees the result of an earlier
// one: removing the identity makes add and relu adjacent for fusion.
func TestSequentialRules(t *testing.T) {
	// --- Arrange ---
	files := map[string]string{
		"graph/main.hcl":   addReluGraph,
		"rules/01_id.hcl":  dropIdentityRule,
		"rules/02_fus.hcl": fuseRule,
	}

	// --- Act ---
	result := testutil.RunIntegrationTest(t, files)

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	g := result.App.Graph()
	for _, gone := range []string{"A", "I", "R"} {
		assert.False(t, g.HasNode(gone), "%s should be rewritten away", gone)
	}

	fused, ok := g.Node("R_add_relu")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "w"}, fused.Inputs)

	// Both consumers of the old output now read the fused output.
	assert.Equal(t, []string{"S1", "S2"}, g.Consumers("R_add_relu_out0"))
	s2, ok := g.Node("S2")
	require.True(t, ok)
	assert.Equal(t, []string{"R_add_relu_out0", "x"}, s2.Inputs)
	assert.Equal(t, []string{"R_add_relu"}, s2.ControlDeps)

	assert.Contains(t, result.Output, `op "R_add_relu"`)
	assert.Contains(t, result.LogOutput, "Rule applied.")
}

// TestRuleOrderMatters runs the fusion before the identity removal, where
// the identity still separates add and relu.
func TestRuleOrderMatters(t *testing.T) {
	files := map[string]string{
		"graph/main.hcl":   addReluGraph,
		"rules/01_fus.hcl": fuseRule,
		"rules/02_id.hcl":  dropIdentityRule,
	}
	result := testutil.RunIntegrationTest(t, files)

	require.NoError(t, result.Err, result.LogOutput)
	g := result.App.Graph()
	assert.True(t, g.HasNode("A"))
	assert.True(t, g.HasNode("R"))
	assert.False(t, g.HasNode("I"))
	r, ok := g.Node("R")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, r.Inputs)
}

// TestOutputRoundTrip reloads the written graph and checks it builds into an
// equivalent graph.
func TestOutputRoundTrip(t *testing.T) {
	files := map[string]string{
		"graph/main.hcl": addReluGraph,
		"rules/id.hcl":   dropIdentityRule,
	}
	result := testutil.RunIntegrationTest(t, files, func(c *app.Config) {
		c.OutputPath = "rewritten.hcl"
	})
	require.NoError(t, result.Err, result.LogOutput)
	assert.Empty(t, result.Output)

	outPath := filepath.Join(result.Dir, "rewritten.hcl")
	_, err := os.Stat(outPath)
	require.NoError(t, err)

	ctx := context.Background()
	m, err := hcl.NewLoader().Load(ctx, outPath)
	require.NoError(t, err)
	rebuilt, err := builder.Build(ctx, m)
	require.NoError(t, err)

	got := result.App.Graph()
	gotNodes, gotVars := got.Len()
	nodes, vars := rebuilt.Len()
	assert.Equal(t, gotNodes, nodes)
	assert.Equal(t, gotVars, vars)
	for _, n := range got.Nodes() {
		other, ok := rebuilt.Node(n.Name)
		require.True(t, ok, "node %s missing after round trip", n.Name)
		assert.Equal(t, n.Inputs, other.Inputs)
		assert.Equal(t, n.Kind, other.Kind)
	}
}

func TestNoRules(t *testing.T) {
	result := testutil.RunIntegrationTest(t, map[string]string{"graph/main.hcl": addReluGraph})

	require.NoError(t, result.Err)
	assert.Contains(t, result.LogOutput, "No rules found")
	assert.Contains(t, result.Output, `op "I"`)
}

func TestMetricsFile(t *testing.T) {
	files := map[string]string{
		"graph/main.hcl": addReluGraph,
		"rules/id.hcl":   dropIdentityRule,
	}
	result := testutil.RunIntegrationTest(t, files, func(c *app.Config) {
		c.MetricsPath = "opgraph.prom"
	})
	require.NoError(t, result.Err)

	prom, err := os.ReadFile(filepath.Join(result.Dir, "opgraph.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `opgraph_rule_matches_total{rule="drop_identity"} 1`)
	assert.Contains(t, string(prom), `opgraph_graph_nodes{stage="input"} 5`)
	assert.Contains(t, string(prom), `opgraph_graph_nodes{stage="output"} 4`)
}
