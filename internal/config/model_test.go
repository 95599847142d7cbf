package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Merge(t *testing.T) {
	a := NewModel()
	a.Kinds["add"] = &KindDef{Name: "add", Inputs: 2, Outputs: 1}
	a.Graph.Inputs = []*InputDef{{Name: "x"}}
	a.Rules = []*RuleDef{{Name: "first"}}

	b := NewModel()
	b.Kinds["relu"] = &KindDef{Name: "relu", Inputs: 1, Outputs: 1}
	b.Graph.Ops = []*OpDef{{Name: "Y", Kind: "relu", Inputs: []string{"x"}, Outputs: []string{"y"}}}
	b.Rules = []*RuleDef{{Name: "second"}}

	require.NoError(t, a.Merge(b))
	assert.Len(t, a.Kinds, 2)
	assert.Len(t, a.Graph.Inputs, 1)
	assert.Len(t, a.Graph.Ops, 1)
	require.Len(t, a.Rules, 2)
	assert.Equal(t, "second", a.Rules[1].Name)

	t.Run("duplicate kind", func(t *testing.T) {
		dup := NewModel()
		dup.Kinds["add"] = &KindDef{Name: "add"}
		assert.ErrorContains(t, a.Merge(dup), `kind "add"`)
	})

	t.Run("duplicate rule", func(t *testing.T) {
		dup := NewModel()
		dup.Rules = []*RuleDef{{Name: "first"}}
		assert.ErrorContains(t, a.Merge(dup), `rule "first"`)
	})
}
