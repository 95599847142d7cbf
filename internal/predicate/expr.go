package predicate

import (
	"fmt"
	"math/big"

	"github.com/google/cel-go/cel"
	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/zclconf/go-cty/cty"
)

// exprEnv declares the variables visible to node expressions:
//
//	name    string        node name
//	kind    string        operator kind
//	inputs  list(string)  input variable names
//	outputs list(string)  output variable names
//	fanout  int           total consumers across all outputs
//	attrs   map(string, dyn)
func exprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("inputs", cel.ListType(cel.StringType)),
		cel.Variable("outputs", cel.ListType(cel.StringType)),
		cel.Variable("fanout", cel.IntType),
		cel.Variable("attrs", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
}

// Expr compiles a CEL expression into an OpPredicate. The expression must
// evaluate to a bool; dyn results are accepted and checked at evaluation.
// Evaluation errors, such as reading a missing attribute, count as no match.
func Expr(expression string) (OpPredicate, error) {
	env, err := exprEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile expression %q: %w", expression, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expression, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return func(g *opgraph.Graph, n *opgraph.Node) bool {
		out, _, err := prg.Eval(activation(g, n))
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

func activation(g *opgraph.Graph, n *opgraph.Node) map[string]any {
	var fanout int64
	for _, out := range n.Outputs {
		fanout += int64(len(g.Consumers(out)))
	}
	attrs := make(map[string]any, len(n.Attributes))
	for k, v := range n.Attributes {
		attrs[k] = NativeValue(v)
	}
	inputs := append([]string{}, n.Inputs...)
	outputs := append([]string{}, n.Outputs...)
	return map[string]any{
		"name":    n.Name,
		"kind":    n.Kind.Name,
		"inputs":  inputs,
		"outputs": outputs,
		"fanout":  fanout,
		"attrs":   attrs,
	}
}

// NativeValue converts a cty.Value into plain Go values: string, bool,
// int64 for integral numbers, float64 otherwise, []any and map[string]any.
// Null and unknown values become nil.
func NativeValue(v cty.Value) any {
	if v.IsNull() || !v.IsKnown() {
		return nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Bool:
		return v.True()
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i
			}
		}
		f, _ := bf.Float64()
		return f
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			out = append(out, NativeValue(ev))
		}
		return out
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			out[k.AsString()] = NativeValue(ev)
		}
		return out
	default:
		return v.GoString()
	}
}
