// This file translates decoded HCL blocks into the format-agnostic
// configuration model defined in the config package.

package hcl

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

func (l *Loader) translateFile(ctx context.Context, root *fileRoot, evalCtx *hcl.EvalContext) (*config.Model, error) {
	m := config.NewModel()
	for _, k := range root.Kinds {
		def, err := translateKind(k)
		if err != nil {
			return nil, err
		}
		if _, dup := m.Kinds[def.Name]; dup {
			return nil, fmt.Errorf("kind %q is declared more than once", def.Name)
		}
		m.Kinds[def.Name] = def
	}
	for _, in := range root.Inputs {
		m.Graph.Inputs = append(m.Graph.Inputs, &config.InputDef{Name: in.Name, ControlDeps: in.ControlDeps})
	}
	for _, op := range root.Ops {
		def, err := translateOp(op, evalCtx)
		if err != nil {
			return nil, err
		}
		m.Graph.Ops = append(m.Graph.Ops, def)
	}
	for _, r := range root.Rules {
		def, err := l.translateRule(ctx, r, evalCtx)
		if err != nil {
			return nil, err
		}
		m.Rules = append(m.Rules, def)
	}
	return m, nil
}

func translateKind(k *kindBlock) (*config.KindDef, error) {
	def := &config.KindDef{
		Name:        k.Name,
		Description: k.Description,
		Inputs:      config.Variadic,
		Outputs:     config.Variadic,
	}
	if k.Inputs != nil {
		if *k.Inputs < 0 {
			return nil, fmt.Errorf("kind %q: inputs must not be negative", k.Name)
		}
		def.Inputs = *k.Inputs
	}
	if k.Outputs != nil {
		if *k.Outputs < 0 {
			return nil, fmt.Errorf("kind %q: outputs must not be negative", k.Name)
		}
		def.Outputs = *k.Outputs
	}
	return def, nil
}

func translateOp(o *opBlock, evalCtx *hcl.EvalContext) (*config.OpDef, error) {
	attrs, err := decodeAttributes(o.Attributes, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("op %q: %w", o.Name, err)
	}
	return &config.OpDef{
		Name:        o.Name,
		Kind:        o.Kind,
		Inputs:      o.Inputs,
		Outputs:     o.Outputs,
		ControlDeps: o.ControlDeps,
		Attributes:  attrs,
	}, nil
}

// decodeAttributes evaluates an `attributes = { ... }` expression. An
// omitted attribute decodes to a static null and yields no attributes.
func decodeAttributes(expr hcl.Expression, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid attributes: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("attributes must be an object, got %s", ty.FriendlyName())
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("attributes must be known at load time")
	}
	return val.AsValueMap(), nil
}

func (l *Loader) translateRule(ctx context.Context, r *ruleBlock, evalCtx *hcl.EvalContext) (*config.RuleDef, error) {
	logger := ctxlog.FromContext(ctx).With("rule", r.Name)
	logger.Debug("Translating HCL rule to internal config model.")

	if r.Match == nil {
		return nil, fmt.Errorf("rule %q: missing match block", r.Name)
	}
	if r.Replace == nil {
		return nil, fmt.Errorf("rule %q: missing replace block", r.Name)
	}
	match, err := translateMatch(r.Match, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}
	replace, err := translateReplace(r.Replace, evalCtx)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}
	return &config.RuleDef{Name: r.Name, Match: match, Replace: replace}, nil
}

func translateMatch(m *matchBlock, evalCtx *hcl.EvalContext) (*config.MatchDef, error) {
	def := &config.MatchDef{
		Kind:        m.Kind,
		KindPattern: m.KindPattern,
		Name:        m.Name,
		NamePattern: m.NamePattern,
		When:        m.When,
		InputCount:  m.InputCount,
		OutputCount: m.OutputCount,
	}
	seen := make(map[int]struct{}, len(m.Inputs))
	for _, in := range m.Inputs {
		if in.Index < 0 {
			return nil, fmt.Errorf("input index must not be negative, got %d", in.Index)
		}
		if _, dup := seen[in.Index]; dup {
			return nil, fmt.Errorf("input %d is constrained more than once", in.Index)
		}
		seen[in.Index] = struct{}{}

		var nested matchBlock
		if diags := gohcl.DecodeBody(in.Body, evalCtx, &nested); diags.HasErrors() {
			return nil, fmt.Errorf("input %d: %w", in.Index, diags)
		}
		if !in.Include && len(nested.Inputs) > 0 {
			return nil, fmt.Errorf("input %d: nested input blocks require include = true", in.Index)
		}
		sub, err := translateMatch(&nested, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", in.Index, err)
		}
		def.Inputs = append(def.Inputs, &config.InputMatchDef{Index: in.Index, Include: in.Include, Match: sub})
	}
	return def, nil
}

func translateReplace(r *replaceBlock, evalCtx *hcl.EvalContext) (*config.ReplaceDef, error) {
	attrs, err := decodeAttributes(r.Attributes, evalCtx)
	if err != nil {
		return nil, err
	}
	switch {
	case r.Bypass && r.Kind != "":
		return nil, fmt.Errorf("replace: bypass and kind are mutually exclusive")
	case r.Bypass && (len(attrs) > 0 || r.KeepAttributes):
		return nil, fmt.Errorf("replace: bypass does not create a node and takes no attributes")
	case !r.Bypass && r.Kind == "":
		return nil, fmt.Errorf("replace: either kind or bypass must be set")
	}
	return &config.ReplaceDef{
		Kind:           r.Kind,
		Bypass:         r.Bypass,
		KeepAttributes: r.KeepAttributes,
		Attributes:     attrs,
	}, nil
}
