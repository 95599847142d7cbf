package rules

import (
	"fmt"

	"github.com/specialistvlad/opgraph/internal/config"
	"github.com/specialistvlad/opgraph/internal/predicate"
	"github.com/specialistvlad/opgraph/internal/rewrite"
)

// Rule is a compiled rewrite rule.
type Rule struct {
	Name      string
	Matcher   *predicate.SubgraphPredicate
	Processor rewrite.Processor
}

// Compile compiles every rule definition, keeping their order.
func Compile(defs []*config.RuleDef, kinds map[string]*config.KindDef) ([]*Rule, error) {
	out := make([]*Rule, 0, len(defs))
	for _, def := range defs {
		r, err := CompileRule(def, kinds)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// CompileRule compiles a single rule definition.
func CompileRule(def *config.RuleDef, kinds map[string]*config.KindDef) (*Rule, error) {
	if def.Match == nil || def.Replace == nil {
		return nil, fmt.Errorf("rule %q: match and replace are both required", def.Name)
	}
	m, err := compileMatch(def.Match)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", def.Name, err)
	}
	p, err := compileReplace(def.Replace, kinds)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", def.Name, err)
	}
	return &Rule{Name: def.Name, Matcher: m, Processor: p}, nil
}

func compileMatch(m *config.MatchDef) (*predicate.SubgraphPredicate, error) {
	root, err := compileOp(m)
	if err != nil {
		return nil, err
	}
	p := predicate.WithRoot(root)
	if m.InputCount != nil {
		p.WithInputCount(*m.InputCount)
	}
	if m.OutputCount != nil {
		p.WithOutputCount(*m.OutputCount)
	}
	for _, in := range m.Inputs {
		if in.Match == nil {
			return nil, fmt.Errorf("input %d: missing match", in.Index)
		}
		if in.Include {
			sub, err := compileMatch(in.Match)
			if err != nil {
				return nil, fmt.Errorf("input %d: %w", in.Index, err)
			}
			p.WithInputSubgraph(in.Index, sub)
			continue
		}
		if len(in.Match.Inputs) > 0 || in.Match.InputCount != nil || in.Match.OutputCount != nil {
			return nil, fmt.Errorf("input %d: only included inputs may constrain their own inputs or counts", in.Index)
		}
		op, err := compileOp(in.Match)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", in.Index, err)
		}
		p.WithInputMatching(in.Index, op)
	}
	return p, nil
}

// compileOp combines the node-level constraints of m.
func compileOp(m *config.MatchDef) (predicate.OpPredicate, error) {
	var preds []predicate.OpPredicate
	if m.Kind != "" {
		preds = append(preds, predicate.KindEquals(m.Kind))
	}
	if m.KindPattern != "" {
		p, err := predicate.KindMatches(m.KindPattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if m.Name != "" {
		preds = append(preds, predicate.NameEquals(m.Name))
	}
	if m.NamePattern != "" {
		p, err := predicate.NameMatches(m.NamePattern)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if m.When != "" {
		p, err := predicate.Expr(m.When)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return predicate.And(preds...), nil
}
