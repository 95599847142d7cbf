// Package predicate provides composable matchers over operation nodes and
// the builder used to describe rewritable subgraphs.
//
// Predicates only read the graph. Given the same graph state they always
// return the same answer, which keeps match discovery reproducible.
package predicate

import (
	"regexp"

	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/zclconf/go-cty/cty"
)

// OpPredicate decides whether a single node matches.
type OpPredicate func(g *opgraph.Graph, n *opgraph.Node) bool

// Any matches every node.
func Any() OpPredicate {
	return func(*opgraph.Graph, *opgraph.Node) bool { return true }
}

// NameEquals matches the node with exactly this name.
func NameEquals(name string) OpPredicate {
	return func(_ *opgraph.Graph, n *opgraph.Node) bool { return n.Name == name }
}

// NameMatches matches nodes whose name matches the regular expression in full.
func NameMatches(pattern string) (OpPredicate, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	return func(_ *opgraph.Graph, n *opgraph.Node) bool { return re.MatchString(n.Name) }, nil
}

// KindEquals matches nodes of the given operator kind.
func KindEquals(kind string) OpPredicate {
	return func(_ *opgraph.Graph, n *opgraph.Node) bool { return n.Kind.Name == kind }
}

// KindMatches matches nodes whose kind name matches the regular expression in full.
func KindMatches(pattern string) (OpPredicate, error) {
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	return func(_ *opgraph.Graph, n *opgraph.Node) bool { return re.MatchString(n.Kind.Name) }, nil
}

// AttrEquals matches nodes carrying attribute key with a value equal to want.
func AttrEquals(key string, want cty.Value) OpPredicate {
	return func(_ *opgraph.Graph, n *opgraph.Node) bool {
		got, ok := n.Attributes[key]
		if !ok || !got.IsKnown() || !want.IsKnown() {
			return false
		}
		if got.IsNull() || want.IsNull() {
			return got.IsNull() && want.IsNull()
		}
		return got.Equals(want).True()
	}
}

// And matches when every predicate matches. And() matches everything.
func And(ps ...OpPredicate) OpPredicate {
	return func(g *opgraph.Graph, n *opgraph.Node) bool {
		for _, p := range ps {
			if !p(g, n) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func Or(ps ...OpPredicate) OpPredicate {
	return func(g *opgraph.Graph, n *opgraph.Node) bool {
		for _, p := range ps {
			if p(g, n) {
				return true
			}
		}
		return false
	}
}

// Not inverts a predicate.
func Not(p OpPredicate) OpPredicate {
	return func(g *opgraph.Graph, n *opgraph.Node) bool { return !p(g, n) }
}
