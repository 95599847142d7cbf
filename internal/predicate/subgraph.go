package predicate

import (
	"slices"
	"sort"

	"github.com/specialistvlad/opgraph/internal/opgraph"
	"github.com/specialistvlad/opgraph/internal/subgraph"
)

// SubgraphPredicate matches a root node and, optionally, the nodes producing
// some of its inputs. Producers matched through WithInputSubgraph become
// children of the extracted subgraph; producers matched through
// WithInputMatching are only checked.
//
// A SubgraphPredicate is built once and then only read, so one value may be
// shared across rewrite calls.
type SubgraphPredicate struct {
	root           OpPredicate
	inputCount     int
	outputCount    int
	inputMatching  map[int]OpPredicate
	inputSubgraphs map[int]*SubgraphPredicate
}

// WithRoot starts a predicate whose root node must satisfy root.
func WithRoot(root OpPredicate) *SubgraphPredicate {
	if root == nil {
		root = Any()
	}
	return &SubgraphPredicate{
		root:           root,
		inputCount:     -1,
		outputCount:    -1,
		inputMatching:  make(map[int]OpPredicate),
		inputSubgraphs: make(map[int]*SubgraphPredicate),
	}
}

// WithInputCount requires the root to have exactly n inputs.
func (p *SubgraphPredicate) WithInputCount(n int) *SubgraphPredicate {
	p.inputCount = n
	return p
}

// WithOutputCount requires the root to have exactly n outputs.
func (p *SubgraphPredicate) WithOutputCount(n int) *SubgraphPredicate {
	p.outputCount = n
	return p
}

// WithInputMatching requires the producer of the root's input i to satisfy
// op. The producer is not added to the subgraph.
func (p *SubgraphPredicate) WithInputMatching(i int, op OpPredicate) *SubgraphPredicate {
	p.inputMatching[i] = op
	return p
}

// WithInputSubgraph requires the producer of the root's input i to match sub.
// The producer and everything sub extracts below it join the subgraph.
func (p *SubgraphPredicate) WithInputSubgraph(i int, sub *SubgraphPredicate) *SubgraphPredicate {
	p.inputSubgraphs[i] = sub
	return p
}

// Matches reports whether n is the root of a subgraph described by p.
func (p *SubgraphPredicate) Matches(g *opgraph.Graph, n *opgraph.Node) bool {
	if n == nil || !p.root(g, n) {
		return false
	}
	if p.inputCount >= 0 && len(n.Inputs) != p.inputCount {
		return false
	}
	if p.outputCount >= 0 && len(n.Outputs) != p.outputCount {
		return false
	}
	for i, op := range p.inputMatching {
		producer, ok := inputProducer(g, n, i)
		if !ok || !op(g, producer) {
			return false
		}
	}
	for i, sub := range p.inputSubgraphs {
		producer, ok := inputProducer(g, n, i)
		if !ok || producer.Name == n.Name || !sub.Matches(g, producer) {
			return false
		}
	}
	return true
}

// Subgraph extracts the subgraph rooted at n. Callers must check Matches
// first. Children are listed in ascending input index order, each producer
// followed by its own children.
func (p *SubgraphPredicate) Subgraph(g *opgraph.Graph, n *opgraph.Node) subgraph.Subgraph {
	var children []string
	for _, i := range sortedKeys(p.inputSubgraphs) {
		producer, ok := inputProducer(g, n, i)
		if !ok {
			continue
		}
		sub := p.inputSubgraphs[i].Subgraph(g, producer)
		for _, name := range sub.AllNodes() {
			if name != n.Name && !slices.Contains(children, name) {
				children = append(children, name)
			}
		}
	}
	return subgraph.New(g, n.Name, children...)
}

func inputProducer(g *opgraph.Graph, n *opgraph.Node, i int) (*opgraph.Node, bool) {
	if i < 0 || i >= len(n.Inputs) {
		return nil, false
	}
	producer := g.Producer(n.Inputs[i])
	if producer == "" {
		return nil, false
	}
	return g.Node(producer)
}

func sortedKeys(m map[int]*SubgraphPredicate) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
