// Package rules compiles declarative rewrite rules from the config model into
// matchers and processors for the rewrite package.
//
// A rule's match block becomes a predicate.SubgraphPredicate. Its replace
// block becomes a Processor that either adds one node of the replacement
// kind or, for bypass rules, forwards the subgraph inputs to its outputs.
package rules
