// Package rewrite finds subgraphs of an operator graph that match a
// predicate and splices in replacements produced by a Processor.
//
// # Transaction
//
// Replace never touches the graph it is given. It duplicates the graph,
// discovers every match once against that copy, and rewrites the copy
// match by match. The first error aborts the call and the copy is
// discarded, so the caller either receives a fully rewritten graph or an
// error and its own graph unchanged. There is no per-match rollback.
// A rewrite that leaves the graph cyclic fails like any other.
//
// # Per-match lifecycle
//
// Each discovered subgraph moves through
//
//	Discovered -> Processed -> Spliced -> Removed
//
// Processed: the Processor has added its replacement nodes and returned the
// replacement outputs. Their number must equal the number of subgraph
// outputs, because consumers address inputs by position.
//
// Spliced: every consumer outside the subgraph that read old output i now
// reads new output i, and every control dependency on an old output or on a
// subgraph node now points at the replacement.
//
// Removed: subgraph nodes are deleted consumer-first together with the
// variables they produced.
//
// Matches are never re-discovered inside freshly rewritten regions. A match
// whose nodes were already removed by an earlier, overlapping match is
// skipped.
package rewrite
