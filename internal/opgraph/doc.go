// Package opgraph is the mutable operator dataflow graph that the rewrite
// engine operates on.
//
// # Representation
//
// The graph is an arena: nodes and variables live in two name-keyed maps and
// every edge is a name, never a pointer. Deleting an element therefore can
// never leave a dangling pointer behind, only a dangling name, and dangling
// names are exactly what the mutators refuse to create.
//
// Nodes and variables share one namespace. A control dependency may name
// either kind of element, so a name must resolve to exactly one of them.
//
// # Invariants
//
// Every mutator keeps the following true, or returns a *GraphIntegrityError
// before touching anything:
//
//   - single producer: every variable with a producer is listed in that node's outputs,
//     and every node output names a variable whose producer is that node.
//   - back-references: a variable's consumer list holds each consuming node exactly as
//     many times as the node lists the variable among its inputs.
//   - no dangling names: no input list, control-dependency list or back-reference names an
//     element that does not exist.
//
// # Ordering
//
// Nodes() returns nodes in insertion order. Matching and serialization both
// rely on that order to stay reproducible.
//
// # Concurrency
//
// A Graph is not safe for concurrent mutation. The rewrite driver owns its
// working copy exclusively for the duration of a call.
package opgraph
