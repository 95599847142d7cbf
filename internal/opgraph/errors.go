package opgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error checking via errors.Is().
var (
	// ErrGraphIntegrity indicates a mutation or a graph state that breaks
	// one of the structural invariants listed in the package docs.
	ErrGraphIntegrity = errors.New("graph integrity error")

	// ErrArityMismatch indicates a replacement whose output count differs
	// from the subgraph it replaces.
	ErrArityMismatch = errors.New("arity mismatch")

	// ErrUnsupportedRewrite indicates a processor result the splice cannot
	// express, such as reusing a variable produced inside the subgraph.
	ErrUnsupportedRewrite = errors.New("unsupported rewrite")

	// ErrCycle indicates a data or control dependency cycle.
	ErrCycle = errors.New("cycle detected")
)

// Invariant names used in GraphIntegrityError.
const (
	InvariantSingleProducer = "single-producer"
	InvariantBackReference  = "back-reference"
	InvariantNoDangling     = "no-dangling"
	InvariantUniqueName     = "unique-name"
	InvariantArity          = "kind-arity"
)

// GraphIntegrityError reports a rejected mutation or a failed validation.
// Wraps ErrGraphIntegrity for errors.Is() compatibility.
type GraphIntegrityError struct {
	Invariant string // One of the Invariant* constants
	Name      string // The offending node or variable name
	Msg       string
}

func (e *GraphIntegrityError) Error() string {
	if e == nil {
		return ""
	}
	if e.Name != "" {
		return fmt.Sprintf("%s [%s] %q: %s", ErrGraphIntegrity.Error(), e.Invariant, e.Name, e.Msg)
	}
	return fmt.Sprintf("%s [%s]: %s", ErrGraphIntegrity.Error(), e.Invariant, e.Msg)
}

func (e *GraphIntegrityError) Unwrap() error { return ErrGraphIntegrity }

func integrityErr(invariant, name, format string, args ...any) error {
	return &GraphIntegrityError{Invariant: invariant, Name: name, Msg: fmt.Sprintf(format, args...)}
}

// ArityMismatchError is returned when a processor yields a different number
// of outputs than the matched subgraph had.
type ArityMismatchError struct {
	Expected int
	Got      int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("%s: subgraph has %d outputs, processor returned %d", ErrArityMismatch.Error(), e.Expected, e.Got)
}

func (e *ArityMismatchError) Unwrap() error { return ErrArityMismatch }

// UnsupportedRewriteError is returned for replacement outputs the driver does
// not know how to splice.
type UnsupportedRewriteError struct {
	Name string
	Msg  string
}

func (e *UnsupportedRewriteError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrUnsupportedRewrite.Error(), e.Name, e.Msg)
}

func (e *UnsupportedRewriteError) Unwrap() error { return ErrUnsupportedRewrite }

// CycleError names the first node found on a dependency cycle.
type CycleError struct {
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s involving node %q", ErrCycle.Error(), e.Node)
}

func (e *CycleError) Unwrap() error { return ErrCycle }
