package graph

import "github.com/existential-birds/amelia-sub017/domain"

// Predicate gates an Edge. A nil Predicate makes the edge unconditional.
type Predicate func(state domain.ExecutionState) bool

// Edge connects two nodes. When a node's NodeResult.Route is the zero value,
// the runtime evaluates a node's outgoing edges in declaration order and
// follows the first whose Predicate (if any) returns true.
type Edge struct {
	From string
	To   string
	When Predicate
}

func (e Edge) matches(state domain.ExecutionState) bool {
	return e.When == nil || e.When(state)
}
