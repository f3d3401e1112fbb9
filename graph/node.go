// Package graph implements the orchestration engine's execution loop: a
// checkpointed, single-threaded-per-workflow walk over a fixed set of named
// nodes connected by predicate-gated edges, operating on domain.ExecutionState.
package graph

import (
	"context"
	"fmt"

	"github.com/existential-birds/amelia-sub017/domain"
)

// NodeKind classifies a Node for routing and interrupt purposes.
type NodeKind string

const (
	KindAgent    NodeKind = "agent"
	KindRouter   NodeKind = "router"
	KindApproval NodeKind = "approval"
	KindNoop     NodeKind = "noop"
)

// Next describes where execution goes after a node runs. An explicit Next
// returned by a node overrides edge-based routing; a zero Next falls back to
// evaluating the node's outgoing edges against the merged state.
type Next struct {
	To       string
	Terminal bool
}

// Stop routes execution to the terminal state.
func Stop() Next { return Next{Terminal: true} }

// GotoNode routes execution explicitly to nodeID, bypassing edge predicates.
func GotoNode(nodeID string) Next { return Next{To: nodeID} }

func (n Next) isZero() bool { return n == Next{} }

// NodeResult is what a Node produces for one execution: a state delta to
// merge via domain.Merge, an optional explicit route, and an error that
// aborts the workflow (runtime never retries a node internally — retry
// policy, where it applies, lives in the driver that the node calls into).
type NodeResult struct {
	Delta     domain.ExecutionState
	Route     Next
	Err       error
	Interrupt *InterruptPayload
}

// Node is a single step in the graph. Implementations close over whatever
// they need (a driver.Registry, a prompt.Store, a checkpoint.Checkpointer for
// side lookups) — the runtime only ever calls Execute.
type Node interface {
	ID() string
	Kind() NodeKind
	Execute(ctx context.Context, state domain.ExecutionState) NodeResult
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc struct {
	NodeID   string
	NodeKind NodeKind
	Fn       func(ctx context.Context, state domain.ExecutionState) NodeResult
}

func (f NodeFunc) ID() string     { return f.NodeID }
func (f NodeFunc) Kind() NodeKind { return f.NodeKind }

func (f NodeFunc) Execute(ctx context.Context, state domain.ExecutionState) NodeResult {
	return f.Fn(ctx, state)
}

// NodeError wraps a node-local failure with the node ID that produced it.
type NodeError struct {
	NodeID  string
	Message string
	Cause   error
}

func (e *NodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("graph: node %s: %s: %v", e.NodeID, e.Message, e.Cause)
	}
	return fmt.Sprintf("graph: node %s: %s", e.NodeID, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Cause }
