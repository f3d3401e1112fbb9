package graph

import (
	"context"
	"errors"
)

type contextKey int

const resumeKey contextKey = iota

// withResume attaches a resume command's value to ctx for the single node
// execution it was queued against.
func withResume(ctx context.Context, value interface{}) context.Context {
	return context.WithValue(ctx, resumeKey, value)
}

// ResumeFromContext retrieves the resume value injected for this node
// execution, if any. Node implementations that pause via
// ErrInterruptPending call this first to check whether they're being
// re-entered with a decision already available.
func ResumeFromContext(ctx context.Context) (interface{}, bool) {
	v := ctx.Value(resumeKey)
	return v, v != nil
}

// ErrInterruptPending is returned as NodeResult.Err to signal a dynamic
// interrupt: the node has reached a point where it needs an external
// decision (a tool approval, a blocker resolution) before it can make
// further progress. The runtime treats it as a pause, not a failure — it
// persists NodeResult.Delta, checkpoints next_nodes = [nodeID], emits
// EventApprovalRequired carrying NodeResult.Interrupt, and returns
// OutcomeBlocked instead of propagating the error.
//
// A later resume command re-invokes the same node from the top of Execute.
// Node implementations must consult state.HasToolCall(stepID, attempt) at
// each decision point so a point already resolved in a prior pause/resume
// cycle is skipped rather than re-prompted — the same ledger the driver
// idempotency rule relies on backs dynamic-interrupt re-entry.
var ErrInterruptPending = errors.New("graph: dynamic interrupt pending")

// IsInterrupt reports whether err signals a dynamic interrupt pause rather
// than a genuine node failure.
func IsInterrupt(err error) bool {
	return errors.Is(err, ErrInterruptPending)
}

// InterruptPayload describes what a dynamic interrupt is waiting on, carried
// on the approval_required event so a caller (the scheduler's approve/reject
// surface) knows what decision is being requested.
type InterruptPayload struct {
	Reason string                 `json:"reason"`
	Data   map[string]interface{} `json:"data,omitempty"`
}
