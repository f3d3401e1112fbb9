package domain

import (
	"strconv"
	"time"
)

// AgentMessage is an accumulated transcript entry appended to
// ExecutionState.Messages by agent nodes, independent of the Event stream
// (events are observability; Messages is the state the next node reads).
type AgentMessage struct {
	Agent     string    `json:"agent"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ApprovalRecord is appended to ExecutionState.Approvals each time a human
// approval or rejection is applied at an interrupt.
type ApprovalRecord struct {
	Node      string    `json:"node"`
	Approved  bool      `json:"approved"`
	Feedback  string    `json:"feedback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StepResult records the outcome of executing a single Plan Step, appended
// to ExecutionState.BatchResults by the developer node.
type StepResult struct {
	StepID     string     `json:"step_id"`
	Status     StepStatus `json:"status"`
	Output     string     `json:"output,omitempty"`
	ExitCode   int        `json:"exit_code"`
	DurationMS int64      `json:"duration_ms"`
}

// ReviewStatus is the reviewer node's verdict.
type ReviewStatus string

const (
	ReviewApproved          ReviewStatus = "approved"
	ReviewRevisionRequested ReviewStatus = "revision_requested"
)

// ReviewResult is the reviewer node's output.
type ReviewResult struct {
	ApprovalStatus ReviewStatus `json:"status"`
	Comments       []string     `json:"comments,omitempty"`
}

// ToolCallRecord is a completed-tool-call ledger entry keyed by
// (StepID, Attempt), recorded so a re-entered node (after a dynamic
// interrupt or a replay) can detect and skip a tool call whose side effect
// already happened, per spec.md §9's open question and §4.5's dynamic
// interrupt contract.
type ToolCallRecord struct {
	StepID  string `json:"step_id"`
	Attempt int    `json:"attempt"`
	Output  string `json:"output,omitempty"`
}

// Key returns the ledger lookup key for this record.
func (r ToolCallRecord) Key() string {
	return r.StepID + "#" + strconv.Itoa(r.Attempt)
}

// ExecutionState is the full mutable context flowing through the graph.
// Every field carries a declared merge rule applied by Merge: Replace (new
// value overwrites old when non-zero) or Append (new elements are
// concatenated to old). State is a plain value type; every node produces a
// delta, never mutates the previous state in place.
type ExecutionState struct {
	WorkflowID string `json:"workflow_id"`

	Issue Issue `json:"issue"`
	Plan  Plan  `json:"plan"`

	CurrentNode string `json:"current_node"`

	// BatchIndex is the index into Plan.Batches the developer node is
	// currently working through.
	BatchIndex int `json:"batch_index"`

	// BatchResults accumulates across the whole run (append).
	BatchResults []StepResult `json:"batch_results,omitempty"`

	Blocker *Blocker `json:"blocker,omitempty"`

	// Approvals accumulates across the whole run (append).
	Approvals []ApprovalRecord `json:"approvals,omitempty"`

	// TokenUsage accumulates across the whole run (append).
	TokenUsage []TokenUsage `json:"token_usage,omitempty"`

	// Messages accumulates across the whole run (append).
	Messages []AgentMessage `json:"messages,omitempty"`

	Review ReviewResult `json:"review,omitempty"`

	// ToolCallLedger accumulates across the whole run (append, deduplicated
	// by Key on merge) and backs the interrupt re-entry dedup rule.
	ToolCallLedger []ToolCallRecord `json:"tool_call_ledger,omitempty"`

	// ArchitectRetries counts how many times plan_validator_node has sent
	// control back to architect_node, enforcing the "max 1 retry" rule.
	ArchitectRetries int `json:"architect_retries"`

	// PlanArtifactPath is the optional markdown plan file the architect
	// node may have written into the worktree.
	PlanArtifactPath string `json:"plan_artifact_path,omitempty"`
}

// Merge applies delta onto prev using each field's declared rule and
// returns the new state. prev is never mutated in place — Merge always
// returns a fresh value, keeping ExecutionState a pure value type as
// spec.md §3 requires.
func Merge(prev, delta ExecutionState) ExecutionState {
	next := prev

	if delta.WorkflowID != "" {
		next.WorkflowID = delta.WorkflowID
	}
	if delta.Issue.IssueID != "" {
		next.Issue = delta.Issue
	}
	if len(delta.Plan.Batches) > 0 || delta.Plan.Goal != "" {
		next.Plan = delta.Plan
	}
	if delta.CurrentNode != "" {
		next.CurrentNode = delta.CurrentNode
	}
	if delta.BatchIndex != 0 {
		next.BatchIndex = delta.BatchIndex
	}

	next.BatchResults = append(append([]StepResult(nil), prev.BatchResults...), delta.BatchResults...)

	// Blocker replaces on a non-nil, non-zero delta; a non-nil delta that is
	// the ClearBlockerDelta sentinel clears it; a nil delta.Blocker must
	// never erase a pending one, since most node deltas simply don't touch
	// it.
	if delta.Blocker != nil {
		if delta.Blocker.isZero() {
			next.Blocker = nil
		} else {
			next.Blocker = delta.Blocker
		}
	}

	next.Approvals = append(append([]ApprovalRecord(nil), prev.Approvals...), delta.Approvals...)
	next.TokenUsage = append(append([]TokenUsage(nil), prev.TokenUsage...), delta.TokenUsage...)
	next.Messages = append(append([]AgentMessage(nil), prev.Messages...), delta.Messages...)

	if delta.Review.ApprovalStatus != "" {
		next.Review = delta.Review
	}

	next.ToolCallLedger = mergeToolCallLedger(prev.ToolCallLedger, delta.ToolCallLedger)

	if delta.ArchitectRetries != 0 {
		next.ArchitectRetries = delta.ArchitectRetries
	}
	if delta.PlanArtifactPath != "" {
		next.PlanArtifactPath = delta.PlanArtifactPath
	}

	return next
}

// ClearBlocker returns a copy of state with Blocker explicitly cleared.
// Used directly against an already-merged state (a scheduler snapshot, a
// test fixture); a node producing a Delta instead merges through
// ClearBlockerDelta since Merge never sees the "before" state a node closes
// over — only the Delta it returns.
func ClearBlocker(state ExecutionState) ExecutionState {
	state.Blocker = nil
	return state
}

// ClearBlockerDelta returns a Delta that, once merged, clears a pending
// Blocker. blocker_resolution_node returns this (merged with its other
// field changes) once a blocker has been actioned, since Merge's ordinary
// nil-delta rule means an untouched Blocker field can never clear one.
func ClearBlockerDelta() ExecutionState {
	return ExecutionState{Blocker: &Blocker{}}
}

// isZero reports whether b carries no blocker information — the sentinel
// Merge treats as "clear", distinguishing it from a delta that simply
// doesn't touch Blocker at all (whose pointer is nil, not a zero value).
func (b Blocker) isZero() bool {
	return b.StepID == "" && b.StepDescription == "" && b.BlockerType == "" &&
		b.ErrorMessage == "" && len(b.AttemptedActions) == 0 && len(b.SuggestedResolutions) == 0
}

func mergeToolCallLedger(prev, delta []ToolCallRecord) []ToolCallRecord {
	if len(delta) == 0 {
		return append([]ToolCallRecord(nil), prev...)
	}
	seen := make(map[string]bool, len(prev)+len(delta))
	out := make([]ToolCallRecord, 0, len(prev)+len(delta))
	for _, r := range prev {
		if !seen[r.Key()] {
			seen[r.Key()] = true
			out = append(out, r)
		}
	}
	for _, r := range delta {
		if !seen[r.Key()] {
			seen[r.Key()] = true
			out = append(out, r)
		}
	}
	return out
}

// HasToolCall reports whether a tool call for (stepID, attempt) has already
// been recorded, so a re-entered node can skip re-invoking a driver whose
// side effect is known to have happened.
func (s ExecutionState) HasToolCall(stepID string, attempt int) (ToolCallRecord, bool) {
	key := ToolCallRecord{StepID: stepID, Attempt: attempt}.Key()
	for _, r := range s.ToolCallLedger {
		if r.Key() == key {
			return r, true
		}
	}
	return ToolCallRecord{}, false
}
