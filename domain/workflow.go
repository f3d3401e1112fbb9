// Package domain defines the data model shared by every engine component:
// Workflow, ExecutionState, Plan, Blocker, Profile, and the Tracker contract
// workflows are driven against.
package domain

import "time"

// Status is the lifecycle state of a Workflow. Terminal statuses are
// absorbing: once a workflow reaches one, no further transition is valid.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s is an absorbing status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether a workflow in status s holds the worktree lock
// (in_progress or blocked, per spec.md's mutual-exclusion invariant).
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusBlocked
}

// Workflow is a single orchestration run: one tracker issue driven against
// one worktree. WorkflowScheduler owns Workflow records; GraphRuntime is the
// sole mutator of the nested ExecutionState during execution.
type Workflow struct {
	WorkflowID string `json:"workflow_id"`
	IssueID    string `json:"issue_id"`

	// WorktreePath is the absolute filesystem path of the working copy this
	// run is driving changes against. It is the mutual-exclusion key: at
	// most one workflow may hold status in_progress or blocked for a given
	// WorktreePath at any time.
	WorktreePath string `json:"worktree_path"`

	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`

	ProfileID string `json:"profile_id"`

	// PromptVersionBindings maps prompt id to a version id. Nothing in this
	// module writes it: the scheduler leaves it empty, and pipeline nodes
	// resolve a prompt's current version each time they execute.
	PromptVersionBindings map[string]string `json:"prompt_version_bindings,omitempty"`
}

// CanTransition reports whether moving from the workflow's current status to
// `next` is a legal transition per the state machine in spec.md §6.
func (w *Workflow) CanTransition(next Status) bool {
	if w.Status.Terminal() {
		return false
	}
	switch w.Status {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusBlocked || next == StatusCancelled ||
			next == StatusFailed || next == StatusCompleted
	case StatusBlocked:
		return next == StatusInProgress || next == StatusCancelled
	default:
		return false
	}
}
