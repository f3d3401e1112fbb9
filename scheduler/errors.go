package scheduler

import "errors"

// ErrWorktreeBusy is returned by Submit when another workflow already holds
// the in_progress or blocked lock on the requested worktree path.
var ErrWorktreeBusy = errors.New("scheduler: worktree already has an active workflow")

// ErrNotFound is returned when a workflow id has no matching record.
var ErrNotFound = errors.New("scheduler: workflow not found")

// ErrNotBlocked is returned by approve, reject, and update_state when the
// target workflow isn't currently paused at an interrupt.
var ErrNotBlocked = errors.New("scheduler: workflow is not blocked")

// ErrNotReplannable is returned by replan when the workflow is neither
// blocked nor failed.
var ErrNotReplannable = errors.New("scheduler: workflow must be blocked or failed to replan")

// ErrAlreadyTerminal is returned when an operation targets a workflow whose
// status is already absorbing.
var ErrAlreadyTerminal = errors.New("scheduler: workflow has already reached a terminal status")

// ErrInvalidTransition is returned when a requested status change isn't
// legal from the workflow's current status.
var ErrInvalidTransition = errors.New("scheduler: invalid status transition")
