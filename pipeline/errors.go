package pipeline

import "errors"

var (
	errEmptyPlan         = errors.New("pipeline: plan has no batches")
	errEmptyBatch        = errors.New("pipeline: batch has no steps")
	errStepMissingID     = errors.New("pipeline: step has no id")
	errDuplicateStep     = errors.New("pipeline: duplicate step id")
	errForwardDependency = errors.New("pipeline: step depends on a later or unknown step")

	errNoResumeCommand      = errors.New("node entered without a queued resume command")
	errNoActiveBlocker      = errors.New("blocker_resolution_node entered with no blocker recorded")
	errUnknownBlockerAction = errors.New("unknown blocker resolution action")
	errAbortedByUser        = errors.New("workflow aborted by human at blocker resolution")
	errBatchIndexOutOfRange = errors.New("batch_index out of range for plan")
)
