package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge_ReplaceRules(t *testing.T) {
	prev := ExecutionState{CurrentNode: "architect", BatchIndex: 1}
	delta := ExecutionState{CurrentNode: "developer"}

	next := Merge(prev, delta)

	require.Equal(t, "developer", next.CurrentNode)
	require.Equal(t, 1, next.BatchIndex, "unset delta fields must not clobber prev")
}

func TestMerge_AppendRules(t *testing.T) {
	prev := ExecutionState{
		Messages: []AgentMessage{{Agent: "architect", Content: "first"}},
	}
	delta := ExecutionState{
		Messages: []AgentMessage{{Agent: "developer", Content: "second"}},
	}

	next := Merge(prev, delta)

	require.Len(t, next.Messages, 2)
	require.Equal(t, "first", next.Messages[0].Content)
	require.Equal(t, "second", next.Messages[1].Content)

	// prev must not be mutated by Merge (state is a pure value type).
	require.Len(t, prev.Messages, 1)
}

func TestMerge_BlockerOnlyChangesOnExplicitDelta(t *testing.T) {
	prev := ExecutionState{Blocker: &Blocker{StepID: "s1", BlockerType: BlockerCommandFailed}}

	next := Merge(prev, ExecutionState{CurrentNode: "developer"})
	require.NotNil(t, next.Blocker, "an unrelated delta must not clear a pending blocker")

	cleared := ClearBlocker(next)
	require.Nil(t, cleared.Blocker)
}

func TestMerge_ClearBlockerDelta(t *testing.T) {
	prev := ExecutionState{Blocker: &Blocker{StepID: "s1", BlockerType: BlockerCommandFailed}}

	next := Merge(prev, ClearBlockerDelta())
	require.Nil(t, next.Blocker, "ClearBlockerDelta must clear a pending blocker through the ordinary Merge path")

	again := Merge(next, ExecutionState{CurrentNode: "developer"})
	require.Nil(t, again.Blocker, "an unrelated delta must not resurrect a cleared blocker")
}

func TestMerge_ToolCallLedgerDeduplicates(t *testing.T) {
	prev := ExecutionState{
		ToolCallLedger: []ToolCallRecord{{StepID: "s1", Attempt: 0, Output: "first"}},
	}
	delta := ExecutionState{
		ToolCallLedger: []ToolCallRecord{
			{StepID: "s1", Attempt: 0, Output: "duplicate-ignored"},
			{StepID: "s1", Attempt: 1, Output: "retry"},
		},
	}

	next := Merge(prev, delta)

	require.Len(t, next.ToolCallLedger, 2)
	rec, ok := next.HasToolCall("s1", 0)
	require.True(t, ok)
	require.Equal(t, "first", rec.Output, "first-recorded outcome for a key wins")

	_, ok = next.HasToolCall("s1", 1)
	require.True(t, ok)

	_, ok = next.HasToolCall("s1", 2)
	require.False(t, ok)
}

func TestSplitOversizedBatches(t *testing.T) {
	steps := make([]Step, 0, 7)
	for i := 0; i < 7; i++ {
		steps = append(steps, Step{ID: "s" + string(rune('a'+i))})
	}
	batches := []Batch{{BatchNumber: 1, RiskSummary: RiskLow, Steps: steps}}

	split := SplitOversizedBatches(batches)

	require.Len(t, split, 2, "7 low-risk steps split at max 5 per batch")
	require.Len(t, split[0].Steps, 5)
	require.Len(t, split[1].Steps, 2)
	require.Equal(t, 1, split[0].BatchNumber)
	require.Equal(t, 2, split[1].BatchNumber)
}

func TestSplitOversizedBatches_WithinLimitUnchanged(t *testing.T) {
	batches := []Batch{{BatchNumber: 1, RiskSummary: RiskHigh, Steps: []Step{{ID: "s1"}}}}

	split := SplitOversizedBatches(batches)

	require.Len(t, split, 1)
	require.Len(t, split[0].Steps, 1)
}

func TestDependentsOf_TransitiveClosure(t *testing.T) {
	steps := []Step{
		{ID: "s1"},
		{ID: "s2", DependsOn: []string{"s1"}},
		{ID: "s3", DependsOn: []string{"s2"}},
		{ID: "s4"},
	}

	dependents := DependentsOf(steps, "s1")

	require.True(t, dependents["s2"])
	require.True(t, dependents["s3"], "s3 depends on s2 which depends on s1")
	require.False(t, dependents["s4"])
}

func TestWorkflowCanTransition(t *testing.T) {
	w := &Workflow{Status: StatusBlocked}
	require.True(t, w.CanTransition(StatusInProgress))
	require.True(t, w.CanTransition(StatusCancelled))
	require.False(t, w.CanTransition(StatusCompleted), "blocked must resume through in_progress first")

	w.Status = StatusCompleted
	require.False(t, w.CanTransition(StatusInProgress), "terminal statuses are absorbing")
}
