package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/driver"
	"github.com/existential-birds/amelia-sub017/graph"
)

type fakeTracker struct {
	issue domain.Issue
	err   error
}

func (f *fakeTracker) FetchIssue(context.Context, string) (domain.Issue, error) {
	return f.issue, f.err
}

func TestArchitectNode_UsesIssueBodyWhenAlreadyBound(t *testing.T) {
	fd := &fakeDriver{Results: []driver.Result{{FinalOutput: onePlanStepJSON, TerminalReason: driver.TerminalCompleted}}}
	n := &ArchitectNode{
		Drivers: registryWithDriver(string(domain.DriverAPI), fd),
		Profile: domain.Profile{Driver: domain.DriverAPI},
	}

	state := domain.ExecutionState{Issue: domain.Issue{IssueID: "ISSUE-1", Title: "t", Body: "already have the body"}}
	result := n.Execute(context.Background(), state)

	require.NoError(t, result.Err)
	require.Equal(t, graph.GotoNode(PlanValidatorNodeID), result.Route)
	require.Equal(t, "fix the thing", result.Delta.Plan.Goal)
	require.Equal(t, 1, fd.CallCount(), "the architect invokes its driver exactly once")
}

func TestArchitectNode_FetchesIssueWhenBodyMissing(t *testing.T) {
	fd := &fakeDriver{Results: []driver.Result{{FinalOutput: onePlanStepJSON, TerminalReason: driver.TerminalCompleted}}}
	tracker := &fakeTracker{issue: domain.Issue{IssueID: "ISSUE-2", Title: "fetched", Body: "fetched body"}}
	n := &ArchitectNode{
		Drivers: registryWithDriver(string(domain.DriverAPI), fd),
		Profile: domain.Profile{Driver: domain.DriverAPI},
		Tracker: tracker,
	}

	state := domain.ExecutionState{Issue: domain.Issue{IssueID: "ISSUE-2"}}
	result := n.Execute(context.Background(), state)

	require.NoError(t, result.Err)
	require.Equal(t, "fetched body", result.Delta.Issue.Body)
}

func TestArchitectNode_SplitsOversizedBatches(t *testing.T) {
	oversized := `{
  "goal": "many steps",
  "batches": [
    {"batch_number": 1, "risk_summary": "high", "description": "too many",
     "steps": [
       {"id": "s1", "action_type": "code"},
       {"id": "s2", "action_type": "code"}
     ]}
  ]
}`
	fd := &fakeDriver{Results: []driver.Result{{FinalOutput: oversized, TerminalReason: driver.TerminalCompleted}}}
	n := &ArchitectNode{
		Drivers: registryWithDriver(string(domain.DriverAPI), fd),
		Profile: domain.Profile{Driver: domain.DriverAPI},
	}

	state := domain.ExecutionState{Issue: domain.Issue{IssueID: "ISSUE-3", Body: "body"}}
	result := n.Execute(context.Background(), state)

	require.NoError(t, result.Err)
	require.Len(t, result.Delta.Plan.Batches, 2, "a high-risk batch caps at 1 step per batch")
}

func TestArchitectNode_CarriesRejectionFeedbackIntoThePrompt(t *testing.T) {
	fd := &fakeDriver{Results: []driver.Result{{FinalOutput: onePlanStepJSON, TerminalReason: driver.TerminalCompleted}}}
	n := &ArchitectNode{
		Drivers: registryWithDriver(string(domain.DriverAPI), fd),
		Profile: domain.Profile{Driver: domain.DriverAPI},
	}

	state := domain.ExecutionState{
		Issue:     domain.Issue{IssueID: "ISSUE-4", Body: "body"},
		Approvals: []domain.ApprovalRecord{{Node: HumanApprovalNodeID, Approved: false, Feedback: "add a test"}},
	}
	_ = n.Execute(context.Background(), state)
	require.Contains(t, fd.calls[0].Prompt, "add a test")
}
