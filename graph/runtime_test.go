package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/existential-birds/amelia-sub017/checkpoint"
	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/eventbus"
)

func agentNode(id string, fn func(ctx context.Context, state domain.ExecutionState) NodeResult) NodeFunc {
	return NodeFunc{NodeID: id, NodeKind: KindAgent, Fn: fn}
}

func TestRuntime_RunsLinearGraphToCompletion(t *testing.T) {
	g := NewGraph("a")
	g.AddNode(agentNode("a", func(_ context.Context, s domain.ExecutionState) NodeResult {
		return NodeResult{Delta: domain.ExecutionState{CurrentNode: "a"}, Route: GotoNode("b")}
	}))
	g.AddNode(agentNode("b", func(_ context.Context, s domain.ExecutionState) NodeResult {
		return NodeResult{Delta: domain.ExecutionState{CurrentNode: "b"}, Route: Stop()}
	}))

	cp := checkpoint.NewMemCheckpointer()
	bus := eventbus.New()
	rt, err := NewRuntime(g, cp, bus)
	require.NoError(t, err)

	result, err := rt.Run(context.Background(), "wf-1", domain.ExecutionState{WorkflowID: "wf-1"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, result.Outcome)
	require.Equal(t, "b", result.State.CurrentNode)

	events, _ := bus.Backfill("wf-1", 0)
	require.NotEmpty(t, events)
	require.Equal(t, eventbus.EventStageStarted, events[0].EventType)
	require.Equal(t, eventbus.EventWorkflowCompleted, events[len(events)-1].EventType)
}

func TestRuntime_StaticInterruptPausesBeforeNodeRuns(t *testing.T) {
	executed := false
	g := NewGraph("approve")
	g.AddNode(agentNode("approve", func(_ context.Context, s domain.ExecutionState) NodeResult {
		executed = true
		return NodeResult{Route: Stop()}
	}))
	g.InterruptBefore("approve")

	cp := checkpoint.NewMemCheckpointer()
	rt, err := NewRuntime(g, cp, eventbus.New())
	require.NoError(t, err)

	result, err := rt.Run(context.Background(), "wf-2", domain.ExecutionState{WorkflowID: "wf-2"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, result.Outcome)
	require.False(t, executed, "static interrupt must pause before the node ever executes")
	require.NotNil(t, result.Interrupt)

	latest, err := cp.Latest(context.Background(), "wf-2")
	require.NoError(t, err)
	require.Equal(t, []string{"approve"}, latest.NextNodes)
}

func TestRuntime_ResumeCommandUnblocksStaticInterrupt(t *testing.T) {
	g := NewGraph("approve")
	g.AddNode(agentNode("approve", func(ctx context.Context, s domain.ExecutionState) NodeResult {
		resume, _ := ResumeFromContext(ctx)
		approved, _ := resume.(bool)
		if !approved {
			return NodeResult{Route: Stop()}
		}
		return NodeResult{Delta: domain.ExecutionState{CurrentNode: "approved"}, Route: Stop()}
	}))
	g.InterruptBefore("approve")

	cp := checkpoint.NewMemCheckpointer()
	rt, err := NewRuntime(g, cp, eventbus.New())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := rt.Run(ctx, "wf-3", domain.ExecutionState{WorkflowID: "wf-3"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, first.Outcome)

	second, err := rt.Run(ctx, "wf-3", domain.ExecutionState{}, &Command{Resume: true}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, second.Outcome)
	require.Equal(t, "approved", second.State.CurrentNode)
}

func TestRuntime_DynamicInterruptPausesMidNodeAndResumes(t *testing.T) {
	g := NewGraph("blocker")
	g.AddNode(agentNode("blocker", func(ctx context.Context, s domain.ExecutionState) NodeResult {
		if rec, ok := s.HasToolCall("blocker-1", 0); ok {
			return NodeResult{Delta: domain.ExecutionState{CurrentNode: rec.Output}, Route: Stop()}
		}
		resume, ok := ResumeFromContext(ctx)
		if !ok {
			return NodeResult{
				Err:       ErrInterruptPending,
				Interrupt: &InterruptPayload{Reason: "blocker", Data: map[string]interface{}{"blocker_id": "blocker-1"}},
			}
		}
		action, _ := resume.(string)
		return NodeResult{
			Delta: domain.ExecutionState{
				ToolCallLedger: []domain.ToolCallRecord{{StepID: "blocker-1", Attempt: 0, Output: action}},
			},
			Route: GotoNode("blocker"), // re-enter once more to pick up the ledger fast-path
		}
	}))

	cp := checkpoint.NewMemCheckpointer()
	rt, err := NewRuntime(g, cp, eventbus.New())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := rt.Run(ctx, "wf-4", domain.ExecutionState{WorkflowID: "wf-4"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeBlocked, first.Outcome)
	require.Equal(t, "blocker-1", first.Interrupt.Data["blocker_id"])

	second, err := rt.Run(ctx, "wf-4", domain.ExecutionState{}, &Command{Resume: "skip"}, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCompleted, second.Outcome)
	require.Equal(t, "skip", second.State.CurrentNode)
}

func TestRuntime_CancellationYieldsBeforeNodeExecutes(t *testing.T) {
	g := NewGraph("a")
	g.AddNode(agentNode("a", func(_ context.Context, s domain.ExecutionState) NodeResult {
		t.Fatal("node must not execute once cancelled")
		return NodeResult{}
	}))

	cp := checkpoint.NewMemCheckpointer()
	rt, err := NewRuntime(g, cp, eventbus.New())
	require.NoError(t, err)

	result, err := rt.Run(context.Background(), "wf-5", domain.ExecutionState{WorkflowID: "wf-5"}, nil, func() bool { return true })
	require.NoError(t, err)
	require.Equal(t, OutcomeCancelled, result.Outcome)
}

func TestRuntime_MaxStepsExceeded(t *testing.T) {
	g := NewGraph("loop")
	g.AddNode(agentNode("loop", func(_ context.Context, s domain.ExecutionState) NodeResult {
		return NodeResult{Route: GotoNode("loop")}
	}))

	cp := checkpoint.NewMemCheckpointer()
	rt, err := NewRuntime(g, cp, eventbus.New(), WithMaxSteps(3))
	require.NoError(t, err)

	result, err := rt.Run(context.Background(), "wf-6", domain.ExecutionState{WorkflowID: "wf-6"}, nil, nil)
	require.ErrorIs(t, err, ErrMaxStepsExceeded)
	require.Equal(t, OutcomeFailed, result.Outcome)
}

func TestRuntime_NodeFailureChecksBeforeWorkflowFailedEvent(t *testing.T) {
	g := NewGraph("a")
	g.AddNode(agentNode("a", func(_ context.Context, s domain.ExecutionState) NodeResult {
		return NodeResult{Err: assertionError("boom")}
	}))

	cp := checkpoint.NewMemCheckpointer()
	bus := eventbus.New()
	rt, err := NewRuntime(g, cp, bus)
	require.NoError(t, err)

	result, err := rt.Run(context.Background(), "wf-7", domain.ExecutionState{WorkflowID: "wf-7"}, nil, nil)
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, result.Outcome)

	latest, cerr := cp.Latest(context.Background(), "wf-7")
	require.NoError(t, cerr)
	require.NotNil(t, latest, "a failed node must still leave a checkpoint behind")

	events, _ := bus.Backfill("wf-7", 0)
	require.Equal(t, eventbus.EventWorkflowFailed, events[len(events)-1].EventType)
}

type assertionError string

func (e assertionError) Error() string { return string(e) }
