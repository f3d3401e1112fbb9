package pipeline

import (
	"context"
	"fmt"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
)

// BlockerResolutionNode is the pipeline's only dynamic interrupt outside
// developer_node's own checkpoint gates: developer_node routes here
// whenever a step fails or a batch checkpoint is rejected. Entered without
// a resume command, it immediately pauses via graph.ErrInterruptPending —
// there's no work for it to do until a human decides. Resumed with
// {action: continue|skip|abort}, it applies that decision to the Plan and
// routes back to developer_node to carry on from where it stopped.
type BlockerResolutionNode struct {
	// Bus is optional; when nil, the decision applied here is not published
	// as an approval_granted/approval_rejected event.
	Bus *eventbus.Bus
}

func (n *BlockerResolutionNode) ID() string          { return BlockerResolutionNodeID }
func (n *BlockerResolutionNode) Kind() graph.NodeKind { return graph.KindApproval }

func (n *BlockerResolutionNode) Execute(ctx context.Context, state domain.ExecutionState) graph.NodeResult {
	if state.Blocker == nil {
		return graph.NodeResult{Err: fmt.Errorf("pipeline: %w", errNoActiveBlocker)}
	}

	resume, ok := graph.ResumeFromContext(ctx)
	if !ok {
		payload := &graph.InterruptPayload{
			Reason: string(state.Blocker.BlockerType),
			Data: map[string]interface{}{
				"step_id":       state.Blocker.StepID,
				"error_message": state.Blocker.ErrorMessage,
			},
		}
		return graph.NodeResult{Err: graph.ErrInterruptPending, Interrupt: payload}
	}

	blocker := state.Blocker
	action := decodeBlockerAction(resume)

	switch action {
	case blockerActionAbort:
		n.publish(state.WorkflowID, eventbus.EventApprovalRejected, blocker.StepID, "blocker resolution aborted by human")
		return graph.NodeResult{Err: fmt.Errorf("pipeline: blocker for step %s: %w", blocker.StepID, errAbortedByUser)}
	case blockerActionSkip, blockerActionContinue:
		n.publish(state.WorkflowID, eventbus.EventApprovalGranted, blocker.StepID, "blocker resolution resolved ("+string(action)+") by human")
		delta := domain.ClearBlockerDelta()
		delta.Plan = applyBlockerAction(state.Plan, blocker.StepID, action)
		return graph.NodeResult{Delta: delta, Route: graph.GotoNode(DeveloperNodeID)}
	default:
		return graph.NodeResult{Err: fmt.Errorf("pipeline: %w: %q", errUnknownBlockerAction, action)}
	}
}

func (n *BlockerResolutionNode) publish(workflowID string, eventType eventbus.EventType, stepID, message string) {
	if n.Bus == nil || workflowID == "" {
		return
	}
	n.Bus.Publish(workflowID, eventbus.Event{
		Level:     eventbus.LevelInfo,
		EventType: eventType,
		Message:   message,
		Data:      map[string]interface{}{"node": BlockerResolutionNodeID, "step_id": stepID},
	})
}
