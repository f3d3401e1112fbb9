package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
)

// HumanApprovalNode is the pipeline's one static interrupt: the Runtime
// pauses before ever calling Execute (graph.Graph.InterruptBefore), so by
// the time Execute runs a resume command is already queued in ctx. On
// {approved: true} it hands off to developer_node; on
// {approved: false, feedback} it routes back to architect_node carrying the
// feedback for the next plan attempt.
type HumanApprovalNode struct {
	// Bus is optional; when nil, the decision applied here is not published
	// as an approval_granted/approval_rejected event.
	Bus *eventbus.Bus
}

func (n *HumanApprovalNode) ID() string          { return HumanApprovalNodeID }
func (n *HumanApprovalNode) Kind() graph.NodeKind { return graph.KindApproval }

func (n *HumanApprovalNode) Execute(ctx context.Context, state domain.ExecutionState) graph.NodeResult {
	resume, ok := graph.ResumeFromContext(ctx)
	if !ok {
		return graph.NodeResult{Err: fmt.Errorf("pipeline: %s: %w", HumanApprovalNodeID, errNoResumeCommand)}
	}

	approved, feedback := decodeApproval(resume)
	record := domain.ApprovalRecord{
		Node:      HumanApprovalNodeID,
		Approved:  approved,
		Feedback:  feedback,
		Timestamp: time.Now(),
	}
	delta := domain.ExecutionState{Approvals: []domain.ApprovalRecord{record}}

	if !approved {
		n.publish(state.WorkflowID, eventbus.EventApprovalRejected, feedback)
		return graph.NodeResult{Delta: delta, Route: graph.GotoNode(ArchitectNodeID)}
	}
	n.publish(state.WorkflowID, eventbus.EventApprovalGranted, "")
	return graph.NodeResult{Delta: delta, Route: graph.GotoNode(DeveloperNodeID)}
}

func (n *HumanApprovalNode) publish(workflowID string, eventType eventbus.EventType, feedback string) {
	if n.Bus == nil || workflowID == "" {
		return
	}
	data := map[string]interface{}{"node": HumanApprovalNodeID}
	if feedback != "" {
		data["feedback"] = feedback
	}
	message := "human approval granted"
	if eventType == eventbus.EventApprovalRejected {
		message = "human approval rejected"
	}
	n.Bus.Publish(workflowID, eventbus.Event{
		Level:     eventbus.LevelInfo,
		EventType: eventType,
		Message:   message,
		Data:      data,
	})
}
