package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/driver"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
	"github.com/existential-birds/amelia-sub017/prompt"
)

// ReviewerNode reviews the developer node's accumulated BatchResults against
// the plan's goal. A revision_requested verdict routes back to
// developer_node — the plan and batch progress are left exactly as they
// are, since the reviewer's job is to call out further work, not to redo
// what already ran. An approved verdict ends the workflow.
type ReviewerNode struct {
	Drivers *driver.Registry
	Prompts prompt.Store
	Profile domain.Profile

	// Bus is optional; when nil, the reviewer's driver invocation streams no
	// telemetry events.
	Bus *eventbus.Bus
}

func (n *ReviewerNode) ID() string          { return ReviewerNodeID }
func (n *ReviewerNode) Kind() graph.NodeKind { return graph.KindAgent }

func (n *ReviewerNode) Execute(ctx context.Context, state domain.ExecutionState) graph.NodeResult {
	instructions, err := boundPrompt(ctx, n.Prompts, "reviewer")
	if err != nil {
		return graph.NodeResult{Err: err}
	}

	d, err := n.Drivers.Resolve(string(n.Profile.Driver))
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("reviewer: resolve driver: %w", err)}
	}

	req := driver.Request{
		Agent:      "reviewer",
		Prompt:     reviewerPrompt(instructions, state.Plan, state.BatchResults),
		ModelHint:  n.Profile.ModelOverrides["reviewer"],
		TrustLevel: n.Profile.Trust,
	}
	sink := eventbus.DriverSink{Bus: n.Bus, WorkflowID: state.WorkflowID}
	result, err := d.Invoke(ctx, req, sink)
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("reviewer: invoke: %w", err)}
	}

	review, err := parseReviewJSON(result.FinalOutput)
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("reviewer: %w", err)}
	}

	delta := domain.ExecutionState{
		Review: review,
		Messages: []domain.AgentMessage{
			{Agent: "reviewer", Role: "assistant", Content: result.FinalOutput, Timestamp: time.Now()},
		},
		TokenUsage: []domain.TokenUsage{result.TokenUsageTotal},
	}

	if review.ApprovalStatus == domain.ReviewRevisionRequested {
		return graph.NodeResult{Delta: delta, Route: graph.GotoNode(DeveloperNodeID)}
	}
	return graph.NodeResult{Delta: delta, Route: graph.Stop()}
}
