package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/driver"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
	"github.com/existential-birds/amelia-sub017/prompt"
)

// ArchitectNode turns a bound issue into a risk-bounded Plan by calling the
// architect agent through its driver, then splits any oversized batch and
// optionally writes a markdown plan artifact into the worktree.
type ArchitectNode struct {
	Drivers      *driver.Registry
	Prompts      prompt.Store
	Profile      domain.Profile
	Tracker      domain.Tracker
	WorktreePath string

	// ParsePlan overrides how the agent's final output is decoded into a
	// domain.Plan. Tests substitute a fixture parser; production leaves it
	// nil and falls back to parsePlanJSON.
	ParsePlan func(output string) (domain.Plan, error)

	// Bus is optional; when nil, the architect's driver invocation streams
	// no telemetry events.
	Bus *eventbus.Bus
}

func (n *ArchitectNode) ID() string          { return ArchitectNodeID }
func (n *ArchitectNode) Kind() graph.NodeKind { return graph.KindAgent }

func (n *ArchitectNode) Execute(ctx context.Context, state domain.ExecutionState) graph.NodeResult {
	issue := state.Issue
	if issue.Body == "" && issue.IssueID != "" && n.Tracker != nil {
		fetched, err := n.Tracker.FetchIssue(ctx, issue.IssueID)
		if err != nil {
			return graph.NodeResult{Err: fmt.Errorf("architect: fetch issue: %w", err)}
		}
		issue = fetched
	}

	instructions, err := boundPrompt(ctx, n.Prompts, "architect")
	if err != nil {
		return graph.NodeResult{Err: err}
	}

	var feedback string
	if len(state.Approvals) > 0 {
		if last := state.Approvals[len(state.Approvals)-1]; !last.Approved {
			feedback = last.Feedback
		}
	}

	d, err := n.Drivers.Resolve(string(n.Profile.Driver))
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("architect: resolve driver: %w", err)}
	}

	req := driver.Request{
		Agent:      "architect",
		Prompt:     architectPrompt(instructions, issue, feedback),
		ModelHint:  n.Profile.ModelOverrides["architect"],
		TrustLevel: n.Profile.Trust,
	}
	sink := eventbus.DriverSink{Bus: n.Bus, WorkflowID: state.WorkflowID}
	result, err := d.Invoke(ctx, req, sink)
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("architect: invoke: %w", err)}
	}

	plan, err := n.parsePlan(result.FinalOutput)
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("architect: %w", err)}
	}
	plan.Batches = domain.SplitOversizedBatches(plan.Batches)

	delta := domain.ExecutionState{
		Issue: issue,
		Plan:  plan,
		Messages: []domain.AgentMessage{
			{Agent: "architect", Role: "assistant", Content: result.FinalOutput, Timestamp: time.Now()},
		},
		TokenUsage: []domain.TokenUsage{result.TokenUsageTotal},
	}

	if n.WorktreePath != "" {
		if path, writeErr := n.writeArtifact(plan); writeErr == nil {
			delta.PlanArtifactPath = path
			n.publishArtifact(state.WorkflowID, path)
		}
	}

	return graph.NodeResult{Delta: delta, Route: graph.GotoNode(PlanValidatorNodeID)}
}

func (n *ArchitectNode) parsePlan(output string) (domain.Plan, error) {
	if n.ParsePlan != nil {
		return n.ParsePlan(output)
	}
	return parsePlanJSON(output)
}

// publishArtifact reports the plan markdown file just written as a
// file_created event. A later architect revision overwrites the same path,
// but from the bus's point of view that's still a fresh artifact, not a
// modification of one it already described.
func (n *ArchitectNode) publishArtifact(workflowID, path string) {
	if n.Bus == nil || workflowID == "" {
		return
	}
	n.Bus.Publish(workflowID, eventbus.Event{
		Level:     eventbus.LevelInfo,
		Agent:     "architect",
		EventType: eventbus.EventFileCreated,
		Message:   "wrote plan artifact",
		Data:      map[string]interface{}{"path": path},
	})
}

func (n *ArchitectNode) writeArtifact(plan domain.Plan) (string, error) {
	path := filepath.Join(n.WorktreePath, ".amelia", "plan.md")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(renderPlanMarkdown(plan)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
