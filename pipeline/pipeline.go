// Package pipeline assembles the AgentPipeline: the concrete graph of
// architect, validator, approval, developer, blocker-resolution, and
// reviewer nodes a WorkflowScheduler drives through a GraphRuntime.
package pipeline

import (
	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/driver"
	"github.com/existential-birds/amelia-sub017/engine"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
	"github.com/existential-birds/amelia-sub017/prompt"
)

// Node ids, exported so a caller's Submit seed, metrics labels, or tests can
// reference them without importing unexported node types.
const (
	ArchitectNodeID         = "architect_node"
	PlanValidatorNodeID     = "plan_validator_node"
	HumanApprovalNodeID     = "human_approval_node"
	DeveloperNodeID         = "developer_node"
	BlockerResolutionNodeID = "blocker_resolution_node"
	ReviewerNodeID          = "reviewer_node"
)

// Deps bundles every external dependency the pipeline's nodes need.
type Deps struct {
	Drivers      *driver.Registry
	Prompts      prompt.Store
	Profile      domain.Profile
	Tracker      domain.Tracker
	WorktreePath string

	// Metrics is optional; when nil, blocker counters are simply not recorded.
	Metrics *engine.Metrics

	// Bus is optional; when nil, nodes stream no driver telemetry or
	// approval/blocker decision events onto an event bus (the runtime's own
	// lifecycle and stage events are unaffected, since those are published
	// by the runtime itself, not by these nodes).
	Bus *eventbus.Bus
}

// Build assembles the AgentPipeline graph. Every node returns its own
// explicit NodeResult.Route, so — following the teacher's own review
// workflow, which wires no edges and routes entirely through node return
// values — Build adds no Connect calls either.
func Build(deps Deps) (*graph.Graph, error) {
	g := graph.NewGraph(ArchitectNodeID)

	g.AddNode(&ArchitectNode{
		Drivers:      deps.Drivers,
		Prompts:      deps.Prompts,
		Profile:      deps.Profile,
		Tracker:      deps.Tracker,
		WorktreePath: deps.WorktreePath,
		Bus:          deps.Bus,
	})
	g.AddNode(&PlanValidatorNode{})
	g.AddNode(&HumanApprovalNode{Bus: deps.Bus})
	g.AddNode(&DeveloperNode{Drivers: deps.Drivers, Profile: deps.Profile, Metrics: deps.Metrics, Bus: deps.Bus})
	g.AddNode(&BlockerResolutionNode{Bus: deps.Bus})
	g.AddNode(&ReviewerNode{Drivers: deps.Drivers, Prompts: deps.Prompts, Profile: deps.Profile, Bus: deps.Bus})

	g.InterruptBefore(HumanApprovalNodeID)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
