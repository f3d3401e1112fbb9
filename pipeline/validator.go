package pipeline

import (
	"context"
	"fmt"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/graph"
)

// PlanValidatorNode checks an architect-produced Plan's structural
// invariants — at least one batch, every batch non-empty, step ids unique,
// depends_on referencing only already-seen (earlier) steps — and sends a
// failing plan back to architect_node at most once before handing off to
// human_approval_node regardless of outcome.
type PlanValidatorNode struct{}

func (n *PlanValidatorNode) ID() string          { return PlanValidatorNodeID }
func (n *PlanValidatorNode) Kind() graph.NodeKind { return graph.KindRouter }

func (n *PlanValidatorNode) Execute(_ context.Context, state domain.ExecutionState) graph.NodeResult {
	err := validatePlan(state.Plan)
	if err == nil {
		return graph.NodeResult{Route: graph.GotoNode(HumanApprovalNodeID)}
	}

	record := domain.ApprovalRecord{Node: PlanValidatorNodeID, Approved: false, Feedback: err.Error()}
	if state.ArchitectRetries >= 1 {
		return graph.NodeResult{
			Delta: domain.ExecutionState{Approvals: []domain.ApprovalRecord{record}},
			Route: graph.GotoNode(HumanApprovalNodeID),
		}
	}
	return graph.NodeResult{
		Delta: domain.ExecutionState{
			ArchitectRetries: state.ArchitectRetries + 1,
			Approvals:        []domain.ApprovalRecord{record},
		},
		Route: graph.GotoNode(ArchitectNodeID),
	}
}

func validatePlan(plan domain.Plan) error {
	if len(plan.Batches) == 0 {
		return errEmptyPlan
	}
	seen := make(map[string]bool)
	for _, batch := range plan.Batches {
		if len(batch.Steps) == 0 {
			return errEmptyBatch
		}
		for _, step := range batch.Steps {
			if step.ID == "" {
				return errStepMissingID
			}
			if seen[step.ID] {
				return fmt.Errorf("%w: %s", errDuplicateStep, step.ID)
			}
			for _, dep := range step.DependsOn {
				if !seen[dep] {
					return fmt.Errorf("%w: step %s depends on %s", errForwardDependency, step.ID, dep)
				}
			}
			seen[step.ID] = true
		}
	}
	return nil
}
