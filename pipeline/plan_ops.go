package pipeline

import "github.com/existential-birds/amelia-sub017/domain"

// clonePlan deep-copies a Plan's Batches/Steps so developer_node and
// blocker_resolution_node can mutate per-step Status in place without
// aliasing the state a node was handed (ExecutionState is a value type;
// Plan replaces wholesale on merge, so the clone becomes the new canonical
// Plan once returned as a Delta).
func clonePlan(p domain.Plan) domain.Plan {
	next := p
	next.Batches = make([]domain.Batch, len(p.Batches))
	for i, b := range p.Batches {
		nb := b
		nb.Steps = make([]domain.Step, len(b.Steps))
		copy(nb.Steps, b.Steps)
		next.Batches[i] = nb
	}
	return next
}

// flattenSteps returns every step across every batch of a plan, the shape
// domain.DependentsOf expects.
func flattenSteps(batches []domain.Batch) []domain.Step {
	var all []domain.Step
	for _, b := range batches {
		all = append(all, b.Steps...)
	}
	return all
}

// dependsOnSkipped reports whether any of step's declared dependencies has
// already been marked skipped, so developer_node can cascade a skip to a
// dependent it reaches before blocker_resolution_node's own cascade pass
// would otherwise catch it (spec.md §8 invariant 7).
func dependsOnSkipped(batches []domain.Batch, step domain.Step) bool {
	if len(step.DependsOn) == 0 {
		return false
	}
	status := make(map[string]domain.StepStatus)
	for _, b := range batches {
		for _, s := range b.Steps {
			status[s.ID] = s.Status
		}
	}
	for _, dep := range step.DependsOn {
		if status[dep] == domain.StepSkipped {
			return true
		}
	}
	return false
}

// applyBlockerAction returns a copy of plan with stepID's status updated per
// a human's blocker_resolution_node decision: "skip" cascades to every
// transitive dependent (domain.DependentsOf), "continue" marks only stepID
// itself resolved.
func applyBlockerAction(plan domain.Plan, stepID string, action blockerAction) domain.Plan {
	next := clonePlan(plan)

	switch action {
	case blockerActionSkip:
		dependents := domain.DependentsOf(flattenSteps(next.Batches), stepID)
		for bi := range next.Batches {
			for si := range next.Batches[bi].Steps {
				s := &next.Batches[bi].Steps[si]
				if s.ID == stepID || dependents[s.ID] {
					s.Status = domain.StepSkipped
				}
			}
		}
	case blockerActionContinue:
		for bi := range next.Batches {
			for si := range next.Batches[bi].Steps {
				if next.Batches[bi].Steps[si].ID == stepID {
					next.Batches[bi].Steps[si].Status = domain.StepCompleted
				}
			}
		}
	}

	return next
}
