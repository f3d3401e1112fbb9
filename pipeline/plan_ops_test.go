package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/existential-birds/amelia-sub017/domain"
)

func chainedPlan() domain.Plan {
	return domain.Plan{Batches: []domain.Batch{{
		Steps: []domain.Step{
			{ID: "s1"},
			{ID: "s2", DependsOn: []string{"s1"}},
			{ID: "s3", DependsOn: []string{"s2"}},
		},
	}}}
}

func TestClonePlan_DeepCopiesBatchesAndSteps(t *testing.T) {
	plan := chainedPlan()
	clone := clonePlan(plan)
	clone.Batches[0].Steps[0].Status = domain.StepCompleted

	require.Empty(t, plan.Batches[0].Steps[0].Status, "mutating the clone must not affect the original")
}

func TestDependsOnSkipped(t *testing.T) {
	plan := chainedPlan()
	plan.Batches[0].Steps[0].Status = domain.StepSkipped

	require.True(t, dependsOnSkipped(plan.Batches, plan.Batches[0].Steps[1]), "s2 depends directly on skipped s1")
	require.False(t, dependsOnSkipped(plan.Batches, plan.Batches[0].Steps[0]), "s1 has no dependencies")
}

func TestApplyBlockerAction_SkipCascadesToDependents(t *testing.T) {
	next := applyBlockerAction(chainedPlan(), "s1", blockerActionSkip)
	steps := next.Batches[0].Steps
	require.Equal(t, domain.StepSkipped, steps[0].Status)
	require.Equal(t, domain.StepSkipped, steps[1].Status)
	require.Equal(t, domain.StepSkipped, steps[2].Status)
}

func TestApplyBlockerAction_ContinueOnlyMarksTheBlockedStep(t *testing.T) {
	next := applyBlockerAction(chainedPlan(), "s1", blockerActionContinue)
	steps := next.Batches[0].Steps
	require.Equal(t, domain.StepCompleted, steps[0].Status)
	require.Empty(t, steps[1].Status)
	require.Empty(t, steps[2].Status)
}

func TestFlattenSteps(t *testing.T) {
	plan := chainedPlan()
	flat := flattenSteps(plan.Batches)
	require.Len(t, flat, 3)
}
