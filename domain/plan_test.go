package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRiskLevelMaxBatchSize(t *testing.T) {
	require.Equal(t, 5, RiskLow.MaxBatchSize())
	require.Equal(t, 3, RiskMedium.MaxBatchSize())
	require.Equal(t, 1, RiskHigh.MaxBatchSize())
}

func TestSplitOversizedBatches_HighRiskSplitsToSingles(t *testing.T) {
	batches := []Batch{{
		BatchNumber: 1,
		RiskSummary: RiskHigh,
		Description: "rework auth",
		Steps:       []Step{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}},
	}}

	split := SplitOversizedBatches(batches)

	require.Len(t, split, 3)
	for i, b := range split {
		require.Len(t, b.Steps, 1)
		require.Equal(t, i+1, b.BatchNumber, "batch numbers renumber sequentially")
	}
	require.Contains(t, split[0].Description, "part 1/3")
	require.Contains(t, split[2].Description, "part 3/3")
}

func TestSplitOversizedBatches_PreservesStepOrder(t *testing.T) {
	batches := []Batch{{
		RiskSummary: RiskMedium,
		Steps:       []Step{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}, {ID: "s4"}},
	}}

	split := SplitOversizedBatches(batches)

	require.Len(t, split, 2)
	require.Equal(t, []Step{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}, split[0].Steps)
	require.Equal(t, []Step{{ID: "s4"}}, split[1].Steps)
}

func TestDependentsOf_NoDependents(t *testing.T) {
	steps := []Step{{ID: "s1"}, {ID: "s2"}}

	dependents := DependentsOf(steps, "s1")

	require.Empty(t, dependents)
}

func TestDependentsOf_DiamondDependency(t *testing.T) {
	steps := []Step{
		{ID: "root"},
		{ID: "left", DependsOn: []string{"root"}},
		{ID: "right", DependsOn: []string{"root"}},
		{ID: "join", DependsOn: []string{"left", "right"}},
	}

	dependents := DependentsOf(steps, "root")

	require.True(t, dependents["left"])
	require.True(t, dependents["right"])
	require.True(t, dependents["join"])
}

func TestAggregateTokenUsage(t *testing.T) {
	usages := []TokenUsage{
		{InputTokens: 10, OutputTokens: 20, CostUSD: 0.1, DurationMS: 100},
		{InputTokens: 5, OutputTokens: 7, CostUSD: 0.05, DurationMS: 50},
	}

	agg := AggregateTokenUsage(usages)

	require.Equal(t, 15, agg.InputTokens)
	require.Equal(t, 27, agg.OutputTokens)
	require.InDelta(t, 0.15, agg.CostUSD, 1e-9)
	require.Equal(t, int64(150), agg.DurationMS)
}

func TestProfileCheckpointEvery(t *testing.T) {
	paranoid := Profile{Trust: TrustParanoid}
	require.True(t, paranoid.CheckpointEvery(RiskLow))
	require.True(t, paranoid.CheckpointEvery(RiskHigh))

	standard := Profile{Trust: TrustStandard}
	require.True(t, standard.CheckpointEvery(RiskLow))
	require.True(t, standard.CheckpointEvery(RiskHigh))

	autonomous := Profile{Trust: TrustAutonomous}
	require.False(t, autonomous.CheckpointEvery(RiskLow))
	require.False(t, autonomous.CheckpointEvery(RiskMedium))
	require.True(t, autonomous.CheckpointEvery(RiskHigh))
}
