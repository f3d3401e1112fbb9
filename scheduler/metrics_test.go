package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/existential-birds/amelia-sub017/checkpoint"
	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/engine"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/scheduler"
)

func TestScheduler_WithMetricsRecordsCompletedOutcome(t *testing.T) {
	cp := checkpoint.NewMemCheckpointer()
	bus := eventbus.New()
	rt := linearRuntime(t, cp, bus)
	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)
	sched := scheduler.New(rt, cp, bus, scheduler.NewMemWorkflowStore(), "start", scheduler.WithMetrics(metrics))

	ctx := context.Background()
	wf, err := sched.Submit(ctx, scheduler.SubmitRequest{IssueID: "ISS-M1", WorktreePath: "/tmp/wt-m1"})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		got, _ := sched.Get(ctx, wf.WorkflowID)
		return got.Status == domain.StatusCompleted
	})

	families, err := registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, fam := range families {
		if fam.GetName() != "amelia_workflow_outcomes_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == "completed" {
					found = true
				}
			}
		}
	}
	require.True(t, found, "workflow_outcomes_total must record a completed outcome")
}
