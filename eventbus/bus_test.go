package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishAssignsMonotonicSequence(t *testing.T) {
	bus := New()

	first := bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	second := bus.Publish("wf-1", Event{EventType: EventStageStarted})

	require.Equal(t, uint64(1), first.Sequence)
	require.Equal(t, uint64(2), second.Sequence)
	require.NotEmpty(t, first.EventID)
}

func TestPublishIsPerWorkflowIndependent(t *testing.T) {
	bus := New()

	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	wf2First := bus.Publish("wf-2", Event{EventType: EventWorkflowStarted})

	require.Equal(t, uint64(1), wf2First.Sequence, "sequence numbering is per-workflow, not global")
}

func TestSubscribeReceivesFutureEventsOnly(t *testing.T) {
	bus := New()
	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})

	sub := bus.Subscribe("wf-1")
	defer sub.Close()

	bus.Publish("wf-1", Event{EventType: EventStageStarted, Message: "architect"})

	select {
	case e := <-sub.C:
		require.Equal(t, EventStageStarted, e.EventType)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestSubscribeALLReceivesEveryWorkflow(t *testing.T) {
	bus := New()
	sub := bus.Subscribe() // no filter => ALL
	defer sub.Close()

	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	bus.Publish("wf-2", Event{EventType: EventWorkflowStarted})

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-sub.C:
			seen[e.WorkflowID] = true
		case <-time.After(time.Second):
			t.Fatal("missing event from ALL subscription")
		}
	}
	require.True(t, seen["wf-1"])
	require.True(t, seen["wf-2"])
}

func TestSubscribeFiltersOutOtherWorkflows(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("wf-1")
	defer sub.Close()

	bus.Publish("wf-2", Event{EventType: EventWorkflowStarted})

	select {
	case e := <-sub.C:
		t.Fatalf("unexpected event delivered to filtered subscriber: %+v", e)
	case <-time.After(50 * time.Millisecond):
		// expected: nothing arrives
	}
}

func TestBackfillReturnsEventsAfterSequence(t *testing.T) {
	bus := New()
	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	bus.Publish("wf-1", Event{EventType: EventStageStarted})
	bus.Publish("wf-1", Event{EventType: EventStageCompleted})

	events, expired := bus.Backfill("wf-1", 1)

	require.False(t, expired)
	require.Len(t, events, 2)
	require.Equal(t, EventStageStarted, events[0].EventType)
	require.Equal(t, EventStageCompleted, events[1].EventType)
}

func TestBackfillReportsExpiredWhenRingEvicted(t *testing.T) {
	bus := New(WithRingSize(2))
	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	bus.Publish("wf-1", Event{EventType: EventStageStarted})
	bus.Publish("wf-1", Event{EventType: EventStageCompleted}) // evicts sequence 1

	events, expired := bus.Backfill("wf-1", 0)

	require.True(t, expired, "sequence 1 was evicted, leaving a gap after sequence 0")
	require.Len(t, events, 2)
}

func TestBackfillUnknownWorkflowReturnsEmpty(t *testing.T) {
	bus := New()
	events, expired := bus.Backfill("never-seen", 0)
	require.Nil(t, events)
	require.False(t, expired)
}

func TestLaggedSubscriberIsDisconnectedNotThePublisher(t *testing.T) {
	bus := New(WithSubscriberBuffer(1), WithSendTimeout(10*time.Millisecond))
	sub := bus.Subscribe("wf-1")

	// Fill the subscriber's buffer, then publish past it without draining.
	bus.Publish("wf-1", Event{EventType: EventWorkflowStarted})
	bus.Publish("wf-1", Event{EventType: EventStageStarted}) // should trigger lag

	select {
	case <-sub.Lagged:
		// expected
	case <-time.After(time.Second):
		t.Fatal("expected subscription to be marked lagged")
	}

	_, ok := <-sub.C
	require.True(t, ok, "the buffered event should still be readable")
	_, ok = <-sub.C
	require.False(t, ok, "channel should be closed after disconnect")

	// The workflow's ring buffer must still hold both events for others.
	events, expired := bus.Backfill("wf-1", 0)
	require.False(t, expired)
	require.Len(t, events, 2)
}

func TestEventTypeFamily(t *testing.T) {
	require.Equal(t, FamilyLifecycle, EventWorkflowStarted.Family())
	require.Equal(t, FamilyApproval, EventApprovalRequired.Family())
	require.Equal(t, FamilyTelemetry, EventTokenUsage.Family())
}
