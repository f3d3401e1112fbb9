package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/existential-birds/amelia-sub017/checkpoint"
	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/eventbus"
)

// Outcome is how a Run call ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Command resumes a paused workflow: Resume is the value node logic
// interprets at its own interrupt point (an approval decision, a blocker
// action, feedback text) — the Runtime itself never inspects it.
type Command struct {
	Resume interface{}
}

// RunResult is what a single Run call produces.
type RunResult struct {
	State     domain.ExecutionState
	Outcome   Outcome
	Interrupt *InterruptPayload
	Err       error
}

// Runtime walks a Graph against a workflow's checkpoints, one node at a
// time, persisting a checkpoint after every node and emitting stage events
// on the event bus. A Runtime is stateless between Run calls — all
// continuation state lives in the Checkpointer.
type Runtime struct {
	graph       *Graph
	checkpoints checkpoint.Checkpointer
	bus         *eventbus.Bus
	cfg         runtimeConfig
}

// NewRuntime validates g and constructs a Runtime over it.
func NewRuntime(g *Graph, cp checkpoint.Checkpointer, bus *eventbus.Bus, opts ...Option) (*Runtime, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Runtime{graph: g, checkpoints: cp, bus: bus, cfg: cfg}, nil
}

// Run executes the graph against threadID from its latest checkpoint (or
// seed, if none exists yet) until it pauses at an interrupt, reaches a
// terminal node, is cancelled, or fails. cmd, when non-nil, is consumed by
// exactly the first node executed this call — the one the workflow was
// paused before. cancelled is polled before each node executes and after
// each checkpoint write, per the suspension points the runtime owns.
func (r *Runtime) Run(ctx context.Context, threadID string, seed domain.ExecutionState, cmd *Command, cancelled func() bool) (RunResult, error) {
	state, nextNode, parentID, err := r.loadState(ctx, threadID, seed)
	if err != nil {
		return RunResult{}, err
	}

	steps := 0
	for {
		if isCancelled(cancelled) {
			if _, err := r.checkpoint(ctx, threadID, parentID, state, []string{nextNode}); err != nil {
				return RunResult{}, err
			}
			r.publish(threadID, eventbus.EventWorkflowCancelled, nextNode, "workflow cancelled", nil)
			return RunResult{State: state, Outcome: OutcomeCancelled}, nil
		}

		steps++
		if steps > r.cfg.maxSteps {
			return RunResult{State: state, Outcome: OutcomeFailed, Err: ErrMaxStepsExceeded}, ErrMaxStepsExceeded
		}

		node, ok := r.graph.node(nextNode)
		if !ok {
			return RunResult{}, fmt.Errorf("%w: %s", ErrUnknownNode, nextNode)
		}

		// Step 3: static interrupts pause before the node ever runs, unless
		// a resume command is already queued for it.
		if r.graph.isStaticInterrupt(nextNode) && cmd == nil {
			if _, err := r.checkpoint(ctx, threadID, parentID, state, []string{nextNode}); err != nil {
				return RunResult{}, err
			}
			payload := &InterruptPayload{Reason: "static_interrupt", Data: map[string]interface{}{"node": nextNode}}
			r.publish(threadID, eventbus.EventApprovalRequired, nextNode, "awaiting approval", payload.Data)
			return RunResult{State: state, Outcome: OutcomeBlocked, Interrupt: payload}, nil
		}

		r.publish(threadID, eventbus.EventStageStarted, nextNode, "stage started", nil)

		execCtx := ctx
		if cmd != nil {
			execCtx = withResume(ctx, cmd.Resume)
		}
		timeout := nodeTimeout(r.cfg.nodeTimeouts[nextNode], r.cfg.defaultNodeTimeout)
		result, timeoutErr := executeWithTimeout(execCtx, node, state, timeout)
		cmd = nil // a resume command targets exactly one node execution

		if timeoutErr != nil {
			return RunResult{State: state, Outcome: OutcomeFailed, Err: timeoutErr}, timeoutErr
		}

		if IsInterrupt(result.Err) {
			merged := domain.Merge(state, result.Delta)
			newParent, err := r.checkpoint(ctx, threadID, parentID, merged, []string{nextNode})
			if err != nil {
				return RunResult{}, err
			}
			parentID = newParent
			var data map[string]interface{}
			if result.Interrupt != nil {
				data = result.Interrupt.Data
			}
			r.publish(threadID, eventbus.EventApprovalRequired, nextNode, "awaiting decision", data)
			return RunResult{State: merged, Outcome: OutcomeBlocked, Interrupt: result.Interrupt}, nil
		}

		if result.Err != nil {
			failErr := &NodeError{NodeID: nextNode, Message: "execution failed", Cause: result.Err}
			if _, err := r.checkpoint(ctx, threadID, parentID, state, nil); err != nil {
				return RunResult{}, err
			}
			r.publish(threadID, eventbus.EventWorkflowFailed, nextNode, failErr.Error(), nil)
			return RunResult{State: state, Outcome: OutcomeFailed, Err: failErr}, failErr
		}

		merged := domain.Merge(state, result.Delta)

		to, terminal, routeErr := r.graph.resolveNext(nextNode, result.Route, merged)
		if routeErr != nil {
			if _, err := r.checkpoint(ctx, threadID, parentID, merged, nil); err != nil {
				return RunResult{}, err
			}
			r.publish(threadID, eventbus.EventWorkflowFailed, nextNode, routeErr.Error(), nil)
			return RunResult{State: merged, Outcome: OutcomeFailed, Err: routeErr}, routeErr
		}

		var nextNodes []string
		if !terminal {
			nextNodes = []string{to}
		}

		newParent, err := r.checkpoint(ctx, threadID, parentID, merged, nextNodes)
		if err != nil {
			return RunResult{}, err
		}
		parentID = newParent

		r.publish(threadID, eventbus.EventStageCompleted, nextNode, "stage completed", nil)
		state = merged

		if isCancelled(cancelled) {
			r.publish(threadID, eventbus.EventWorkflowCancelled, nextNode, "workflow cancelled", nil)
			return RunResult{State: state, Outcome: OutcomeCancelled}, nil
		}

		if terminal {
			r.publish(threadID, eventbus.EventWorkflowCompleted, nextNode, "workflow completed", nil)
			return RunResult{State: state, Outcome: OutcomeCompleted}, nil
		}

		nextNode = to
	}
}

func isCancelled(cancelled func() bool) bool {
	return cancelled != nil && cancelled()
}

// loadState resolves the state and next node to resume from: the seed and
// the graph's entry node when no checkpoint exists yet, otherwise the
// latest checkpoint's state and next_nodes[0].
func (r *Runtime) loadState(ctx context.Context, threadID string, seed domain.ExecutionState) (state domain.ExecutionState, nextNode, parentID string, err error) {
	latest, err := r.checkpoints.Latest(ctx, threadID)
	if err != nil {
		return domain.ExecutionState{}, "", "", fmt.Errorf("graph: load checkpoint: %w", err)
	}
	if latest == nil {
		return seed, r.graph.entry, "", nil
	}
	if err := json.Unmarshal(latest.State, &state); err != nil {
		return domain.ExecutionState{}, "", "", fmt.Errorf("graph: decode checkpoint state: %w", err)
	}
	if len(latest.NextNodes) == 0 {
		return domain.ExecutionState{}, "", "", fmt.Errorf("graph: checkpoint for %s has no next_nodes to resume from", threadID)
	}
	return state, latest.NextNodes[0], latest.CheckpointID, nil
}

func (r *Runtime) checkpoint(ctx context.Context, threadID, parentID string, state domain.ExecutionState, nextNodes []string) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("graph: encode checkpoint state: %w", err)
	}
	id := uuid.NewString()
	if err := r.checkpoints.Put(ctx, threadID, id, parentID, raw, nextNodes); err != nil {
		return "", fmt.Errorf("graph: put checkpoint: %w", err)
	}
	return id, nil
}

func (r *Runtime) publish(threadID string, eventType eventbus.EventType, nodeID, message string, data map[string]interface{}) {
	if r.bus == nil {
		return
	}
	merged := map[string]interface{}{"node": nodeID}
	for k, v := range data {
		merged[k] = v
	}
	r.bus.Publish(threadID, eventbus.Event{
		Level:     eventbus.LevelInfo,
		EventType: eventType,
		Message:   message,
		Data:      merged,
	})
}
