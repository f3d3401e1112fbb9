package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/driver"
	"github.com/existential-birds/amelia-sub017/engine"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
)

// DeveloperNode walks plan.Batches[state.BatchIndex:] one step at a time,
// executing each through the profile's driver and recording a StepResult.
// Which step a batch has already decided lives on the step itself
// (domain.Step.Status), not in a separate cursor — since Plan replaces
// wholesale on merge, re-entering this node (after a checkpoint pause or a
// crash-restart) simply skips every step whose Status is already settled
// and resumes at the first domain.StepPending one, which is what makes the
// node's repeated re-entry after each interrupt deterministic.
//
// A single Execute call may walk through several batches at once — when the
// active profile's trust level auto-approves a batch's risk tier (spec.md
// §4.7), the loop proceeds straight to the next batch without pausing;
// otherwise it yields a dynamic interrupt between steps (paranoid) or
// between batches (standard, and autonomous only for high-risk batches).
type DeveloperNode struct {
	Drivers *driver.Registry
	Profile domain.Profile

	// Metrics is optional; when nil, blocker counters are simply not recorded.
	Metrics *engine.Metrics

	// Bus is optional; when nil, the developer's per-step driver invocations
	// stream no telemetry events.
	Bus *eventbus.Bus
}

func (n *DeveloperNode) ID() string          { return DeveloperNodeID }
func (n *DeveloperNode) Kind() graph.NodeKind { return graph.KindAgent }

func (n *DeveloperNode) Execute(ctx context.Context, state domain.ExecutionState) graph.NodeResult {
	if state.BatchIndex < 0 || state.BatchIndex > len(state.Plan.Batches) {
		return graph.NodeResult{Err: fmt.Errorf("developer: %w", errBatchIndexOutOfRange)}
	}

	d, err := n.Drivers.Resolve(string(n.Profile.Driver))
	if err != nil {
		return graph.NodeResult{Err: fmt.Errorf("developer: resolve driver: %w", err)}
	}

	// A resume value here always answers the one checkpoint this node itself
	// last paused on (pauseForApproval's interrupt). carriedApproval tracks
	// that it has been granted but not yet applied to a gate; it is spent the
	// first time execution reaches a gate with no new step processed in
	// between, since that gate is the very one the resume answers. Any gate
	// reached only after a step was actually processed this call is a new
	// checkpoint the resume says nothing about, and always pauses fresh.
	carriedApproval := false
	if resume, ok := graph.ResumeFromContext(ctx); ok {
		approved, feedback := decodeApproval(resume)
		if !approved {
			if feedback == "" {
				feedback = "developer checkpoint rejected"
			}
			blocker := &domain.Blocker{BlockerType: domain.BlockerNeedsJudgment, ErrorMessage: feedback}
			return n.pauseOnBlocker(state.Plan, state.BatchIndex, nil, nil, nil, nil, blocker)
		}
		carriedApproval = true
	}

	plan := clonePlan(state.Plan)
	var results []domain.StepResult
	var messages []domain.AgentMessage
	var usage []domain.TokenUsage
	var ledger []domain.ToolCallRecord
	processedAStep := false

	batchIdx := state.BatchIndex
	for batchIdx < len(plan.Batches) {
		batch := &plan.Batches[batchIdx]

		for si := range batch.Steps {
			step := &batch.Steps[si]
			if step.Status != "" && step.Status != domain.StepPending {
				continue // already decided by an earlier pass or a blocker resolution
			}
			processedAStep = true

			if dependsOnSkipped(plan.Batches, *step) {
				step.Status = domain.StepSkipped
				results = append(results, domain.StepResult{StepID: step.ID, Status: domain.StepSkipped})
				continue
			}

			if step.ActionType == domain.ActionManual || step.RequiresHumanJudgment {
				blocker := &domain.Blocker{
					StepID:          step.ID,
					StepDescription: step.Description,
					BlockerType:     domain.BlockerNeedsJudgment,
					ErrorMessage:    "step requires human judgment",
				}
				return n.pauseOnBlocker(plan, batchIdx, results, messages, usage, ledger, blocker)
			}

			step.Status = domain.StepRunning
			started := time.Now()

			var result driver.Result
			if rec, ok := state.HasToolCall(step.ID, 0); ok {
				// The driver already ran for this step in a prior Execute call
				// that paused before reaching this point (e.g. a crash-restart
				// replay); the idempotency rule in spec.md §4.3 forbids firing
				// it again.
				result = driver.Result{FinalOutput: rec.Output, TerminalReason: driver.TerminalCompleted}
			} else {
				req := driver.Request{
					Agent:      "developer",
					Prompt:     developerStepPrompt(*step),
					ModelHint:  n.Profile.ModelOverrides["developer"],
					TrustLevel: n.Profile.Trust,
				}
				sink := eventbus.DriverSink{Bus: n.Bus, WorkflowID: state.WorkflowID}
				invoked, invokeErr := d.Invoke(ctx, req, sink)
				if invokeErr != nil {
					return graph.NodeResult{Err: fmt.Errorf("developer: invoke step %s: %w", step.ID, invokeErr)}
				}
				result = invoked
				ledger = append(ledger, domain.ToolCallRecord{StepID: step.ID, Attempt: 0, Output: result.FinalOutput})
			}

			duration := time.Since(started).Milliseconds()
			messages = append(messages, domain.AgentMessage{
				Agent: "developer", Role: "assistant", Content: result.FinalOutput, Timestamp: time.Now(),
			})
			usage = append(usage, result.TokenUsageTotal)

			status, blocker := evaluateStepResult(*step, result)
			step.Status = status
			results = append(results, domain.StepResult{
				StepID:     step.ID,
				Status:     status,
				Output:     driver.Truncate(result.FinalOutput),
				ExitCode:   exitCodeOf(result),
				DurationMS: duration,
			})

			if blocker != nil {
				return n.pauseOnBlocker(plan, batchIdx, results, messages, usage, ledger, blocker)
			}

			if n.Profile.Trust == domain.TrustParanoid {
				if carriedApproval && !processedAStep {
					carriedApproval = false
				} else {
					return n.pauseForApproval(plan, batchIdx, results, messages, usage, ledger, step.ID)
				}
			}
		}

		if n.Profile.Trust != domain.TrustParanoid && n.Profile.CheckpointEvery(batch.RiskSummary) {
			if carriedApproval && !processedAStep {
				carriedApproval = false
			} else {
				return n.pauseForApproval(plan, batchIdx, results, messages, usage, ledger, "")
			}
		}

		batchIdx++
	}

	delta := domain.ExecutionState{
		Plan:           plan,
		BatchIndex:     batchIdx,
		BatchResults:   results,
		Messages:       messages,
		TokenUsage:     usage,
		ToolCallLedger: ledger,
	}
	return graph.NodeResult{Delta: delta, Route: graph.GotoNode(ReviewerNodeID)}
}

// pauseOnBlocker routes to blocker_resolution_node carrying everything this
// Execute call has produced so far plus the triggering Blocker. It is a
// plain routed transition, not a dynamic interrupt of this node itself —
// blocker_resolution_node is the one that actually pauses, on the very next
// loop iteration of the same Runtime.Run call.
func (n *DeveloperNode) pauseOnBlocker(
	plan domain.Plan, batchIdx int,
	results []domain.StepResult, messages []domain.AgentMessage, usage []domain.TokenUsage, ledger []domain.ToolCallRecord,
	blocker *domain.Blocker,
) graph.NodeResult {
	if n.Metrics != nil {
		n.Metrics.IncrementBlocker(string(blocker.BlockerType))
	}
	delta := domain.ExecutionState{
		Plan: plan, BatchIndex: batchIdx, BatchResults: results,
		Messages: messages, TokenUsage: usage, ToolCallLedger: ledger, Blocker: blocker,
	}
	return graph.NodeResult{Delta: delta, Route: graph.GotoNode(BlockerResolutionNodeID)}
}

// pauseForApproval raises the dynamic interrupt a workflow's trust level
// requires before letting execution proceed past stepID (per-step,
// paranoid) or past a just-finished batch (per-batch, standard /
// autonomous-high-risk) — the table in spec.md §4.7. It always pauses; the
// decision that answers it is consumed, once, at the top of the next
// Execute call, never here.
func (n *DeveloperNode) pauseForApproval(
	plan domain.Plan, batchIdx int,
	results []domain.StepResult, messages []domain.AgentMessage, usage []domain.TokenUsage, ledger []domain.ToolCallRecord,
	stepID string,
) graph.NodeResult {
	delta := domain.ExecutionState{
		Plan: plan, BatchIndex: batchIdx, BatchResults: results,
		Messages: messages, TokenUsage: usage, ToolCallLedger: ledger,
	}
	reason := "batch_approval"
	data := map[string]interface{}{"batch": batchIdx}
	if stepID != "" {
		reason = "step_approval"
		data["step_id"] = stepID
	}
	return graph.NodeResult{Delta: delta, Err: graph.ErrInterruptPending, Interrupt: &graph.InterruptPayload{Reason: reason, Data: data}}
}

// evaluateStepResult classifies a completed driver invocation as either a
// completed step or one of the blocker types spec.md §3 names, checking the
// step's own expectations (exit code, output pattern) against what the
// driver reported.
func evaluateStepResult(step domain.Step, result driver.Result) (domain.StepStatus, *domain.Blocker) {
	switch result.TerminalReason {
	case driver.TerminalCancelled:
		return domain.StepFailed, &domain.Blocker{
			StepID: step.ID, StepDescription: step.Description,
			BlockerType: domain.BlockerUnexpectedState, ErrorMessage: "developer invocation was cancelled",
		}
	case driver.TerminalTimedOut:
		return domain.StepFailed, &domain.Blocker{
			StepID: step.ID, StepDescription: step.Description,
			BlockerType: domain.BlockerCommandFailed, ErrorMessage: "developer invocation timed out",
		}
	case driver.TerminalError:
		msg := "developer invocation failed"
		if result.Err != nil {
			msg = result.Err.Error()
		}
		return domain.StepFailed, &domain.Blocker{
			StepID: step.ID, StepDescription: step.Description,
			BlockerType: domain.BlockerCommandFailed, ErrorMessage: msg,
		}
	}

	if step.ExpectedOutputPattern != "" {
		if matched, err := regexp.MatchString(step.ExpectedOutputPattern, result.FinalOutput); err == nil && !matched {
			return domain.StepFailed, &domain.Blocker{
				StepID: step.ID, StepDescription: step.Description,
				BlockerType:  domain.BlockerValidationFailed,
				ErrorMessage: "output did not match the expected pattern",
			}
		}
	}

	if code, ok := commandExitCode(result); ok && code != step.ExpectExitCode {
		return domain.StepFailed, &domain.Blocker{
			StepID: step.ID, StepDescription: step.Description,
			BlockerType:  domain.BlockerCommandFailed,
			ErrorMessage: fmt.Sprintf("command exited %d, expected %d", code, step.ExpectExitCode),
		}
	}

	return domain.StepCompleted, nil
}

func commandExitCode(result driver.Result) (int, bool) {
	for _, tc := range result.ToolCallsMade {
		if tc.Name != "command" {
			continue
		}
		switch v := tc.Output["exit_code"].(type) {
		case int:
			return v, true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

func exitCodeOf(result driver.Result) int {
	if code, ok := commandExitCode(result); ok {
		return code
	}
	return 0
}
