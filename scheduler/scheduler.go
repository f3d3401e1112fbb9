// Package scheduler admits, runs, and supervises workflows: it enforces a
// global concurrency cap and a per-worktree exclusivity lock, drives each
// admitted workflow's GraphRuntime to completion or its next pause, and
// exposes the submit/approve/reject/cancel/update_state/replan/snapshot/
// history/subscribe surface a caller (a CLI, an HTTP handler, a tracker
// webhook) uses to operate it.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/existential-birds/amelia-sub017/checkpoint"
	"github.com/existential-birds/amelia-sub017/domain"
	"github.com/existential-birds/amelia-sub017/engine"
	"github.com/existential-birds/amelia-sub017/eventbus"
	"github.com/existential-birds/amelia-sub017/graph"
)

// SubmitRequest is the input to Submit: everything needed to seed and bind a
// new workflow before it ever runs a node.
type SubmitRequest struct {
	IssueID      string
	WorktreePath string
	ProfileID    string
	Profile      domain.Profile
	Seed         domain.ExecutionState
}

// Scheduler is the WorkflowScheduler component.
type Scheduler struct {
	runtime   *graph.Runtime
	checkpoints checkpoint.Checkpointer
	bus       *eventbus.Bus
	workflows WorkflowStore
	entryNode string

	maxConcurrent int

	mu        sync.Mutex
	running   map[string]bool   // workflow ids currently occupying a concurrency slot
	worktrees map[string]string // worktree path -> workflow id holding the lock
	queue     []string          // workflow ids ready to be (re-)admitted, FIFO
	resumeCmd map[string]*graph.Command
	seeds     map[string]domain.ExecutionState
	cancelled map[string]*atomic.Bool

	metrics *engine.Metrics
}

// New builds a Scheduler. entryNode is the pipeline graph's entry node,
// used by replan to reset a workflow back to the start.
func New(rt *graph.Runtime, cp checkpoint.Checkpointer, bus *eventbus.Bus, workflows WorkflowStore, entryNode string, opts ...Option) *Scheduler {
	s := &Scheduler{
		runtime:       rt,
		checkpoints:   cp,
		bus:           bus,
		workflows:     workflows,
		entryNode:     entryNode,
		maxConcurrent: 5,
		running:       make(map[string]bool),
		worktrees:     make(map[string]string),
		resumeCmd:     make(map[string]*graph.Command),
		seeds:         make(map[string]domain.ExecutionState),
		cancelled:     make(map[string]*atomic.Bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending workflow and enqueues it for admission. It fails
// with ErrWorktreeBusy if another workflow already holds req.WorktreePath's
// in_progress or blocked lock.
func (s *Scheduler) Submit(ctx context.Context, req SubmitRequest) (domain.Workflow, error) {
	s.mu.Lock()
	if holder, busy := s.worktrees[req.WorktreePath]; busy {
		s.mu.Unlock()
		return domain.Workflow{}, fmt.Errorf("%w: %s held by %s", ErrWorktreeBusy, req.WorktreePath, holder)
	}
	s.mu.Unlock()

	wf := domain.Workflow{
		WorkflowID:   uuid.NewString(),
		IssueID:      req.IssueID,
		WorktreePath: req.WorktreePath,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now(),
		ProfileID:    req.ProfileID,
	}
	if err := s.workflows.Save(ctx, wf); err != nil {
		return domain.Workflow{}, fmt.Errorf("scheduler: save workflow: %w", err)
	}

	s.mu.Lock()
	s.seeds[wf.WorkflowID] = req.Seed
	s.queue = append(s.queue, wf.WorkflowID)
	s.mu.Unlock()

	s.tryAdmit(ctx)
	return wf, nil
}

// Approve resumes a blocked workflow with an affirmative decision, delivered
// as cmd.Resume to whichever node it paused in front of.
func (s *Scheduler) Approve(ctx context.Context, workflowID string, resume interface{}) error {
	return s.queueResume(ctx, workflowID, resume)
}

// Reject resumes a blocked workflow with a negative decision carrying
// feedback text; node logic (human_approval_node, blocker_resolution_node)
// interprets the resume value's shape.
func (s *Scheduler) Reject(ctx context.Context, workflowID string, feedback string) error {
	return s.queueResume(ctx, workflowID, map[string]interface{}{"approved": false, "feedback": feedback})
}

func (s *Scheduler) queueResume(ctx context.Context, workflowID string, resume interface{}) error {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Status != domain.StatusBlocked {
		return ErrNotBlocked
	}

	s.mu.Lock()
	s.resumeCmd[workflowID] = &graph.Command{Resume: resume}
	s.queue = append(s.queue, workflowID)
	s.mu.Unlock()

	s.tryAdmit(ctx)
	return nil
}

// Cancel raises workflowID's cancellation flag. A pending or blocked
// workflow is cancelled immediately since no goroutine is actively polling
// the flag; an in_progress workflow's running loop observes it at its next
// suspension point.
func (s *Scheduler) Cancel(ctx context.Context, workflowID string) error {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	s.mu.Lock()
	if flag, ok := s.cancelled[workflowID]; ok {
		flag.Store(true)
	}
	wasInProgress := s.running[workflowID]
	s.mu.Unlock()

	if wasInProgress {
		// The running goroutine will observe the flag and finalize the
		// workflow as cancelled itself.
		return nil
	}

	if !wf.CanTransition(domain.StatusCancelled) {
		return fmt.Errorf("scheduler: %w: %s -> cancelled", ErrInvalidTransition, wf.Status)
	}
	wf.Status = domain.StatusCancelled
	now := time.Now()
	wf.CompletedAt = &now
	if err := s.workflows.Save(ctx, wf); err != nil {
		return err
	}
	s.releaseWorktree(wf.WorktreePath, wf.WorkflowID)
	s.publish(workflowID, eventbus.EventWorkflowCancelled, "cancelled before running")
	s.tryAdmit(ctx)
	return nil
}

// UpdateState merges patch into a blocked workflow's latest checkpoint state
// without changing its routing or status.
func (s *Scheduler) UpdateState(ctx context.Context, workflowID string, patch domain.ExecutionState) error {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Status != domain.StatusBlocked {
		return ErrNotBlocked
	}

	latest, err := s.checkpoints.Latest(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("scheduler: load checkpoint: %w", err)
	}
	if latest == nil {
		return ErrNotFound
	}
	state, err := decodeState(latest.State)
	if err != nil {
		return err
	}
	merged := domain.Merge(state, patch)
	raw, err := encodeState(merged)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	return s.checkpoints.Put(ctx, workflowID, id, latest.CheckpointID, raw, latest.NextNodes)
}

// Replan resets a blocked or failed workflow back to the pipeline's entry
// node, preserving the bound issue but discarding plan and batch progress,
// then re-queues it for admission.
func (s *Scheduler) Replan(ctx context.Context, workflowID string) error {
	wf, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if wf.Status != domain.StatusBlocked && wf.Status != domain.StatusFailed {
		return ErrNotReplannable
	}

	latest, err := s.checkpoints.Latest(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("scheduler: load checkpoint: %w", err)
	}
	fresh := domain.ExecutionState{WorkflowID: workflowID}
	if latest != nil {
		if prev, decodeErr := decodeState(latest.State); decodeErr == nil {
			fresh.Issue = prev.Issue
		}
	}
	raw, err := encodeState(fresh)
	if err != nil {
		return err
	}
	parent := ""
	if latest != nil {
		parent = latest.CheckpointID
	}
	if err := s.checkpoints.Put(ctx, workflowID, uuid.NewString(), parent, raw, []string{s.entryNode}); err != nil {
		return fmt.Errorf("scheduler: put checkpoint: %w", err)
	}

	wasBlocked := wf.Status == domain.StatusBlocked
	wf.Status = domain.StatusPending
	wf.FailureReason = ""
	if err := s.workflows.Save(ctx, wf); err != nil {
		return err
	}
	if wasBlocked {
		s.releaseWorktree(wf.WorktreePath, wf.WorkflowID)
	}

	s.mu.Lock()
	s.seeds[workflowID] = fresh
	delete(s.resumeCmd, workflowID)
	s.queue = append(s.queue, workflowID)
	s.mu.Unlock()

	s.tryAdmit(ctx)
	return nil
}

// Snapshot returns workflowID's latest persisted ExecutionState.
func (s *Scheduler) Snapshot(ctx context.Context, workflowID string) (domain.ExecutionState, error) {
	latest, err := s.checkpoints.Latest(ctx, workflowID)
	if err != nil {
		return domain.ExecutionState{}, err
	}
	if latest == nil {
		return domain.ExecutionState{}, ErrNotFound
	}
	return decodeState(latest.State)
}

// History returns every checkpoint recorded for workflowID, newest first.
func (s *Scheduler) History(ctx context.Context, workflowID string) ([]checkpoint.Checkpoint, error) {
	return s.checkpoints.List(ctx, workflowID)
}

// Subscribe delegates to the event bus for live workflow event delivery.
func (s *Scheduler) Subscribe(workflowIDs ...string) *eventbus.Subscription {
	return s.bus.Subscribe(workflowIDs...)
}

// Get returns the current Workflow record.
func (s *Scheduler) Get(ctx context.Context, workflowID string) (domain.Workflow, error) {
	return s.workflows.Get(ctx, workflowID)
}

// Reconcile re-admits workflows left in_progress by a crashed process: no
// goroutine survives a restart to finish driving them, so they're demoted to
// pending and re-queued — GraphRuntime resumes each from its latest
// checkpoint, which is exactly where the crash left it.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	all, err := s.workflows.List(ctx)
	if err != nil {
		return err
	}
	for _, wf := range all {
		if wf.Status != domain.StatusInProgress {
			continue
		}
		wf.Status = domain.StatusPending
		if err := s.workflows.Save(ctx, wf); err != nil {
			return err
		}
		s.mu.Lock()
		s.worktrees[wf.WorktreePath] = wf.WorkflowID
		s.queue = append(s.queue, wf.WorkflowID)
		s.mu.Unlock()
	}
	s.tryAdmit(ctx)
	return nil
}

// tryAdmit pulls workflow ids off the FIFO queue while a concurrency slot is
// free, acquiring each one's worktree lock (already held, for a resumed
// blocked workflow) and starting its run loop.
func (s *Scheduler) tryAdmit(ctx context.Context) {
	s.reportQueueState(ctx)
	for {
		s.mu.Lock()
		if len(s.running) >= s.maxConcurrent || len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		wf, err := s.workflows.Get(ctx, id)
		if err != nil || wf.Status.Terminal() {
			continue
		}

		if !wf.CanTransition(domain.StatusInProgress) {
			continue
		}
		prevStatus := wf.Status
		wf.Status = domain.StatusInProgress
		now := time.Now()
		if wf.StartedAt == nil {
			wf.StartedAt = &now
		}
		if err := s.workflows.Save(ctx, wf); err != nil {
			continue
		}

		s.mu.Lock()
		s.running[id] = true
		s.worktrees[wf.WorktreePath] = id
		flag := &atomic.Bool{}
		s.cancelled[id] = flag
		cmd := s.resumeCmd[id]
		delete(s.resumeCmd, id)
		seed := s.seeds[id]
		s.mu.Unlock()

		if prevStatus == domain.StatusPending {
			s.publish(id, eventbus.EventWorkflowStarted, "workflow started")
		}

		go s.run(ctx, wf, seed, cmd, flag)
	}
}

func (s *Scheduler) run(ctx context.Context, wf domain.Workflow, seed domain.ExecutionState, cmd *graph.Command, cancelled *atomic.Bool) {
	started := time.Now()
	result, runErr := s.runtime.Run(ctx, wf.WorkflowID, seed, cmd, cancelled.Load)
	if s.metrics != nil {
		s.metrics.ObserveRun(string(result.Outcome), time.Since(started))
	}

	s.mu.Lock()
	delete(s.running, wf.WorkflowID)
	delete(s.cancelled, wf.WorkflowID)
	s.mu.Unlock()

	now := time.Now()
	switch result.Outcome {
	case graph.OutcomeCompleted:
		wf.Status = domain.StatusCompleted
		wf.CompletedAt = &now
		s.releaseWorktree(wf.WorktreePath, wf.WorkflowID)
	case graph.OutcomeFailed:
		wf.Status = domain.StatusFailed
		wf.CompletedAt = &now
		if runErr != nil {
			wf.FailureReason = runErr.Error()
		}
		s.releaseWorktree(wf.WorktreePath, wf.WorkflowID)
	case graph.OutcomeCancelled:
		wf.Status = domain.StatusCancelled
		wf.CompletedAt = &now
		s.releaseWorktree(wf.WorktreePath, wf.WorkflowID)
	case graph.OutcomeBlocked:
		// Holds the worktree lock, but no longer occupies a concurrency
		// slot — releaseWorktree is deliberately NOT called here.
		wf.Status = domain.StatusBlocked
	}

	_ = s.workflows.Save(context.Background(), wf)
	s.tryAdmit(context.Background())
}

// reportQueueState pushes the current running/queued/blocked counts to
// s.metrics, if one is attached. Blocked is read from the workflow store
// rather than tracked separately, since a blocked workflow holds no
// in-memory scheduler bookkeeping beyond its worktree lock.
func (s *Scheduler) reportQueueState(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	s.mu.Lock()
	running, queued := len(s.running), len(s.queue)
	s.mu.Unlock()

	blocked := 0
	if wfs, err := s.workflows.List(ctx); err == nil {
		for _, wf := range wfs {
			if wf.Status == domain.StatusBlocked {
				blocked++
			}
		}
	}
	s.metrics.SetQueueState(running, queued, blocked)
}

func (s *Scheduler) releaseWorktree(worktreePath, workflowID string) {
	s.mu.Lock()
	if s.worktrees[worktreePath] == workflowID {
		delete(s.worktrees, worktreePath)
	}
	delete(s.seeds, workflowID)
	s.mu.Unlock()
}

func decodeState(raw []byte) (domain.ExecutionState, error) {
	var state domain.ExecutionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.ExecutionState{}, fmt.Errorf("scheduler: decode checkpoint state: %w", err)
	}
	return state, nil
}

func encodeState(state domain.ExecutionState) ([]byte, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("scheduler: encode checkpoint state: %w", err)
	}
	return raw, nil
}

func (s *Scheduler) publish(workflowID string, eventType eventbus.EventType, message string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(workflowID, eventbus.Event{
		Level:     eventbus.LevelInfo,
		EventType: eventType,
		Message:   message,
	})
}
