// Package eventbus provides in-process, per-workflow-ordered fan-out of
// orchestration events, with a bounded ring buffer per workflow for
// backfilling late subscribers.
package eventbus

import "time"

// Level classifies the verbosity of an Event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// Family groups EventType values for downstream filtering.
type Family string

const (
	FamilyLifecycle Family = "lifecycle"
	FamilyStage     Family = "stage"
	FamilyApproval  Family = "approval"
	FamilyArtifact  Family = "artifact"
	FamilyTelemetry Family = "telemetry"
)

// EventType enumerates the fixed vocabulary of event names across the five
// families described for the Event shape.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow_started"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventWorkflowFailed    EventType = "workflow_failed"
	EventWorkflowCancelled EventType = "workflow_cancelled"

	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"

	EventApprovalRequired EventType = "approval_required"
	EventApprovalGranted  EventType = "approval_granted"
	EventApprovalRejected EventType = "approval_rejected"

	EventFileCreated  EventType = "file_created"
	EventFileModified EventType = "file_modified"
	EventFileDeleted  EventType = "file_deleted"

	EventAgentMessage EventType = "agent_message"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventTokenUsage   EventType = "token_usage"
)

// familyOf maps each known EventType to its family, used only for
// informational classification by consumers; the bus itself never branches
// on family.
var familyOf = map[EventType]Family{
	EventWorkflowStarted:   FamilyLifecycle,
	EventWorkflowCompleted: FamilyLifecycle,
	EventWorkflowFailed:    FamilyLifecycle,
	EventWorkflowCancelled: FamilyLifecycle,
	EventStageStarted:      FamilyStage,
	EventStageCompleted:    FamilyStage,
	EventApprovalRequired:  FamilyApproval,
	EventApprovalGranted:   FamilyApproval,
	EventApprovalRejected:  FamilyApproval,
	EventFileCreated:       FamilyArtifact,
	EventFileModified:      FamilyArtifact,
	EventFileDeleted:       FamilyArtifact,
	EventAgentMessage:      FamilyTelemetry,
	EventToolCall:          FamilyTelemetry,
	EventToolResult:        FamilyTelemetry,
	EventTokenUsage:        FamilyTelemetry,
}

// Family reports the family a known EventType belongs to. Unknown types
// (a caller minting an ad-hoc event_type) return the empty Family.
func (t EventType) Family() Family {
	return familyOf[t]
}

// Event is a single, insert-only, per-workflow-ordered orchestration event.
// (workflow_id, sequence) is unique; Sequence is assigned by the bus under a
// per-workflow lock at Publish time, never by the caller.
type Event struct {
	EventID    string                 `json:"event_id"`
	WorkflowID string                 `json:"workflow_id"`
	Sequence   uint64                 `json:"sequence"`
	Timestamp  time.Time              `json:"timestamp"`
	Level      Level                  `json:"level"`
	Agent      string                 `json:"agent,omitempty"`
	EventType  EventType              `json:"event_type"`
	Message    string                 `json:"message"`
	Data       map[string]interface{} `json:"data,omitempty"`
	TraceID    string                 `json:"trace_id,omitempty"`
	ParentID   string                 `json:"parent_id,omitempty"`
}
