// Package driver abstracts agent execution backends behind a single
// invoke contract: a subprocess-supervising CLI variant and a direct
// model-API variant, selected per agent by the registry.
package driver

import (
	"context"
	"errors"

	"github.com/existential-birds/amelia-sub017/domain"
)

// TrustLevel mirrors domain.TrustLevel; kept as its own type alias point
// so driver call sites don't need to import domain just for this field.
type TrustLevel = domain.TrustLevel

// TerminalReason classifies how an invocation ended.
type TerminalReason string

const (
	TerminalCompleted TerminalReason = "completed"
	TerminalCancelled TerminalReason = "cancelled"
	TerminalTimedOut  TerminalReason = "timed_out"
	TerminalError     TerminalReason = "error"
)

// ToolSpec describes a tool an agent invocation may call.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// Request is the input to a single Driver.Invoke call.
type Request struct {
	Agent              string
	Prompt             string
	ToolsAvailable     []ToolSpec
	InputStateSnapshot []byte
	ModelHint          string
	Timeout            int64 // seconds; 0 means use the driver's default
	TrustLevel         TrustLevel
}

// ToolCallRecord is one tool invocation an agent made during Invoke.
type ToolCallRecord struct {
	Name     string
	Input    map[string]interface{}
	Output   map[string]interface{}
	Err      string
}

// Result is the outcome of a completed, cancelled, timed-out, or errored
// invocation. Drivers MUST populate it even on non-completed terminal
// reasons so partial output survives cancellation.
type Result struct {
	FinalOutput     string
	TokenUsageTotal domain.TokenUsage
	ToolCallsMade   []ToolCallRecord
	TerminalReason  TerminalReason
	Err             error
}

// Notification is one incremental event a driver reports to a StreamSink
// while an invocation is in flight.
type Notification struct {
	Kind       NotificationKind
	Agent      string
	Message    string
	ToolName   string
	ToolInput  map[string]interface{}
	ToolOutput map[string]interface{}
	TokenUsage domain.TokenUsage
}

// NotificationKind enumerates the stream_sink event kinds named in the
// invoke contract.
type NotificationKind string

const (
	NotifyAgentMessage NotificationKind = "agent_message"
	NotifyToolCall     NotificationKind = "tool_call"
	NotifyToolResult   NotificationKind = "tool_result"
	NotifyTokenUsage   NotificationKind = "token_usage"
)

// StreamSink receives incremental notifications during Invoke. A sink
// that returns an error or panics must not abort the driver; callers
// should wrap flaky sinks so Notify never propagates a failure upward.
type StreamSink interface {
	Notify(ctx context.Context, n Notification)
}

// NullSink discards every notification. Useful when a caller only cares
// about the final Result.
type NullSink struct{}

func (NullSink) Notify(context.Context, Notification) {}

// Driver is the common contract both the subprocess and API variants
// implement. Invoke may be called again for the same logical step only
// when no tool call has yet been notified for that attempt — once the
// first NotifyToolCall fires, retrying is forbidden.
type Driver interface {
	Invoke(ctx context.Context, req Request, sink StreamSink) (Result, error)
}

// ErrRetryAfterToolCall names a retry of an invocation whose ledger
// already shows a fired tool call. No driver in this package returns it.
var ErrRetryAfterToolCall = errors.New("driver: cannot retry invocation after a tool call has fired")

// Registry resolves a Driver by variant name ("subprocess" or "api") so
// the runtime can pick a backend per agent without a type switch at the
// call site.
type Registry struct {
	drivers map[string]Driver
}

// NewRegistry builds an empty Registry; register variants with Register.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register binds a variant name to a Driver implementation.
func (r *Registry) Register(variant string, d Driver) {
	r.drivers[variant] = d
}

// ErrUnknownVariant is returned by Resolve when no driver is registered
// for the requested variant.
var ErrUnknownVariant = errors.New("driver: unknown variant")

// Resolve looks up the Driver registered for variant.
func (r *Registry) Resolve(variant string) (Driver, error) {
	d, ok := r.drivers[variant]
	if !ok {
		return nil, ErrUnknownVariant
	}
	return d, nil
}
