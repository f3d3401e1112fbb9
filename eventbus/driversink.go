package eventbus

import (
	"context"

	"github.com/existential-birds/amelia-sub017/driver"
)

// driverEventTypes maps a driver.NotificationKind to the EventType a
// DriverSink publishes it as. Kinds with no entry are not forwarded.
var driverEventTypes = map[driver.NotificationKind]EventType{
	driver.NotifyAgentMessage: EventAgentMessage,
	driver.NotifyToolCall:     EventToolCall,
	driver.NotifyToolResult:   EventToolResult,
	driver.NotifyTokenUsage:   EventTokenUsage,
}

// DriverSink adapts a driver.StreamSink to a Bus: every Notification a
// driver reports during Invoke becomes an Event published under WorkflowID,
// so agent messages, tool calls, tool results, and token usage join the
// same subscribable stream as the runtime's lifecycle and stage events.
// Pipeline nodes construct one per Invoke call rather than holding a single
// long-lived sink, since WorkflowID changes with the state being executed.
type DriverSink struct {
	Bus        *Bus
	WorkflowID string
}

// Notify implements driver.StreamSink. A nil Bus or empty WorkflowID makes
// Notify a no-op, matching NullSink's behavior for callers that don't wire
// telemetry streaming.
func (s DriverSink) Notify(_ context.Context, n driver.Notification) {
	if s.Bus == nil || s.WorkflowID == "" {
		return
	}
	eventType, ok := driverEventTypes[n.Kind]
	if !ok {
		return
	}

	data := map[string]interface{}{}
	switch n.Kind {
	case driver.NotifyToolCall:
		data["tool_name"] = n.ToolName
		data["tool_input"] = n.ToolInput
	case driver.NotifyToolResult:
		data["tool_name"] = n.ToolName
		data["tool_output"] = n.ToolOutput
	case driver.NotifyTokenUsage:
		data["token_usage"] = n.TokenUsage
	}

	s.Bus.Publish(s.WorkflowID, Event{
		Level:     LevelDebug,
		Agent:     n.Agent,
		EventType: eventType,
		Message:   n.Message,
		Data:      data,
	})
}
