// Package model defines the provider-agnostic chat contract the API
// driver variant talks to, plus adapters for each concrete provider.
package model

import "context"

// ChatModel abstracts a synchronous LLM chat completion call across
// providers (Anthropic, OpenAI, Google). Implementations translate the
// common Message/ToolSpec/ChatOut shapes to and from their provider's wire
// format and must respect context cancellation.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Role constants for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation in the common wire format every
// adapter converts to and from.
type Message struct {
	Role    string
	Content string
}

// ToolSpec describes a tool the model may call, in JSON-Schema form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]interface{}
}

// ChatOut is a completed turn: generated text, requested tool calls, or
// both.
type ChatOut struct {
	Text      string
	ToolCalls []ToolCall
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	Name  string
	Input map[string]interface{}
}
