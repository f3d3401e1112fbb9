// Package openai adapts model.ChatModel to OpenAI's chat completions API.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/existential-birds/amelia-sub017/driver/model"
)

const defaultModel = "gpt-4o"

// ChatModel drives an OpenAI model with bounded retry on transient errors
// (timeouts, connection resets, 5xx, rate limiting). Other transient errors
// wait retryDelay before each retry; rate-limit responses wait
// retryDelay × (attempt+1), a delay that grows linearly.
type ChatModel struct {
	modelName  string
	client     *openaisdk.Client
	maxRetries int
	retryDelay time.Duration
}

// NewChatModel constructs an OpenAI-backed model.ChatModel. An empty
// modelName falls back to defaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = defaultModel
	}
	client := openaisdk.NewClient(option.WithAPIKey(apiKey))
	return &ChatModel{modelName: modelName, client: &client, maxRetries: 3, retryDelay: time.Second}
}

func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(m.modelName),
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		resp, err := m.client.Chat.Completions.New(ctx, params)
		if err == nil {
			return fromOpenAIResponse(resp), nil
		}
		lastErr = err
		if !isTransientError(err) {
			return model.ChatOut{}, fmt.Errorf("openai: %w", err)
		}
		if attempt >= m.maxRetries {
			break
		}
		delay := m.retryDelay
		if isRateLimitError(err) {
			delay *= time.Duration(attempt + 1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ChatOut{}, ctx.Err()
		}
	}
	return model.ChatOut{}, fmt.Errorf("openai: failed after %d retries: %w", m.maxRetries, lastErr)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500", "429"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	return strings.Contains(err.Error(), "429")
}

func toOpenAIMessages(messages []model.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out[i] = openaisdk.SystemMessage(msg.Content)
		case model.RoleAssistant:
			out[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			out[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return out
}

func toOpenAITools(tools []model.ToolSpec) []openaisdk.ChatCompletionToolParam {
	out := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		out[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return out
}

func fromOpenAIResponse(resp *openaisdk.ChatCompletion) model.ChatOut {
	var out model.ChatOut
	if len(resp.Choices) == 0 {
		return out
	}
	msg := resp.Choices[0].Message
	out.Text = msg.Content
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			Name:  tc.Function.Name,
			Input: parseToolArguments(tc.Function.Arguments),
		})
	}
	return out
}

// parseToolArguments is a stand-in until the arguments JSON is decoded
// structurally; callers needing real field access should parse Input["_raw"].
func parseToolArguments(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}
	return map[string]interface{}{"_raw": raw}
}
