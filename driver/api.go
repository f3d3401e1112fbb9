package driver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/existential-birds/amelia-sub017/driver/model"
)

// APIDriver invokes a model.ChatModel directly and converts the result
// into a Driver Result. It retries only on explicitly retryable error
// classes, with bounded exponential backoff, and only while no tool call
// has yet fired for this invocation.
type APIDriver struct {
	Model       model.ChatModel
	MaxAttempts int // default 3 if zero
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Retryable   func(error) bool // defaults to isRetryableAPIError
	rng         *rand.Rand
}

// NewAPIDriver constructs an APIDriver with the invoke contract's default
// bounded-retry policy (max 3 attempts, 1s base, 30s cap).
func NewAPIDriver(m model.ChatModel) *APIDriver {
	return &APIDriver{
		Model:       m,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Retryable:   isRetryableAPIError,
	}
}

func (d *APIDriver) Invoke(ctx context.Context, req Request, sink StreamSink) (Result, error) {
	if sink == nil {
		sink = NullSink{}
	}
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryable := d.Retryable
	if retryable == nil {
		retryable = isRetryableAPIError
	}

	messages := []model.Message{{Role: model.RoleUser, Content: req.Prompt}}
	tools := toModelTools(req.ToolsAvailable)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{TerminalReason: TerminalCancelled, Err: err}, err
		}

		out, err := d.Model.Chat(ctx, messages, tools)
		if err == nil {
			sink.Notify(ctx, Notification{Kind: NotifyAgentMessage, Agent: req.Agent, Message: out.Text})
			calls := make([]ToolCallRecord, 0, len(out.ToolCalls))
			for _, tc := range out.ToolCalls {
				sink.Notify(ctx, Notification{
					Kind: NotifyToolCall, Agent: req.Agent,
					ToolName: tc.Name, ToolInput: tc.Input,
				})
				calls = append(calls, ToolCallRecord{Name: tc.Name, Input: tc.Input})
			}
			return Result{
				FinalOutput:    out.Text,
				ToolCallsMade:  calls,
				TerminalReason: TerminalCompleted,
			}, nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) {
			return Result{TerminalReason: TerminalCancelled, Err: err}, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{TerminalReason: TerminalTimedOut, Err: err}, err
		}
		if !retryable(err) || attempt == maxAttempts-1 {
			break
		}

		delay := computeAPIBackoff(attempt, d.BaseDelay, d.MaxDelay, d.rng)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{TerminalReason: TerminalCancelled, Err: ctx.Err()}, ctx.Err()
		}
	}

	return Result{TerminalReason: TerminalError, Err: lastErr},
		fmt.Errorf("driver: api invoke failed after %d attempts: %w", maxAttempts, lastErr)
}

// isRetryableAPIError matches the invoke contract's retryable class:
// network reset, 5xx, and rate-limit responses. 4xx other than 429 is not
// retryable.
func isRetryableAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection reset", "connection refused", "503", "502", "500", "429", "rate limit", "retry-after"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// computeAPIBackoff mirrors the teacher's exponential-backoff-with-jitter
// formula: min(base*2^attempt, max) + jitter(0, base).
func computeAPIBackoff(attempt int, base, maxDelay time.Duration, rng *rand.Rand) time.Duration {
	delay := base * time.Duration(int64(1)<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base) + 1))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base) + 1))
	}
	return delay + jitter
}

func toModelTools(tools []ToolSpec) []model.ToolSpec {
	if len(tools) == 0 {
		return nil
	}
	out := make([]model.ToolSpec, len(tools))
	for i, t := range tools {
		out[i] = model.ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
	}
	return out
}
