package domain

import "time"

// TokenUsage is an insert-only record of a single driver invocation's token
// consumption and cost. Aggregations (totals per agent, per model, per
// workflow) are computed on read, not maintained incrementally.
type TokenUsage struct {
	WorkflowID  string `json:"workflow_id"`
	Agent       string `json:"agent"`
	Model       string `json:"model"`

	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`

	CostUSD    float64       `json:"cost_usd"`
	DurationMS int64         `json:"duration_ms"`
	NumTurns   int           `json:"num_turns"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Aggregate sums a slice of TokenUsage rows, e.g. for a scheduler snapshot
// or a final workflow report. The zero value is a valid empty aggregate.
type Aggregate struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	DurationMS   int64
}

// AggregateTokenUsage folds usages into a single Aggregate.
func AggregateTokenUsage(usages []TokenUsage) Aggregate {
	var agg Aggregate
	for _, u := range usages {
		agg.InputTokens += u.InputTokens
		agg.OutputTokens += u.OutputTokens
		agg.CostUSD += u.CostUSD
		agg.DurationMS += u.DurationMS
	}
	return agg
}
