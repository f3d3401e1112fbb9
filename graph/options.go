package graph

import "time"

// Option configures a Runtime at construction time.
type Option func(*runtimeConfig)

type runtimeConfig struct {
	maxSteps           int
	defaultNodeTimeout time.Duration
	nodeTimeouts       map[string]time.Duration
}

func defaultRuntimeConfig() runtimeConfig {
	return runtimeConfig{
		maxSteps:     200,
		nodeTimeouts: make(map[string]time.Duration),
	}
}

// WithMaxSteps caps how many node executions a single Run call will perform
// before giving up with ErrMaxStepsExceeded, guarding against a routing
// cycle that never reaches a terminal node. Default 200.
func WithMaxSteps(n int) Option {
	return func(cfg *runtimeConfig) { cfg.maxSteps = n }
}

// WithDefaultNodeTimeout bounds every node execution that doesn't set its
// own timeout via WithNodeTimeout. Zero (the default) means unlimited.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(cfg *runtimeConfig) { cfg.defaultNodeTimeout = d }
}

// WithNodeTimeout overrides the timeout for a single node ID.
func WithNodeTimeout(nodeID string, d time.Duration) Option {
	return func(cfg *runtimeConfig) { cfg.nodeTimeouts[nodeID] = d }
}
