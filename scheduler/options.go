package scheduler

import "github.com/existential-birds/amelia-sub017/engine"

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithMetrics attaches a Prometheus metrics sink. Queue-state gauges update
// on every tryAdmit pass; run duration/outcome counters update once per
// Runtime.Run call. Nil (the default) disables metrics recording entirely.
func WithMetrics(m *engine.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithMaxConcurrent sets the global cap on workflows counted as in_progress
// at once. Blocked workflows hold their worktree lock but don't count
// against this cap. Default 5.
func WithMaxConcurrent(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}
