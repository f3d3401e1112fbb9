// Package engine carries the ambient observability surface that sits above
// scheduler and GraphRuntime but isn't itself part of either: Prometheus
// metrics today, a natural home for a future HTTP/gRPC front end later.
package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/existential-birds/amelia-sub017/eventbus"
)

// Metrics is the Prometheus surface for a running engine instance. It
// extends the teacher's per-node PrometheusMetrics with the scheduler-level
// gauges spec.md §4.6's concurrency model needs: how many workflows are
// running, queued, or holding a worktree lock while blocked on a human
// decision.
type Metrics struct {
	runningWorkflows prometheus.Gauge
	queuedWorkflows  prometheus.Gauge
	blockedWorkflows prometheus.Gauge

	workflowDuration *prometheus.HistogramVec
	workflowOutcomes *prometheus.CounterVec

	nodeLatency *prometheus.HistogramVec
	blockers    *prometheus.CounterVec
}

// NewMetrics registers every engine metric against registry. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() to isolate metrics per test.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		runningWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "amelia", Name: "running_workflows",
			Help: "Workflows currently occupying a concurrency slot (status in_progress).",
		}),
		queuedWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "amelia", Name: "queued_workflows",
			Help: "Workflows waiting for an admission slot to free.",
		}),
		blockedWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "amelia", Name: "blocked_workflows",
			Help: "Workflows holding a worktree lock while paused on a human decision.",
		}),
		workflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amelia", Name: "workflow_run_seconds",
			Help:    "Wall-clock duration of a single Runtime.Run call, from admission to its next pause or terminal outcome.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"outcome"}),
		workflowOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amelia", Name: "workflow_outcomes_total",
			Help: "Terminal and pausing outcomes reached by the scheduler's run loop.",
		}, []string{"outcome"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amelia", Name: "node_latency_ms",
			Help:    "Per-node execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
		}, []string{"node_id", "status"}),
		blockers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amelia", Name: "blockers_total",
			Help: "Blockers raised by developer_node, labeled by blocker type.",
		}, []string{"blocker_type"}),
	}
}

// SetQueueState reports the scheduler's current admission-queue composition.
func (m *Metrics) SetQueueState(running, queued, blocked int) {
	m.runningWorkflows.Set(float64(running))
	m.queuedWorkflows.Set(float64(queued))
	m.blockedWorkflows.Set(float64(blocked))
}

// ObserveRun records one Runtime.Run call's duration and outcome.
func (m *Metrics) ObserveRun(outcome string, d time.Duration) {
	m.workflowDuration.WithLabelValues(outcome).Observe(d.Seconds())
	m.workflowOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveNode records a single node execution's latency and pass/fail status.
func (m *Metrics) ObserveNode(nodeID, status string, d time.Duration) {
	m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(d.Milliseconds()))
}

// IncrementBlocker records a blocker raised by the pipeline, by type.
func (m *Metrics) IncrementBlocker(blockerType string) {
	m.blockers.WithLabelValues(blockerType).Inc()
}

// WatchEventBus derives per-node latency from a live eventbus.Bus stream
// (the gap between a node's stage_started and its stage_completed or
// workflow_failed event), so callers don't need to thread a latency call
// through every node implementation. It subscribes to ALL workflows and
// runs until the subscription lags or the process shuts down.
func (m *Metrics) WatchEventBus(bus *eventbus.Bus) {
	sub := bus.Subscribe()
	var mu sync.Mutex
	started := make(map[string]time.Time) // workflowID+node -> stage_started time

	go func() {
		for {
			select {
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				m.observeEvent(ev, &mu, started)
			case <-sub.Lagged:
				return
			}
		}
	}()
}

func (m *Metrics) observeEvent(ev eventbus.Event, mu *sync.Mutex, started map[string]time.Time) {
	node, _ := ev.Data["node"].(string)
	key := ev.WorkflowID + "/" + node

	switch ev.EventType {
	case eventbus.EventStageStarted:
		mu.Lock()
		started[key] = ev.Timestamp
		mu.Unlock()
	case eventbus.EventStageCompleted:
		mu.Lock()
		start, ok := started[key]
		delete(started, key)
		mu.Unlock()
		if ok {
			m.ObserveNode(node, "success", ev.Timestamp.Sub(start))
		}
	case eventbus.EventWorkflowFailed:
		mu.Lock()
		start, ok := started[key]
		delete(started, key)
		mu.Unlock()
		if ok {
			m.ObserveNode(node, "error", ev.Timestamp.Sub(start))
		}
	}
}
