package eventbus

import (
	"context"

	"github.com/existential-birds/amelia-sub017/graph/emit"
)

// Sink adapts a Bus to the graph/emit.Emitter contract so any of the
// teacher's emitter backends (LogEmitter, OtelEmitter, BufferedEmitter) can
// observe the same event stream the bus fans out to subscribers, without
// those backends participating in the ring-buffer/backfill/lagged-
// subscriber contract that is specific to EventBus.
//
// A Bus may be given zero or more sinks via WithSink; every Publish also
// forwards a best-effort emit.Event to each configured sink. Sink failures
// never affect Publish's own subscribers.
type sinkBinding struct {
	emitter emit.Emitter
}

// WithSink attaches an emit.Emitter that receives a copy of every published
// event, translated to the emit.Event shape. Typical uses: a LogEmitter for
// human-readable stdout tailing, an OtelEmitter so driver-telemetry events
// become spans, or a BufferedEmitter for test assertions.
func WithSink(emitter emit.Emitter) Option {
	return func(b *Bus) {
		b.sinks = append(b.sinks, sinkBinding{emitter: emitter})
	}
}

func toEmitEvent(step int, e Event) emit.Event {
	meta := make(map[string]interface{}, len(e.Data)+4)
	for k, v := range e.Data {
		meta[k] = v
	}
	meta["level"] = string(e.Level)
	if e.TraceID != "" {
		meta["trace_id"] = e.TraceID
	}
	if e.ParentID != "" {
		meta["parent_id"] = e.ParentID
	}
	return emit.Event{
		RunID:  e.WorkflowID,
		Step:   step,
		NodeID: e.Agent,
		Msg:    string(e.EventType),
		Meta:   meta,
	}
}

// emitToSinks forwards event to every configured sink. Called with the
// bus's own sequence number standing in for emit.Event.Step, since the
// teacher's Emitter shape has no workflow_id/sequence pair of its own.
func (b *Bus) emitToSinks(event Event) {
	if len(b.sinks) == 0 {
		return
	}
	translated := toEmitEvent(int(event.Sequence), event)
	for _, s := range b.sinks {
		s.emitter.Emit(translated)
	}
}

// FlushSinks flushes every configured sink, e.g. at workflow or process
// shutdown.
func (b *Bus) FlushSinks(ctx context.Context) error {
	var firstErr error
	for _, s := range b.sinks {
		if err := s.emitter.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
