package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultRingSize is the default number of events retained per workflow for
// backfill, per spec §4.1.
const DefaultRingSize = 1024

// DefaultSendTimeout bounds how long Publish waits for a single slow
// subscriber before disconnecting it, per spec §4.1's "bounded send
// timeout" failure semantics.
const DefaultSendTimeout = 50 * time.Millisecond

// DefaultSubscriberBuffer is the channel buffer size given to each new
// subscription.
const DefaultSubscriberBuffer = 256

// Bus is an in-process, per-workflow-ordered event bus. Publish never
// blocks the caller beyond bounded per-subscriber send timeouts, and never
// fails: a slow subscriber is disconnected, not the publisher.
type Bus struct {
	ringSize      int
	sendTimeout   time.Duration
	subscriberBuf int

	mu    sync.Mutex
	logs  map[string]*workflowLog
	subs  map[uint64]*subscription
	nextSubID uint64
	sinks []sinkBinding

	metrics busMetrics
}

type busMetrics struct {
	published atomic.Int64
	dropped   atomic.Int64
	laggedSubscribers atomic.Int64
}

// Option configures a Bus.
type Option func(*Bus)

// WithRingSize overrides the per-workflow backfill ring capacity.
func WithRingSize(n int) Option {
	return func(b *Bus) { b.ringSize = n }
}

// WithSendTimeout overrides the bounded per-subscriber send timeout.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Bus) { b.sendTimeout = d }
}

// WithSubscriberBuffer overrides each subscription channel's buffer size.
func WithSubscriberBuffer(n int) Option {
	return func(b *Bus) { b.subscriberBuf = n }
}

// New constructs a Bus ready to publish and subscribe.
func New(opts ...Option) *Bus {
	b := &Bus{
		ringSize:      DefaultRingSize,
		sendTimeout:   DefaultSendTimeout,
		subscriberBuf: DefaultSubscriberBuffer,
		logs:          make(map[string]*workflowLog),
		subs:          make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// workflowLog holds the monotonic sequence counter and bounded ring buffer
// for a single workflow's events.
type workflowLog struct {
	mu        sync.Mutex
	seq       uint64
	ring      []Event
	oldestSeq uint64 // sequence of ring[0]; meaningless while len(ring) == 0
	capacity  int
}

func (w *workflowLog) append(e Event) Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	e.Sequence = w.seq
	w.ring = append(w.ring, e)
	if len(w.ring) > w.capacity {
		w.ring = w.ring[1:]
	}
	if len(w.ring) > 0 {
		w.oldestSeq = w.ring[0].Sequence
	}
	return e
}

func (w *workflowLog) since(sequence uint64) (events []Event, expired bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.ring) == 0 {
		return nil, false
	}
	expired = sequence < w.oldestSeq-1 && w.oldestSeq > 1
	out := make([]Event, 0, len(w.ring))
	for _, e := range w.ring {
		if e.Sequence > sequence {
			out = append(out, e)
		}
	}
	return out, expired
}

type subscription struct {
	id       uint64
	workflows map[string]bool // nil means ALL
	ch       chan Event
	lagged   chan struct{}
	laggedOnce sync.Once
}

func (s *subscription) matches(workflowID string) bool {
	if s.workflows == nil {
		return true
	}
	return s.workflows[workflowID]
}

func (s *subscription) markLagged() {
	s.laggedOnce.Do(func() { close(s.lagged) })
}

// Subscription is the handle returned by Subscribe. C delivers future
// events matching the subscription's filter; Lagged is closed exactly once
// if this subscription was dropped for being too slow.
type Subscription struct {
	id     uint64
	bus    *Bus
	C      <-chan Event
	Lagged <-chan struct{}
}

// Close unsubscribes, releasing the underlying channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Subscribe opens a subscription to future events. A nil or empty
// workflowIDs subscribes to ALL workflows; otherwise only the listed
// workflow ids are delivered.
func (b *Bus) Subscribe(workflowIDs ...string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID

	var filter map[string]bool
	if len(workflowIDs) > 0 {
		filter = make(map[string]bool, len(workflowIDs))
		for _, id := range workflowIDs {
			filter[id] = true
		}
	}

	sub := &subscription{
		id:        id,
		workflows: filter,
		ch:        make(chan Event, b.subscriberBuf),
		lagged:    make(chan struct{}),
	}
	b.subs[id] = sub

	return &Subscription{id: id, bus: b, C: sub.ch, Lagged: sub.lagged}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	// The map delete above is the single linearization point: only the
	// caller that actually removed the entry closes the channel.
	if ok {
		close(sub.ch)
	}
}

// Publish appends event to workflowID's log, assigning it the next
// sequence number, then fans it out to matching subscribers. Publish never
// blocks beyond the bus's send timeout (DefaultSendTimeout unless set with
// WithSendTimeout) per subscriber and never returns an
// error: publish failures are not a concept the bus exposes.
func (b *Bus) Publish(workflowID string, event Event) Event {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.WorkflowID = workflowID

	log := b.logFor(workflowID)
	recorded := log.append(event)

	b.metrics.published.Add(1)
	b.fanOut(workflowID, recorded)
	b.emitToSinks(recorded)
	return recorded
}

func (b *Bus) logFor(workflowID string) *workflowLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	log, ok := b.logs[workflowID]
	if !ok {
		log = &workflowLog{capacity: b.ringSize}
		b.logs[workflowID] = log
	}
	return log
}

func (b *Bus) fanOut(workflowID string, event Event) {
	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(workflowID) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- event:
		default:
			// Buffer is full without even waiting: give the subscriber one
			// bounded grace window before declaring it lagging.
			timer := time.NewTimer(b.sendTimeout)
			select {
			case sub.ch <- event:
				timer.Stop()
			case <-timer.C:
				b.metrics.dropped.Add(1)
				b.metrics.laggedSubscribers.Add(1)
				sub.markLagged()
				b.unsubscribe(sub.id)
			}
		}
	}
}

// Backfill returns events for workflowID with sequence > sinceSequence
// still held in the ring buffer, plus whether the request predates the
// oldest retained event (expired).
func (b *Bus) Backfill(workflowID string, sinceSequence uint64) (events []Event, expired bool) {
	b.mu.Lock()
	log, ok := b.logs[workflowID]
	b.mu.Unlock()
	if !ok {
		return nil, false
	}
	return log.since(sinceSequence)
}

// Published returns the cumulative count of events successfully appended.
func (b *Bus) Published() int64 { return b.metrics.published.Load() }

// DroppedForLag returns the cumulative count of events dropped for
// individual lagging subscribers (not lost from the ring; only from that
// subscriber's stream).
func (b *Bus) DroppedForLag() int64 { return b.metrics.dropped.Load() }
