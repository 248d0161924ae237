package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
)

// DefaultSendTimeout bounds how long Emit waits for queue space.
const DefaultSendTimeout = 5 * time.Second

// DefaultQueueSize is the per-run queue capacity.
const DefaultQueueSize = 256

// ErrInactive is reported when an event is emitted while the sink has no
// listeners or the stream is closed.
var ErrInactive = errors.New("progress stream is not active")

// ErrSendTimeout is reported when the queue stayed full for the whole send timeout.
var ErrSendTimeout = errors.New("progress send timed out")

// DeliveryWarning describes a dropped event. It is logged, never returned.
type DeliveryWarning struct {
	Event Event
	Err   error
}

func (w *DeliveryWarning) Error() string {
	return "progress event dropped: " + w.Err.Error()
}

func (w *DeliveryWarning) Unwrap() error { return w.Err }

// Sink is the destination of a stream.
type Sink interface {
	// Active reports whether anyone would receive a delivered event.
	Active() bool
	Deliver(ctx context.Context, ev Event) error
}

// StreamOptions tunes a Stream. Zero values select the defaults.
type StreamOptions struct {
	QueueSize   int
	SendTimeout time.Duration
	// OnDrop is called for every dropped event, after it is logged.
	OnDrop func(*DeliveryWarning)
}

// Stream forwards the events of one run to a sink. Events are delivered in
// emission order by a single forwarder goroutine.
type Stream struct {
	ctx     context.Context
	sink    Sink
	queue   chan Event
	timeout time.Duration
	onDrop  func(*DeliveryWarning)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewStream starts a stream. ctx carries the logger and stops the forwarder
// when cancelled; Close must still be called to release it.
func NewStream(ctx context.Context, sink Sink, opts StreamOptions) *Stream {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	s := &Stream{
		ctx:     ctx,
		sink:    sink,
		queue:   make(chan Event, opts.QueueSize),
		timeout: opts.SendTimeout,
		onDrop:  opts.OnDrop,
		done:    make(chan struct{}),
	}
	go s.forward()
	return s
}

// Emit queues ev. It returns once the event is queued or dropped.
func (s *Stream) Emit(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || !s.sink.Active() {
		s.drop(ev, ErrInactive)
		return
	}

	select {
	case s.queue <- ev:
		return
	default:
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case s.queue <- ev:
	case <-timer.C:
		s.drop(ev, ErrSendTimeout)
	case <-s.ctx.Done():
		s.drop(ev, s.ctx.Err())
	}
}

func (s *Stream) forward() {
	defer close(s.done)
	logger := ctxlog.FromContext(s.ctx)
	for ev := range s.queue {
		if s.ctx.Err() != nil {
			s.drop(ev, s.ctx.Err())
			continue
		}
		if err := s.sink.Deliver(s.ctx, ev); err != nil {
			s.drop(ev, err)
			continue
		}
		s.delivered.Add(1)
		logger.Debug("Progress: Event delivered.", "run_id", ev.RunID, "stage", ev.Stage)
	}
}

func (s *Stream) drop(ev Event, err error) {
	s.dropped.Add(1)
	w := &DeliveryWarning{Event: ev, Err: err}
	ctxlog.FromContext(s.ctx).Warn("Progress: Delivery warning, event dropped.",
		"run_id", ev.RunID, "stage", ev.Stage, "reason", err)
	if s.onDrop != nil {
		s.onDrop(w)
	}
}

// Close stops accepting events and waits until everything already queued
// has been forwarded. It is safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

// Delivered returns the number of events the sink accepted.
func (s *Stream) Delivered() int64 { return s.delivered.Load() }

// Dropped returns the number of events dropped so far.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }
