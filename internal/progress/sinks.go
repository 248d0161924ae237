package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
)

// Recorder keeps every delivered event in memory.
type Recorder struct {
	mu       sync.Mutex
	events   []Event
	inactive bool
}

// NewRecorder returns an active recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetActive toggles whether the recorder accepts events.
func (r *Recorder) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inactive = !active
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.inactive
}

func (r *Recorder) Deliver(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Codes returns the code of every recorded event, in order.
func (r *Recorder) Codes() []int {
	events := r.Events()
	codes := make([]int, len(events))
	for i, ev := range events {
		codes[i] = ev.Code
	}
	return codes
}

// LogSink writes events to the context logger. It is always active.
type LogSink struct{}

func (LogSink) Active() bool { return true }

func (LogSink) Deliver(ctx context.Context, ev Event) error {
	ctxlog.FromContext(ctx).Info("Progress: "+ev.Message, "run_id", ev.RunID, "stage", ev.Stage, "code", ev.Code)
	return nil
}

// Tee delivers to every active sink.
type Tee []Sink

func (t Tee) Active() bool {
	for _, s := range t {
		if s.Active() {
			return true
		}
	}
	return false
}

func (t Tee) Deliver(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range t {
		if !s.Active() {
			continue
		}
		if err := s.Deliver(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
