// Package progress carries training progress events from a running job to
// whoever is watching it.
//
// Delivery is best-effort. A Stream queues events for one run and forwards
// them in order to a Sink; an event that cannot be queued in time, or that is
// emitted while nobody is listening, is dropped and logged as a delivery
// warning. Dropped events are never retried and never fail the job.
package progress

import (
	"fmt"
	"strings"
)

// Stage identifies where in a run an event was emitted.
type Stage string

const (
	StageEpochBegin    Stage = "epoch_begin"
	StageBatchProgress Stage = "batch_progress"
	StageEvalBegin     Stage = "eval_begin"
	StageEvalEnd       Stage = "eval_end"
	StageFinish        Stage = "finish"
	StageError         Stage = "error"
)

var stageCodes = map[Stage]int{
	StageEpochBegin:    0,
	StageBatchProgress: 1,
	StageEvalBegin:     2,
	StageEvalEnd:       3,
	StageFinish:        4,
	StageError:         -1,
}

// Code returns the numeric code the canvas uses for the stage.
func (s Stage) Code() int {
	if c, ok := stageCodes[s]; ok {
		return c
	}
	return -1
}

// Event is one progress message.
type Event struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	RunID   string `json:"run_id"`
}

// NewEvent returns an event for stage with its code filled in.
func NewEvent(runID string, stage Stage, message string) Event {
	return Event{Stage: stage, Message: message, Code: stage.Code(), RunID: runID}
}

// Emitter accepts events for delivery. Emit never blocks longer than the
// configured send timeout and never reports failure to the caller.
type Emitter interface {
	Emit(ev Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

const barWidth = 50

// EpochMessage formats the epoch banner, with epoch counted from 1.
func EpochMessage(epoch, epochs int) string {
	return fmt.Sprintf("Epoch %d/%d", epoch, epochs)
}

// BatchMessage formats a progress bar line. batch is the zero-based index of
// the batch that just finished; metric is already formatted and may be empty.
func BatchMessage(batch, steps int, loss float64, metric string) string {
	p := 0.0
	if steps > 0 {
		p = float64(batch) / float64(steps)
	}
	done := int(p * barWidth)
	bar := strings.Repeat(">", done) + strings.Repeat("=", barWidth-done)
	return fmt.Sprintf("%d/%d  [%s] %d%% - Loss: %.4f - %s", batch+1, steps, bar, int(p*100), loss, metric)
}

// EvalResultMessage formats the evaluation summary line.
func EvalResultMessage(metric string, loss float64) string {
	return fmt.Sprintf("Evaluation Results: %s Loss - %.4f", metric, loss)
}

const (
	EvalBeginMessage = "Evaluating..."
	FinishMessage    = "Finish"
)

// FailureMessage formats the terminal error message.
func FailureMessage(err error) string {
	return "Training failed: " + err.Error()
}
