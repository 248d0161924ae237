package training

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/dataset"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/progress"
)

var (
	// ErrDatasetLoad is matched when the dataset could not be bound.
	ErrDatasetLoad = dataset.ErrDatasetLoad
	// ErrTrainingRuntime is matched by every other run failure.
	ErrTrainingRuntime = errors.New("training runtime error")
)

// State is the lifecycle state of a run.
type State string

const (
	StateLoading      State = "loading"
	StateDatasetBound State = "dataset_bound"
	StateModelLoaded  State = "model_loaded"
	StateTraining     State = "training"
	StateEvaluating   State = "evaluating"
	StateFinished     State = "finished"
	StateFailed       State = "failed"
)

// FitSeed fixes the per-epoch shuffle of the training set.
const FitSeed = 42

// ModelSource returns the compiled spec saved under a model name.
type ModelSource interface {
	LoadSpec(ctx context.Context, name string) (model.ModelSpec, error)
}

// Outcome summarizes a run.
type Outcome struct {
	RunID     string        `json:"run_id"`
	ModelName string        `json:"model_name"`
	State     State         `json:"state"`
	History   []nn.Logs     `json:"history,omitempty"`
	Eval      nn.Logs       `json:"evaluation,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Orchestrator executes training jobs. It is safe for concurrent use; every
// run builds its own model instance.
type Orchestrator struct {
	models   ModelSource
	factory  nn.LayerFactory
	resolver dataset.Resolver
}

// NewOrchestrator returns an orchestrator that loads specs from models,
// instantiates layers through factory and resolves datasets with resolver.
func NewOrchestrator(models ModelSource, factory nn.LayerFactory, resolver dataset.Resolver) *Orchestrator {
	return &Orchestrator{models: models, factory: factory, resolver: resolver}
}

type run struct {
	ctx    context.Context
	id     string
	job    model.TrainingJob
	emit   progress.Emitter
	out    *Outcome
	start  time.Time
	state  State
	bound  *dataset.Bound
	model  *nn.Model
	report *reporter
}

// Run executes job to completion. The returned outcome is never nil; on
// failure its state is StateFailed and the error matches ErrDatasetLoad or
// ErrTrainingRuntime.
func (o *Orchestrator) Run(ctx context.Context, runID string, job model.TrainingJob, emit progress.Emitter) (out *Outcome, err error) {
	if emit == nil {
		emit = progress.Discard
	}
	ctx, logger := ctxlog.With(ctx, "run_id", runID, "model", job.ModelName)
	r := &run{
		ctx:   ctx,
		id:    runID,
		job:   job,
		emit:  emit,
		out:   &Outcome{RunID: runID, ModelName: job.ModelName, State: StateLoading},
		start: time.Now(),
		state: StateLoading,
	}
	logger.Info("Training: Run started.", "problem_type", job.ProblemType.String(), "epochs", job.Hyper.Epochs)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Training: Runtime panic.", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: panic: %v", ErrTrainingRuntime, rec)
		}
		r.out.Duration = time.Since(r.start)
		if err != nil {
			r.transition(StateFailed)
			logger.Error("Training: Run failed.", "error", err)
			emit.Emit(progress.NewEvent(runID, progress.StageError, progress.FailureMessage(err)))
		}
		out = r.out
	}()

	for _, step := range []func(*Orchestrator) error{r.bindDataset, r.loadModel, r.train, r.evaluate} {
		if err := step(o); err != nil {
			return nil, err
		}
	}
	r.transition(StateFinished)
	emit.Emit(progress.NewEvent(runID, progress.StageFinish, progress.FinishMessage))
	logger.Info("Training: Run finished.", "duration", time.Since(r.start).String())
	return r.out, nil
}

func (r *run) transition(to State) {
	if r.state == to {
		return
	}
	ctxlog.FromContext(r.ctx).Debug("Training: State transition.", "from", r.state, "to", to)
	r.state = to
	r.out.State = to
}

func (r *run) bindDataset(o *Orchestrator) error {
	if !r.job.ProblemType.Valid() {
		return fmt.Errorf("%w: unknown problem type %d", ErrTrainingRuntime, int(r.job.ProblemType))
	}
	if r.job.Hyper.Epochs <= 0 {
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrTrainingRuntime, r.job.Hyper.Epochs)
	}
	isImage := r.job.ProblemType == model.ProblemImageClassification
	if isImage != (r.job.Dataset.Image != nil) {
		return &dataset.LoadError{Err: fmt.Errorf("problem type %s does not match the dataset kind", r.job.ProblemType)}
	}

	bound, err := dataset.Bind(r.ctx, r.job.Dataset, o.resolver)
	if err != nil {
		return err
	}
	r.bound = bound
	r.transition(StateDatasetBound)
	return nil
}

func (r *run) loadModel(o *Orchestrator) error {
	spec, err := o.models.LoadSpec(r.ctx, r.job.ModelName)
	if err != nil {
		return fmt.Errorf("%w: loading model '%s': %w", ErrTrainingRuntime, r.job.ModelName, err)
	}
	m, err := nn.FromSpec(spec, o.factory)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}

	lossID, err := r.job.ProblemType.Loss()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}
	if r.job.Hyper.Loss != "" && r.job.Hyper.Loss != lossID {
		ctxlog.FromContext(r.ctx).Warn("Training: Ignoring requested loss; it is fixed by the problem type.", "requested", r.job.Hyper.Loss, "loss", lossID)
	}
	loss, err := nn.LossByName(lossID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}
	opt, err := nn.OptimizerByName(r.job.Hyper.Optimizer)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}
	var metrics []nn.Metric
	if r.job.Hyper.Metric != "" {
		metric, err := nn.MetricByName(r.job.Hyper.Metric)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
		}
		metrics = append(metrics, metric)
	}
	m.Compile(loss, opt, metrics...)

	r.model = m
	r.report = &reporter{runID: r.id, emit: r.emit}
	r.transition(StateModelLoaded)
	ctxlog.FromContext(r.ctx).Debug("Training: Model loaded.", "layers", len(spec.Layers), "params", nn.CountParams(m.Params()), "loss", lossID)
	return nil
}

func (r *run) train(*Orchestrator) error {
	r.transition(StateTraining)
	opts := nn.FitOptions{
		Epochs:    r.job.Hyper.Epochs,
		BatchSize: r.bound.BatchSize,
		Shuffle:   true,
		Seed:      FitSeed,
		Callbacks: []nn.Callback{r.report},
	}
	// Image runs validate on the held-out subset every epoch. Only the
	// final evaluation reports on the progress channel.
	if r.job.ProblemType == model.ProblemImageClassification && r.bound.Test.Len() > 0 {
		opts.Validation = &r.bound.Test
	}

	history, err := r.model.Fit(r.ctx, r.bound.Train, opts)
	if history != nil {
		r.out.History = history.Epochs
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}
	return nil
}

func (r *run) evaluate(*Orchestrator) error {
	r.transition(StateEvaluating)
	if r.bound.Test.Len() == 0 {
		ctxlog.FromContext(r.ctx).Warn("Training: Test split is empty, skipping evaluation.")
		return nil
	}
	logs, err := r.model.Evaluate(r.ctx, r.bound.Test, r.bound.BatchSize, r.report)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTrainingRuntime, err)
	}
	r.out.Eval = logs
	return nil
}
