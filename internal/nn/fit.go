package nn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Logs carries running averages keyed by "loss" and metric names.
type Logs map[string]float64

// TrainParams describes a fit or evaluate loop to callbacks.
type TrainParams struct {
	Epochs  int
	Steps   int
	Samples int
}

// Callback observes a fit/evaluate loop. Embed NopCallback to implement only
// the hooks you need.
type Callback interface {
	OnTrainBegin(p TrainParams)
	OnEpochBegin(epoch int)
	OnBatchEnd(batch int, logs Logs)
	OnEpochEnd(epoch int, logs Logs)
	OnTestBegin(p TrainParams)
	OnTestEnd(logs Logs)
}

// NopCallback implements Callback with no-ops.
type NopCallback struct{}

func (NopCallback) OnTrainBegin(TrainParams) {}
func (NopCallback) OnEpochBegin(int)         {}
func (NopCallback) OnBatchEnd(int, Logs)     {}
func (NopCallback) OnEpochEnd(int, Logs)     {}
func (NopCallback) OnTestBegin(TrainParams)  {}
func (NopCallback) OnTestEnd(Logs)           {}

// Dataset is an in-memory set of samples and targets.
type Dataset struct {
	X *tensor.Tensor
	Y []float64
}

// Len is the number of samples.
func (d Dataset) Len() int {
	if d.X == nil {
		return 0
	}
	return d.X.Rows()
}

// FitOptions configures Fit.
type FitOptions struct {
	Epochs     int
	BatchSize  int
	// Shuffle reorders the training samples every epoch using Seed.
	Shuffle    bool
	Seed       int64
	Validation *Dataset
	Callbacks  []Callback
}

// History keeps the end-of-epoch logs.
type History struct {
	Epochs []Logs
}

// Compile attaches the loss, optimizer and metrics used by Fit and Evaluate.
func (m *Model) Compile(loss Loss, opt Optimizer, metrics ...Metric) {
	m.loss, m.optimizer, m.metrics = loss, opt, metrics
}

// Steps is the number of batches needed to cover n samples.
func Steps(n, batchSize int) int {
	if batchSize <= 0 {
		return 0
	}
	return (n + batchSize - 1) / batchSize
}

// Fit trains the model. The loss is applied to every output against the
// same targets and summed; metrics are computed on the first output.
func (m *Model) Fit(ctx context.Context, train Dataset, opts FitOptions) (*History, error) {
	if m.loss == nil || m.optimizer == nil {
		return nil, errors.New("model must be compiled before fit")
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", opts.Epochs)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	n := train.Len()
	if n == 0 {
		return nil, errors.New("training set is empty")
	}
	if len(train.Y) != n {
		return nil, fmt.Errorf("training set has %d samples but %d targets", n, len(train.Y))
	}

	steps := Steps(n, opts.BatchSize)
	params := TrainParams{Epochs: opts.Epochs, Steps: steps, Samples: n}
	for _, cb := range opts.Callbacks {
		cb.OnTrainBegin(params)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	history := &History{}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		for _, cb := range opts.Callbacks {
			cb.OnEpochBegin(epoch)
		}
		if opts.Shuffle {
			rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		acc := newAccumulator(m.metrics)
		for step := 0; step < steps; step++ {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			idx := order[step*opts.BatchSize : min((step+1)*opts.BatchSize, n)]
			x := train.X.Gather(idx)
			y := gatherTargets(train.Y, idx)

			loss, outs, err := m.trainBatch(x, y)
			if err != nil {
				return history, fmt.Errorf("epoch %d, batch %d: %w", epoch+1, step+1, err)
			}
			acc.add(loss, outs[0], y)
			logs := acc.logs()
			for _, cb := range opts.Callbacks {
				cb.OnBatchEnd(step, logs)
			}
		}

		logs := acc.logs()
		if opts.Validation != nil && opts.Validation.Len() > 0 {
			val, err := m.score(ctx, *opts.Validation, opts.BatchSize)
			if err != nil {
				return history, fmt.Errorf("epoch %d validation: %w", epoch+1, err)
			}
			for k, v := range val {
				logs["val_"+k] = v
			}
		}
		history.Epochs = append(history.Epochs, logs)
		for _, cb := range opts.Callbacks {
			cb.OnEpochEnd(epoch, logs)
		}
	}
	return history, nil
}

// Evaluate scores the model on data in inference mode and reports through
// the test hooks of callbacks.
func (m *Model) Evaluate(ctx context.Context, data Dataset, batchSize int, callbacks ...Callback) (Logs, error) {
	if m.loss == nil {
		return nil, errors.New("model must be compiled before evaluate")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if data.Len() == 0 {
		return nil, errors.New("evaluation set is empty")
	}
	params := TrainParams{Epochs: 1, Steps: Steps(data.Len(), batchSize), Samples: data.Len()}
	for _, cb := range callbacks {
		cb.OnTestBegin(params)
	}
	logs, err := m.score(ctx, data, batchSize)
	if err != nil {
		return nil, err
	}
	for _, cb := range callbacks {
		cb.OnTestEnd(logs)
	}
	return logs, nil
}

func (m *Model) score(ctx context.Context, data Dataset, batchSize int) (Logs, error) {
	n := data.Len()
	if len(data.Y) != n {
		return nil, fmt.Errorf("evaluation set has %d samples but %d targets", n, len(data.Y))
	}
	acc := newAccumulator(m.metrics)
	for start := 0; start < n; start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := make([]int, 0, batchSize)
		for i := start; i < min(start+batchSize, n); i++ {
			idx = append(idx, i)
		}
		x := data.X.Gather(idx)
		y := gatherTargets(data.Y, idx)

		ins, err := m.SplitInputs(x)
		if err != nil {
			return nil, err
		}
		outs, err := m.Forward(ins, false)
		if err != nil {
			return nil, err
		}
		var loss float64
		for _, out := range outs {
			l, _, err := m.loss.Compute(out, y)
			if err != nil {
				return nil, err
			}
			loss += l
		}
		acc.add(loss, outs[0], y)
	}
	return acc.logs(), nil
}

func (m *Model) trainBatch(x *tensor.Tensor, y []float64) (float64, []*tensor.Tensor, error) {
	ins, err := m.SplitInputs(x)
	if err != nil {
		return 0, nil, err
	}
	outs, err := m.Forward(ins, true)
	if err != nil {
		return 0, nil, err
	}
	grads := make([]*tensor.Tensor, len(outs))
	var loss float64
	for i, out := range outs {
		l, g, err := m.loss.Compute(out, y)
		if err != nil {
			return 0, nil, err
		}
		loss += l
		grads[i] = g
	}
	if err := m.Backward(grads); err != nil {
		return 0, nil, err
	}
	m.optimizer.Step(m.Params())
	return loss, outs, nil
}

func gatherTargets(y []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}

// accumulator keeps sample-weighted running means.
type accumulator struct {
	metrics []Metric
	seen    int
	loss    float64
	sums    []float64
}

func newAccumulator(metrics []Metric) *accumulator {
	return &accumulator{metrics: metrics, sums: make([]float64, len(metrics))}
}

func (a *accumulator) add(loss float64, pred *tensor.Tensor, y []float64) {
	a.seen += len(y)
	a.loss += loss * float64(len(y))
	for i, m := range a.metrics {
		a.sums[i] += m.Sum(pred, y)
	}
}

func (a *accumulator) logs() Logs {
	logs := Logs{}
	if a.seen == 0 {
		return logs
	}
	logs["loss"] = a.loss / float64(a.seen)
	for i, m := range a.metrics {
		logs[m.Name()] = a.sums[i] / float64(a.seen)
	}
	return logs
}
