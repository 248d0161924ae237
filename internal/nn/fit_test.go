package nn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

type recordingCallback struct {
	NopCallback
	events []string
	params []TrainParams
	last   Logs
}

func (r *recordingCallback) OnTrainBegin(p TrainParams) {
	r.events = append(r.events, "train")
	r.params = append(r.params, p)
}
func (r *recordingCallback) OnEpochBegin(int) { r.events = append(r.events, "epoch") }
func (r *recordingCallback) OnBatchEnd(_ int, logs Logs) {
	r.events = append(r.events, "batch")
	r.last = logs
}
func (r *recordingCallback) OnTestBegin(p TrainParams) {
	r.events = append(r.events, "test")
	r.params = append(r.params, p)
}
func (r *recordingCallback) OnTestEnd(logs Logs) {
	r.events = append(r.events, "test_end")
	r.last = logs
}

// doubling is a regression set for y = 2x.
func doubling(n int) Dataset {
	x := tensor.New(n, 1)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i+1) / float64(n)
		x.Data[i] = v
		y[i] = 2 * v
	}
	return Dataset{X: x, Y: y}
}

func regressionModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel()
	_, err := m.AddInput(&passInput{name: "in", shape: []int{1}})
	require.NoError(t, err)
	_, err = m.Add(newScale("w", 0.5), "in")
	require.NoError(t, err)
	require.NoError(t, m.SetOutputs("w"))
	m.Compile(MeanSquaredError{}, &SGD{LearningRate: 0.1}, MAE{})
	return m
}

func TestFitReducesLoss(t *testing.T) {
	m := regressionModel(t)
	data := doubling(10)
	cb := &recordingCallback{}

	hist, err := m.Fit(context.Background(), data, FitOptions{
		Epochs: 5, BatchSize: 4, Shuffle: true, Seed: 42,
		Validation: &Dataset{X: data.X, Y: data.Y},
		Callbacks:  []Callback{cb},
	})
	require.NoError(t, err)
	require.Len(t, hist.Epochs, 5)
	assert.Less(t, hist.Epochs[4]["loss"], hist.Epochs[0]["loss"])
	assert.Contains(t, hist.Epochs[0], "mae")
	assert.Contains(t, hist.Epochs[0], "val_loss")
	assert.Contains(t, hist.Epochs[0], "val_mae")

	assert.Equal(t, TrainParams{Epochs: 5, Steps: 3, Samples: 10}, cb.params[0])
	assert.Equal(t, []string{"train", "epoch", "batch", "batch", "batch"}, cb.events[:5])
	assert.Len(t, cb.events, 1+5*(1+3))
}

func TestEvaluate(t *testing.T) {
	m := regressionModel(t)
	cb := &recordingCallback{}

	logs, err := m.Evaluate(context.Background(), doubling(5), 2, cb)
	require.NoError(t, err)
	assert.Equal(t, []string{"test", "test_end"}, cb.events)
	assert.Equal(t, TrainParams{Epochs: 1, Steps: 3, Samples: 5}, cb.params[0])
	assert.Equal(t, logs, cb.last)
	// Predictions are 0.5x against targets 2x, so the error is 1.5x.
	assert.InDelta(t, 1.5*(0.2+0.4+0.6+0.8+1.0)/5, logs["mae"], 1e-9)
}

func TestFitErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("not compiled", func(t *testing.T) {
		m := NewModel()
		_, err := m.Fit(ctx, doubling(2), FitOptions{Epochs: 1, BatchSize: 1})
		assert.ErrorContains(t, err, "compiled")
		_, err = m.Evaluate(ctx, doubling(2), 1)
		assert.ErrorContains(t, err, "compiled")
	})

	t.Run("bad options", func(t *testing.T) {
		m := regressionModel(t)
		_, err := m.Fit(ctx, doubling(2), FitOptions{Epochs: 0, BatchSize: 1})
		assert.ErrorContains(t, err, "epochs must be positive")
		_, err = m.Fit(ctx, doubling(2), FitOptions{Epochs: 1})
		assert.ErrorContains(t, err, "batch size must be positive")
		_, err = m.Fit(ctx, Dataset{}, FitOptions{Epochs: 1, BatchSize: 1})
		assert.ErrorContains(t, err, "training set is empty")
		_, err = m.Fit(ctx, Dataset{X: tensor.New(2, 1), Y: []float64{1}}, FitOptions{Epochs: 1, BatchSize: 1})
		assert.ErrorContains(t, err, "2 samples but 1 targets")
	})

	t.Run("cancelled context stops training", func(t *testing.T) {
		m := regressionModel(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.Fit(cctx, doubling(4), FitOptions{Epochs: 3, BatchSize: 2})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSteps(t *testing.T) {
	assert.Equal(t, 4, Steps(100, 32))
	assert.Equal(t, 1, Steps(32, 32))
	assert.Equal(t, 0, Steps(0, 32))
	assert.Equal(t, 0, Steps(5, 0))
}
