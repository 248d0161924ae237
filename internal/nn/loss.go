package nn

import (
	"fmt"
	"math"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Loss scores a batch of predictions against integer or real targets and
// returns dL/dpred for the batch mean.
type Loss interface {
	Name() string
	Compute(pred *tensor.Tensor, y []float64) (float64, *tensor.Tensor, error)
}

// LossByName resolves a loss id.
func LossByName(name string) (Loss, error) {
	switch name {
	case "sparse_categorical_crossentropy":
		return SparseCategoricalCrossentropy{}, nil
	case "mse", "mean_squared_error":
		return MeanSquaredError{}, nil
	}
	return nil, fmt.Errorf("unknown loss %q", name)
}

// SparseCategoricalCrossentropy takes raw logits and class indices.
type SparseCategoricalCrossentropy struct{}

func (SparseCategoricalCrossentropy) Name() string { return "sparse_categorical_crossentropy" }

func (SparseCategoricalCrossentropy) Compute(pred *tensor.Tensor, y []float64) (float64, *tensor.Tensor, error) {
	batch, k := pred.Rows(), pred.RowSize()
	if batch != len(y) {
		return 0, nil, fmt.Errorf("got %d predictions for %d targets", batch, len(y))
	}
	grad := tensor.New(pred.Shape...)
	var total float64
	for b := 0; b < batch; b++ {
		class := int(y[b])
		if float64(class) != y[b] || class < 0 || class >= k {
			return 0, nil, fmt.Errorf("label %v is not a class index for %d logits", y[b], k)
		}
		p := grad.Row(b)
		softmaxInto(pred.Row(b), p)
		total -= math.Log(math.Max(p[class], 1e-12))
		p[class] -= 1
		for i := range p {
			p[i] /= float64(batch)
		}
	}
	return total / float64(batch), grad, nil
}

// MeanSquaredError averages over every output value.
type MeanSquaredError struct{}

func (MeanSquaredError) Name() string { return "mse" }

func (MeanSquaredError) Compute(pred *tensor.Tensor, y []float64) (float64, *tensor.Tensor, error) {
	batch, k := pred.Rows(), pred.RowSize()
	if batch != len(y) {
		return 0, nil, fmt.Errorf("got %d predictions for %d targets", batch, len(y))
	}
	grad := tensor.New(pred.Shape...)
	n := float64(batch * k)
	var total float64
	for b := 0; b < batch; b++ {
		row, g := pred.Row(b), grad.Row(b)
		for i, p := range row {
			d := p - y[b]
			total += d * d
			g[i] = 2 * d / n
		}
	}
	return total / n, grad, nil
}
