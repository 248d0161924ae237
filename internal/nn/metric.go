package nn

import (
	"fmt"
	"math"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Metric reports a per-sample score summed over a batch so callers can keep
// a sample-weighted running mean.
type Metric interface {
	Name() string
	Sum(pred *tensor.Tensor, y []float64) float64
}

// MetricByName resolves a metric id and its common aliases.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "accuracy", "acc":
		return Accuracy{}, nil
	case "mse", "mean_squared_error":
		return MSE{}, nil
	case "mae", "mean_absolute_error":
		return MAE{}, nil
	}
	return nil, fmt.Errorf("unknown metric %q (valid: accuracy, mse, mae)", name)
}

// Accuracy compares the arg-max class, or the rounded value for a single
// output unit, against the label.
type Accuracy struct{}

func (Accuracy) Name() string { return "accuracy" }

func (Accuracy) Sum(pred *tensor.Tensor, y []float64) float64 {
	var correct float64
	for b := 0; b < pred.Rows(); b++ {
		row := pred.Row(b)
		var class int
		if len(row) == 1 {
			if row[0] > 0.5 {
				class = 1
			}
		} else {
			for i, v := range row {
				if v > row[class] {
					class = i
				}
			}
		}
		if float64(class) == y[b] {
			correct++
		}
	}
	return correct
}

// MSE is the mean squared error per sample.
type MSE struct{}

func (MSE) Name() string { return "mse" }

func (MSE) Sum(pred *tensor.Tensor, y []float64) float64 {
	return perSample(pred, y, func(d float64) float64 { return d * d })
}

// MAE is the mean absolute error per sample.
type MAE struct{}

func (MAE) Name() string { return "mae" }

func (MAE) Sum(pred *tensor.Tensor, y []float64) float64 {
	return perSample(pred, y, math.Abs)
}

func perSample(pred *tensor.Tensor, y []float64, f func(float64) float64) float64 {
	var total float64
	for b := 0; b < pred.Rows(); b++ {
		row := pred.Row(b)
		var s float64
		for _, p := range row {
			s += f(p - y[b])
		}
		total += s / float64(len(row))
	}
	return total
}
