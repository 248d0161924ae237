package testutil

import (
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NumericGrad estimates df/dx_i by central differences. x is perturbed in
// place and restored.
func NumericGrad(x []float64, f func() float64) []float64 {
	const h = 1e-6
	out := make([]float64, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		up := f()
		x[i] = orig - h
		down := f()
		x[i] = orig
		out[i] = (up - down) / (2 * h)
	}
	return out
}

// CheckLayerGradients compares the analytic input and parameter gradients of
// a built single-input layer against numeric estimates of sum(g * layer(x)).
// The layer runs in inference mode so stochastic layers are deterministic.
func CheckLayerGradients(t *testing.T, l nn.Layer, x, g *tensor.Tensor, delta float64) {
	t.Helper()

	objective := func() float64 {
		y, err := l.Forward([]*tensor.Tensor{x}, false)
		require.NoError(t, err)
		var s float64
		for i, v := range y.Data {
			s += g.Data[i] * v
		}
		return s
	}

	_, err := l.Forward([]*tensor.Tensor{x}, false)
	require.NoError(t, err)
	grads, err := l.Backward(g)
	require.NoError(t, err)
	require.Len(t, grads, 1)

	analytic := make(map[string][]float64)
	for _, p := range l.Params() {
		analytic[p.Name] = append([]float64(nil), p.Grad.Data...)
	}
	dx := append([]float64(nil), grads[0].Data...)

	assert.InDeltaSlice(t, NumericGrad(x.Data, objective), dx, delta, "input gradient")
	for _, p := range l.Params() {
		assert.InDeltaSlice(t, NumericGrad(p.Value.Data, objective), analytic[p.Name], delta, "gradient of %s", p.Name)
	}
}

// Ramp returns a tensor of the given shape filled with a deterministic,
// non-symmetric sequence in roughly [-1, 1].
func Ramp(shape ...int) *tensor.Tensor {
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = float64((i*7)%13)/6.5 - 1 + 0.01*float64(i%3)
	}
	return t
}
